// Package transport holds the redis-backed collaborators at the edge of the
// subsystem: the queue that carries online push hints to the transporter
// workers, and the KV cache of file metadata maintained by the file service.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FileInfoKeyPattern is the key the file service writes metadata under.
const FileInfoKeyPattern = "kv:file_info:%s"

// Queue pushes payloads onto redis lists consumed by transporter workers.
type Queue struct {
	client *redis.Client
}

// NewQueue creates a queue over an existing redis client.
func NewQueue(client *redis.Client) (*Queue, error) {
	if client == nil {
		return nil, errors.New("go-activity: redis client required")
	}
	return &Queue{client: client}, nil
}

// NewQueueFromURL dials redis from a URL and verifies the connection.
func NewQueueFromURL(ctx context.Context, redisURL string) (*Queue, error) {
	client, err := dial(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return &Queue{client: client}, nil
}

var _ types.TransportQueue = (*Queue)(nil)

// Enqueue appends the payload to the named queue.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := q.client.RPush(ctx, queue, payload).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: enqueue to "+queue)
	}
	return nil
}

// FileInfoCache reads the file metadata the wider service mirrors into
// redis, used as the fallback when a relational row is incomplete.
type FileInfoCache struct {
	client *redis.Client
}

// NewFileInfoCache creates a cache reader over an existing redis client.
func NewFileInfoCache(client *redis.Client) (*FileInfoCache, error) {
	if client == nil {
		return nil, errors.New("go-activity: redis client required")
	}
	return &FileInfoCache{client: client}, nil
}

var _ types.FileInfoCache = (*FileInfoCache)(nil)

// FileInfo fetches and decodes the cached metadata of one file. A missing
// key returns (nil, nil): absence is an expected condition the caller
// defaults around, not an error.
func (c *FileInfoCache) FileInfo(ctx context.Context, fileID uuid.UUID) (*types.FileInfo, error) {
	raw, err := c.client.Get(ctx, fmt.Sprintf(FileInfoKeyPattern, fileID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: fetch cached file info")
	}
	var info types.FileInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: decode cached file info")
	}
	return &info, nil
}

func dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "go-activity: parse redis URL").
			WithCode(goerrors.CodeBadRequest)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: connect to redis")
	}
	return client, nil
}
