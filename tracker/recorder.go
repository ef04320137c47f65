// Package tracker records user and file actions as immutable activity-log
// entries. Recording is a pure insert: no business validation happens here
// beyond required-field presence.
package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackInput describes one action to record. ObjectID carries the file for
// file-related actions and stays zero for account/profile actions.
type TrackInput struct {
	ActorUID    uuid.UUID
	Action      string
	ObjectID    uuid.UUID
	TargetUID   uuid.UUID
	IndirectUID uuid.UUID
	LocationID  uuid.UUID
	Platform    string
	Version     string
	// CreatedTime overrides the write time when non-zero (backfill imports).
	CreatedTime time.Time
}

// Type implements gocommand.Message.
func (TrackInput) Type() string {
	return "activity.track"
}

// Validate implements gocommand.Message.
func (input TrackInput) Validate() error {
	if input.ActorUID == uuid.Nil {
		return types.ErrActorRequired
	}
	if strings.TrimSpace(input.Action) == "" {
		return types.ErrActionRequired
	}
	return nil
}

var _ gocommand.Message = TrackInput{}

// TrackResult carries the generated identifier of the new log entry.
type TrackResult struct {
	ActivityID uuid.UUID
}

// RecorderConfig wires the action recorder.
type RecorderConfig struct {
	DB     *bun.DB
	Clock  types.Clock
	IDGen  types.IDGenerator
	Logger types.Logger
}

// Recorder appends immutable rows to the activity log.
type Recorder struct {
	db     *bun.DB
	clock  types.Clock
	idGen  types.IDGenerator
	logger types.Logger
}

// NewRecorder constructs the recorder, defaulting clock, id generation, and
// logging when omitted.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Recorder{db: cfg.DB, clock: clock, idGen: idGen, logger: logger}, nil
}

// Track inserts one activity-log row and returns its identifier. A nil idb
// scopes the insert in its own transaction; a caller-supplied handle composes
// the insert into the caller's unit of work. No error crosses this boundary:
// failures are logged and translated into the status code, with
// types.StatusTimeout distinguishing deadline errors so callers can decide
// retry policy.
func (r *Recorder) Track(ctx context.Context, idb bun.IDB, input TrackInput) (TrackResult, int) {
	if err := input.Validate(); err != nil {
		r.logger.Error("activity track rejected", err, "action", input.Action)
		return TrackResult{}, types.StatusFailed
	}
	if strings.TrimSpace(input.Version) == "" {
		r.logger.Warn("activity track called without client version", "action", input.Action)
	}

	entry := &LogEntry{
		ID:             r.idGen.UUID(),
		ActorUID:       input.ActorUID,
		Action:         input.Action,
		FileID:         input.ObjectID,
		TargetUID:      input.TargetUID,
		IndirectUID:    input.IndirectUID,
		LocationID:     input.LocationID,
		ClientPlatform: input.Platform,
		Version:        input.Version,
		CreatedTime:    input.CreatedTime,
	}
	if entry.CreatedTime.IsZero() {
		entry.CreatedTime = r.clock.Now()
	}

	err := uow.Run(ctx, r.db, idb, func(ctx context.Context, idb bun.IDB) error {
		_, err := idb.NewInsert().Model(entry).Exec(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("activity track failed", err,
			"actor", input.ActorUID, "action", input.Action)
		return TrackResult{}, types.StatusFromError(err)
	}
	return TrackResult{ActivityID: entry.ID}, types.StatusOK
}
