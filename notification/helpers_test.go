package notification

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/goliatone/go-activity/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	applyDDL(t, db)
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	paths, err := filepath.Glob("../data/sql/migrations/sqlite/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	sort.Strings(paths)
	for _, path := range paths {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		for _, stmt := range splitStatements(string(content)) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			_, err := db.Exec(stmt)
			require.NoError(t, err)
		}
	}
}

func splitStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, builder.String())
	}
	return statements
}

func seedDevice(t *testing.T, db *bun.DB, owner uuid.UUID, deviceID, platform string) {
	t.Helper()
	_, err := db.NewInsert().Model(&Device{
		OwnerUID: owner,
		DeviceID: deviceID,
		Platform: platform,
	}).Exec(context.Background())
	require.NoError(t, err)
}

func seedUser(t *testing.T, db *bun.DB, uid uuid.UUID, email, first, last string) {
	t.Helper()
	_, err := db.NewRaw(
		`INSERT INTO users (user_id, email, first_name, last_name) VALUES (?, ?, ?, ?)`,
		uid, email, first, last,
	).Exec(context.Background())
	require.NoError(t, err)
}

func seedActivity(t *testing.T, db *bun.DB, activityID, actor uuid.UUID, action string, indirect uuid.NullUUID) {
	t.Helper()
	_, err := db.NewRaw(
		`INSERT INTO activity_logs (activity_id, actor_uid, action, target_uid2, created_time) VALUES (?, ?, ?, ?, ?)`,
		activityID, actor, action, indirect, "2024-01-02T10:00:00Z",
	).Exec(context.Background())
	require.NoError(t, err)
}

type stubGraph struct {
	sharees    []uuid.UUID
	downstream []uuid.UUID
}

func (g *stubGraph) DirectSharees(context.Context, bun.IDB, uuid.UUID) ([]uuid.UUID, error) {
	return g.sharees, nil
}

func (g *stubGraph) DownstreamRecipients(context.Context, bun.IDB, []uuid.UUID) ([]uuid.UUID, error) {
	return g.downstream, nil
}

type stubQueue struct {
	queue    string
	payloads [][]byte
	err      error
}

func (q *stubQueue) Enqueue(_ context.Context, queue string, payload []byte) error {
	if q.err != nil {
		return q.err
	}
	q.queue = queue
	q.payloads = append(q.payloads, payload)
	return nil
}

type stubGateway struct {
	calls []gatewayCall
	err   error
}

type gatewayCall struct {
	platform string
	kind     string
	message  map[string]string
	tokens   []string
}

func (g *stubGateway) Push(_ context.Context, platform, kind string, message map[string]string, tokens []string) (types.PushResult, error) {
	if g.err != nil {
		return types.PushResult{}, g.err
	}
	g.calls = append(g.calls, gatewayCall{platform: platform, kind: kind, message: message, tokens: tokens})
	return types.PushResult{Count: len(tokens)}, nil
}

type stubCache struct {
	info *types.FileInfo
	err  error
}

func (c *stubCache) FileInfo(context.Context, uuid.UUID) (*types.FileInfo, error) {
	return c.info, c.err
}
