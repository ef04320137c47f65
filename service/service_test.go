package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/goliatone/go-activity/notification"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/sharing"
	"github.com/goliatone/go-activity/tracker"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
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
		builder.WriteString("\n")
		if strings.HasSuffix(line, ";") {
			statements = append(statements, builder.String())
			builder.Reset()
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, builder.String())
	}
	return statements
}

type stubGeo struct{}

func (stubGeo) ByCoordinates(context.Context, float64, float64) (types.Place, error) {
	return types.Place{City: "Lyon", Country: "France"}, nil
}

func (stubGeo) ByIP(context.Context, string) (types.Place, error) {
	return types.Place{City: "Lyon", Country: "France"}, nil
}

func (stubGeo) PublicIP(context.Context) (string, error) { return "203.0.113.9", nil }

type stubGateway struct{}

func (stubGateway) Push(_ context.Context, _, _ string, _ map[string]string, tokens []string) (types.PushResult, error) {
	return types.PushResult{Count: len(tokens)}, nil
}

type stubMailer struct{}

func (stubMailer) Send(context.Context, types.MailMessage) error { return nil }

func newTestService(t *testing.T) (*Service, *bun.DB) {
	db := newTestDB(t)
	svc, err := New(Config{DB: db, Geo: stubGeo{}})
	require.NoError(t, err)
	return svc, db
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(Config{Geo: stubGeo{}})
	require.ErrorIs(t, err, types.ErrMissingDB)
}

func TestNewOptionalComponents(t *testing.T) {
	db := newTestDB(t)

	bare, err := New(Config{DB: db, Geo: stubGeo{}})
	require.NoError(t, err)
	assert.Nil(t, bare.Pusher)
	assert.Nil(t, bare.Mail)

	full, err := New(Config{DB: db, Geo: stubGeo{}, Gateway: stubGateway{}, Mailer: stubMailer{}})
	require.NoError(t, err)
	assert.NotNil(t, full.Pusher)
	assert.NotNil(t, full.Mail)
}

func TestRecordAndNotifyWritesBothSides(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := uuid.New()
	recipient := uuid.New()
	fileID := uuid.New()

	_, err := db.NewInsert().Model(&sharing.SharedFile{
		SenderUID: owner, ReceiverUID: recipient, FileID: fileID, Status: 1,
	}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&notification.Device{
		OwnerUID: recipient, DeviceID: "token-1", Platform: types.PlatformIOS,
	}).Exec(ctx)
	require.NoError(t, err)

	result, status := svc.RecordAndNotify(ctx, nil, RecordInput{
		Track: tracker.TrackInput{
			ActorUID: owner,
			Action:   "Share",
			ObjectID: fileID,
			Platform: types.PlatformWeb,
			Version:  "4.2.0",
		},
		Notify: &notification.FanoutInput{
			ActorUID:   owner,
			Action:     "Share",
			ObjectID:   fileID,
			Recipients: []uuid.UUID{recipient},
		},
	})
	require.Equal(t, types.StatusOK, status)
	require.NotEqual(t, uuid.Nil, result.ActivityID.ActivityID)
	assert.Equal(t, 1, result.Notified.Count)

	var rows []notification.Notification
	require.NoError(t, db.NewSelect().Model(&rows).Scan(ctx))
	require.Len(t, rows, 1)
	assert.Equal(t, "Shared", rows[0].Action)
	assert.Equal(t, result.ActivityID.ActivityID, rows[0].ActivityID)

	logs, err := db.NewSelect().Model((*tracker.LogEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logs)
}

func TestRecordAndNotifyRollsBackOnFanoutFailure(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	owner := uuid.New()
	recipient := uuid.New()
	fileID := uuid.New()

	_, err := db.NewInsert().Model(&sharing.SharedFile{
		SenderUID: owner, ReceiverUID: recipient, FileID: fileID, Status: 1,
	}).Exec(ctx)
	require.NoError(t, err)

	// "open" is a session event, not a notification event; the fan-out must
	// reject it and take the log row down with it.
	_, status := svc.RecordAndNotify(ctx, nil, RecordInput{
		Track: tracker.TrackInput{
			ActorUID: owner,
			Action:   "open",
			ObjectID: fileID,
			Platform: types.PlatformWeb,
			Version:  "4.2.0",
		},
		Notify: &notification.FanoutInput{
			ActorUID:   owner,
			Action:     "open",
			ObjectID:   fileID,
			Recipients: []uuid.UUID{recipient},
		},
	})
	require.Equal(t, types.StatusFailed, status)

	logs, err := db.NewSelect().Model((*tracker.LogEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, logs, "log row must roll back with the failed fan-out")
}

func TestRecordWithoutNotify(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	result, status := svc.RecordAndNotify(ctx, nil, RecordInput{
		Track: tracker.TrackInput{
			ActorUID: uuid.New(),
			Action:   "ChangePassword",
			Platform: types.PlatformWeb,
			Version:  "4.2.0",
		},
	})
	require.Equal(t, types.StatusOK, status)
	require.NotEqual(t, uuid.Nil, result.ActivityID.ActivityID)

	notifications, err := db.NewSelect().Model((*notification.Notification)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, notifications)

	logs, err := db.NewSelect().Model((*tracker.LogEntry)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logs)
}
