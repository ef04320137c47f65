package sharing

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

func TestDirectShareesDeduplicatesAcrossFiles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	graph := NewGraph(GraphConfig{})

	sender := uuid.New()
	receiver := uuid.New()
	other := uuid.New()
	seedShare(t, db, sender, receiver, uuid.New())
	seedShare(t, db, sender, receiver, uuid.New())
	seedShare(t, db, sender, other, uuid.New())
	seedShare(t, db, other, uuid.New(), uuid.New())

	sharees, err := graph.DirectSharees(ctx, db, sender)
	require.NoError(t, err)
	require.Len(t, sharees, 2)
	require.ElementsMatch(t, []uuid.UUID{receiver, other}, sharees)
}

func TestDownstreamRecipients(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	graph := NewGraph(GraphConfig{})

	direct := uuid.New()
	downstream := uuid.New()
	seedShare(t, db, direct, downstream, uuid.New())

	got, err := graph.DownstreamRecipients(ctx, db, []uuid.UUID{direct})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{downstream}, got)

	got, err = graph.DownstreamRecipients(ctx, db, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRoleInFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	graph := NewGraph(GraphConfig{})

	owner := uuid.New()
	recipient := uuid.New()
	downstream := uuid.New()
	stranger := uuid.New()
	fileID := uuid.New()

	seedFile(t, db, fileID, owner)
	seedShare(t, db, owner, recipient, fileID)
	seedShare(t, db, recipient, downstream, fileID)

	for _, tc := range []struct {
		name string
		uid  uuid.UUID
		want types.FileRole
	}{
		{"owner", owner, types.RoleOwner},
		{"direct recipient", recipient, types.RoleRecipient},
		{"downstream", downstream, types.RoleDownstream},
		{"stranger", stranger, types.RoleNone},
	} {
		t.Run(tc.name, func(t *testing.T) {
			role, err := graph.RoleInFile(ctx, db, fileID, tc.uid)
			require.NoError(t, err)
			require.Equal(t, tc.want, role)
		})
	}
}

func TestRoleInFileMissingFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	graph := NewGraph(GraphConfig{})

	role, err := graph.RoleInFile(ctx, db, uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, types.RoleNone, role)
}

func seedFile(t *testing.T, db *bun.DB, fileID, owner uuid.UUID) {
	t.Helper()
	_, err := db.NewInsert().Model(&File{ID: fileID, Name: "report.pdf", OwnerUID: owner}).Exec(context.Background())
	require.NoError(t, err)
}

func seedShare(t *testing.T, db *bun.DB, sender, receiver, fileID uuid.UUID) {
	t.Helper()
	_, err := db.NewInsert().Model(&SharedFile{SenderUID: sender, ReceiverUID: receiver, FileID: fileID}).Exec(context.Background())
	require.NoError(t, err)
}

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
