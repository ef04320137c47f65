package notification

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func seedFileRaw(t *testing.T, db *bun.DB, fileID uuid.UUID, name string, isFolder, owner any) {
	t.Helper()
	_, err := db.NewRaw(
		`INSERT INTO files (file_id, file_name, is_dir, owner_uid) VALUES (?, ?, ?, ?)`,
		fileID, name, isFolder, owner,
	).Exec(context.Background())
	require.NoError(t, err)
}

func seedNotification(t *testing.T, db *bun.DB, n *Notification) int64 {
	t.Helper()
	if n.CreatedTime.IsZero() {
		n.CreatedTime = time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	}
	_, err := db.NewInsert().Model(n).Exec(context.Background())
	require.NoError(t, err)
	return n.ID
}

func TestNotificationsByUserAndDevice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	recipient := uuid.New()
	fileID := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedFileRaw(t, db, fileID, "report.pdf", false, actor)
	seedActivity(t, db, activityID, actor, catalog.ActionShare, uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone-1",
		Platform:   types.PlatformIOS,
		UserID:     recipient,
		FileID:     fileID,
		Action:     catalog.EventShared,
		ActivityID: activityID,
	})
	// Another device's row must not leak into this device's view.
	seedNotification(t, db, &Notification{
		Token:      "phone-2",
		Platform:   types.PlatformIOS,
		UserID:     recipient,
		FileID:     fileID,
		Action:     catalog.EventShared,
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone-1")
	require.Equal(t, types.StatusOK, status)
	require.Len(t, list.Notifications, 1)

	view := list.Notifications[0]
	require.Equal(t, "Ann", view.Actor.FirstName)
	require.Equal(t, "actor@example.com", view.Actor.Identity)
	require.Equal(t, recipient, view.Target.ID)
	require.Equal(t, types.VerbInfo{ID: 1, Infinitive: "share", PastTense: "shared"}, view.Verb)
	require.Equal(t, catalog.ObjectFile, view.Object.Type)
	require.Equal(t, "report.pdf", view.Object.Name)
	require.NotNil(t, view.Object.IsFolder)
	require.False(t, *view.Object.IsFolder)
	require.Equal(t, actor.String(), view.Object.OwnerID)
	require.Equal(t, activityID, view.Extra.ActivityID)
	require.Equal(t, "2024-01-02T10:30:00Z", view.Time)
}

func TestUnknownVerbIsSkippedNotDeleted(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	recipient := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedActivity(t, db, activityID, actor, "MysteryAction", uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     recipient,
		Action:     "MysteryEvent",
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
	require.Equal(t, types.StatusOK, status)
	require.Empty(t, list.Notifications)

	count, err := db.NewSelect().Model((*Notification)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStaleFileNotificationIsTombstoned(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	recipient := uuid.New()
	goneFile := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedFileRaw(t, db, goneFile, "orphan.pdf", false, nil)
	seedActivity(t, db, activityID, actor, catalog.ActionView, uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     recipient,
		FileID:     goneFile,
		Action:     catalog.EventViewed,
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
	require.Equal(t, types.StatusOK, status)
	require.Empty(t, list.Notifications)

	// The stale row is gone from storage after the read returns.
	count, err := db.NewSelect().Model((*Notification)(nil)).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRevokeSurvivesMissingFileOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	recipient := uuid.New()
	goneFile := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedFileRaw(t, db, goneFile, "revoked.pdf", false, nil)
	seedActivity(t, db, activityID, actor, catalog.ActionRevoke, uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     recipient,
		FileID:     goneFile,
		Action:     catalog.EventRevoked,
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
	require.Equal(t, types.StatusOK, status)
	require.Len(t, list.Notifications, 1)
	require.Equal(t, "revoke", list.Notifications[0].Verb.Infinitive)
}

func TestFolderFlagCacheFallback(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	actor := uuid.New()
	recipient := uuid.New()
	fileID := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedFileRaw(t, db, fileID, "docs", nil, actor)
	seedActivity(t, db, activityID, actor, catalog.ActionShare, uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     recipient,
		FileID:     fileID,
		Action:     catalog.EventShared,
		ActivityID: activityID,
	})

	t.Run("cache hit fills metadata", func(t *testing.T) {
		reader, err := NewReader(ReaderConfig{DB: db, Cache: &stubCache{
			info: &types.FileInfo{Name: "docs", IsFolder: true, OwnerID: actor.String()},
		}})
		require.NoError(t, err)

		list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
		require.Equal(t, types.StatusOK, status)
		require.Len(t, list.Notifications, 1)
		require.True(t, *list.Notifications[0].Object.IsFolder)
	})

	t.Run("cache miss defaults to false", func(t *testing.T) {
		reader, err := NewReader(ReaderConfig{DB: db, Cache: &stubCache{}})
		require.NoError(t, err)

		list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
		require.Equal(t, types.StatusOK, status)
		require.Len(t, list.Notifications, 1)
		require.False(t, *list.Notifications[0].Object.IsFolder)
	})
}

func TestProfileEventCarriesSubTarget(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "actor@example.com", "Ann", "Actor")
	seedActivity(t, db, activityID, actor, catalog.ActionChangeName, uuid.NullUUID{})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     actor,
		Action:     catalog.EventChangedName,
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, actor, "phone")
	require.Equal(t, types.StatusOK, status)
	require.Len(t, list.Notifications, 1)

	object := list.Notifications[0].Object
	require.Equal(t, catalog.ObjectProfile, object.Type)
	require.Equal(t, "info", object.Target)
	require.Nil(t, object.ID)
	require.Equal(t, "change", list.Notifications[0].Verb.Infinitive)
}

func TestAccountDeletionExposesIndirectTarget(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	actor := uuid.New()
	recipient := uuid.New()
	deleted := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, actor, "admin@example.com", "Ada", "Admin")
	seedUser(t, db, recipient, "rec@example.com", "Rita", "Recipient")
	seedActivity(t, db, activityID, actor, catalog.ActionDeleteAccount,
		uuid.NullUUID{UUID: deleted, Valid: true})
	seedNotification(t, db, &Notification{
		Token:      "phone",
		UserID:     recipient,
		Action:     catalog.EventAccountDeleted,
		ActivityID: activityID,
	})

	list, status := reader.NotificationsByUserAndDevice(ctx, nil, recipient, "phone")
	require.Equal(t, types.StatusOK, status)
	require.Len(t, list.Notifications, 1)

	view := list.Notifications[0]
	require.Equal(t, catalog.ObjectAccount, view.Object.Type)
	require.NotNil(t, view.Extra.IndirectTarget)
	require.Equal(t, deleted.String(), view.Extra.IndirectTarget.ID)
}

func TestDeleteNotifications(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	owner := uuid.New()
	other := uuid.New()
	activityID := uuid.New()
	seedUser(t, db, owner, "own@example.com", "Oli", "Owner")
	seedActivity(t, db, activityID, owner, catalog.ActionShare, uuid.NullUUID{})
	first := seedNotification(t, db, &Notification{Token: "a", UserID: owner, Action: catalog.EventShared, ActivityID: activityID})
	second := seedNotification(t, db, &Notification{Token: "b", UserID: other, Action: catalog.EventShared, ActivityID: activityID})

	// Deleting with the wrong owner must not touch another user's rows.
	status := reader.DeleteNotifications(ctx, nil, owner, []int64{first, second})
	require.Equal(t, types.StatusOK, status)

	var remaining []Notification
	require.NoError(t, db.NewSelect().Model(&remaining).Scan(ctx))
	require.Len(t, remaining, 1)
	require.Equal(t, second, remaining[0].ID)
}

func TestReaderTimeoutStatus(t *testing.T) {
	db := newTestDB(t)
	reader, err := NewReader(ReaderConfig{DB: db})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	_, status := reader.NotificationsByUserAndDevice(ctx, nil, uuid.New(), "phone")
	require.Equal(t, types.StatusTimeout, status)
}
