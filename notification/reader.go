package notification

import (
	"context"
	"time"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NotificationView is the client-facing shape of one notification: actor,
// target, classified object, and normalized verb.
type NotificationView struct {
	Actor  types.Party    `json:"actor"`
	Target types.Party    `json:"target"`
	Object ObjectInfo     `json:"object"`
	Verb   types.VerbInfo `json:"verb"`
	Extra  ExtraContext   `json:"extra_context"`
	Time   string         `json:"time"`
}

// ObjectInfo classifies what the notification is about. File objects carry
// metadata; profile/team/membership/account objects carry only the type and
// an optional sub-target.
type ObjectInfo struct {
	Type     string     `json:"type"`
	ID       *uuid.UUID `json:"id,omitempty"`
	Name     string     `json:"name,omitempty"`
	IsFolder *bool      `json:"is_folder,omitempty"`
	OwnerID  string     `json:"owner_id,omitempty"`
	Target   string     `json:"target,omitempty"`
}

// ExtraContext carries row identifiers and, for account deletions, the
// indirectly affected user.
type ExtraContext struct {
	NotificationID int64           `json:"notification_id"`
	ActivityID     uuid.UUID       `json:"activitylog_id"`
	IndirectTarget *IndirectTarget `json:"indirect_target,omitempty"`
}

// IndirectTarget is the second-order target of an account deletion.
type IndirectTarget struct {
	ID string `json:"id"`
}

// NotificationList is the read-back payload for one (user, device) pair.
type NotificationList struct {
	Notifications []NotificationView `json:"notifications"`
}

// ReaderConfig wires the notification reader.
type ReaderConfig struct {
	DB      *bun.DB
	Catalog *catalog.Catalog
	// Cache is the KV fallback consulted when a file row lacks its folder
	// flag. Optional: a nil cache degrades to the false default.
	Cache  types.FileInfoCache
	Logger types.Logger
}

// Reader assembles the normalized notification view for a user's device.
type Reader struct {
	db      *bun.DB
	catalog *catalog.Catalog
	cache   types.FileInfoCache
	logger  types.Logger
}

// NewReader constructs the reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Reader{db: cfg.DB, catalog: cfg.Catalog, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// notificationRow is the raw join of a notification with its activity-log
// entry, actor, target, and (possibly deleted) file.
type notificationRow struct {
	ActivityID      uuid.UUID     `bun:"activitylog_id"`
	NotificationID  int64         `bun:"notification_id"`
	ActorID         uuid.UUID     `bun:"actor_id"`
	TargetID        uuid.NullUUID `bun:"target_id"`
	FileID          uuid.NullUUID `bun:"file_id"`
	ActorFirstName  string        `bun:"actor_first_name"`
	ActorLastName   string        `bun:"actor_last_name"`
	ActorIdentity   string        `bun:"actor_identity"`
	TargetFirstName string        `bun:"target_first_name"`
	TargetLastName  string        `bun:"target_last_name"`
	TargetIdentity  string        `bun:"target_identity"`
	FileName        string        `bun:"file_name"`
	FileIsFolder    *bool         `bun:"file_is_folder"`
	FileOwnerID     uuid.NullUUID `bun:"file_owner_id"`
	Verb            string        `bun:"verb"`
	VerbPast        string        `bun:"verb_p"`
	CreatedTime     time.Time     `bun:"created_time"`
	IndirectTarget  uuid.NullUUID `bun:"indirect_target_id"`
}

// NotificationsByUserAndDevice returns the normalized notifications for one
// (user, device token) pair. Rows whose verb has no canonical mapping are
// skipped with a warning. Rows referencing a file whose owner is gone are
// tombstoned: excluded from output and deleted before the call returns,
// unless the verb itself is delete or revoke.
func (r *Reader) NotificationsByUserAndDevice(ctx context.Context, idb bun.IDB, uid uuid.UUID, deviceID string) (NotificationList, int) {
	list := NotificationList{Notifications: []NotificationView{}}
	if uid == uuid.Nil {
		r.logger.Error("notification read rejected", types.ErrUserRequired)
		return list, types.StatusFailed
	}

	err := uow.Run(ctx, r.db, idb, func(ctx context.Context, idb bun.IDB) error {
		var rows []notificationRow
		err := idb.NewSelect().
			ColumnExpr("al.activity_id AS activitylog_id").
			ColumnExpr("n.notification_id AS notification_id").
			ColumnExpr("u1.user_id AS actor_id").
			ColumnExpr("u2.user_id AS target_id").
			ColumnExpr("n.file_id AS file_id").
			ColumnExpr("u1.first_name AS actor_first_name").
			ColumnExpr("u1.last_name AS actor_last_name").
			ColumnExpr("u1.email AS actor_identity").
			ColumnExpr("u2.first_name AS target_first_name").
			ColumnExpr("u2.last_name AS target_last_name").
			ColumnExpr("u2.email AS target_identity").
			ColumnExpr("f.file_name AS file_name").
			ColumnExpr("f.is_dir AS file_is_folder").
			ColumnExpr("f.owner_uid AS file_owner_id").
			ColumnExpr("al.action AS verb").
			ColumnExpr("n.action AS verb_p").
			ColumnExpr("n.created_time AS created_time").
			ColumnExpr("al.target_uid2 AS indirect_target_id").
			TableExpr("notifications AS n").
			Join("JOIN activity_logs AS al ON al.activity_id = n.activity_id").
			Join("JOIN users AS u1 ON u1.user_id = al.actor_uid").
			Join("LEFT JOIN users AS u2 ON u2.user_id = n.user_id").
			Join("LEFT JOIN files AS f ON f.file_id = n.file_id").
			Where("n.user_id = ?", uid).
			Where("n.token = ?", deviceID).
			Scan(ctx, &rows)
		if err != nil {
			return err
		}

		var expired []int64
		for _, row := range rows {
			view, tombstone, ok := r.buildView(ctx, row)
			if tombstone {
				expired = append(expired, row.NotificationID)
				continue
			}
			if !ok {
				continue
			}
			list.Notifications = append(list.Notifications, view)
		}

		if len(expired) > 0 {
			_, err := idb.NewDelete().
				Model((*Notification)(nil)).
				Where("notification_id IN (?)", bun.In(expired)).
				Exec(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		r.logger.Error("notification read failed", err, "user", uid)
		return NotificationList{Notifications: []NotificationView{}}, types.StatusFromError(err)
	}
	return list, types.StatusOK
}

// buildView normalizes one raw row. tombstone marks rows whose file is gone;
// ok is false when the row is skipped for a data gap.
func (r *Reader) buildView(ctx context.Context, row notificationRow) (view NotificationView, tombstone bool, ok bool) {
	canonical, found := r.catalog.CanonicalVerb(row.VerbPast)
	if !found {
		r.logger.Warn("no canonical mapping for stored event", "event", row.VerbPast)
		return NotificationView{}, false, false
	}

	verbInfo := types.VerbInfo{Infinitive: row.Verb, PastTense: row.VerbPast}
	if entry, found := r.catalog.Verb(canonical); found {
		verbInfo = types.VerbInfo{ID: entry.ID, Infinitive: entry.Infinitive, PastTense: entry.PastTense}
	}

	var object ObjectInfo
	if objectType, found := r.catalog.ObjectType(row.VerbPast); found {
		object = ObjectInfo{Type: objectType}
	} else {
		if !row.FileOwnerID.Valid && canonical != catalog.VerbDelete && canonical != catalog.VerbRevoke {
			r.logger.Info("file deleted, dropping stale notification",
				"file", row.FileID.UUID, "verb", canonical)
			return NotificationView{}, true, false
		}
		object = ObjectInfo{
			Type:     catalog.ObjectFile,
			Name:     row.FileName,
			IsFolder: row.FileIsFolder,
		}
		if row.FileID.Valid {
			fileID := row.FileID.UUID
			object.ID = &fileID
		}
		if row.FileOwnerID.Valid {
			object.OwnerID = row.FileOwnerID.UUID.String()
		}
		if object.IsFolder == nil {
			r.fillFromCache(ctx, &object, row)
		}
	}
	if target, found := r.catalog.ObjectTarget(row.VerbPast); found {
		object.Target = target
	}

	extra := ExtraContext{
		NotificationID: row.NotificationID,
		ActivityID:     row.ActivityID,
	}
	if row.Verb == catalog.ActionDeleteAccount && row.IndirectTarget.Valid {
		extra.IndirectTarget = &IndirectTarget{ID: row.IndirectTarget.UUID.String()}
	}

	view = NotificationView{
		Actor: types.Party{
			FirstName: row.ActorFirstName,
			LastName:  row.ActorLastName,
			Identity:  row.ActorIdentity,
			ID:        row.ActorID,
		},
		Target: types.Party{
			FirstName: row.TargetFirstName,
			LastName:  row.TargetLastName,
			Identity:  row.TargetIdentity,
			ID:        row.TargetID.UUID,
		},
		Object: object,
		Verb:   verbInfo,
		Extra:  extra,
		Time:   row.CreatedTime.UTC().Format(time.RFC3339),
	}
	return view, false, true
}

// fillFromCache consults the file-info cache when the relational row lacks
// the folder flag. A miss defaults the flag to false.
func (r *Reader) fillFromCache(ctx context.Context, object *ObjectInfo, row notificationRow) {
	fallback := false
	object.IsFolder = &fallback
	if r.cache == nil || !row.FileID.Valid {
		return
	}
	info, err := r.cache.FileInfo(ctx, row.FileID.UUID)
	if err != nil || info == nil {
		r.logger.Warn("file info not found in cache", "file", row.FileID.UUID)
		return
	}
	object.IsFolder = &info.IsFolder
	object.Name = info.Name
	object.OwnerID = info.OwnerID
}

// DeleteNotifications removes the given notifications belonging to the user.
func (r *Reader) DeleteNotifications(ctx context.Context, idb bun.IDB, uid uuid.UUID, ids []int64) int {
	if len(ids) == 0 {
		return types.StatusOK
	}
	err := uow.Run(ctx, r.db, idb, func(ctx context.Context, idb bun.IDB) error {
		_, err := idb.NewDelete().
			Model((*Notification)(nil)).
			Where("user_id = ?", uid).
			Where("notification_id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("notification delete failed", err, "user", uid)
		return types.StatusFromError(err)
	}
	return types.StatusOK
}
