// Package notification turns logged actions into durable per-device
// notification rows, best-effort online push hints, mobile pushes, and the
// normalized read-back view clients render.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	gocommand "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Queue job types consumed by the push transporter.
const (
	JobPushOnline         = "push_notification_online"
	JobPushTeamInfoUpdate = "push_notification_team_info_update"
)

// DefaultQueueName is the transport queue online hints are enqueued to.
const DefaultQueueName = "notification_transporter"

// ShareGraph is the slice of the sharing graph fan-out needs: who to notify
// for broadcast-to-all actions and how to expand a revocation downstream.
type ShareGraph interface {
	DirectSharees(ctx context.Context, idb bun.IDB, senderUID uuid.UUID) ([]uuid.UUID, error)
	DownstreamRecipients(ctx context.Context, idb bun.IDB, sharerUIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Actions whose recipient set is the explicitly supplied list. Every other
// action broadcasts to all direct sharees of the actor.
var selectiveActions = map[string]struct{}{
	catalog.ActionShare:            {},
	catalog.ActionRevoke:           {},
	catalog.ActionEditSharing:      {},
	catalog.ActionReshare:          {},
	catalog.ActionAccessExpired:    {},
	catalog.ActionPushUpdate:       {},
	catalog.ActionView:             {},
	catalog.ActionChangeRecipients: {},
}

// FanoutInput describes one logged action to fan out to recipients.
type FanoutInput struct {
	ActorUID   uuid.UUID
	Action     string
	ObjectID   uuid.UUID
	DeviceID   string
	Platform   string
	ActivityID uuid.UUID
	// Recipients is the explicit recipient list for selective actions. It is
	// ignored for broadcast-to-all actions.
	Recipients []uuid.UUID
	// Downstream expands Recipients with everyone they shared onward to.
	// Used when an owner revokes access from a direct recipient.
	Downstream bool
	// Online additionally enqueues a real-time push hint per recipient.
	Online bool
}

// Type implements gocommand.Message.
func (FanoutInput) Type() string {
	return "notification.fanout"
}

// Validate implements gocommand.Message.
func (input FanoutInput) Validate() error {
	if input.ActorUID == uuid.Nil {
		return types.ErrActorRequired
	}
	if strings.TrimSpace(input.Action) == "" {
		return types.ErrActionRequired
	}
	return nil
}

var _ gocommand.Message = FanoutInput{}

// FanoutResult reports how many recipients were written to.
type FanoutResult struct {
	Count int
}

// TeamFanoutInput fans a team-level change out to an explicit member list.
type TeamFanoutInput struct {
	ActorUID   uuid.UUID
	Action     string
	ObjectID   uuid.UUID
	DeviceID   string
	Platform   string
	ActivityID uuid.UUID
	MemberUIDs []uuid.UUID
	Online     bool
}

// Type implements gocommand.Message.
func (TeamFanoutInput) Type() string {
	return "notification.fanout.team"
}

// Validate implements gocommand.Message.
func (input TeamFanoutInput) Validate() error {
	if input.ActorUID == uuid.Nil {
		return types.ErrActorRequired
	}
	if strings.TrimSpace(input.Action) == "" {
		return types.ErrActionRequired
	}
	return nil
}

var _ gocommand.Message = TeamFanoutInput{}

// SelfNotifyInput records a user-scoped event on every device the user owns.
type SelfNotifyInput struct {
	UserID     uuid.UUID
	Action     string
	ObjectID   uuid.UUID
	ActivityID uuid.UUID
	// DeviceID is the originating device. Non-web callers are excluded from
	// their own notification so they don't see the action they just took.
	DeviceID string
	Platform string
	Online   bool
}

// Type implements gocommand.Message.
func (SelfNotifyInput) Type() string {
	return "notification.self"
}

// Validate implements gocommand.Message.
func (input SelfNotifyInput) Validate() error {
	if input.UserID == uuid.Nil {
		return types.ErrUserRequired
	}
	if strings.TrimSpace(input.Action) == "" {
		return types.ErrActionRequired
	}
	return nil
}

var _ gocommand.Message = SelfNotifyInput{}

// FanoutConfig wires the notification fan-out.
type FanoutConfig struct {
	DB    *bun.DB
	Graph ShareGraph
	// Queue carries online push hints. Optional: when nil, online events
	// still write durable rows and the hint is skipped.
	Queue     types.TransportQueue
	QueueName string
	Catalog   *catalog.Catalog
	Clock     types.Clock
	Logger    types.Logger
}

// Fanout writes per-device notification rows for logged actions.
type Fanout struct {
	db        *bun.DB
	graph     ShareGraph
	queue     types.TransportQueue
	queueName string
	catalog   *catalog.Catalog
	clock     types.Clock
	logger    types.Logger
}

// NewFanout constructs the fan-out, defaulting catalog, queue name, clock,
// and logging when omitted.
func NewFanout(cfg FanoutConfig) (*Fanout, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	if cfg.Graph == nil {
		return nil, types.ErrMissingShareGraph
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Fanout{
		db:        cfg.DB,
		graph:     cfg.Graph,
		queue:     cfg.Queue,
		queueName: cfg.QueueName,
		catalog:   cfg.Catalog,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}, nil
}

// NotifyFileRecipients resolves the recipient set for the action's broadcast
// policy, writes one notification row per registered device of each
// recipient, and optionally enqueues online push hints. Returns the number
// of distinct recipients written to.
func (f *Fanout) NotifyFileRecipients(ctx context.Context, idb bun.IDB, input FanoutInput) (FanoutResult, int) {
	if err := input.Validate(); err != nil {
		f.logger.Error("notification fan-out rejected", err, "action", input.Action)
		return FanoutResult{}, types.StatusFailed
	}

	var count int
	err := uow.Run(ctx, f.db, idb, func(ctx context.Context, idb bun.IDB) error {
		recipients, err := f.resolveRecipients(ctx, idb, input)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		count = len(recipients)

		if input.Online {
			f.enqueueOnlineHints(ctx, input, recipients)
		}
		event, ok := f.catalog.EventName(input.Action)
		if !ok {
			// Every fan-out-eligible action must have an event mapping.
			return goerrors.New(
				fmt.Sprintf("go-activity: no event mapping for action %q", input.Action),
				goerrors.CategoryInternal,
			).WithCode(goerrors.CodeInternal)
		}
		return f.insertForRecipients(ctx, idb, recipients, event, input.ObjectID, input.ActivityID)
	})
	if err != nil {
		f.logger.Error("notification fan-out failed", err,
			"actor", input.ActorUID, "action", input.Action)
		return FanoutResult{}, types.StatusFromError(err)
	}
	return FanoutResult{Count: count}, types.StatusOK
}

// NotifyTeamMembers fans a team change out to the supplied member list with
// the same online/offline split as the file path.
func (f *Fanout) NotifyTeamMembers(ctx context.Context, idb bun.IDB, input TeamFanoutInput) (FanoutResult, int) {
	if err := input.Validate(); err != nil {
		f.logger.Error("team notification rejected", err, "action", input.Action)
		return FanoutResult{}, types.StatusFailed
	}
	if len(input.MemberUIDs) == 0 {
		return FanoutResult{}, types.StatusOK
	}
	members := dedup(input.MemberUIDs)

	err := uow.Run(ctx, f.db, idb, func(ctx context.Context, idb bun.IDB) error {
		if input.Online {
			f.enqueueTeamHints(ctx, input, members)
		}
		event, ok := f.catalog.EventName(input.Action)
		if !ok {
			return goerrors.New(
				fmt.Sprintf("go-activity: no event mapping for action %q", input.Action),
				goerrors.CategoryInternal,
			).WithCode(goerrors.CodeInternal)
		}
		return f.insertForRecipients(ctx, idb, members, event, input.ObjectID, input.ActivityID)
	})
	if err != nil {
		f.logger.Error("team notification failed", err,
			"actor", input.ActorUID, "action", input.Action)
		return FanoutResult{}, types.StatusFromError(err)
	}
	return FanoutResult{Count: len(members)}, types.StatusOK
}

// TrackUserNotification writes a user-scoped event to every device the user
// owns. Web callers and callers without a device id notify all devices; a
// mobile caller is excluded from its own notification.
func (f *Fanout) TrackUserNotification(ctx context.Context, idb bun.IDB, input SelfNotifyInput) (FanoutResult, int) {
	if err := input.Validate(); err != nil {
		f.logger.Error("self notification rejected", err, "action", input.Action)
		return FanoutResult{}, types.StatusFailed
	}

	err := uow.Run(ctx, f.db, idb, func(ctx context.Context, idb bun.IDB) error {
		if input.Online {
			f.enqueueOnlineHints(ctx, FanoutInput{
				ActorUID:   input.UserID,
				ObjectID:   input.ObjectID,
				DeviceID:   input.DeviceID,
				Platform:   input.Platform,
				ActivityID: input.ActivityID,
			}, []uuid.UUID{input.UserID})
		}

		var fileArg any
		if input.ObjectID != uuid.Nil {
			fileArg = input.ObjectID
		}
		query := `INSERT INTO notifications (token, platform, user_id, file_id, action, activity_id, message, created_time)
SELECT device_id, platform, owner_uid, ?, ?, ?, NULL, ?
FROM registered_devices
WHERE owner_uid = ?`
		args := []any{fileArg, input.Action, input.ActivityID, f.clock.Now(), input.UserID}
		if !strings.EqualFold(strings.TrimSpace(input.Platform), types.PlatformWeb) && input.DeviceID != "" {
			query += ` AND device_id != ?`
			args = append(args, input.DeviceID)
		}
		_, err := idb.NewRaw(query, args...).Exec(ctx)
		return err
	})
	if err != nil {
		f.logger.Error("self notification failed", err,
			"user", input.UserID, "action", input.Action)
		return FanoutResult{}, types.StatusFromError(err)
	}
	return FanoutResult{Count: 1}, types.StatusOK
}

func (f *Fanout) resolveRecipients(ctx context.Context, idb bun.IDB, input FanoutInput) ([]uuid.UUID, error) {
	if _, selective := selectiveActions[input.Action]; !selective {
		// Broadcast to every direct sharee of the actor, regardless of file.
		sharees, err := f.graph.DirectSharees(ctx, idb, input.ActorUID)
		if err != nil {
			return nil, err
		}
		return dedup(sharees), nil
	}

	recipients := append([]uuid.UUID(nil), input.Recipients...)
	if input.Downstream {
		downstream, err := f.graph.DownstreamRecipients(ctx, idb, input.Recipients)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, downstream...)
	}
	return dedup(recipients), nil
}

// insertForRecipients writes one row per registered device of every
// recipient with a single set-based insert.
func (f *Fanout) insertForRecipients(ctx context.Context, idb bun.IDB, recipients []uuid.UUID, event string, fileID, activityID uuid.UUID) error {
	var fileArg any
	if fileID != uuid.Nil {
		fileArg = fileID
	}
	_, err := idb.NewRaw(
		`INSERT INTO notifications (token, platform, user_id, file_id, action, activity_id, message, created_time)
SELECT device_id, platform, owner_uid, ?, ?, ?, NULL, ?
FROM registered_devices
WHERE owner_uid IN (?)`,
		fileArg, event, activityID, f.clock.Now(), bun.In(recipients),
	).Exec(ctx)
	return err
}

// enqueueOnlineHints pushes one best-effort hint per recipient. Failures are
// logged and swallowed so the durable write is never blocked.
func (f *Fanout) enqueueOnlineHints(ctx context.Context, input FanoutInput, recipients []uuid.UUID) {
	if f.queue == nil {
		return
	}
	for _, recipient := range recipients {
		hint := map[string]any{
			"job_type":    JobPushOnline,
			"sharer":      map[string]string{"id": input.ActorUID.String()},
			"recipient":   map[string]string{"id": recipient.String()},
			"device_id":   input.DeviceID,
			"activity_id": input.ActivityID.String(),
			"platform":    input.Platform,
		}
		if input.ObjectID != uuid.Nil {
			hint["file_id"] = input.ObjectID.String()
		}
		payload, err := json.Marshal(hint)
		if err != nil {
			f.logger.Error("online hint encode failed", err, "recipient", recipient)
			continue
		}
		if err := f.queue.Enqueue(ctx, f.queueName, payload); err != nil {
			f.logger.Error("online hint enqueue failed", err, "recipient", recipient)
		}
	}
}

func (f *Fanout) enqueueTeamHints(ctx context.Context, input TeamFanoutInput, members []uuid.UUID) {
	if f.queue == nil {
		return
	}
	for _, member := range members {
		hint := map[string]any{
			"job_type":    JobPushTeamInfoUpdate,
			"actor":       map[string]string{"id": input.ActorUID.String()},
			"member":      map[string]string{"id": member.String()},
			"device_id":   input.DeviceID,
			"activity_id": input.ActivityID.String(),
			"platform":    input.Platform,
		}
		payload, err := json.Marshal(hint)
		if err != nil {
			f.logger.Error("team hint encode failed", err, "member", member)
			continue
		}
		if err := f.queue.Enqueue(ctx, f.queueName, payload); err != nil {
			f.logger.Error("team hint enqueue failed", err, "member", member)
		}
	}
}

func dedup(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
