package notification

import (
	"context"
	"strings"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeviceRegistry looks up registered push tokens grouped by platform.
type DeviceRegistry interface {
	TokensByUser(ctx context.Context, idb bun.IDB, uid uuid.UUID) (map[string][]types.DeviceToken, error)
}

// Registry is the bun-backed device token registry.
type Registry struct {
	logger types.Logger
}

// NewRegistry creates a registry reader.
func NewRegistry(logger types.Logger) *Registry {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Registry{logger: logger}
}

var _ DeviceRegistry = (*Registry)(nil)

// TokensByUser returns every registered device token of a user, keyed by
// lowercase platform name.
func (r *Registry) TokensByUser(ctx context.Context, idb bun.IDB, uid uuid.UUID) (map[string][]types.DeviceToken, error) {
	var devices []Device
	err := idb.NewSelect().
		Model(&devices).
		Where("owner_uid = ?", uid).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: fetch device tokens")
	}
	tokens := make(map[string][]types.DeviceToken)
	for _, device := range devices {
		platform := strings.ToLower(device.Platform)
		tokens[platform] = append(tokens[platform], types.DeviceToken{
			Token:       device.DeviceID,
			Environment: device.Environment,
		})
	}
	return tokens, nil
}

// Actions that never produce a mobile push: bulk folder reorganizations
// would flood devices with noise.
var mutedPushActions = map[string]struct{}{
	catalog.ActionMove:         {},
	catalog.ActionRenameFolder: {},
	catalog.ActionDeleteFolder: {},
}

// PushInput describes one event to push to a user's mobile devices.
type PushInput struct {
	FromUID    uuid.UUID
	ToUID      uuid.UUID
	Action     string
	ObjectID   uuid.UUID
	ActivityID uuid.UUID
}

// PushCounts reports how many devices were reached per platform.
type PushCounts struct {
	Android int
	IOS     int
}

// PusherConfig wires the mobile push dispatcher.
type PusherConfig struct {
	Registry DeviceRegistry
	Gateway  types.PushGateway
	Logger   types.Logger
}

// Pusher sends data pushes to every mobile device of a recipient.
type Pusher struct {
	registry DeviceRegistry
	gateway  types.PushGateway
	logger   types.Logger
}

// NewPusher constructs the push dispatcher.
func NewPusher(cfg PusherConfig) (*Pusher, error) {
	if cfg.Registry == nil {
		return nil, types.ErrMissingDeviceRegistry
	}
	if cfg.Gateway == nil {
		return nil, types.ErrMissingPushGateway
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Pusher{registry: cfg.Registry, gateway: cfg.Gateway, logger: cfg.Logger}, nil
}

// NotifyUserDevice pushes the event to every registered mobile device of the
// recipient, one gateway call per platform group. Muted actions return
// immediately. A token lookup failure short-circuits with its status; a
// gateway failure for one platform logs and leaves that platform's count at
// zero without failing the call.
func (p *Pusher) NotifyUserDevice(ctx context.Context, idb bun.IDB, input PushInput) (PushCounts, int) {
	var counts PushCounts
	if _, muted := mutedPushActions[input.Action]; muted {
		return counts, types.StatusOK
	}

	tokens, err := p.registry.TokensByUser(ctx, idb, input.ToUID)
	if err != nil {
		p.logger.Error("device token lookup failed", err, "user", input.ToUID)
		return counts, types.StatusFromError(err)
	}

	message := map[string]string{
		"user_id":     input.ToUID.String(),
		"activity_id": input.ActivityID.String(),
		"action":      input.Action,
	}
	if input.ObjectID != uuid.Nil {
		message["file_id"] = input.ObjectID.String()
	}

	counts.Android = p.push(ctx, types.PlatformAndroid, message, tokens, input)
	counts.IOS = p.push(ctx, types.PlatformIOS, message, tokens, input)
	return counts, types.StatusOK
}

func (p *Pusher) push(ctx context.Context, platform string, message map[string]string, tokens map[string][]types.DeviceToken, input PushInput) int {
	group, ok := tokens[platform]
	if !ok || len(group) == 0 {
		return 0
	}
	targets := make([]string, len(group))
	for i, token := range group {
		targets[i] = token.Token
	}
	p.logger.Info("sending data push",
		"platform", platform, "action", input.Action, "user", input.ToUID)
	result, err := p.gateway.Push(ctx, platform, "data", message, targets)
	if err != nil {
		p.logger.Error("push gateway failed", err, "platform", platform, "user", input.ToUID)
		return 0
	}
	return result.Count
}
