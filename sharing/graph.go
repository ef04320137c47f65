// Package sharing reads the service-owned sharing graph: who shared which
// file with whom, and what role a user holds on a file. The fan-out and
// aggregation layers consume it through small per-package interfaces.
package sharing

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Graph answers sharing-relationship queries against the tables owned by the
// wider file service. It holds no connection: every method runs on the
// caller-supplied bun.IDB so it composes into either transaction mode.
type Graph struct {
	logger types.Logger
}

// GraphConfig configures a Graph.
type GraphConfig struct {
	Logger types.Logger
}

// NewGraph creates a sharing graph reader.
func NewGraph(cfg GraphConfig) *Graph {
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Graph{logger: cfg.Logger}
}

// DirectSharees returns the deduplicated set of users the sender has shared
// any file with.
func (g *Graph) DirectSharees(ctx context.Context, idb bun.IDB, senderUID uuid.UUID) ([]uuid.UUID, error) {
	var receivers []uuid.UUID
	err := idb.NewSelect().
		Model((*SharedFile)(nil)).
		ColumnExpr("DISTINCT receiver_uid").
		Where("sender_uid = ?", senderUID).
		Scan(ctx, &receivers)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: list direct sharees")
	}
	return receivers, nil
}

// DownstreamRecipients returns everyone the given sharers have shared onward
// to. Used when an owner revokes access from a direct recipient and the
// revocation must reach that recipient's own sharees.
func (g *Graph) DownstreamRecipients(ctx context.Context, idb bun.IDB, sharerUIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(sharerUIDs) == 0 {
		return nil, nil
	}
	var receivers []uuid.UUID
	err := idb.NewSelect().
		Model((*SharedFile)(nil)).
		ColumnExpr("DISTINCT receiver_uid").
		Where("sender_uid IN (?)", bun.In(sharerUIDs)).
		Scan(ctx, &receivers)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: list downstream recipients")
	}
	return receivers, nil
}

// RoleInFile resolves the relationship between a user and a file. A receiver
// whose grant came from the owner is a direct recipient; a receiver whose
// grant came from anyone else is downstream.
func (g *Graph) RoleInFile(ctx context.Context, idb bun.IDB, fileID, uid uuid.UUID) (types.FileRole, error) {
	file := new(File)
	err := idb.NewSelect().Model(file).Where("file_id = ?", fileID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RoleNone, nil
		}
		return types.RoleNone, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: resolve file owner")
	}
	if file.OwnerUID == uid {
		return types.RoleOwner, nil
	}

	var grants []SharedFile
	err = idb.NewSelect().
		Model(&grants).
		Where("file_id = ?", fileID).
		Where("receiver_uid = ?", uid).
		Scan(ctx)
	if err != nil {
		return types.RoleNone, goerrors.Wrap(err, goerrors.CategoryInternal, "go-activity: resolve file role")
	}
	if len(grants) == 0 {
		return types.RoleNone, nil
	}
	for _, grant := range grants {
		if grant.SenderUID == file.OwnerUID {
			return types.RoleRecipient, nil
		}
	}
	return types.RoleDownstream, nil
}
