// Package location resolves and persists the coarse geo locations referenced
// by activity-log rows.
package location

import (
	"context"

	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FallbackPlace substitutes for a failed resolution. A single policy applies
// to both the coordinate and the IP path.
var FallbackPlace = types.Place{City: "Unknown", Country: "Unknown"}

// loopback addresses cannot be geo-resolved; the registry first discovers the
// caller's public IP through the resolver.
func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}

// RegistryConfig wires the location registry.
type RegistryConfig struct {
	DB       *bun.DB
	Resolver types.GeoResolver
	IDGen    types.IDGenerator
	Logger   types.Logger
	Fallback types.Place
}

// Registry persists resolved locations for reuse by recorded actions.
type Registry struct {
	db       *bun.DB
	resolver types.GeoResolver
	idGen    types.IDGenerator
	logger   types.Logger
	fallback types.Place
}

// NewRegistry constructs the registry. The resolver is required; clock-free
// dependencies default when omitted.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	if cfg.Resolver == nil {
		return nil, types.ErrMissingGeoResolver
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	fallback := cfg.Fallback
	if fallback.City == "" {
		fallback = FallbackPlace
	}
	return &Registry{
		db:       cfg.DB,
		resolver: cfg.Resolver,
		idGen:    idGen,
		logger:   logger,
		fallback: fallback,
	}, nil
}

// RegisterInput carries the raw client hints for a location lookup. Lat and
// Lon are pointers so a genuine zero coordinate is distinguishable from
// "not supplied".
type RegisterInput struct {
	IP  string
	Lat *float64
	Lon *float64
}

// Register resolves the input into a place, inserts one locations row, and
// returns its identifier. When both coordinates are present they win over the
// IP. Failures never abort the caller: any lookup or storage error is logged
// and reported as (uuid.Nil, false), which callers treat as
// "location unknown".
func (r *Registry) Register(ctx context.Context, idb bun.IDB, input RegisterInput) (uuid.UUID, bool) {
	ip := input.IP
	place, err := r.resolve(ctx, &ip, input.Lat, input.Lon)
	if err != nil {
		r.logger.Warn("location resolution failed, using fallback",
			"ip", input.IP, "error", err)
		place = r.fallback
	}
	if place.City == "" {
		place = r.fallback
	}

	row := &Location{
		ID:      r.idGen.UUID(),
		Country: place.Country,
		City:    place.City,
		IP:      ip,
	}
	if input.Lat != nil {
		row.Latitude = *input.Lat
	}
	if input.Lon != nil {
		row.Longitude = *input.Lon
	}

	err = uow.Run(ctx, r.db, idb, func(ctx context.Context, idb bun.IDB) error {
		_, err := idb.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("location insert failed", err, "ip", ip)
		return uuid.Nil, false
	}
	return row.ID, true
}

func (r *Registry) resolve(ctx context.Context, ip *string, lat, lon *float64) (types.Place, error) {
	if lat != nil && lon != nil {
		return r.resolver.ByCoordinates(ctx, *lat, *lon)
	}
	if isLoopback(*ip) {
		public, err := r.resolver.PublicIP(ctx)
		if err != nil {
			return types.Place{}, err
		}
		*ip = public
	}
	return r.resolver.ByIP(ctx, *ip)
}
