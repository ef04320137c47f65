// Package service assembles the activity subsystem from one configuration:
// the recorder, location registry, notification fan-out, reader, mobile
// pusher, session aggregator, sharing feed, and mail dispatcher, all sharing
// the same database handle and collaborators.
package service

import (
	"context"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/location"
	"github.com/goliatone/go-activity/mail"
	"github.com/goliatone/go-activity/notification"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	"github.com/goliatone/go-activity/query"
	"github.com/goliatone/go-activity/session"
	"github.com/goliatone/go-activity/sharing"
	"github.com/goliatone/go-activity/tracker"
	"github.com/uptrace/bun"
)

// Config captures every dependency the subsystem needs. DB and Geo are
// required; Queue, Gateway, Cache, and Mailer are optional side channels and
// the service degrades gracefully without them.
type Config struct {
	DB        *bun.DB
	Geo       types.GeoResolver
	Queue     types.TransportQueue
	QueueName string
	Gateway   types.PushGateway
	Cache     types.FileInfoCache
	Mailer    types.Mailer
	Catalog   *catalog.Catalog
	Clock     types.Clock
	IDGen     types.IDGenerator
	Logger    types.Logger
}

// Service is the entry point for go-activity. Components are exported so
// hosts can reach for one directly; the service itself adds the combined
// flows that span several of them.
type Service struct {
	cfg Config

	Locations  *location.Registry
	Recorder   *tracker.Recorder
	Graph      *sharing.Graph
	Fanout     *notification.Fanout
	Reader     *notification.Reader
	Aggregator *session.Aggregator
	Feed       *query.SharingFeed

	// Pusher is nil when no push gateway was configured.
	Pusher *notification.Pusher
	// Mail is nil when no mailer was configured.
	Mail *mail.Dispatcher
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}

	locations, err := location.NewRegistry(location.RegistryConfig{
		DB:       cfg.DB,
		Resolver: cfg.Geo,
		IDGen:    cfg.IDGen,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	recorder, err := tracker.NewRecorder(tracker.RecorderConfig{
		DB:     cfg.DB,
		Clock:  cfg.Clock,
		IDGen:  cfg.IDGen,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	graph := sharing.NewGraph(sharing.GraphConfig{Logger: cfg.Logger})
	fanout, err := notification.NewFanout(notification.FanoutConfig{
		DB:        cfg.DB,
		Graph:     graph,
		Queue:     cfg.Queue,
		QueueName: cfg.QueueName,
		Catalog:   cfg.Catalog,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	reader, err := notification.NewReader(notification.ReaderConfig{
		DB:      cfg.DB,
		Catalog: cfg.Catalog,
		Cache:   cfg.Cache,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	aggregator, err := session.NewAggregator(session.AggregatorConfig{
		DB:     cfg.DB,
		Roles:  graph,
		Clock:  cfg.Clock,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	feed, err := query.NewSharingFeed(query.SharingFeedConfig{
		DB:      cfg.DB,
		Catalog: cfg.Catalog,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		Locations:  locations,
		Recorder:   recorder,
		Graph:      graph,
		Fanout:     fanout,
		Reader:     reader,
		Aggregator: aggregator,
		Feed:       feed,
	}
	if cfg.Gateway != nil {
		pusher, err := notification.NewPusher(notification.PusherConfig{
			Registry: notification.NewRegistry(cfg.Logger),
			Gateway:  cfg.Gateway,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		s.Pusher = pusher
	}
	if cfg.Mailer != nil {
		dispatcher, err := mail.NewDispatcher(cfg.Mailer, cfg.Logger)
		if err != nil {
			return nil, err
		}
		s.Mail = dispatcher
	}
	return s, nil
}

// RecordInput couples one recorded action with its notification fan-out.
type RecordInput struct {
	Track  tracker.TrackInput
	Notify *notification.FanoutInput
}

// RecordResult reports both halves of a combined record-and-notify flow.
type RecordResult struct {
	ActivityID tracker.TrackResult
	Notified   notification.FanoutResult
}

// RecordAndNotify logs one action and fans it out to file recipients inside
// a single transaction, so a failed fan-out also rolls the log row back. The
// fan-out input's ActivityID is filled from the freshly recorded row. Notify
// may be nil to record without notifying.
func (s *Service) RecordAndNotify(ctx context.Context, idb bun.IDB, input RecordInput) (RecordResult, int) {
	var (
		result RecordResult
		status int
	)
	err := uow.Run(ctx, s.cfg.DB, idb, func(ctx context.Context, idb bun.IDB) error {
		tracked, st := s.Recorder.Track(ctx, idb, input.Track)
		if st != types.StatusOK {
			status = st
			return types.ErrOperationFailed
		}
		result.ActivityID = tracked
		if input.Notify == nil {
			return nil
		}
		notify := *input.Notify
		notify.ActivityID = tracked.ActivityID
		fanned, st := s.Fanout.NotifyFileRecipients(ctx, idb, notify)
		if st != types.StatusOK {
			status = st
			return types.ErrOperationFailed
		}
		result.Notified = fanned
		return nil
	})
	if err != nil {
		if status == 0 {
			status = types.StatusFromError(err)
		}
		return RecordResult{}, status
	}
	return result, types.StatusOK
}
