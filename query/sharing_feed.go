// Package query exposes read-side feeds over the activity log. It sits on
// the generic repository layer rather than hand-rolled SQL so pagination and
// filter criteria compose.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/tracker"
	gocommand "github.com/goliatone/go-command"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultFeedLimit bounds the sharing feed when the caller does not.
const DefaultFeedLimit = 20

// Sharing actions surfaced by the cross-user feed.
var feedActions = []string{catalog.ActionShare, catalog.ActionReshare, catalog.ActionRevoke}

// FeedFilter selects the user set and page size of a sharing feed.
type FeedFilter struct {
	UserIDs []uuid.UUID
	Limit   int
}

// FeedObject is the file a feed entry is about.
type FeedObject struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// FeedActivity is one sharing event between two users in the set.
type FeedActivity struct {
	Actor  types.Party    `json:"actor"`
	Target types.Party    `json:"target"`
	Object FeedObject     `json:"object"`
	Verb   types.VerbInfo `json:"verb"`
	Time   string         `json:"time"`
}

// FeedPage is the ordered feed, newest first.
type FeedPage struct {
	Activities []FeedActivity `json:"activities"`
}

// SharingFeedConfig wires the feed query.
type SharingFeedConfig struct {
	DB      *bun.DB
	Repo    repository.Repository[*tracker.LogEntry]
	Catalog *catalog.Catalog
	Logger  types.Logger
}

// SharingFeed lists the sharing activity exchanged within a set of users:
// shares, reshares, and revocations where both the actor and a notified
// recipient belong to the set.
type SharingFeed struct {
	db      *bun.DB
	repo    repository.Repository[*tracker.LogEntry]
	catalog *catalog.Catalog
	logger  types.Logger
}

// NewSharingFeed constructs the feed, building a default repository over the
// activity log when none is supplied.
func NewSharingFeed(cfg SharingFeedConfig) (*SharingFeed, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	repo := cfg.Repo
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*tracker.LogEntry]{
			NewRecord: func() *tracker.LogEntry { return &tracker.LogEntry{} },
			GetID: func(entry *tracker.LogEntry) uuid.UUID {
				if entry == nil {
					return uuid.Nil
				}
				return entry.ID
			},
			SetID: func(entry *tracker.LogEntry, id uuid.UUID) {
				if entry != nil {
					entry.ID = id
				}
			},
		})
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &SharingFeed{db: cfg.DB, repo: repo, catalog: cfg.Catalog, logger: cfg.Logger}, nil
}

var _ gocommand.Querier[FeedFilter, FeedPage] = (*SharingFeed)(nil)

// Query implements gocommand.Querier.
func (q *SharingFeed) Query(ctx context.Context, filter FeedFilter) (FeedPage, error) {
	page := FeedPage{Activities: []FeedActivity{}}
	if len(filter.UserIDs) == 0 {
		return page, nil
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	criteria := []repository.SelectCriteria{
		func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("al.actor_uid IN (?)", bun.In(filter.UserIDs)).
				Where("al.action IN (?)", bun.In(feedActions)).
				Where(`EXISTS (
					SELECT 1 FROM notifications n
					WHERE n.activity_id = al.activity_id
					  AND n.user_id IN (?)
					  AND n.user_id != al.actor_uid
				)`, bun.In(filter.UserIDs)).
				OrderExpr("al.created_time DESC").
				Limit(limit)
		},
	}
	entries, _, err := q.repo.List(ctx, criteria...)
	if err != nil {
		return page, err
	}
	if len(entries) == 0 {
		return page, nil
	}
	return q.assemble(ctx, filter.UserIDs, entries)
}

// ActivitiesByUsers is the status-code boundary over Query.
func (q *SharingFeed) ActivitiesByUsers(ctx context.Context, uids []uuid.UUID, limit int) (FeedPage, int) {
	page, err := q.Query(ctx, FeedFilter{UserIDs: uids, Limit: limit})
	if err != nil {
		q.logger.Error("sharing feed failed", err, "users", len(uids))
		return FeedPage{Activities: []FeedActivity{}}, types.StatusFromError(err)
	}
	return page, types.StatusOK
}

// feedTarget is one (activity, notified recipient) pair with the stored
// event verb the recipient saw.
type feedTarget struct {
	ActivityID uuid.UUID `bun:"activity_id"`
	UserID     uuid.UUID `bun:"user_id"`
	VerbPast   string    `bun:"verb_p"`
}

// assemble joins the log entries with their notified recipients, the user
// identities, and the file names, producing one feed item per (entry,
// recipient) pair.
func (q *SharingFeed) assemble(ctx context.Context, uids []uuid.UUID, entries []*tracker.LogEntry) (FeedPage, error) {
	page := FeedPage{Activities: []FeedActivity{}}

	activityIDs := make([]uuid.UUID, 0, len(entries))
	fileIDs := make([]uuid.UUID, 0, len(entries))
	partyIDs := make([]uuid.UUID, 0, len(entries)*2)
	for _, entry := range entries {
		activityIDs = append(activityIDs, entry.ID)
		if entry.FileID != uuid.Nil {
			fileIDs = append(fileIDs, entry.FileID)
		}
		partyIDs = append(partyIDs, entry.ActorUID)
	}

	var targets []feedTarget
	err := q.db.NewSelect().
		ColumnExpr("DISTINCT n.activity_id AS activity_id, n.user_id AS user_id, n.action AS verb_p").
		TableExpr("notifications AS n").
		Where("n.activity_id IN (?)", bun.In(activityIDs)).
		Where("n.user_id IN (?)", bun.In(uids)).
		Scan(ctx, &targets)
	if err != nil {
		return page, err
	}
	targetsByActivity := make(map[uuid.UUID][]feedTarget)
	for _, target := range targets {
		targetsByActivity[target.ActivityID] = append(targetsByActivity[target.ActivityID], target)
		partyIDs = append(partyIDs, target.UserID)
	}

	parties, err := q.fetchParties(ctx, partyIDs)
	if err != nil {
		return page, err
	}
	fileNames, err := q.fetchFileNames(ctx, fileIDs)
	if err != nil {
		return page, err
	}

	for _, entry := range entries {
		for _, target := range targetsByActivity[entry.ID] {
			if target.UserID == entry.ActorUID {
				continue
			}
			verbInfo := types.VerbInfo{Infinitive: entry.Action, PastTense: target.VerbPast}
			if verbEntry, ok := q.catalog.Verb(strings.ToLower(entry.Action)); ok {
				verbInfo = types.VerbInfo{ID: verbEntry.ID, Infinitive: verbEntry.Infinitive, PastTense: verbEntry.PastTense}
			}
			page.Activities = append(page.Activities, FeedActivity{
				Actor:  parties[entry.ActorUID],
				Target: parties[target.UserID],
				Object: FeedObject{
					Type: catalog.ObjectFile,
					ID:   entry.FileID,
					Name: fileNames[entry.FileID],
				},
				Verb: verbInfo,
				Time: entry.CreatedTime.UTC().Format(time.RFC3339),
			})
		}
	}
	return page, nil
}

func (q *SharingFeed) fetchParties(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.Party, error) {
	parties := make(map[uuid.UUID]types.Party, len(ids))
	if len(ids) == 0 {
		return parties, nil
	}
	type userRow struct {
		ID        uuid.UUID `bun:"user_id"`
		Email     string    `bun:"email"`
		FirstName string    `bun:"first_name"`
		LastName  string    `bun:"last_name"`
	}
	var rows []userRow
	err := q.db.NewSelect().
		ColumnExpr("user_id, email, first_name, last_name").
		TableExpr("users").
		Where("user_id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		parties[row.ID] = types.Party{
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Identity:  row.Email,
			ID:        row.ID,
		}
	}
	return parties, nil
}

func (q *SharingFeed) fetchFileNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	type fileRow struct {
		ID   uuid.UUID `bun:"file_id"`
		Name string    `bun:"file_name"`
	}
	var rows []fileRow
	err := q.db.NewSelect().
		ColumnExpr("file_id, file_name").
		TableExpr("files").
		Where("file_id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
