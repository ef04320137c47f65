// Package session reconstructs human-readable viewing sessions from the raw
// event streams: file_metrics "open" rows bracketed by the print/download
// entries that fall inside each open window.
package session

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-activity/catalog"
	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleResolver is the slice of the sharing graph the aggregator needs to
// gate by-file access.
type RoleResolver interface {
	RoleInFile(ctx context.Context, idb bun.IDB, fileID, uid uuid.UUID) (types.FileRole, error)
}

// Recipient identifies who viewed the file.
type Recipient struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	UID       uuid.UUID `json:"uid"`
}

// OpenEvent describes one physical file opening.
type OpenEvent struct {
	StartedTime string `json:"started_time"`
	Location    string `json:"location"`
	Duration    int64  `json:"duration"`
	DeviceName  string `json:"device_name"`
}

// ActionEvent is one print or download inside a session window.
type ActionEvent struct {
	StartedTime string `json:"started_time"`
	Location    string `json:"location"`
	DeviceName  string `json:"device_name"`
}

// Session is one reconstructed viewing: an open plus the prints and
// downloads that happened before the next open.
type Session struct {
	Recipient Recipient     `json:"recipient"`
	Open      OpenEvent     `json:"open"`
	Print     []ActionEvent `json:"print"`
	Download  []ActionEvent `json:"download"`
}

// ByFileInput selects the file and optional time window to reconstruct.
type ByFileInput struct {
	SharerUID uuid.UUID
	FileID    uuid.UUID
	// From and To bound open events by started_time. Both zero means the
	// whole history.
	From time.Time
	To   time.Time
}

// ByFileResult is the ordered session list.
type ByFileResult struct {
	Activities []Session `json:"activities"`
}

// AggregatorConfig wires the session aggregator.
type AggregatorConfig struct {
	DB     *bun.DB
	Roles  RoleResolver
	Clock  types.Clock
	Logger types.Logger
}

// Aggregator builds session-shaped activity views.
type Aggregator struct {
	db     *bun.DB
	roles  RoleResolver
	clock  types.Clock
	logger types.Logger
}

// NewAggregator constructs the aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.DB == nil {
		return nil, types.ErrMissingDB
	}
	if cfg.Roles == nil {
		return nil, types.ErrMissingShareGraph
	}
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return &Aggregator{db: cfg.DB, roles: cfg.Roles, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// sessionRow is one joined (open window, matched log entry) pair. The log
// columns are null when no print/download fell inside the window.
type sessionRow struct {
	Email          string         `bun:"email"`
	FirstName      string         `bun:"first_name"`
	LastName       string         `bun:"last_name"`
	UID            uuid.UUID      `bun:"uid"`
	Action         sql.NullString `bun:"action"`
	ClientCity     sql.NullString `bun:"client_city"`
	ClientCountry  sql.NullString `bun:"client_country"`
	ClientPlatform sql.NullString `bun:"client_platform"`
	CreatedTime    sql.NullTime   `bun:"created_time"`
	StartedTime    time.Time      `bun:"started_time"`
	Timespan       sql.NullInt64  `bun:"timespan"`
	DevicePlatform sql.NullString `bun:"platform"`
	City           sql.NullString `bun:"city"`
	Country        sql.NullString `bun:"country"`
}

// recipientKey is the stable grouping key for one viewer.
type recipientKey struct {
	email, first, last string
	uid                uuid.UUID
}

// windowKey identifies one physical open within a recipient group.
type windowKey struct {
	started  time.Time
	device   string
	city     string
	country  string
	timespan int64
}

// ActivitiesByFile reconstructs the viewing sessions of a file. The caller
// must be the file's owner or a direct recipient; a downstream recipient is
// rejected with types.StatusForbidden. Owners see every viewer's activity,
// sharers only the activity of their own recipients.
func (a *Aggregator) ActivitiesByFile(ctx context.Context, idb bun.IDB, input ByFileInput) (ByFileResult, int) {
	result := ByFileResult{Activities: []Session{}}
	if input.FileID == uuid.Nil {
		a.logger.Error("by-file aggregation rejected", types.ErrFileRequired)
		return result, types.StatusByFileFailed
	}

	forbidden := false
	err := uow.Run(ctx, a.db, idb, func(ctx context.Context, idb bun.IDB) error {
		role, err := a.roles.RoleInFile(ctx, idb, input.FileID, input.SharerUID)
		if err != nil {
			return err
		}
		if role == types.RoleDownstream {
			forbidden = true
			return nil
		}

		rows, err := a.fetchSessionRows(ctx, idb, input, role == types.RoleOwner)
		if err != nil {
			return err
		}
		result.Activities = groupSessions(rows)
		return nil
	})
	if err != nil {
		a.logger.Error("by-file aggregation failed", err, "file", input.FileID)
		if types.IsTimeout(err) {
			return ByFileResult{Activities: []Session{}}, types.StatusByFileTimeout
		}
		return ByFileResult{Activities: []Session{}}, types.StatusByFileFailed
	}
	if forbidden {
		return ByFileResult{Activities: []Session{}}, types.StatusForbidden
	}
	return result, types.StatusOK
}

// fetchSessionRows runs the windowed join: each open event carries an
// implicit upper bound (the next open's start, or now for the last open) and
// collects the print/download log entries inside [start, upper).
func (a *Aggregator) fetchSessionRows(ctx context.Context, idb bun.IDB, input ByFileInput, isOwner bool) ([]sessionRow, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT
  u.email AS email, u.first_name AS first_name, u.last_name AS last_name, u.user_id AS uid,
  al_l.action AS action, al_l.city AS client_city, al_l.country AS client_country,
  al_l.client_platform AS client_platform, al_l.created_time AS created_time,
  fm.started_time AS started_time, fm.timespan AS timespan, fm.platform AS platform,
  fm.city AS city, fm.country AS country
FROM (
  SELECT COALESCE(lead(f.started_time) OVER (ORDER BY f.started_time), ?) AS next_started_time,
         f.file_id AS file_id, f.started_time AS started_time, f.user_id AS user_id,
         f.timespan AS timespan, d.platform AS platform, loc.city AS city, loc.country AS country
  FROM file_metrics f
  INNER JOIN device_metrics d ON d.tracking_id = f.tracking_id
  LEFT JOIN locations loc ON loc.location_id = f.location_id
  WHERE f.file_id = ?`)
	args = append(args, a.clock.Now(), input.FileID)
	if !input.From.IsZero() {
		query.WriteString(` AND f.started_time BETWEEN ? AND ?`)
		args = append(args, input.From, input.To)
	}
	query.WriteString(`
) fm
LEFT JOIN (
  SELECT al.file_id AS file_id, al.action AS action, loc.city AS city, loc.country AS country,
         al.client_platform AS client_platform, al.created_time AS created_time
  FROM activity_logs al
  LEFT JOIN locations loc ON loc.location_id = al.location_id`)
	if !isOwner {
		query.WriteString(`
  JOIN shared_files fs ON al.actor_uid = fs.receiver_uid AND al.file_id = fs.file_id AND fs.sender_uid = ?`)
		args = append(args, input.SharerUID)
	}
	query.WriteString(`
  WHERE al.action IN (?, ?) AND al.file_id = ?
) al_l ON al_l.created_time >= fm.started_time AND al_l.created_time < fm.next_started_time AND al_l.file_id = fm.file_id
JOIN users u ON u.user_id = fm.user_id
ORDER BY fm.started_time ASC`)
	args = append(args, catalog.ActionDownload, catalog.ActionPrint, input.FileID)

	var rows []sessionRow
	if err := idb.NewRaw(query.String(), args...).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// groupSessions applies one stable sort over the joined rows and then groups
// contiguous runs: first by recipient identity, then by open-window identity
// within each recipient. Callers relying on grouping without the prior sort
// would misgroup rows that arrive interleaved.
func groupSessions(rows []sessionRow) []Session {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Email != b.Email {
			return a.Email < b.Email
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.UID != b.UID {
			return a.UID.String() < b.UID.String()
		}
		return a.StartedTime.Before(b.StartedTime)
	})

	sessions := []Session{}
	var current *Session
	var curRecipient recipientKey
	var curWindow windowKey

	for i := range rows {
		row := &rows[i]
		rKey := recipientKey{email: row.Email, first: row.FirstName, last: row.LastName, uid: row.UID}
		wKey := windowKey{
			started:  row.StartedTime,
			device:   row.DevicePlatform.String,
			city:     row.City.String,
			country:  row.Country.String,
			timespan: row.Timespan.Int64,
		}
		if current == nil || rKey != curRecipient || wKey != curWindow {
			sessions = append(sessions, Session{
				Recipient: Recipient{Email: row.Email, FirstName: row.FirstName, LastName: row.LastName, UID: row.UID},
				Open: OpenEvent{
					StartedTime: row.StartedTime.UTC().Format(time.RFC3339),
					Location:    formatLocation(row.City, row.Country),
					Duration:    row.Timespan.Int64,
					DeviceName:  row.DevicePlatform.String,
				},
				Print:    []ActionEvent{},
				Download: []ActionEvent{},
			})
			current = &sessions[len(sessions)-1]
			curRecipient = rKey
			curWindow = wKey
		}
		if !row.Action.Valid {
			// Open window with no print/download inside it.
			continue
		}
		event := ActionEvent{
			Location:   formatLocation(row.ClientCity, row.ClientCountry),
			DeviceName: row.ClientPlatform.String,
		}
		if row.CreatedTime.Valid {
			event.StartedTime = row.CreatedTime.Time.UTC().Format(time.RFC3339)
		}
		if row.Action.String == catalog.ActionPrint {
			current.Print = append(current.Print, event)
		} else {
			current.Download = append(current.Download, event)
		}
	}
	return sessions
}

func formatLocation(city, country sql.NullString) string {
	if city.String == "" || country.String == "" {
		return ""
	}
	return city.String + ", " + country.String
}
