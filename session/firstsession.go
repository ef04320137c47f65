package session

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-activity/pkg/types"
	"github.com/goliatone/go-activity/pkg/uow"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StreamEvent is one row of the merged open/print/download stream.
type StreamEvent struct {
	Action      string `json:"action"`
	DeviceName  string `json:"device_name"`
	StartedTime string `json:"started_time"`
	Duration    *int64 `json:"duration,omitempty"`
	Location    string `json:"location"`
}

// SessionBundle is the first session: the leading open event plus every
// print and download before the second open.
type SessionBundle struct {
	Open     *StreamEvent  `json:"open"`
	Print    []StreamEvent `json:"print"`
	Download []StreamEvent `json:"download"`
}

// FirstSessionInput selects the recipient, file, and optional time window.
type FirstSessionInput struct {
	RecipientUID uuid.UUID
	FileID       uuid.UUID
	From         time.Time
	To           time.Time
}

// FirstSessionResult splits the stream into the first session and the
// remaining rows, ungrouped, for the caller to page through.
type FirstSessionResult struct {
	First  SessionBundle `json:"first"`
	Others []StreamEvent `json:"others"`
}

type streamRow struct {
	Action      string         `bun:"action"`
	DeviceName  sql.NullString `bun:"device_name"`
	StartedTime time.Time      `bun:"started_time"`
	Duration    sql.NullInt64  `bun:"duration"`
	Location    string         `bun:"location"`
}

// FirstSession merges the recipient's open events with their print/download
// log entries for one file into a single chronological stream, then extracts
// the first session. Rows before the first open have no session to belong to
// and are discarded.
func (a *Aggregator) FirstSession(ctx context.Context, idb bun.IDB, input FirstSessionInput) (FirstSessionResult, int) {
	result := FirstSessionResult{
		First:  SessionBundle{Print: []StreamEvent{}, Download: []StreamEvent{}},
		Others: []StreamEvent{},
	}
	if input.RecipientUID == uuid.Nil {
		a.logger.Error("first-session extraction rejected", types.ErrUserRequired)
		return result, types.StatusFailed
	}
	if input.FileID == uuid.Nil {
		a.logger.Error("first-session extraction rejected", types.ErrFileRequired)
		return result, types.StatusFailed
	}

	err := uow.Run(ctx, a.db, idb, func(ctx context.Context, idb bun.IDB) error {
		rows, err := a.fetchMergedStream(ctx, idb, input)
		if err != nil {
			return err
		}
		result = partitionFirstSession(rows)
		return nil
	})
	if err != nil {
		a.logger.Error("first-session extraction failed", err,
			"recipient", input.RecipientUID, "file", input.FileID)
		return FirstSessionResult{
			First:  SessionBundle{Print: []StreamEvent{}, Download: []StreamEvent{}},
			Others: []StreamEvent{},
		}, types.StatusFromError(err)
	}
	return result, types.StatusOK
}

// fetchMergedStream unions the viewing ledger with the print/download log
// entries into one chronological stream. Action names are lowercased so the
// partitioning below sees a uniform stream.
func (a *Aggregator) fetchMergedStream(ctx context.Context, idb bun.IDB, input FirstSessionInput) ([]streamRow, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT action, device_name, started_time, duration, location FROM (
  SELECT 'open' AS action, d.platform AS device_name, f.started_time AS started_time,
         f.timespan AS duration,
         CASE WHEN loc.location_id IS NULL THEN 'Unknown' ELSE loc.city || ', ' || loc.country END AS location
  FROM file_metrics f
  INNER JOIN device_metrics d ON d.tracking_id = f.tracking_id
  LEFT JOIN locations loc ON loc.location_id = f.location_id
  WHERE f.file_id = ? AND f.user_id = ?`)
	args = append(args, input.FileID, input.RecipientUID)
	if !input.From.IsZero() {
		query.WriteString(` AND f.started_time >= ? AND f.started_time <= ?`)
		args = append(args, input.From, input.To)
	}
	query.WriteString(`
  UNION ALL
  SELECT LOWER(al.action) AS action, al.client_platform AS device_name, al.created_time AS started_time,
         NULL AS duration,
         CASE WHEN loc.location_id IS NULL THEN 'Unknown' ELSE loc.city || ', ' || loc.country END AS location
  FROM activity_logs al
  LEFT JOIN locations loc ON loc.location_id = al.location_id
  WHERE al.actor_uid = ? AND LOWER(al.action) IN ('print', 'download') AND al.file_id = ?`)
	args = append(args, input.RecipientUID, input.FileID)
	if !input.From.IsZero() {
		query.WriteString(` AND al.created_time >= ? AND al.created_time <= ?`)
		args = append(args, input.From, input.To)
	}
	query.WriteString(`
) m ORDER BY started_time ASC`)

	var rows []streamRow
	if err := idb.NewRaw(query.String(), args...).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// partitionFirstSession walks the chronological stream with a three-phase
// scan: discard orphans before the first open, collect the first session up
// to (excluding) the second open, pass everything else through untouched.
func partitionFirstSession(rows []streamRow) FirstSessionResult {
	result := FirstSessionResult{
		First:  SessionBundle{Print: []StreamEvent{}, Download: []StreamEvent{}},
		Others: []StreamEvent{},
	}

	const (
		seekingFirstOpen = iota
		inFirstSession
		done
	)
	phase := seekingFirstOpen

	for i := range rows {
		event := toStreamEvent(&rows[i])
		switch phase {
		case seekingFirstOpen:
			if event.Action != "open" {
				continue
			}
			result.First.Open = &StreamEvent{
				DeviceName:  event.DeviceName,
				StartedTime: event.StartedTime,
				Duration:    event.Duration,
				Location:    event.Location,
			}
			phase = inFirstSession
		case inFirstSession:
			if event.Action == "open" {
				phase = done
				result.Others = append(result.Others, event)
				continue
			}
			if event.Action == "print" {
				result.First.Print = append(result.First.Print, event)
			} else {
				result.First.Download = append(result.First.Download, event)
			}
		case done:
			result.Others = append(result.Others, event)
		}
	}
	return result
}

func toStreamEvent(row *streamRow) StreamEvent {
	event := StreamEvent{
		Action:      row.Action,
		DeviceName:  row.DeviceName.String,
		StartedTime: row.StartedTime.UTC().Format(time.RFC3339),
		Location:    row.Location,
	}
	if row.Duration.Valid {
		duration := row.Duration.Int64
		event.Duration = &duration
	}
	return event
}
