package tracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogEntry models the persisted row in activity_logs. Rows are immutable
// facts: once written nothing mutates or deletes them.
type LogEntry struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`

	ID             uuid.UUID `bun:"activity_id,pk,type:uuid"`
	ActorUID       uuid.UUID `bun:"actor_uid,type:uuid"`
	Action         string    `bun:"action"`
	FileID         uuid.UUID `bun:"file_id,type:uuid,nullzero"`
	TargetUID      uuid.UUID `bun:"target_uid,type:uuid,nullzero"`
	IndirectUID    uuid.UUID `bun:"target_uid2,type:uuid,nullzero"`
	LocationID     uuid.UUID `bun:"location_id,type:uuid,nullzero"`
	ClientPlatform string    `bun:"client_platform,nullzero"`
	Version        string    `bun:"version,nullzero"`
	CreatedTime    time.Time `bun:"created_time"`
}
