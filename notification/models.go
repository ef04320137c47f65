package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Notification is one durable per-device notification row. The id is
// generated by the store because fan-out writes rows with a single set-based
// insert rather than a per-device loop.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID          int64     `bun:"notification_id,pk,autoincrement"`
	Token       string    `bun:"token,nullzero"`
	Platform    string    `bun:"platform,nullzero"`
	UserID      uuid.UUID `bun:"user_id,type:uuid"`
	FileID      uuid.UUID `bun:"file_id,type:uuid,nullzero"`
	Action      string    `bun:"action"`
	ActivityID  uuid.UUID `bun:"activity_id,type:uuid"`
	Message     string    `bun:"message,nullzero"`
	CreatedTime time.Time `bun:"created_time,nullzero"`
}

// Device is one registered push target owned by a user.
type Device struct {
	bun.BaseModel `bun:"table:registered_devices,alias:rd"`

	OwnerUID    uuid.UUID `bun:"owner_uid,pk,type:uuid"`
	DeviceID    string    `bun:"device_id,pk"`
	Platform    string    `bun:"platform"`
	Environment string    `bun:"environment,nullzero"`
}
