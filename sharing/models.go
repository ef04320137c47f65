package sharing

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User mirrors the service-owned users table. Only the identity fields the
// activity views join against are mapped.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        uuid.UUID `bun:"user_id,pk,type:uuid"`
	Email     string    `bun:"email,nullzero"`
	FirstName string    `bun:"first_name,nullzero"`
	LastName  string    `bun:"last_name,nullzero"`
}

// File mirrors the service-owned files table.
type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID       uuid.UUID `bun:"file_id,pk,type:uuid"`
	Name     string    `bun:"file_name,nullzero"`
	IsFolder bool      `bun:"is_dir"`
	OwnerUID uuid.UUID `bun:"owner_uid,type:uuid,nullzero"`
}

// SharedFile is one edge of the sharing graph: sender granted receiver
// access to file. Reshares produce edges whose sender is not the owner.
type SharedFile struct {
	bun.BaseModel `bun:"table:shared_files,alias:fs"`

	SenderUID   uuid.UUID `bun:"sender_uid,pk,type:uuid"`
	ReceiverUID uuid.UUID `bun:"receiver_uid,pk,type:uuid"`
	FileID      uuid.UUID `bun:"file_id,pk,type:uuid"`
	Status      int       `bun:"status"`
}
