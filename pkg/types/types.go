package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Platform identifiers stored on activity rows and device registrations.
const (
	PlatformWeb     = "web"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// Place is the coarse location produced by a geo resolver.
type Place struct {
	City    string
	Country string
}

// LocationRecord mirrors the persisted locations row.
type LocationRecord struct {
	ID          uuid.UUID
	Country     string
	CountryCode string
	State       string
	City        string
	IP          string
	Latitude    float64
	Longitude   float64
	TimeZone    string
}

// FileInfo is the cached file metadata consulted when the relational row is
// incomplete.
type FileInfo struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"is_folder"`
	OwnerID  string `json:"owner_id"`
}

// FileRole describes the caller's relationship to a file.
type FileRole int

const (
	RoleNone FileRole = iota
	RoleOwner
	RoleRecipient
	RoleDownstream
)

// DeviceToken is one registered push target.
type DeviceToken struct {
	Token       string
	Environment string
}

// VerbInfo is a verb-catalog entry resolved from a canonical verb key.
type VerbInfo struct {
	ID         int    `json:"id"`
	Infinitive string `json:"infinitive"`
	PastTense  string `json:"past_tense"`
}

// Party identifies an actor or target in client-facing notification output.
type Party struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Identity  string    `json:"identity"`
	ID        uuid.UUID `json:"id"`
}

// GeoResolver resolves coordinates or addresses into coarse locations. It may
// fail; callers treat failures as "location unknown".
type GeoResolver interface {
	ByCoordinates(ctx context.Context, lat, lon float64) (Place, error)
	ByIP(ctx context.Context, ip string) (Place, error)
	PublicIP(ctx context.Context) (string, error)
}

// TransportQueue is the fire-and-forget side channel carrying online push
// hints. Enqueue failures are logged by callers and never propagate.
type TransportQueue interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// FileInfoCache exposes the KV fallback used when a file row lacks metadata.
type FileInfoCache interface {
	FileInfo(ctx context.Context, fileID uuid.UUID) (*FileInfo, error)
}

// PushResult reports how many devices a gateway push reached.
type PushResult struct {
	Count int
}

// PushGateway dispatches one push request to every token of a platform group.
type PushGateway interface {
	Push(ctx context.Context, platform, kind string, message map[string]string, tokens []string) (PushResult, error)
}

// MailKind selects an outbound email template.
type MailKind string

const (
	MailSharedFileByOwner     MailKind = "shared_file_by_owner"
	MailSharedFileByRecipient MailKind = "shared_file_by_recipient"
	MailSharedFileExpired     MailKind = "shared_file_expired"
	MailSharedFileUpdated     MailKind = "shared_file_updated"
	MailSharedFileRevoked     MailKind = "shared_file_revoked"
	MailSharedFileDeleted     MailKind = "shared_file_deleted"
	MailSharedFileDownloaded  MailKind = "shared_file_downloaded"
	MailSharedFileReshared    MailKind = "shared_file_reshared"
	MailSharedFileViewed      MailKind = "shared_file_viewed"
	MailSharedFilePrinted     MailKind = "shared_file_printed"
)

// MailMessage carries everything the outbound mail collaborator needs.
type MailMessage struct {
	Kind           MailKind
	SenderEmail    string
	SenderFirst    string
	SenderLast     string
	RecipientEmail string
	Registered     bool
	FileID         uuid.UUID
	FileName       string
	Note           string
}

// Mailer is the outbound email collaborator.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures the logging hooks used across components.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrMissingDB occurs when a component is constructed without a database.
	ErrMissingDB = errors.New("go-activity: bun DB required")
	// ErrMissingGeoResolver occurs when the location registry lacks a resolver.
	ErrMissingGeoResolver = errors.New("go-activity: geo resolver required")
	// ErrMissingShareGraph occurs when fan-out or aggregation lacks the share graph.
	ErrMissingShareGraph = errors.New("go-activity: share graph required")
	// ErrMissingDeviceRegistry occurs when mobile push lacks the token registry.
	ErrMissingDeviceRegistry = errors.New("go-activity: device registry required")
	// ErrMissingPushGateway occurs when mobile push lacks a gateway.
	ErrMissingPushGateway = errors.New("go-activity: push gateway required")
	// ErrActorRequired indicates the acting user identifier was omitted.
	ErrActorRequired = errors.New("go-activity: actor uid required")
	// ErrActionRequired indicates an operation was invoked without an action name.
	ErrActionRequired = errors.New("go-activity: action name required")
	// ErrFileRequired indicates a file identifier was omitted.
	ErrFileRequired = errors.New("go-activity: file id required")
	// ErrUserRequired indicates a user identifier was omitted.
	ErrUserRequired = errors.New("go-activity: user id required")
	// ErrOperationFailed aborts a composed transaction after a step already
	// reported its own status.
	ErrOperationFailed = errors.New("go-activity: operation failed")
)
