package location

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Location models the persisted row in locations.
type Location struct {
	bun.BaseModel `bun:"table:locations"`

	ID          uuid.UUID `bun:"location_id,pk,type:uuid"`
	Country     string    `bun:"country"`
	CountryCode string    `bun:"country_code,nullzero"`
	State       string    `bun:"state,nullzero"`
	City        string    `bun:"city"`
	IP          string    `bun:"ip,nullzero"`
	Latitude    float64   `bun:"latitude,nullzero"`
	Longitude   float64   `bun:"longitude,nullzero"`
	TimeZone    string    `bun:"time_zone,nullzero"`
}
