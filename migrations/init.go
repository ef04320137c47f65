package migrations

import (
	activity "github.com/goliatone/go-activity"
)

func init() {
	Register(activity.GetMigrationsFS())
}
