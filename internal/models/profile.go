// internal/models/profile.go
package models

import "github.com/lib/pq"

// InterestProfileRow is a row of user_interest_profiles as stored.
type InterestProfileRow struct {
	UserID  string         `db:"user_id"`
	Regions pq.StringArray `db:"regions"`
	Species pq.StringArray `db:"species"`
	Sexes   pq.StringArray `db:"sexes"`
	Sizes   pq.StringArray `db:"sizes"`
}
