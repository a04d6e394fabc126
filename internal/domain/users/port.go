package users

import "context"

// Repository persists users and applies counter changes.
type Repository interface {
	Get(ctx context.Context, id int64) (*User, error)
	// Upsert writes the profile columns of u; counters are left untouched.
	Upsert(ctx context.Context, u *User) error
	// AddCounters adds every delta in one transaction using in-place
	// increments and returns the counters as committed.
	AddCounters(ctx context.Context, userID int64, deltas map[Counter]int64) (Counters, error)
	ResetCounters(ctx context.Context, userID int64) error
}
