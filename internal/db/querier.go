package db

import "context"

// Querier is the read surface the notifiers need. Both lookups return
// sql.ErrNoRows when the key does not match a row, whatever the backend.
type Querier interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	GetListing(ctx context.Context, id string) (Listing, error)
}

var _ Querier = (*Queries)(nil)
