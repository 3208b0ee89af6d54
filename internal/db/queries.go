package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs the lookups directly against Postgres.
type Queries struct {
	db DBTX
}

// New wraps an open connection pool.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const getProfile = `SELECT id, COALESCE(email, ''), full_name, COALESCE(is_approved, false)
FROM profiles
WHERE id = $1`

// GetProfile returns the profile with the given id.
func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	var (
		p        Profile
		fullName sql.NullString
	)
	err := q.db.QueryRowContext(ctx, getProfile, id).Scan(&p.ID, &p.Email, &fullName, &p.IsApproved)
	if err != nil {
		return Profile{}, fmt.Errorf("db: get profile %s: %w", id, err)
	}
	p.FullName = fullName.String
	return p, nil
}

const getListing = `SELECT id, seller_id, title, description, pickup_location, status,
       COALESCE(price, 0), image_url
FROM listings
WHERE id = $1`

// GetListing returns the listing with the given id.
func (q *Queries) GetListing(ctx context.Context, id string) (Listing, error) {
	var l Listing
	var description, pickup, image, sellerID sql.NullString
	err := q.db.QueryRowContext(ctx, getListing, id).Scan(
		&l.ID,
		&sellerID,
		&l.Title,
		&description,
		&pickup,
		&l.Status,
		&l.Price,
		&image,
	)
	if err != nil {
		return Listing{}, fmt.Errorf("db: get listing %s: %w", id, err)
	}
	l.SellerID = sellerID.String
	l.Description = description.String
	l.PickupLocation = pickup.String
	l.ImageURL = image.String
	return l, nil
}
