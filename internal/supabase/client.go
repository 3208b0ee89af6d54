// Package supabase talks to the hosted project over its REST surface:
// PostgREST for row lookups and GoTrue for session sign-out.
package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyashahama/unitrade-notifications/internal/db"
)

// Client is a db.Querier backed by PostgREST, authenticated with the
// service-role key so row-level security does not hide rows from the
// notifiers.
type Client struct {
	baseURL    string // e.g. "https://abc.supabase.co"
	apiKey     string
	httpClient *http.Client
}

var _ db.Querier = (*Client)(nil)

// NewClient returns a Client for the project at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── POSTGREST SHAPES ─────────────────────────────────────────────────────────

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// profileRow and listingRow mirror the columns selected below. Nullable
// columns are pointers so a JSON null decodes cleanly.
type profileRow struct {
	ID         string  `json:"id"`
	Email      *string `json:"email"`
	FullName   *string `json:"full_name"`
	IsApproved *bool   `json:"is_approved"`
}

type listingRow struct {
	ID             string   `json:"id"`
	SellerID       *string  `json:"seller_id"`
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	PickupLocation *string  `json:"pickup_location"`
	Status         *string  `json:"status"`
	Price          *float64 `json:"price"`
	ImageURL       *string  `json:"image_url"`
}

// ─── QUERIER IMPLEMENTATION ───────────────────────────────────────────────────

// GetProfile fetches one row from profiles.
func (c *Client) GetProfile(ctx context.Context, id string) (db.Profile, error) {
	var row profileRow
	if err := c.fetchOne(ctx, "profiles", "id,email,full_name,is_approved", id, &row); err != nil {
		return db.Profile{}, err
	}
	return db.Profile{
		ID:         row.ID,
		Email:      deref(row.Email),
		FullName:   deref(row.FullName),
		IsApproved: row.IsApproved != nil && *row.IsApproved,
	}, nil
}

// GetListing fetches one row from listings.
func (c *Client) GetListing(ctx context.Context, id string) (db.Listing, error) {
	var row listingRow
	cols := "id,seller_id,title,description,pickup_location,status,price,image_url"
	if err := c.fetchOne(ctx, "listings", cols, id, &row); err != nil {
		return db.Listing{}, err
	}
	l := db.Listing{
		ID:             row.ID,
		SellerID:       deref(row.SellerID),
		Title:          deref(row.Title),
		Description:    deref(row.Description),
		PickupLocation: deref(row.PickupLocation),
		Status:         deref(row.Status),
		ImageURL:       deref(row.ImageURL),
	}
	if row.Price != nil {
		l.Price = *row.Price
	}
	return l, nil
}

// ─── HTTP ─────────────────────────────────────────────────────────────────────

// fetchOne runs GET /rest/v1/{table}?id=eq.{id}&select={cols} asking for a
// single object. PostgREST answers 406 (PGRST116) when no row matches; that is
// surfaced as sql.ErrNoRows so callers treat both backends alike.
func (c *Client) fetchOne(ctx context.Context, table, cols, id string, dst any) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", cols)
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, table, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: get %s %s: %w", table, id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return fmt.Errorf("supabase: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotAcceptable:
		return fmt.Errorf("supabase: get %s %s: %w", table, id, sql.ErrNoRows)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var rerr restError
		if json.Unmarshal(body, &rerr) == nil && rerr.Message != "" {
			return fmt.Errorf("supabase: get %s %s: %s (%s)", table, id, rerr.Message, rerr.Code)
		}
		return fmt.Errorf("supabase: get %s %s: unexpected status %d: %.200s", table, id, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("supabase: decode %s row: %w", table, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
