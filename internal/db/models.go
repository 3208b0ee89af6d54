// Package db holds the marketplace row types the notifiers read and the
// Querier interface used to look them up. The rows are owned by the hosted
// database; nothing in this module writes them.
package db

// ListingStatusActive is the status a listing moves into once an admin
// approves it.
const ListingStatusActive = "active"

// Profile is a row of the profiles table.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	IsApproved bool   `json:"is_approved"`
}

// Listing is a row of the listings table.
type Listing struct {
	ID             string  `json:"id"`
	SellerID       string  `json:"seller_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	PickupLocation string  `json:"pickup_location"`
	Status         string  `json:"status"`
	Price          float64 `json:"price"`
	ImageURL       string  `json:"image_url"`
}

// Order is a row of the transactions table. Orders are immutable once
// created.
type Order struct {
	ID             string  `json:"id"`
	BuyerID        string  `json:"buyer_id"`
	SellerID       string  `json:"seller_id"`
	ListingID      string  `json:"listing_id"`
	AmountPaid     float64 `json:"amount_paid"`
	Quantity       int     `json:"quantity"`
	ShippingMethod string  `json:"shipping_method"`
	CreatedAt      string  `json:"created_at"`
}
