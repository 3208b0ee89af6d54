package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/ledger"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
)

// Receipt placeholders.
const (
	DefaultDeliveryMethod = "Standard Delivery"
	CourierLocation       = "N/A (Courier)"
	UnknownItem           = "Unknown Item"
	UnknownSeller         = "Unknown"
	UnknownLocation       = "Unknown"

	blurbLength = 100
)

// PurchaseReceipt emails the buyer an itemized receipt for every new order.
// The buyer is required; the seller and the listing only enrich the email.
type PurchaseReceipt struct {
	base
}

// NewPurchaseReceipt builds the purchase-receipt notifier.
func NewPurchaseReceipt(d Deps) *PurchaseReceipt {
	return &PurchaseReceipt{base: newBase("purchase-receipt-email", d)}
}

func (n *PurchaseReceipt) Notify(ctx context.Context, body []byte) (Result, error) {
	p, err := decodePayload[db.Order](body)
	if err != nil {
		return Result{}, err
	}
	order := *p.Record

	n.Logger.Info("new order, processing receipt", "order_id", order.ID)

	// ── 1. Buyer (required) ───────────────────────────────────────────────────
	if order.BuyerID == "" {
		n.Logger.Error("receipt: order has no buyer", "order_id", order.ID)
		n.observe(metrics.OutcomeMissing)
		return n.Policy.missing("Buyer not found"), nil
	}
	buyer, err := n.Querier.GetProfile(ctx, order.BuyerID)
	if (err == nil && buyer.Email == "") || (err != nil && isMissing(err)) {
		n.Logger.Error("receipt: buyer not found",
			"order_id", order.ID,
			"buyer_id", order.BuyerID,
			"error", err,
		)
		n.observe(metrics.OutcomeMissing)
		return n.Policy.missing("Buyer not found"), nil
	}
	if err != nil {
		n.observe(metrics.OutcomeFailed)
		return Result{}, err
	}

	// ── 2. Seller and listing (optional) ──────────────────────────────────────
	var seller *db.Profile
	if s, err := n.Querier.GetProfile(ctx, order.SellerID); err != nil {
		n.Logger.Warn("receipt: seller lookup failed", "order_id", order.ID, "seller_id", order.SellerID, "error", err)
	} else {
		seller = &s
	}

	var listing *db.Listing
	if l, err := n.Querier.GetListing(ctx, order.ListingID); err != nil {
		n.Logger.Warn("receipt: product not found", "order_id", order.ID, "listing_id", order.ListingID, "error", err)
	} else {
		listing = &l
	}

	// ── 3. Render ─────────────────────────────────────────────────────────────
	params := BuildReceipt(order, buyer, seller, listing, n.SiteURL)
	html, err := email.RenderReceipt(params)
	if err != nil {
		n.observe(metrics.OutcomeFailed)
		return Result{}, err
	}

	// ── 4. Send ───────────────────────────────────────────────────────────────
	n.Logger.Info("sending receipt", "order_id", order.ID, "to", buyer.Email)
	_, err = n.dispatch(ctx,
		ledger.NewKey(n.name, order.ID, p.Revision()),
		body,
		email.Message{
			FromName: "UniTrade Orders",
			To:       buyer.Email,
			Subject:  ReceiptSubject(order.ID),
			HTML:     html,
		},
	)
	return n.finish(err, ok("Receipt sent"))
}

// ─── DERIVED FIELDS ───────────────────────────────────────────────────────────

// BuildReceipt computes every display field of the receipt. seller and
// listing may be nil when their lookups failed.
func BuildReceipt(order db.Order, buyer db.Profile, seller *db.Profile, listing *db.Listing, siteURL string) email.ReceiptParams {
	method := DeliveryMethod(order.ShippingMethod)

	p := email.ReceiptParams{
		BuyerName:      buyer.FullName,
		ItemTitle:      UnknownItem,
		Quantity:       order.Quantity,
		Total:          FormatAmount(order.AmountPaid),
		SellerName:     UnknownSeller,
		DeliveryMethod: method,
		TrackingURL:    strings.TrimRight(siteURL, "/") + "/tracking.html?tx=" + url.QueryEscape(order.ID),
		OrderID:        order.ID,
		OrderDate:      FormatOrderDate(order.CreatedAt),
	}

	if seller != nil && seller.FullName != "" {
		p.SellerName = seller.FullName
	}

	pickup := UnknownLocation
	if listing != nil {
		if listing.Title != "" {
			p.ItemTitle = listing.Title
		}
		p.ItemBlurb = Blurb(listing.Description)
		if listing.PickupLocation != "" {
			pickup = listing.PickupLocation
		}
	}
	p.LocationText = LocationText(method, pickup)

	return p
}

// DeliveryMethod returns the order's shipping method, or the default when
// none was recorded.
func DeliveryMethod(shipping string) string {
	if strings.TrimSpace(shipping) == "" {
		return DefaultDeliveryMethod
	}
	return shipping
}

// LocationText shows the pickup location for pickup and meetup orders and
// the courier placeholder for everything else.
func LocationText(method, pickupLocation string) string {
	m := strings.ToLower(method)
	if strings.Contains(m, "pickup") || strings.Contains(m, "meetup") {
		return pickupLocation
	}
	return CourierLocation
}

// FormatAmount renders a paid amount with exactly two decimals.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// Blurb cuts a description to its first 100 characters and appends "...".
// An empty description stays empty.
func Blurb(description string) string {
	if description == "" {
		return ""
	}
	if utf8.RuneCountInString(description) > blurbLength {
		description = string([]rune(description)[:blurbLength])
	}
	return description + "..."
}

// ReceiptSubject carries the upper-cased first eight characters of the
// order id.
func ReceiptSubject(orderID string) string {
	short := orderID
	if utf8.RuneCountInString(short) > 8 {
		short = string([]rune(short)[:8])
	}
	return fmt.Sprintf("Receipt for Order #%s 🧾", strings.ToUpper(short))
}

// orderDateLayouts are the created_at shapes Postgres and PostgREST emit.
var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// FormatOrderDate renders created_at as M/D/YYYY in UTC. A value that does
// not parse is shown as-is.
func FormatOrderDate(createdAt string) string {
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return t.UTC().Format("1/2/2006")
		}
	}
	return createdAt
}
