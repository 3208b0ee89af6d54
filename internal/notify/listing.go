package notify

import (
	"context"
	"net/url"

	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/ledger"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
)

// ListingApproval emails the seller when an admin moves a listing to
// active.
type ListingApproval struct {
	base
}

// NewListingApproval builds the listing-approval notifier.
func NewListingApproval(d Deps) *ListingApproval {
	return &ListingApproval{base: newBase("listing-approval-email", d)}
}

// ListingApproved is the eligibility gate: the listing just became active.
func ListingApproved(rec, old db.Listing) bool {
	return rec.Status == db.ListingStatusActive && old.Status != db.ListingStatusActive
}

func (n *ListingApproval) Notify(ctx context.Context, body []byte) (Result, error) {
	p, err := decodePayload[db.Listing](body)
	if err != nil {
		return Result{}, err
	}
	rec, old := *p.Record, p.Old()

	n.Logger.Info("listing event received",
		"listing_id", rec.ID,
		"status", rec.Status,
		"old_status", old.Status,
	)

	if !ListingApproved(rec, old) {
		n.observe(metrics.OutcomeSkipped)
		return ok("No action"), nil
	}

	if rec.SellerID == "" {
		n.Logger.Error("listing approval: listing has no seller", "listing_id", rec.ID)
		n.observe(metrics.OutcomeMissing)
		return n.Policy.missing("Seller not found"), nil
	}

	seller, err := n.Querier.GetProfile(ctx, rec.SellerID)
	if (err == nil && seller.Email == "") || (err != nil && isMissing(err)) {
		n.Logger.Error("listing approval: seller profile not found",
			"listing_id", rec.ID,
			"seller_id", rec.SellerID,
			"error", err,
		)
		n.observe(metrics.OutcomeMissing)
		return n.Policy.missing("Seller not found"), nil
	}
	if err != nil {
		n.observe(metrics.OutcomeFailed)
		return Result{}, err
	}

	html, err := email.RenderListingApproved(email.ListingApprovedParams{
		SellerName:   seller.FullName,
		ListingTitle: rec.Title,
		ListingURL:   n.SiteURL + "/products.html?id=" + url.QueryEscape(rec.ID),
	})
	if err != nil {
		n.observe(metrics.OutcomeFailed)
		return Result{}, err
	}

	_, err = n.dispatch(ctx,
		ledger.NewKey(n.name, rec.ID, p.Revision()),
		body,
		email.Message{
			FromName: "UniTrade Admin",
			To:       seller.Email,
			Subject:  "Your Item is Live! 🚀",
			HTML:     html,
		},
	)
	if err == nil {
		n.Logger.Info("listing approval email sent", "listing_id", rec.ID, "to", seller.Email)
	}
	return n.finish(err, ok("Email sent"))
}
