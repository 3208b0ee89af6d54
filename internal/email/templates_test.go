package email_test

import (
	"strings"
	"testing"

	"github.com/nyashahama/unitrade-notifications/internal/email"
)

func TestRenderListingApproved_EscapesTitle(t *testing.T) {
	html, err := email.RenderListingApproved(email.ListingApprovedParams{
		SellerName:   "Aina",
		ListingTitle: "<script>alert(1)</script>",
		ListingURL:   "https://uni-trade.test/products.html?id=l1",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("listing title must be escaped")
	}
	if !strings.Contains(html, "Hi Aina,") {
		t.Error("expected greeting")
	}
	if !strings.Contains(html, `href="https://uni-trade.test/products.html?id=l1"`) {
		t.Errorf("expected listing link, got:\n%s", html)
	}
}

func TestRenderWelcome_IncludesNameAndLoginLink(t *testing.T) {
	html, err := email.RenderWelcome(email.WelcomeParams{FullName: "Daniel", LoginURL: "https://uni-trade.test/"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Welcome, Daniel!") {
		t.Error("expected welcome heading")
	}
	if !strings.Contains(html, `href="https://uni-trade.test/"`) {
		t.Error("expected login link")
	}
}

func TestRenderReceipt_IncludesEveryField(t *testing.T) {
	html, err := email.RenderReceipt(email.ReceiptParams{
		BuyerName:      "Mei",
		ItemTitle:      "Calculus Textbook",
		ItemBlurb:      "Barely used...",
		Quantity:       2,
		Total:          "12.50",
		SellerName:     "Aina",
		DeliveryMethod: "Campus Meetup",
		LocationText:   "Library Lobby",
		TrackingURL:    "https://uni-trade.test/tracking.html?tx=o1",
		OrderID:        "o1",
		OrderDate:      "3/4/2025",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"Hi Mei, thank you for your purchase.",
		"Calculus Textbook",
		"Barely used...",
		"Qty: 2",
		"RM 12.50",
		"Aina",
		"Campus Meetup",
		"Library Lobby",
		"Order ID: o1",
		"Date: 3/4/2025",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("receipt missing %q", want)
		}
	}
}
