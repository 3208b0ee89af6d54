package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// ─── PARAMS ───────────────────────────────────────────────────────────────────

// ListingApprovedParams fills the "your item is live" email.
type ListingApprovedParams struct {
	SellerName   string
	ListingTitle string
	ListingURL   string
}

// WelcomeParams fills the account-approved email.
type WelcomeParams struct {
	FullName string
	LoginURL string
}

// ReceiptParams fills the purchase receipt. Every field is display-ready:
// placeholders and formatting are applied by the caller.
type ReceiptParams struct {
	BuyerName      string
	ItemTitle      string
	ItemBlurb      string
	Quantity       int
	Total          string // "12.50"
	SellerName     string
	DeliveryMethod string
	LocationText   string
	TrackingURL    string
	OrderID        string
	OrderDate      string
}

// ─── RENDERING ────────────────────────────────────────────────────────────────

// RenderListingApproved returns the HTML body of the listing-approval email.
func RenderListingApproved(p ListingApprovedParams) (string, error) {
	return render(listingApprovedTmpl, p)
}

// RenderWelcome returns the HTML body of the account-approval email.
func RenderWelcome(p WelcomeParams) (string, error) {
	return render(welcomeTmpl, p)
}

// RenderReceipt returns the HTML body of the purchase receipt.
func RenderReceipt(p ReceiptParams) (string, error) {
	return render(receiptTmpl, p)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("email: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

var listingApprovedTmpl = template.Must(template.New("listing_approved").Parse(`
<div style="font-family: Arial, sans-serif; color: #333;">
  <h1 style="color: #10b981;">Listing Approved!</h1>
  <p>Hi {{.SellerName}},</p>
  <p>Great news! Your listing <strong>{{.ListingTitle}}</strong> is now live.</p>
  <a href="{{.ListingURL}}">View Listing</a>
</div>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
<div style="font-family: Arial, sans-serif; color: #333;">
  <h1 style="color: #3b82f6;">Welcome, {{.FullName}}!</h1>
  <p>Your account has been reviewed and <strong>approved</strong> by our admin team.</p>
  <p>You can now log in and start trading immediately.</p>
  <br>
  <a href="{{.LoginURL}}" style="background-color: #3b82f6; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Login Now</a>
</div>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`
<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; border: 1px solid #ddd; padding: 0; border-radius: 10px; overflow: hidden;">
  <div style="background-color: #f8fafc; padding: 20px; text-align: center; border-bottom: 1px solid #ddd;">
    <h2 style="color: #3b82f6; margin: 0;">Order Confirmed!</h2>
    <p style="margin: 5px 0 0; color: #64748b;">Hi {{.BuyerName}}, thank you for your purchase.</p>
  </div>

  <div style="padding: 20px;">
    <table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
      <tr style="border-bottom: 2px solid #eee;">
        <th style="padding: 10px; text-align: left; color: #64748b; font-size: 12px; text-transform: uppercase;">Item Description</th>
        <th style="padding: 10px; text-align: right; color: #64748b; font-size: 12px; text-transform: uppercase;">Price</th>
      </tr>
      <tr>
        <td style="padding: 15px 10px; border-bottom: 1px solid #eee;">
          <div style="font-size: 16px; font-weight: bold; color: #333;">{{.ItemTitle}}</div>
          <div style="font-size: 13px; color: #666; margin-top: 4px;">{{.ItemBlurb}}</div>
          <div style="font-size: 12px; color: #999; margin-top: 4px;">Qty: {{.Quantity}}</div>
        </td>
        <td style="padding: 15px 10px; border-bottom: 1px solid #eee; text-align: right; vertical-align: top; font-weight: bold;">
          RM {{.Total}}
        </td>
      </tr>
      <tr>
        <td style="padding: 15px 10px; text-align: right; font-weight: bold;">Total Paid:</td>
        <td style="padding: 15px 10px; text-align: right; font-weight: bold; color: #10b981; font-size: 18px;">RM {{.Total}}</td>
      </tr>
    </table>

    <div style="background-color: #f1f5f9; padding: 15px; border-radius: 8px; font-size: 14px; margin-bottom: 25px;">
      <table style="width: 100%;">
        <tr>
          <td style="padding: 5px 0; color: #64748b; width: 40%;">Seller:</td>
          <td style="padding: 5px 0; font-weight: 600;">{{.SellerName}}</td>
        </tr>
        <tr>
          <td style="padding: 5px 0; color: #64748b;">Delivery Method:</td>
          <td style="padding: 5px 0; font-weight: 600;">{{.DeliveryMethod}}</td>
        </tr>
        <tr>
          <td style="padding: 5px 0; color: #64748b;">Pickup/Meetup Location:</td>
          <td style="padding: 5px 0; font-weight: 600;">{{.LocationText}}</td>
        </tr>
      </table>
    </div>

    <p style="text-align: center; margin-bottom: 0;">
      <a href="{{.TrackingURL}}"
         style="background-color: #3b82f6; color: white; padding: 12px 30px; text-decoration: none; border-radius: 6px; font-weight: bold; display: inline-block;">
         Track Order Status
      </a>
    </p>
  </div>

  <div style="background-color: #f8fafc; padding: 15px; text-align: center; border-top: 1px solid #ddd; font-size: 12px; color: #94a3b8;">
    <p style="margin: 0;">Order ID: {{.OrderID}} &bull; Date: {{.OrderDate}}</p>
    <p style="margin: 5px 0 0;">Need help? Reply to this email.</p>
  </div>
</div>`))
