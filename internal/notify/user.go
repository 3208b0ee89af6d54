package notify

import (
	"context"
	"net/http"

	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/ledger"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
)

// UserApproval welcomes a user once an admin approves their profile. The
// profile row in the payload carries everything the email needs, so no
// lookup is made.
type UserApproval struct {
	base
}

// NewUserApproval builds the user-approval notifier.
func NewUserApproval(d Deps) *UserApproval {
	return &UserApproval{base: newBase("user-approval-email", d)}
}

// UserApproved is the eligibility gate: is_approved flipped to true.
func UserApproved(rec, old db.Profile) bool {
	return rec.IsApproved && !old.IsApproved
}

func (n *UserApproval) Notify(ctx context.Context, body []byte) (Result, error) {
	p, err := decodePayload[db.Profile](body)
	if err != nil {
		return Result{}, err
	}
	rec, old := *p.Record, p.Old()

	if !UserApproved(rec, old) {
		n.observe(metrics.OutcomeSkipped)
		return ok("No email needed - Status did not change to approved"), nil
	}

	if rec.Email == "" {
		n.Logger.Error("user approval: profile has no email", "user_id", rec.ID)
		n.observe(metrics.OutcomeMissing)
		return n.Policy.missing("User email not found"), nil
	}

	n.Logger.Info("user approved, sending welcome", "user_id", rec.ID, "to", rec.Email)

	html, err := email.RenderWelcome(email.WelcomeParams{
		FullName: rec.FullName,
		LoginURL: n.SiteURL + "/",
	})
	if err != nil {
		n.observe(metrics.OutcomeFailed)
		return Result{}, err
	}

	id, err := n.dispatch(ctx,
		ledger.NewKey(n.name, rec.ID, p.Revision()),
		body,
		email.Message{
			FromName: "UniTrade Admin",
			To:       rec.Email,
			Subject:  "You are Approved! Welcome to UniTrade 🎉",
			HTML:     html,
		},
	)
	if err == nil {
		n.Logger.Info("welcome email sent", "user_id", rec.ID, "message_id", id)
	}
	return n.finish(err, Result{Status: http.StatusOK, Message: "Email sent", MessageID: id})
}
