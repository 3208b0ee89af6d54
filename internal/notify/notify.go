// Package notify turns database change events into transactional email.
//
// Each notifier receives the raw trigger body, applies its eligibility gate,
// resolves the rows it needs, renders the email and sends it. The outcome is
// a Result that the HTTP layer writes back verbatim; a returned error means
// something unexpected happened and the caller should answer 500 so the
// trigger is retried.
package notify

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/ledger"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
)

// ─── RESULT ───────────────────────────────────────────────────────────────────

// Result is the response a notifier wants written: an HTTP status plus the
// JSON body. Exactly one of Message and Error is set.
type Result struct {
	Status    int    `json:"-"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"id,omitempty"`
}

func ok(message string) Result {
	return Result{Status: http.StatusOK, Message: message}
}

// DuplicateMessage answers a delivery whose email already went out.
const DuplicateMessage = "Duplicate event - email already sent"

// Notifier is implemented by the three notifiers.
type Notifier interface {
	// Name is the function name the trigger calls, e.g. "listing-approval-email".
	Name() string

	// Notify handles one trigger body.
	Notify(ctx context.Context, body []byte) (Result, error)
}

// ─── POLICY ───────────────────────────────────────────────────────────────────

// Policy decides how a missing primary dependent (the seller of a listing,
// the buyer of an order) is reported.
type Policy string

const (
	// PolicySoft answers 200 with a message so the trigger stops retrying.
	PolicySoft Policy = "soft"
	// PolicyHard answers 404 with an error.
	PolicyHard Policy = "hard"
)

// ParsePolicy accepts "soft" or "hard", case-insensitively. Empty means soft.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySoft:
		return PolicySoft, nil
	case PolicyHard:
		return PolicyHard, nil
	}
	return "", fmt.Errorf("notify: unknown missing-dependent policy %q", s)
}

func (p Policy) missing(what string) Result {
	if p == PolicyHard {
		return Result{Status: http.StatusNotFound, Error: what}
	}
	return ok(what)
}

// ─── PAYLOAD ──────────────────────────────────────────────────────────────────

// Payload is the body of a database webhook. OldRecord is nil for inserts.
type Payload[T any] struct {
	Type      string `json:"type"`
	Table     string `json:"table"`
	Schema    string `json:"schema"`
	Record    *T     `json:"record"`
	OldRecord *T     `json:"old_record"`

	// revision is the compacted record and old_record JSON. It tells two
	// deliveries of one change apart from two changes of one row.
	revision string
}

// Revision identifies the row change this payload carries. A redelivery
// yields the same revision; a later change of the same row (a listing
// approved again after a rejection) yields a different one as long as any
// column of the pair differs.
func (p Payload[T]) Revision() string {
	return p.revision
}

// Old returns the prior row, or the zero row when the payload carries none.
func (p Payload[T]) Old() T {
	if p.OldRecord == nil {
		var zero T
		return zero
	}
	return *p.OldRecord
}

func decodePayload[T any](body []byte) (Payload[T], error) {
	var p Payload[T]
	if err := json.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("notify: decode payload: %w", err)
	}
	if p.Record == nil {
		return p, errors.New("notify: payload has no record")
	}

	var raw struct {
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return p, fmt.Errorf("notify: decode payload: %w", err)
	}
	var buf bytes.Buffer
	for _, part := range []json.RawMessage{raw.Record, raw.OldRecord} {
		if len(part) == 0 {
			part = json.RawMessage("null")
		}
		if err := json.Compact(&buf, part); err != nil {
			return p, fmt.Errorf("notify: compact payload: %w", err)
		}
		buf.WriteByte('|')
	}
	p.revision = buf.String()
	return p, nil
}

// ─── SHARED DEPENDENCIES ──────────────────────────────────────────────────────

// Deps are the collaborators every notifier is built from.
type Deps struct {
	Querier db.Querier
	Mailer  email.Sender
	Ledger  ledger.Ledger    // nil disables deduplication
	Metrics *metrics.Metrics // may be nil
	Logger  *slog.Logger

	// SiteURL is the storefront root used to build links,
	// e.g. "https://uni-trade-lyart.vercel.app".
	SiteURL string
	Policy  Policy
}

// DefaultSiteURL is used when Deps.SiteURL is empty.
const DefaultSiteURL = "https://uni-trade-lyart.vercel.app"

// base carries Deps plus the behaviour shared by all notifiers.
type base struct {
	Deps
	name string
}

func newBase(name string, d Deps) base {
	if d.Ledger == nil {
		d.Ledger = ledger.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.SiteURL == "" {
		d.SiteURL = DefaultSiteURL
	}
	d.SiteURL = strings.TrimRight(d.SiteURL, "/")
	if d.Policy == "" {
		d.Policy = PolicySoft
	}
	return base{Deps: d, name: name}
}

func (b base) Name() string { return b.name }

func (b base) observe(outcome string) {
	if b.Metrics != nil {
		b.Metrics.Observe(b.name, outcome)
	}
}

// errDuplicate is returned by dispatch when the ledger already holds key.
var errDuplicate = errors.New("notify: duplicate event")

// dispatch claims key, sends m and releases the claim again if the send
// failed. It returns the relay's message id.
func (b base) dispatch(ctx context.Context, key ledger.Key, payload []byte, m email.Message) (string, error) {
	claimed, err := b.Ledger.Claim(ctx, key, payload)
	if err != nil {
		return "", fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return "", errDuplicate
	}

	start := time.Now()
	id, err := b.Mailer.Send(ctx, m)
	if b.Metrics != nil {
		b.Metrics.ObserveSend(b.name, time.Since(start))
	}
	if err != nil {
		if rerr := b.Ledger.Release(ctx, key); rerr != nil {
			b.Logger.Error("notify: release claim failed", "notifier", b.name, "key", key, "error", rerr)
		}
		return "", fmt.Errorf("send to %s: %w", m.To, err)
	}
	return id, nil
}

// finish maps the error from dispatch onto a Result; sent is returned when
// the email went out.
func (b base) finish(err error, sent Result) (Result, error) {
	switch {
	case errors.Is(err, errDuplicate):
		b.Logger.Info("notify: duplicate delivery suppressed", "notifier", b.name)
		b.observe(metrics.OutcomeDuplicate)
		return ok(DuplicateMessage), nil
	case err != nil:
		b.observe(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("%s: %w", b.name, err)
	}
	b.observe(metrics.OutcomeSent)
	return sent, nil
}

// isMissing reports whether a lookup error means the row does not exist, as
// opposed to the lookup itself failing.
func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
