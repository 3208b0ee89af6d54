package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nyashahama/unitrade-notifications/internal/api"
	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
	"github.com/nyashahama/unitrade-notifications/internal/notify"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubNotifier returns a canned result or error.
type stubNotifier struct {
	name   string
	result notify.Result
	err    error
	panic  bool
	got    []byte

	deadline time.Time
}

func (n *stubNotifier) Name() string { return n.name }

func (n *stubNotifier) Notify(ctx context.Context, body []byte) (notify.Result, error) {
	n.got = body
	n.deadline, _ = ctx.Deadline()
	if n.panic {
		panic("boom")
	}
	return n.result, n.err
}

// stubQuerier satisfies db.Querier with in-memory profiles.
type stubQuerier struct {
	profiles map[string]db.Profile
}

func (q *stubQuerier) GetProfile(_ context.Context, id string) (db.Profile, error) {
	p, ok := q.profiles[id]
	if !ok {
		return db.Profile{}, sql.ErrNoRows
	}
	return p, nil
}

func (q *stubQuerier) GetListing(_ context.Context, id string) (db.Listing, error) {
	return db.Listing{}, sql.ErrNoRows
}

// stubMailer records sent messages.
type stubMailer struct {
	sent []email.Message
}

func (m *stubMailer) Send(_ context.Context, msg email.Message) (string, error) {
	m.sent = append(m.sent, msg)
	return "<id@test>", nil
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestServer(cfg api.Config, m *metrics.Metrics, notifiers ...notify.Notifier) http.Handler {
	return api.NewServer(notifiers, m, cfg, discardLogger())
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return m
}

func signToken(t *testing.T, secret, role string, method jwt.SigningMethod) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.MapClaims{
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// ─── HEALTH & METRICS ─────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	h := newTestServer(api.Config{}, nil)
	rr := doRequest(t, h, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMetrics_Mounted(t *testing.T) {
	m := metrics.New(nil)
	n := &stubNotifier{name: "user-approval-email", result: notify.Result{Status: http.StatusOK, Message: "ok"}}
	h := newTestServer(api.Config{}, m, n)

	doRequest(t, h, http.MethodPost, "/functions/v1/user-approval-email", []byte(`{}`), nil)

	rr := doRequest(t, h, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `unitrade_http_requests_total{code="200",route="/functions/v1/{name}"} 1`) {
		t.Errorf("metrics missing trigger request:\n%s", body)
	}
}

func TestMetrics_NotMountedWithoutCollectors(t *testing.T) {
	h := newTestServer(api.Config{}, nil)
	rr := doRequest(t, h, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

// ─── TRIGGER ROUTING ──────────────────────────────────────────────────────────

func TestTrigger_PassesBodyAndWritesResult(t *testing.T) {
	n := &stubNotifier{
		name:   "user-approval-email",
		result: notify.Result{Status: http.StatusOK, Message: "Email sent", MessageID: "<x@y>"},
	}
	h := newTestServer(api.Config{}, nil, n)

	body := []byte(`{"record":{"id":"U1"}}`)
	rr := doRequest(t, h, http.MethodPost, "/functions/v1/user-approval-email", body, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !bytes.Equal(n.got, body) {
		t.Errorf("notifier got body %q", n.got)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
	m := decodeJSON(t, rr)
	if m["message"] != "Email sent" || m["id"] != "<x@y>" {
		t.Errorf("body: got %v", m)
	}
	if _, ok := m["error"]; ok {
		t.Errorf("body should not carry error: %v", m)
	}
}

func TestTrigger_DeadlineCoversLookupsAndSend(t *testing.T) {
	n := &stubNotifier{name: "purchase-receipt-email", result: notify.Result{Status: http.StatusOK, Message: "ok"}}
	h := newTestServer(api.Config{}, nil, n)

	start := time.Now()
	doRequest(t, h, http.MethodPost, "/functions/v1/purchase-receipt-email", []byte(`{}`), nil)

	if n.deadline.IsZero() {
		t.Fatal("notifier context has no deadline")
	}
	if got := n.deadline.Sub(start); got < 70*time.Second {
		t.Errorf("deadline %v after start, want about %v", got, api.DefaultRequestTimeout)
	}
}

func TestTrigger_CustomRequestTimeout(t *testing.T) {
	n := &stubNotifier{name: "purchase-receipt-email", result: notify.Result{Status: http.StatusOK, Message: "ok"}}
	h := newTestServer(api.Config{RequestTimeout: 2 * time.Minute}, nil, n)

	start := time.Now()
	doRequest(t, h, http.MethodPost, "/functions/v1/purchase-receipt-email", []byte(`{}`), nil)

	if got := n.deadline.Sub(start); got < 115*time.Second {
		t.Errorf("deadline %v after start, want about 2m", got)
	}
}

func TestTrigger_NotFoundResult(t *testing.T) {
	n := &stubNotifier{
		name:   "purchase-receipt-email",
		result: notify.Result{Status: http.StatusNotFound, Error: "Buyer not found"},
	}
	h := newTestServer(api.Config{}, nil, n)

	rr := doRequest(t, h, http.MethodPost, "/functions/v1/purchase-receipt-email", []byte(`{}`), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if m := decodeJSON(t, rr); m["error"] != "Buyer not found" {
		t.Errorf("body: got %v", m)
	}
}

func TestTrigger_NotifierError_500(t *testing.T) {
	n := &stubNotifier{name: "listing-approval-email", err: errors.New("smtp: 535 auth failed")}
	h := newTestServer(api.Config{}, nil, n)

	rr := doRequest(t, h, http.MethodPost, "/functions/v1/listing-approval-email", []byte(`{}`), nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if m := decodeJSON(t, rr); m["error"] != "smtp: 535 auth failed" {
		t.Errorf("body: got %v", m)
	}
}

func TestTrigger_Panic_500(t *testing.T) {
	n := &stubNotifier{name: "listing-approval-email", panic: true}
	h := newTestServer(api.Config{}, nil, n)

	rr := doRequest(t, h, http.MethodPost, "/functions/v1/listing-approval-email", []byte(`{}`), nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if m := decodeJSON(t, rr); m["error"] != "boom" {
		t.Errorf("body: got %v", m)
	}
}

func TestTrigger_UnknownFunction_404(t *testing.T) {
	h := newTestServer(api.Config{}, nil)
	rr := doRequest(t, h, http.MethodPost, "/functions/v1/nope", []byte(`{}`), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestTrigger_GetNotAllowed(t *testing.T) {
	n := &stubNotifier{name: "user-approval-email"}
	h := newTestServer(api.Config{}, nil, n)
	rr := doRequest(t, h, http.MethodGet, "/functions/v1/user-approval-email", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestTrigger_CORSPreflight(t *testing.T) {
	n := &stubNotifier{name: "user-approval-email"}
	h := newTestServer(api.Config{AllowedOrigins: []string{"https://admin.test"}}, nil, n)

	rr := doRequest(t, h, http.MethodOptions, "/functions/v1/user-approval-email", nil, map[string]string{
		"Origin":                        "https://admin.test",
		"Access-Control-Request-Method": "POST",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.test" {
		t.Errorf("allow-origin: got %q", got)
	}
}

// ─── TRIGGER AUTH ─────────────────────────────────────────────────────────────

func TestTrigger_Auth(t *testing.T) {
	const secret = "super-secret-jwt-token-with-at-least-32-characters"

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "service_role", jwt.SigningMethodHS256), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signToken(t, secret, "service_role", jwt.SigningMethodHS512), http.StatusUnauthorized},
		{"anon role", "Bearer " + signToken(t, secret, "anon", jwt.SigningMethodHS256), http.StatusForbidden},
		{"service role", "Bearer " + signToken(t, secret, "service_role", jwt.SigningMethodHS256), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &stubNotifier{name: "user-approval-email", result: notify.Result{Status: http.StatusOK, Message: "ok"}}
			h := newTestServer(api.Config{JWTSecret: secret}, nil, n)

			headers := map[string]string{}
			if tc.header != "" {
				headers["Authorization"] = tc.header
			}
			rr := doRequest(t, h, http.MethodPost, "/functions/v1/user-approval-email", []byte(`{}`), headers)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if tc.want != http.StatusOK && n.got != nil {
				t.Error("notifier ran for a rejected request")
			}
		})
	}
}

func TestTrigger_NoSecret_NoAuth(t *testing.T) {
	n := &stubNotifier{name: "user-approval-email", result: notify.Result{Status: http.StatusOK, Message: "ok"}}
	h := newTestServer(api.Config{}, nil, n)

	rr := doRequest(t, h, http.MethodPost, "/functions/v1/user-approval-email", []byte(`{}`), nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

// ─── END TO END ───────────────────────────────────────────────────────────────

func TestListingApproval_EndToEnd(t *testing.T) {
	q := &stubQuerier{profiles: map[string]db.Profile{
		"S1": {ID: "S1", Email: "seller@uni.test", FullName: "Sam"},
	}}
	mailer := &stubMailer{}
	n := notify.NewListingApproval(notify.Deps{
		Querier: q,
		Mailer:  mailer,
		Logger:  discardLogger(),
	})
	h := newTestServer(api.Config{}, metrics.New(nil), n)

	body := []byte(`{"type":"UPDATE","table":"listings","record":{"id":"L1","seller_id":"S1","title":"Lamp","status":"active"},"old_record":{"id":"L1","status":"pending"}}`)
	rr := doRequest(t, h, http.MethodPost, "/functions/v1/listing-approval-email", body, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if m := decodeJSON(t, rr); m["message"] != "Email sent" {
		t.Errorf("body: got %v", m)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "seller@uni.test" {
		t.Errorf("sent: %+v", mailer.sent)
	}
}

func TestListingApproval_EndToEnd_MalformedPayload(t *testing.T) {
	n := notify.NewListingApproval(notify.Deps{
		Querier: &stubQuerier{},
		Mailer:  &stubMailer{},
		Logger:  discardLogger(),
	})
	h := newTestServer(api.Config{}, nil, n)

	rr := doRequest(t, h, http.MethodPost, "/functions/v1/listing-approval-email", []byte(`{"record":`), nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if m := decodeJSON(t, rr); m["error"] == nil {
		t.Errorf("body should carry error: %v", m)
	}
}
