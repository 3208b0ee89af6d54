package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nyashahama/unitrade-notifications/internal/db"
)

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

const (
	// DefaultTimeout is how long the guard waits without activity.
	DefaultTimeout = 15 * time.Minute

	// ExpiredNotice is shown to the user right before the redirect.
	ExpiredNotice = "Session expired due to inactivity."

	// RedirectTarget is the page the user lands on after sign-out.
	RedirectTarget = "index.html"
)

// ActivityEvents are the user events that restart the countdown.
var ActivityEvents = []string{"mousedown", "mousemove", "keypress", "scroll", "touchstart"}

// ─── COLLABORATORS ────────────────────────────────────────────────────────────

// Session is the signed-in state held by the auth service.
type Session struct {
	AccessToken string
	UserID      string
	ExpiresAt   time.Time
}

// Auth is the subset of the auth service the guard needs. GetSession returns
// nil, nil when nobody is signed in.
type Auth interface {
	GetSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error
}

// Navigator shows the expiry notice and moves the page.
type Navigator interface {
	Alert(message string)
	Redirect(path string)
}

// stopper is the part of *time.Timer the guard holds on to.
type stopper interface {
	Stop() bool
}

// ─── GUARD ────────────────────────────────────────────────────────────────────

// GuardConfig tunes a Guard. Zero values fall back to the defaults.
type GuardConfig struct {
	Timeout time.Duration

	// afterFunc replaces time.AfterFunc in tests.
	afterFunc func(d time.Duration, f func()) stopper
}

// Guard owns the single inactivity timer of a page. Any activity event
// restarts the full interval; on expiry an active session is signed out and
// the user is sent back to RedirectTarget.
type Guard struct {
	auth   Auth
	nav    Navigator
	logger *slog.Logger

	timeout   time.Duration
	afterFunc func(d time.Duration, f func()) stopper

	mu       sync.Mutex
	timer    stopper
	gen      uint64
	disposed bool
}

// NewGuard constructs a Guard and starts the countdown. A nil logger
// discards.
func NewGuard(auth Auth, nav Navigator, cfg GuardConfig, logger *slog.Logger) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.afterFunc == nil {
		cfg.afterFunc = func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		}
	}

	g := &Guard{
		auth:      auth,
		nav:       nav,
		logger:    logger,
		timeout:   cfg.Timeout,
		afterFunc: cfg.afterFunc,
	}
	g.Reset()
	return g
}

// Observe feeds a DOM event name to the guard. Activity events restart the
// countdown; anything else is ignored. It reports whether the event counted.
func (g *Guard) Observe(event string) bool {
	if !slices.Contains(ActivityEvents, event) {
		return false
	}
	g.Reset()
	return true
}

// Reset restarts the countdown from the full interval. It is a no-op after
// Dispose.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disposed {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.gen++
	gen := g.gen
	g.timer = g.afterFunc(g.timeout, func() { g.fire(gen) })
}

// Dispose stops the timer for good.
func (g *Guard) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.disposed = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// fire runs when a countdown elapses. A callback belonging to a countdown that
// was since reset or disposed does nothing.
func (g *Guard) fire(gen uint64) {
	g.mu.Lock()
	stale := g.disposed || gen != g.gen
	g.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.expire(ctx); err != nil {
		g.logger.Error("session: expiry sign-out failed", "error", err)
	}
}

func (g *Guard) expire(ctx context.Context) error {
	sess, err := g.auth.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil
	}

	if err := g.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	g.logger.Info("session: signed out after inactivity", "user_id", sess.UserID)

	g.nav.Alert(ExpiredNotice)
	g.nav.Redirect(RedirectTarget)
	return nil
}

// ─── SESSION CHECK ────────────────────────────────────────────────────────────

// Snapshot is the signed-in session together with its profile row. Profile
// is nil when the lookup failed.
type Snapshot struct {
	Session *Session
	Profile *db.Profile
}

// CheckSession returns the current session and profile, or nil when nobody
// is signed in.
func CheckSession(ctx context.Context, auth Auth, q db.Querier) (*Snapshot, error) {
	sess, err := auth.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	snap := &Snapshot{Session: sess}
	if profile, err := q.GetProfile(ctx, sess.UserID); err == nil {
		snap.Profile = &profile
	}
	return snap, nil
}
