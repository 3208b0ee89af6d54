package supabase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nyashahama/unitrade-notifications/internal/session"
)

// Auth holds one user's access token and signs it out through GoTrue. It
// satisfies session.Auth.
type Auth struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
}

var _ session.Auth = (*Auth)(nil)

// NewAuth returns an Auth for the project at baseURL using the public anon
// key.
func NewAuth(baseURL, anonKey string) *Auth {
	return &Auth{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// SetAccessToken stores the token issued at sign-in.
func (a *Auth) SetAccessToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = token
}

// GetSession decodes the stored access token. The signature is not checked
// here; GoTrue does that on every authenticated call. An expired or
// unreadable token counts as signed out.
func (a *Auth) GetSession(_ context.Context) (*session.Session, error) {
	a.mu.Lock()
	token := a.accessToken
	a.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, nil
	}

	s := &session.Session{AccessToken: token, UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
		if !a.now().Before(s.ExpiresAt) {
			return nil, nil
		}
	}
	return s, nil
}

// SignOut revokes the session server-side and forgets the token. A 401 means
// the token was already dead, which is treated as success.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	token := a.accessToken
	a.mu.Unlock()

	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("supabase: build logout request: %w", err)
	}
	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: logout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return fmt.Errorf("supabase: logout: unexpected status %d", resp.StatusCode)
	}

	a.SetAccessToken("")
	return nil
}
