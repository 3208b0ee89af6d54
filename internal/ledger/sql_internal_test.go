package ledger

import (
	"context"
	"testing"
	"time"
)

func TestSQL_ClaimExpiresAfterTTL(t *testing.T) {
	s, err := OpenSQL(context.Background(), SQLite, ":memory:", time.Hour)
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	key := NewKey("listing-approval-email", "L1", "rev")

	if ok, err := s.Claim(ctx, key, nil); err != nil || !ok {
		t.Fatalf("first claim: got (%v, %v)", ok, err)
	}

	now = now.Add(30 * time.Minute)
	if ok, _ := s.Claim(ctx, key, nil); ok {
		t.Fatal("claim within TTL: want false")
	}

	now = now.Add(2 * time.Hour)
	if ok, err := s.Claim(ctx, key, nil); err != nil || !ok {
		t.Errorf("claim after TTL: got (%v, %v), want true", ok, err)
	}
}
