// Package ledger remembers which notifications already went out so a
// redelivered trigger does not send the same email twice.
//
// A notifier claims a key before it sends. Claiming is atomic in every
// backend: of two concurrent deliveries of the same event exactly one wins.
// When the notifier ends up not sending (missing recipient, SMTP failure) it
// releases the key so the upstream retry can try again.
package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Key identifies one notification: which notifier, which target row and which
// change of that row fired it.
type Key string

// namespace scopes the SHA-1 UUIDs derived by NewKey.
var namespace = uuid.MustParse("0d9c2f4e-5b1a-4c59-9a8e-6f1d2b7c3e10")

// NewKey derives a stable key for notifier acting on target because of
// revision, a fingerprint of the row change (its new and old column values).
// The same triple always yields the same key, so only a redelivery of the
// same change collides.
func NewKey(notifier, target, revision string) Key {
	return Key(uuid.NewSHA1(namespace, []byte(notifier+"|"+target+"|"+revision)).String())
}

// Ledger is implemented by every backend.
type Ledger interface {
	// Claim records key and reports whether this call recorded it. false
	// means an earlier delivery already holds the key. payload is the raw
	// trigger body, kept for audit where the backend has room for it.
	Claim(ctx context.Context, key Key, payload []byte) (bool, error)

	// Release forgets key.
	Release(ctx context.Context, key Key) error
}

// Nop claims every key. It is used when deduplication is switched off and
// the old/new comparison in the payload is the only guard.
type Nop struct{}

func (Nop) Claim(context.Context, Key, []byte) (bool, error) { return true, nil }
func (Nop) Release(context.Context, Key) error               { return nil }
