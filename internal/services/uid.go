package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"harmony-go/internal/storage"
)

const (
	// uidLength and uidAlphabet match the external identifier format used
	// across the system: 254 lowercase base36 symbols.
	uidLength   = 254
	uidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// maxUIDAttempts bounds the collision-retry loop. The identifier space
	// is vastly larger than the number of live requests, so hitting this
	// limit means something is broken, not unlucky.
	maxUIDAttempts = 5
)

// ErrUIDExhausted is returned when identifier allocation keeps colliding.
// It is an internal fault, not a business rejection.
var ErrUIDExhausted = errors.New("exhausted attempts to allocate a unique request identifier")

// GenerateUID returns a random 254-character base36 identifier.
func GenerateUID() (string, error) {
	raw := make([]byte, uidLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading random bytes for uid: %w", err)
	}
	out := make([]byte, uidLength)
	for i, b := range raw {
		out[i] = uidAlphabet[int(b)%len(uidAlphabet)]
	}
	return string(out), nil
}

// allocateRequestUID generates identifiers until one is not in use by a live
// request, giving up after maxUIDAttempts.
func allocateRequestUID(ctx context.Context, requests storage.RequestRepository, generate func() (string, error)) (string, error) {
	for attempt := 0; attempt < maxUIDAttempts; attempt++ {
		uid, err := generate()
		if err != nil {
			return "", err
		}
		exists, err := requests.UIDExists(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("checking uid uniqueness: %w", err)
		}
		if !exists {
			return uid, nil
		}
	}
	return "", ErrUIDExhausted
}
