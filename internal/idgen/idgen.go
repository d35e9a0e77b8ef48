// Package idgen generates short, collision-resistant issue ids of the form
// "<prefix>-<hash>", where the hash is a base-36 digest seeded by the
// clock, the current issue count, and a retry counter.
package idgen

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// MinLength is the starting number of base-36 characters in a generated id.
const MinLength = 3

// MaxLength is the id length the generator escalates to before giving up.
const MaxLength = 8

// MaxRetries bounds the total number of candidates tried across all lengths
// before failing with ErrCollisionLimitExceeded.
const MaxRetries = 256

// ErrCollisionLimitExceeded is returned when no unused id could be found
// within MaxRetries attempts across lengths MinLength..MaxLength.
var ErrCollisionLimitExceeded = errors.New("idgen: collision limit exceeded")

// Clock supplies the current time; injected so callers can make generation
// deterministic in tests instead of depending on a global wall clock.
type Clock func() time.Time

// Generate produces a new id with the given prefix that is not present in
// collisionSet. It seeds the hash with the current time, nExisting, and an
// internal per-call counter, starting at minLength characters and growing
// the candidate length by one after every 8 consecutive collisions, up to
// maxLength. It fails with ErrCollisionLimitExceeded after MaxRetries total
// candidates.
//
// minLength/maxLength <= 0 fall back to the package defaults MinLength and
// MaxLength, so existing callers that don't care about id.min_hash_length /
// id.max_hash_length can keep passing zero values.
func Generate(prefix string, nExisting int, collisionSet map[string]bool, minLength, maxLength int, now Clock) (string, error) {
	if now == nil {
		now = time.Now
	}
	if minLength <= 0 {
		minLength = MinLength
	}
	if maxLength <= 0 {
		maxLength = MaxLength
	}
	length := minLength
	attempts := 0
	var counter int64

	for attempts < MaxRetries {
		candidate := prefix + "-" + encode(now(), nExisting, counter, length)
		attempts++
		if !collisionSet[candidate] {
			return candidate, nil
		}
		counter++
		// Escalate length once we've exhausted a generous share of the
		// current namespace's worth of retries at this length.
		if counter%8 == 0 && length < maxLength {
			length++
		}
	}
	return "", fmt.Errorf("%w: after %d attempts", ErrCollisionLimitExceeded, attempts)
}

// encode derives a base-36, zero-padded digest of the given length from the
// clock reading, the existing-issue count, and the retry counter.
func encode(t time.Time, nExisting int, counter int64, length int) string {
	seed := t.UnixNano()
	mixed := new(big.Int).SetInt64(seed)
	mixed.Mul(mixed, big.NewInt(1000003))
	mixed.Add(mixed, big.NewInt(int64(nExisting)))
	mixed.Mul(mixed, big.NewInt(1000003))
	mixed.Add(mixed, big.NewInt(counter))
	if mixed.Sign() < 0 {
		mixed.Neg(mixed)
	}

	mod := new(big.Int).Exp(big.NewInt(36), big.NewInt(int64(length)), nil)
	mixed.Mod(mixed, mod)

	encoded := mixed.Text(36)
	for len(encoded) < length {
		encoded = "0" + encoded
	}
	return encoded
}
