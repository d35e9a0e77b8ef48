// Package contenthash computes the deterministic dedup fingerprint over an
// issue's semantically significant fields: title, description, design, and
// acceptance criteria. It is an advisory dedup key, not a security
// primitive.
package contenthash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"beads/internal/issue"
)

// separator joins the canonicalized fields before hashing. It is not a byte
// sequence expected to appear inside any single field, so concatenation
// cannot alias two different (title, description, ...) tuples onto the same
// input string.
const separator = "\x1f"

// Hash returns the 64-bit content fingerprint of an issue's title,
// description, design, and acceptance criteria. It depends on nothing else
// (not id, status, timestamps, or version), satisfying invariant 6.
func Hash(i *issue.Issue) uint64 {
	buf := i.Title + separator + i.Description + separator + i.Design + separator + i.AcceptanceCrit
	return xxhash.Sum64String(buf)
}

// Format renders a digest as the fixed-width lowercase hex string stored in
// the snapshot's content_hash field.
func Format(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// HashString computes and formats the digest in one step.
func HashString(i *issue.Issue) string {
	return Format(Hash(i))
}
