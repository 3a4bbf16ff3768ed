// Package fingerprint derives the deterministic tamper-evident hash that binds
// a claim's identity fields. Pure functions: same inputs and nonce always yield
// the same output, with no clock reads or hidden state.
package fingerprint

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"canopy/internal/claim/models"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
)

const nonceBytes = 16

// Generate computes the fingerprint over the claim's identity fields.
// Evidence keys are sorted lexicographically before hashing so submission
// order never affects the result; the caller's slice is left untouched.
// An empty nonce requests a fresh random one; callers must persist the
// returned nonce alongside the hash.
func Generate(contributorID id.ActorID, submittedAt time.Time, boundary models.Polygon, evidenceKeys []string, nonce string) (hash, usedNonce string, err error) {
	if contributorID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeValidation, "contributor ID is required")
	}
	if submittedAt.IsZero() {
		return "", "", dErrors.New(dErrors.CodeValidation, "submission date is required")
	}
	if nonce == "" {
		nonce, err = newNonce()
		if err != nil {
			return "", "", err
		}
	}

	sorted := append([]string(nil), evidenceKeys...)
	sort.Strings(sorted)

	input := strings.Join([]string{
		contributorID.String(),
		canonicalDate(submittedAt),
		boundary.Canonical(),
		strings.Join(sorted, ","),
		nonce,
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:]), nonce, nil
}

// Verify recomputes the fingerprint with the stored nonce and compares
// exactly. Any difference in any field yields false; there is no partial
// matching.
func Verify(fp string, contributorID id.ActorID, submittedAt time.Time, boundary models.Polygon, evidenceKeys []string, nonce string) bool {
	if nonce == "" {
		return false
	}
	computed, _, err := Generate(contributorID, submittedAt, boundary, evidenceKeys, nonce)
	if err != nil {
		return false
	}
	return computed == fp
}

// canonicalDate reduces a time value to a stable serialization: the same
// instant produces the same string regardless of the caller's location.
func canonicalDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func newNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
