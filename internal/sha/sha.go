// Package sha implements the iterative salted hashing primitive used for
// password storage and activation-token derivation. The same deterministic
// routine runs on both the portal and the registration side, so the output
// format (lower-case hex of SHA-256) and the salt-before-data order are part
// of the contract and must not change.
package sha

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of data.
func Digest(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// DigestWithSalt returns the hex SHA-256 of salt followed by data.
// The salt is prepended, never appended.
func DigestWithSalt(data, salt string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Stretch applies Digest n times, feeding each round's hex output back in as
// the next round's input.
func Stretch(data string, n int) string {
	for i := 0; i < n; i++ {
		data = Digest(data)
	}
	return data
}

// StretchWithSalt applies DigestWithSalt n times. The salt is reused
// unchanged on every round and is never hashed by itself.
func StretchWithSalt(data, salt string, n int) string {
	for i := 0; i < n; i++ {
		data = DigestWithSalt(data, salt)
	}
	return data
}

// Iterations converts the configured cost exponent into a round count (2^cost).
func Iterations(cost int) int {
	if cost < 0 {
		return 1
	}
	return 1 << uint(cost)
}

// Hasher carries a precomputed round count so call sites do not repeat the
// cost-to-iterations derivation.
type Hasher struct {
	rounds int
}

// NewHasher builds a Hasher for the given cost exponent.
func NewHasher(cost int) *Hasher {
	return &Hasher{rounds: Iterations(cost)}
}

// Rounds reports the number of rounds the hasher applies.
func (h *Hasher) Rounds() int { return h.rounds }

// StretchWithSalt runs the configured number of rounds over data with salt.
func (h *Hasher) StretchWithSalt(data, salt string) string {
	return StretchWithSalt(data, salt, h.rounds)
}
