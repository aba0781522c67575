// Package id generates the public identifiers used for loans, fees,
// invoices and snapshots.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID32 returns a random 32-character lowercase hex string. 128 bits of
// entropy, no separators, safe to use in URLs and redis keys.
func NewID32() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
