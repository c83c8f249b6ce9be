package deployment

import (
	"encoding/hex"
	"strings"
	"time"
)

// SignerKey describes the public key that signed an artifact.
type SignerKey struct {
	// Fingerprint is the key fingerprint.
	Fingerprint []byte
	// CreationTime is when the key was created.
	CreationTime time.Time
	// ValiditySeconds is the key lifetime; zero means the key never expires.
	ValiditySeconds int64
}

// Expires reports whether the key has a finite lifetime.
func (k SignerKey) Expires() bool {
	return k.ValiditySeconds != 0
}

// ExpiryTime is CreationTime plus the lifetime. Meaningless when Expires is false.
func (k SignerKey) ExpiryTime() time.Time {
	return k.CreationTime.Add(time.Duration(k.ValiditySeconds) * time.Second)
}

// FingerprintHex returns the upper-case hex fingerprint used in key listings.
func (k SignerKey) FingerprintHex() string {
	return strings.ToUpper(hex.EncodeToString(k.Fingerprint))
}
