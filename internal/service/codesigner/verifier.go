package codesigner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
)

// ErrKeyExpired is returned for a signer key past its expiry time.
var ErrKeyExpired = errors.New("signer public key is expired")

// PublicKeyVerifier checks signer key validity.
type PublicKeyVerifier struct {
	now func() time.Time
}

// NewPublicKeyVerifier creates a verifier using the wall clock.
func NewPublicKeyVerifier() *PublicKeyVerifier {
	return &PublicKeyVerifier{now: time.Now}
}

// Verify fails when the key expired strictly before now. Keys with zero
// validity never expire.
func (v *PublicKeyVerifier) Verify(ctx context.Context, key deployment.SignerKey) error {
	logger.InfoKV(ctx, "Verifying public key", "fingerprint", key.FingerprintHex())
	logger.DebugKV(ctx, "Key validity", "seconds", key.ValiditySeconds)

	if !key.Expires() {
		logger.Debug(ctx, "Key has no expiry time")
		return nil
	}

	expiry := key.ExpiryTime()
	logger.DebugKV(ctx, "Key lifetime", "created", key.CreationTime, "expires", expiry)

	if v.now().After(expiry) {
		return fmt.Errorf("%w: %s expired at %s", ErrKeyExpired, key.FingerprintHex(), expiry.Format(time.RFC3339))
	}

	return nil
}
