package codesigner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	//nolint:staticcheck // The frozen x/crypto OpenPGP implementation is sufficient for detached signature checks.
	"golang.org/x/crypto/openpgp"
	//nolint:staticcheck // See above.
	"golang.org/x/crypto/openpgp/armor"
	//nolint:staticcheck // See above.
	"golang.org/x/crypto/openpgp/packet"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
)

const maxKeySize = 1 << 20

var (
	errNoKeyURLs       = errors.New("no public key urls configured")
	errBadHTTPStatus   = errors.New("unexpected http status")
	errNotASignature   = errors.New("signature file holds no v4 signature packet")
	errNoIssuer        = errors.New("signature has no issuer key id")
	errSignerNotInRing = errors.New("signer key not found in keyring")
)

// SignatureChecker validates detached signatures against downloaded signer keys.
type SignatureChecker struct {
	// keyURLs are the armored public key downloads.
	keyURLs []string
	// http fetches the keys.
	http *http.Client
}

// NewSignatureChecker creates a checker downloading keys from keyURLs with the given timeout.
func NewSignatureChecker(keyURLs []string, timeout time.Duration) *SignatureChecker {
	return &SignatureChecker{
		keyURLs: keyURLs,
		http:    &http.Client{Timeout: timeout},
	}
}

// Check confirms that signature is a valid armored detached signature of the
// file at artifactPath made by one of the published keys, and returns that key.
func (c *SignatureChecker) Check(ctx context.Context, artifactPath string, signature []byte) (deployment.SignerKey, error) {
	keyring, err := c.keyring(ctx)
	if err != nil {
		return deployment.SignerKey{}, err
	}

	artifact, err := os.Open(filepath.Clean(artifactPath))
	if err != nil {
		return deployment.SignerKey{}, fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = artifact.Close()
	}()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, artifact, bytes.NewReader(signature))
	if err != nil {
		return deployment.SignerKey{}, fmt.Errorf("check signature of %s: %w", artifactPath, err)
	}

	key, err := signerKey(keyring, signature)
	if err != nil {
		return deployment.SignerKey{}, err
	}

	logger.InfoKV(ctx, "Artifact signature is valid",
		"artifact", artifactPath, "signer", primaryName(signer), "fingerprint", key.FingerprintHex())

	return key, nil
}

// keyring downloads every configured key into one entity list.
func (c *SignatureChecker) keyring(ctx context.Context) (openpgp.EntityList, error) {
	if len(c.keyURLs) == 0 {
		return nil, errNoKeyURLs
	}

	var keyring openpgp.EntityList

	for _, keyURL := range c.keyURLs {
		armored, err := c.download(ctx, keyURL)
		if err != nil {
			return nil, fmt.Errorf("download public key %s: %w", keyURL, err)
		}

		entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
		if err != nil {
			return nil, fmt.Errorf("read public key %s: %w", keyURL, err)
		}

		logger.DebugKV(ctx, "Public key downloaded", "url", keyURL, "entities", len(entities))

		keyring = append(keyring, entities...)
	}

	return keyring, nil
}

func (c *SignatureChecker) download(ctx context.Context, keyURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keyURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", resp.Status, errBadHTTPStatus)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxKeySize))
}

// signerKey resolves the key that issued signature. For a subkey the binding
// signature carries the lifetime, for a primary key its identity self-signature.
func signerKey(keyring openpgp.EntityList, signature []byte) (deployment.SignerKey, error) {
	block, err := armor.Decode(bytes.NewReader(signature))
	if err != nil {
		return deployment.SignerKey{}, fmt.Errorf("decode signature: %w", err)
	}

	p, err := packet.Read(block.Body)
	if err != nil {
		return deployment.SignerKey{}, fmt.Errorf("read signature: %w", err)
	}

	sig, ok := p.(*packet.Signature)
	if !ok {
		return deployment.SignerKey{}, errNotASignature
	}

	if sig.IssuerKeyId == nil {
		return deployment.SignerKey{}, errNoIssuer
	}

	keys := keyring.KeysById(*sig.IssuerKeyId)
	if len(keys) == 0 {
		return deployment.SignerKey{}, fmt.Errorf("%X: %w", *sig.IssuerKeyId, errSignerNotInRing)
	}

	key := keys[0]

	var validity int64
	if key.SelfSignature != nil && key.SelfSignature.KeyLifetimeSecs != nil {
		validity = int64(*key.SelfSignature.KeyLifetimeSecs)
	}

	return deployment.SignerKey{
		Fingerprint:     key.PublicKey.Fingerprint[:],
		CreationTime:    key.PublicKey.CreationTime,
		ValiditySeconds: validity,
	}, nil
}

func primaryName(e *openpgp.Entity) string {
	for name, identity := range e.Identities {
		if identity.SelfSignature != nil && identity.SelfSignature.IsPrimaryId != nil && *identity.SelfSignature.IsPrimaryId {
			return name
		}
	}

	for name := range e.Identities {
		return name
	}

	return ""
}
