// Package codesigner establishes trust in a downloaded payload build.
//
// SignatureChecker confirms an armored detached OpenPGP signature against the
// published signer keys and reports the signing key; PublicKeyVerifier then
// rejects keys whose lifetime has ended.
package codesigner
