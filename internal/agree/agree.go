// Package agree implements UM1 (C7): a one-pass unified-model ECDH key
// agreement producing a shared secret Ze||Zs, where Ze binds a fresh
// ephemeral key to the recipient and Zs binds the sender's long-term key to
// the recipient. New code — the teacher has no asymmetric layer — grounded
// in method shape on internal/crypto/kdf.go's SubkeyReader discipline:
// derive several named values from one source, in strict order, wipe after.
package agree

import (
	"crypto/ecdh"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/secure"
)

// hkdfInfo binds the UM1 shared-secret expansion to this specific use, so
// the same shared secret used elsewhere (it never is, here) could not be
// confused with a manifest pre-key.
const hkdfInfo = "obscurcore-um1-manifest-prekey-v1"

// ExpandPreKey stretches a raw UM1 shared secret (Ze||Zs, two concatenated
// ECDH field elements, not uniformly random) into a length-byte pre-key fit
// to feed KdfService, via HKDF-Extract-then-Expand over SHA3-512.
func ExpandPreKey(shared []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	r := hkdf.New(sha3.New512, shared, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, obcerrors.Wrap(obcerrors.ConfigInvalid, "expand UM1 shared secret: "+err.Error())
	}
	return out, nil
}

// Initiate runs the sender side of UM1: generate an ephemeral keypair on
// the same curve as senderPriv, then compute Ze = ECDH(ephemeral, recipient)
// and Zs = ECDH(sender, recipient). The shared secret is Ze||Zs, each half
// the curve's native field-element encoding (crypto/ecdh already returns
// the big-endian X-coordinate at the fixed field byte length, no trimming).
//
// For every curve crypto/ecdh exposes here, ECDH already performs the
// curve-appropriate scalar multiplication — X25519's clamping folds in
// cofactor clearing, and the NIST curves have cofactor 1 — so there is no
// separate "with cofactor" step to apply on top (spec.md §4.6 edge case).
func Initiate(recipientPub *ecdh.PublicKey, senderPriv *ecdh.PrivateKey) (shared, ephemeralPub []byte, err error) {
	curve := senderPriv.Curve()
	if recipientPub.Curve() != curve {
		return nil, nil, obcerrors.NewConfigError("curve", errCurveMismatch())
	}

	ephemeralPriv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, obcerrors.NewConfigError("ephemeral_key", err)
	}

	ze, err := ephemeralPriv.ECDH(recipientPub)
	if err != nil {
		return nil, nil, obcerrors.NewConfigError("agreement", err)
	}
	zs, err := senderPriv.ECDH(recipientPub)
	if err != nil {
		return nil, nil, obcerrors.NewConfigError("agreement", err)
	}
	defer secure.ZeroMultiple(ze, zs)
	// crypto/ecdh.PrivateKey keeps its scalar in an unexported field with no
	// mutable accessor, so the ephemeral private key cannot be wiped here;
	// it is dropped and left to the garbage collector.

	shared = make([]byte, 0, len(ze)+len(zs))
	shared = append(shared, ze...)
	shared = append(shared, zs...)
	return shared, ephemeralPriv.PublicKey().Bytes(), nil
}

// Respond runs the recipient side, reproducing the same shared secret from
// the sender's long-term public key, the recipient's own private key, and
// the ephemeral public key Initiate produced.
func Respond(senderPub *ecdh.PublicKey, recipientPriv *ecdh.PrivateKey, ephemeralPub []byte) (shared []byte, err error) {
	curve := recipientPriv.Curve()
	if senderPub.Curve() != curve {
		return nil, obcerrors.NewConfigError("curve", errCurveMismatch())
	}

	ephemeralPubKey, err := curve.NewPublicKey(ephemeralPub)
	if err != nil {
		return nil, obcerrors.NewFormatError("ephemeral_pub", err)
	}

	ze, err := recipientPriv.ECDH(ephemeralPubKey)
	if err != nil {
		return nil, obcerrors.NewConfigError("agreement", err)
	}
	zs, err := recipientPriv.ECDH(senderPub)
	if err != nil {
		return nil, obcerrors.NewConfigError("agreement", err)
	}
	defer secure.ZeroMultiple(ze, zs)

	shared = make([]byte, 0, len(ze)+len(zs))
	shared = append(shared, ze...)
	shared = append(shared, zs...)
	return shared, nil
}

type curveMismatchErr struct{}

func (e *curveMismatchErr) Error() string {
	return "UM1: sender and recipient keys are on different curves"
}
func errCurveMismatch() error { return &curveMismatchErr{} }
