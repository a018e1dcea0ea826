// Package pkgio implements PackageWriter (C10) and PackageReader (C11):
// the on-disk container format — magic header, length-prefixed
// ManifestHeader, length-prefixed manifest ciphertext, the PayloadMux
// body, magic trailer — and the phase-structured write/read procedures
// that populate it. Phase structure follows the teacher's
// volume.Encrypt/volume.Decrypt: a shared, per-call context accumulates
// derived secrets and is wiped with a single deferred Close() regardless
// of which phase fails.
package pkgio

import (
	"crypto/rand"
	"errors"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// MagicHeader and MagicTrailer are the fixed 8-byte tags bracketing every
// package (spec.md §6.1). They carry no version information of their own —
// format evolution lives in ManifestHeader.FormatVersion.
const (
	MagicHeader  = "OBSCR1\x00\x00"
	MagicTrailer = "\x00\x00END0BS1"
)

const magicSize = 8

// FormatVersion is the current ManifestHeader.FormatVersion value this
// package writes and the only one it reads.
const FormatVersion = 1

// randomBytes returns n cryptographically random bytes, rejecting the
// vanishingly unlikely all-zero output as a sign of a broken entropy
// source rather than trusting it silently.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, obcerrors.Wrap(obcerrors.IoError, "read random bytes: "+err.Error())
	}
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero && n > 0 {
		return nil, obcerrors.Wrap(obcerrors.IoError, "random source produced all-zero output")
	}
	return b, nil
}

var errNoItems = errors.New("package must contain at least one item")
