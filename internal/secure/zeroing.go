// Package secure provides constant-time comparison and secure-wipe helpers
// (C2 SecureBytes) plus the length-prefix framing used by the package
// header and manifest sections.
package secure

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// MaxLengthPrefixed bounds a single length-prefixed read so a corrupted or
// hostile length field cannot force an unbounded allocation.
const MaxLengthPrefixed = 1 << 31

// EqualConstantTime compares two byte ranges in time independent of the
// number of differing bytes. Unequal lengths return false without
// inspecting content (spec.md P1).
func EqualConstantTime(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zero overwrites buf with zeros in a manner the optimizer must not elide,
// by routing through subtle.ConstantTimeCopy against a zero source.
func Zero(buf []byte) {
	if len(buf) == 0 {
		return
	}
	zeros := make([]byte, len(buf))
	subtle.ConstantTimeCopy(1, buf, zeros)
}

// ZeroMultiple zeros every slice passed, in order.
func ZeroMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zero(s)
	}
}

// ZeroHash resets a hash.Hash so partial state does not linger.
func ZeroHash(h hash.Hash) {
	if h != nil {
		h.Reset()
	}
}

// U32LE encodes x as 4 little-endian bytes.
func U32LE(x uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	return b
}

// ParseU32LE decodes 4 little-endian bytes into a uint32.
func ParseU32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// WriteLengthPrefixed writes a u32-LE length followed by data.
func WriteLengthPrefixed(w io.Writer, data []byte) error {
	if len(data) > MaxLengthPrefixed {
		return obcerrors.NewFormatError("length-prefixed-write", fmt.Errorf("payload too large: %d bytes", len(data)))
	}
	lenBytes := U32LE(uint32(len(data)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, err.Error())
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, err.Error())
	}
	return nil
}

// ReadLengthPrefixed reads a u32-LE length followed by exactly that many
// bytes. A declared length that would exceed MaxLengthPrefixed is rejected
// as FormatInvalid before any allocation is attempted.
func ReadLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, obcerrors.NewFormatError("length-prefix", err)
	}
	n := ParseU32LE(lenBytes[:])
	if n > MaxLengthPrefixed {
		return nil, obcerrors.NewFormatError("length-prefix", fmt.Errorf("declared length %d exceeds maximum", n))
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, obcerrors.NewFormatError("length-prefixed-body", err)
	}
	return data, nil
}
