// Package prng implements the deterministic Csprng contract (§6.2) that
// drives PayloadMux scheduling. Both a writer and a reader constructing a
// Source from the same seed bytes MUST consume values in the same order to
// reproduce an identical schedule (spec.md §4.8 MUX-3).
package prng

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"
)

// Source is a seeded pseudo-random generator. It is never used for secrets
// — only scheduling decisions that must be reproducible from the manifest's
// declared PRNG configuration.
type Source struct {
	stream *chacha20.Cipher
}

// seedSize is the XChaCha20 key length (32 bytes); the PRNG seed is
// stretched/truncated to exactly this via a fixed zero-extend/truncate,
// since the scheduling PRNG is not a secret-derivation path and does not
// need a KDF.
const seedSize = 32

// nonceSize is the XChaCha20 nonce length used for the scheduling stream.
const nonceSize = 24

// New builds a Source from arbitrary seed bytes (PayloadConfig.prng_config).
// The same seed always yields the same Source and hence the same output
// sequence (spec.md P6, MUX-3).
func New(seed []byte) (*Source, error) {
	key := make([]byte, seedSize)
	copy(key, seed)
	nonce := make([]byte, nonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	return &Source{stream: stream}, nil
}

// next8 returns the next 8 pseudo-random bytes from the keystream.
func (s *Source) next8() [8]byte {
	var zero, out [8]byte
	s.stream.XORKeyStream(out[:], zero[:])
	return out
}

// NextU32 returns the next 32 bits of keystream as an unsigned integer.
func (s *Source) NextU32() uint32 {
	b := s.next8()
	return binary.LittleEndian.Uint32(b[:4])
}

// NextInt returns a value in [low, highExclusive) using rejection sampling
// over 32-bit draws so the distribution stays uniform regardless of range
// size.
func (s *Source) NextInt(low, highExclusive int) int {
	if highExclusive <= low {
		return low
	}
	span := uint32(highExclusive - low)
	limit := (^uint32(0) / span) * span
	for {
		v := s.NextU32()
		if v < limit {
			return low + int(v%span)
		}
	}
}

// NextBytes fills out entirely with keystream output.
func (s *Source) NextBytes(out []byte) {
	zero := make([]byte, len(out))
	s.stream.XORKeyStream(out, zero)
}

// Reader adapts a Source to io.Reader, useful for feeding padding bytes
// directly into the outer payload stream (Frameshift layout).
type Reader struct {
	src *Source
}

// NewReader wraps src as an io.Reader emitting pure keystream bytes.
func NewReader(src *Source) io.Reader {
	return &Reader{src: src}
}

func (r *Reader) Read(p []byte) (int, error) {
	r.src.NextBytes(p)
	return len(p), nil
}
