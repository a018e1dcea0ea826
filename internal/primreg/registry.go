// Package primreg is the PrimitiveRegistry (C1): lookup tables from
// algorithm identifiers to primitive constructors for ciphers, MACs,
// hashes, and curves (KDFs are selected by internal/kdf, not looked up
// here). It replaces the teacher's hard-coded single
// cipher suite and any process-global registry with an explicit value
// threaded into PackageWriter/PackageReader constructors (spec.md §9).
package primreg

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"hash"

	"github.com/Picocrypt/serpent"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"
)

// BlockCipherFactory builds a block cipher from a key (§6.2 BlockCipher).
type BlockCipherFactory struct {
	BlockSize int
	KeySizes  []int
	New       func(key []byte) (cipher.Block, error)
}

// StreamCipherFactory builds a stream cipher from a key+nonce (§6.2 StreamCipher).
type StreamCipherFactory struct {
	KeySizes  []int
	NonceSize int
	New       func(key, nonce []byte) (cipher.Stream, error)
}

// MacFactory builds a keyed MAC (§6.2 Mac).
type MacFactory struct {
	KeySizes   []int
	OutputSize int
	New        func(key []byte) (hash.Hash, error)
}

// HashFactory builds an unkeyed hash (§6.2 Hash).
type HashFactory struct {
	OutputSize int
	New        func() hash.Hash
}

// Registry is the C1 PrimitiveRegistry: named lookup tables for every
// primitive family the core depends on. Curve lookup is handled directly
// via CurveByName since crypto/ecdh.Curve values are already registry-like.
type Registry struct {
	blockCiphers  map[string]BlockCipherFactory
	streamCiphers map[string]StreamCipherFactory
	macs          map[string]MacFactory
	hashes        map[string]HashFactory
}

// New builds the default registry: the cipher/MAC/hash families spec.md
// names or the teacher exercises (block ciphers aes and serpent, stream
// cipher chacha20, MACs hmac-sha3-512 and blake2b-512, hashes sha3-256,
// sha3-512 and blake2b-512).
func New() *Registry {
	r := &Registry{
		blockCiphers:  map[string]BlockCipherFactory{},
		streamCiphers: map[string]StreamCipherFactory{},
		macs:          map[string]MacFactory{},
		hashes:        map[string]HashFactory{},
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.streamCiphers["chacha20"] = StreamCipherFactory{
		KeySizes:  []int{chacha20.KeySize},
		NonceSize: chacha20.NonceSizeX,
		New: func(key, nonce []byte) (cipher.Stream, error) {
			return chacha20.NewUnauthenticatedCipher(key, nonce)
		},
	}

	r.blockCiphers["aes"] = BlockCipherFactory{
		BlockSize: aes.BlockSize,
		KeySizes:  []int{16, 24, 32},
		New:       aes.NewCipher,
	}

	r.blockCiphers["serpent"] = BlockCipherFactory{
		BlockSize: serpent.BlockSize,
		KeySizes:  []int{16, 24, 32},
		New:       serpent.NewCipher,
	}

	r.macs["blake2b-512"] = MacFactory{
		KeySizes:   []int{0}, // any length up to 64, checked by blake2b itself
		OutputSize: 64,
		New: func(key []byte) (hash.Hash, error) {
			return blake2b.New512(key)
		},
	}

	r.macs["hmac-sha3-512"] = MacFactory{
		KeySizes:   []int{0},
		OutputSize: 64,
		New: func(key []byte) (hash.Hash, error) {
			return hmac.New(sha3.New512, key), nil
		},
	}

	r.hashes["sha3-256"] = HashFactory{OutputSize: 32, New: sha3.New256}
	r.hashes["sha3-512"] = HashFactory{OutputSize: 64, New: sha3.New512}
	r.hashes["blake2b-512"] = HashFactory{
		OutputSize: 64,
		New: func() hash.Hash {
			h, _ := blake2b.New512(nil)
			return h
		},
	}
}

// BlockCipher looks up a block cipher family by name.
func (r *Registry) BlockCipher(name string) (BlockCipherFactory, error) {
	f, ok := r.blockCiphers[name]
	if !ok {
		return BlockCipherFactory{}, obcerrors.NewConfigError("cipher", errUnknown(name))
	}
	return f, nil
}

// StreamCipher looks up a stream cipher family by name.
func (r *Registry) StreamCipher(name string) (StreamCipherFactory, error) {
	f, ok := r.streamCiphers[name]
	if !ok {
		return StreamCipherFactory{}, obcerrors.NewConfigError("cipher", errUnknown(name))
	}
	return f, nil
}

// Mac looks up a MAC family by name.
func (r *Registry) Mac(name string) (MacFactory, error) {
	f, ok := r.macs[name]
	if !ok {
		return MacFactory{}, obcerrors.NewConfigError("auth", errUnknown(name))
	}
	return f, nil
}

// Hash looks up a hash family by name.
func (r *Registry) Hash(name string) (HashFactory, error) {
	f, ok := r.hashes[name]
	if !ok {
		return HashFactory{}, obcerrors.NewConfigError("hash", errUnknown(name))
	}
	return f, nil
}

// IsStreamCipher reports whether name identifies a stream cipher rather
// than a block cipher.
func (r *Registry) IsStreamCipher(name string) bool {
	_, ok := r.streamCiphers[name]
	return ok
}

// CurveByName resolves the §6.2 EcCurve contract to a stdlib crypto/ecdh
// curve. Elliptic-curve arithmetic is an out-of-scope pluggable primitive
// per spec.md §1; crypto/ecdh is the pluggable implementation, not a core
// concern sourced from the examples.
func CurveByName(name string) (ecdh.Curve, error) {
	switch name {
	case "p256":
		return ecdh.P256(), nil
	case "p384":
		return ecdh.P384(), nil
	case "p521":
		return ecdh.P521(), nil
	case "x25519":
		return ecdh.X25519(), nil
	default:
		return nil, obcerrors.NewConfigError("curve", errUnknown(name))
	}
}

type unknownErr struct{ name string }

func (e *unknownErr) Error() string { return "unknown primitive: " + e.name }

func errUnknown(name string) error { return &unknownErr{name: name} }
