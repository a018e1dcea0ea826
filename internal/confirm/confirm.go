// Package confirm implements KeyConfirmation (C8): a fast wrong-key check
// that runs before the (potentially expensive) KDF invocation its result
// guards, by MACing a fixed canary under a salted keyed hash and comparing
// in constant time. Grounded on header.VerifyV2Header's
// compute-then-constant-time-compare shape and the teacher's salted-HMAC
// construction in header.ComputeV2HeaderMAC.
package confirm

import (
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/secure"
)

// Canary is the fixed, publicly-known message MACed under the candidate
// pre-key to produce a confirmation value. It carries no secret meaning;
// its only role is to be a constant, reproducible input.
var Canary = []byte("obscurcore-key-confirmation-canary-v1")

// Confirmation is the value a manifest stores to allow fast wrong-key
// rejection: the MAC name used, the salt, and the expected tag.
type Confirmation struct {
	MacName  string
	Salt     []byte
	Expected []byte
}

// Compute derives a Confirmation for preKey: preKey is the MAC key, and the
// random salt is mixed into the MACed message ahead of Canary (keeping
// preKey as the sole key input avoids tripping MAC families, like
// blake2b-512, that cap key length well below a salt+prekey concatenation).
func Compute(preKey []byte, macName string, salt []byte, reg *primreg.Registry) (*Confirmation, error) {
	factory, err := reg.Mac(macName)
	if err != nil {
		return nil, err
	}
	h, err := factory.New(preKey)
	if err != nil {
		return nil, obcerrors.NewConfigError("mac", err)
	}
	h.Write(salt)
	h.Write(Canary)

	return &Confirmation{
		MacName:  macName,
		Salt:     append([]byte(nil), salt...),
		Expected: h.Sum(nil),
	}, nil
}

// Verify recomputes the confirmation tag for a candidate preKey and
// compares it to c.Expected in constant time.
func Verify(preKey []byte, c *Confirmation, reg *primreg.Registry) bool {
	factory, err := reg.Mac(c.MacName)
	if err != nil {
		return false
	}
	h, err := factory.New(preKey)
	if err != nil {
		return false
	}
	h.Write(c.Salt)
	h.Write(Canary)
	got := h.Sum(nil)

	return secure.EqualConstantTime(got, c.Expected)
}
