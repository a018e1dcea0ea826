package engine

import (
	"crypto/rand"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// pad appends padding to make data a multiple of blockSize, per the
// configured scheme. data must be shorter than blockSize bytes past the
// last full block (the caller only pads the final partial block).
func pad(scheme Padding, data []byte, blockSize int) ([]byte, error) {
	padLen := blockSize - (len(data) % blockSize)
	if padLen == 0 {
		padLen = blockSize
	}
	out := make([]byte, len(data)+padLen)
	copy(out, data)

	switch scheme {
	case PaddingPKCS7:
		for i := len(data); i < len(out); i++ {
			out[i] = byte(padLen)
		}
	case PaddingAnsiX923:
		// zero fill, last byte = pad length
		out[len(out)-1] = byte(padLen)
	case PaddingISO10126:
		if _, err := rand.Read(out[len(data) : len(out)-1]); err != nil {
			return nil, obcerrors.Wrap(obcerrors.IoError, "padding random fill: "+err.Error())
		}
		out[len(out)-1] = byte(padLen)
	default:
		return nil, obcerrors.NewConfigError("padding", errUnsupportedPadding(scheme))
	}
	return out, nil
}

// unpad strips and validates padding from the final decrypted block(s),
// returning the original plaintext length trimmed off. PaddingCorrupt is
// returned whenever the trailing length byte is out of range for all
// three schemes (they all terminate in a length byte).
func unpad(scheme Padding, data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, obcerrors.Wrap(obcerrors.IncompleteBlock, "padded ciphertext is not a multiple of block size")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, obcerrors.Wrap(obcerrors.PaddingCorrupt, "padding length out of range")
	}

	if scheme == PaddingPKCS7 {
		for i := len(data) - padLen; i < len(data); i++ {
			if int(data[i]) != padLen {
				return nil, obcerrors.Wrap(obcerrors.PaddingCorrupt, "PKCS7 padding byte mismatch")
			}
		}
	}
	// ANSI X9.23 and ISO10126 only define the final length byte; the
	// filler bytes (zero or random respectively) are not re-validated.
	return data[:len(data)-padLen], nil
}

type unsupportedPaddingErr struct{ scheme Padding }

func (e *unsupportedPaddingErr) Error() string {
	return "unsupported padding scheme: " + string(e.scheme)
}

func errUnsupportedPadding(scheme Padding) error { return &unsupportedPaddingErr{scheme: scheme} }
