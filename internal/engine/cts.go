package engine

import (
	"crypto/cipher"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// ctsCBCEncrypt implements ciphertext-stealing CBC (CBC-CS2): plaintext
// longer than one block need not be block-size aligned. Exact multiples of
// the block size degenerate to plain CBC (no stealing performed).
func ctsCBCEncrypt(block cipher.Block, iv, plaintext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(plaintext) <= bs {
		return nil, obcerrors.Wrap(obcerrors.IncompleteBlock, "CTS-CBC requires more than one block of data")
	}

	nBlocks := (len(plaintext) + bs - 1) / bs
	rem := len(plaintext) - (nBlocks-1)*bs

	if rem == bs {
		enc := cipher.NewCBCEncrypter(block, iv)
		ct := make([]byte, len(plaintext))
		enc.CryptBlocks(ct, plaintext)
		return ct, nil
	}

	padded := make([]byte, nBlocks*bs)
	copy(padded, plaintext)
	enc := cipher.NewCBCEncrypter(block, iv)
	ciphertext := make([]byte, len(padded))
	enc.CryptBlocks(ciphertext, padded)

	prefixLen := (nBlocks - 2) * bs
	last := ciphertext[(nBlocks-1)*bs:]
	secondLast := ciphertext[(nBlocks-2)*bs : (nBlocks-1)*bs]

	out := make([]byte, prefixLen+bs+rem)
	copy(out, ciphertext[:prefixLen])
	copy(out[prefixLen:], last)
	copy(out[prefixLen+bs:], secondLast[:rem])
	return out, nil
}

// ctsCBCDecrypt reverses ctsCBCEncrypt.
func ctsCBCDecrypt(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) < bs {
		return nil, obcerrors.Wrap(obcerrors.IncompleteBlock, "CTS-CBC ciphertext shorter than one block")
	}
	if len(ciphertext)%bs == 0 {
		dec := cipher.NewCBCDecrypter(block, iv)
		pt := make([]byte, len(ciphertext))
		dec.CryptBlocks(pt, ciphertext)
		return pt, nil
	}

	rem := len(ciphertext) % bs
	prefixLen := len(ciphertext) - bs - rem
	if prefixLen < 0 {
		return nil, obcerrors.Wrap(obcerrors.IncompleteBlock, "CTS-CBC ciphertext too short for stealing")
	}
	prefix := ciphertext[:prefixLen]
	lastFull := ciphertext[prefixLen : prefixLen+bs]
	stolen := ciphertext[prefixLen+bs:]

	d := make([]byte, bs)
	block.Decrypt(d, lastFull)

	secondLast := make([]byte, bs)
	copy(secondLast[:rem], stolen)
	copy(secondLast[rem:], d[rem:])

	full := make([]byte, prefixLen+2*bs)
	copy(full, prefix)
	copy(full[prefixLen:], secondLast)
	copy(full[prefixLen+bs:], lastFull)

	dec := cipher.NewCBCDecrypter(block, iv)
	pt := make([]byte, len(full))
	dec.CryptBlocks(pt, full)

	result := make([]byte, prefixLen+bs+rem)
	copy(result, pt[:prefixLen+bs])
	copy(result[prefixLen+bs:], pt[prefixLen+bs:prefixLen+bs+rem])
	return result, nil
}
