package engine

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"
)

// eaxAEAD implements the EAX AEAD mode (Bellare/Rogaway/Wagner) over any
// cipher.Block, since Go's stdlib only ships GCM. EAX = CTR-mode encryption
// plus three CMACs (over the nonce, associated data, and ciphertext)
// combined by XOR into the authentication tag. This exists so the §4.2
// "EAX" mode name spec.md lists is a real, working primitive — it is never
// reachable from CipherStream (AEAD is disallowed there; see engine.go).
type eaxAEAD struct {
	block   cipher.Block
	tagSize int
}

// NewEAX wraps block in EAX mode with a full-block-size authentication tag.
func NewEAX(block cipher.Block) (cipher.AEAD, error) {
	return &eaxAEAD{block: block, tagSize: block.BlockSize()}, nil
}

func (e *eaxAEAD) NonceSize() int { return e.block.BlockSize() }
func (e *eaxAEAD) Overhead() int  { return e.tagSize }

func (e *eaxAEAD) omac(tag byte, data []byte) []byte {
	bs := e.block.BlockSize()
	prefixed := make([]byte, bs+len(data))
	prefixed[bs-1] = tag
	copy(prefixed[bs:], data)
	return newCMAC(e.block).sum(prefixed)
}

func (e *eaxAEAD) ctrProcess(iv, in []byte) []byte {
	out := make([]byte, len(in))
	stream := cipher.NewCTR(e.block, iv)
	stream.XORKeyStream(out, in)
	return out
}

func (e *eaxAEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	n := e.omac(0, nonce)
	h := e.omac(1, additionalData)
	ciphertext := e.ctrProcess(n, plaintext)
	c := e.omac(2, ciphertext)

	tag := make([]byte, e.tagSize)
	for i := range tag {
		tag[i] = n[i] ^ h[i] ^ c[i]
	}

	ret, out := sliceForAppend(dst, len(ciphertext)+e.tagSize)
	copy(out, ciphertext)
	copy(out[len(ciphertext):], tag)
	return ret
}

func (e *eaxAEAD) Open(dst, nonce, ciphertextAndTag, additionalData []byte) ([]byte, error) {
	if len(ciphertextAndTag) < e.tagSize {
		return nil, errors.New("eax: ciphertext too short")
	}
	ciphertext := ciphertextAndTag[:len(ciphertextAndTag)-e.tagSize]
	gotTag := ciphertextAndTag[len(ciphertextAndTag)-e.tagSize:]

	n := e.omac(0, nonce)
	h := e.omac(1, additionalData)
	c := e.omac(2, ciphertext)

	wantTag := make([]byte, e.tagSize)
	for i := range wantTag {
		wantTag[i] = n[i] ^ h[i] ^ c[i]
	}

	if subtle.ConstantTimeCompare(wantTag, gotTag) != 1 {
		return nil, errors.New("eax: authentication failed")
	}

	plaintext := e.ctrProcess(n, ciphertext)
	ret, out := sliceForAppend(dst, len(plaintext))
	copy(out, plaintext)
	return ret, nil
}

func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
