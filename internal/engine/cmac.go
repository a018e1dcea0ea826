package engine

import "crypto/cipher"

// cmac implements CMAC/OMAC1 (NIST SP 800-38B) over an arbitrary block
// cipher. It is used internally to build the EAX AEAD mode (spec.md §4.2
// names EAX as a supported mode; EAX is not a stdlib primitive so it is
// built here from a block cipher plus CMAC, the standard construction).
type cmacState struct {
	block cipher.Block
	k1    []byte
	k2    []byte
}

func newCMAC(block cipher.Block) *cmacState {
	bs := block.BlockSize()
	zero := make([]byte, bs)
	l := make([]byte, bs)
	block.Encrypt(l, zero)

	k1 := gfDouble(l)
	k2 := gfDouble(k1)
	return &cmacState{block: block, k1: k1, k2: k2}
}

// rb128 is the reduction polynomial constant for 128-bit blocks, the only
// block size used here (AES/Serpent); 64-bit blocks would need 0x1b.
const rb128 = 0x87

func gfDouble(in []byte) []byte {
	bs := len(in)
	out := make([]byte, bs)
	carry := byte(0)
	for i := bs - 1; i >= 0; i-- {
		cur := in[i]
		out[i] = (cur << 1) | carry
		carry = cur >> 7
	}
	if carry != 0 {
		out[bs-1] ^= rb128
	}
	return out
}

// sum computes CMAC(msg) using the initialized subkeys.
func (c *cmacState) sum(msg []byte) []byte {
	bs := c.block.BlockSize()
	var lastBlock []byte
	var mac = make([]byte, bs)

	if len(msg) == 0 {
		lastBlock = make([]byte, bs)
		lastBlock[0] = 0x80
		xorInto(lastBlock, c.k2)
	} else if len(msg)%bs == 0 {
		lastBlock = append([]byte(nil), msg[len(msg)-bs:]...)
		xorInto(lastBlock, c.k1)
		msg = msg[:len(msg)-bs]
	} else {
		nFull := len(msg) / bs
		rem := msg[nFull*bs:]
		lastBlock = make([]byte, bs)
		copy(lastBlock, rem)
		lastBlock[len(rem)] = 0x80
		xorInto(lastBlock, c.k2)
		msg = msg[:nFull*bs]
	}

	for i := 0; i+bs <= len(msg); i += bs {
		xorInto(mac, msg[i:i+bs])
		c.block.Encrypt(mac, mac)
	}
	xorInto(mac, lastBlock)
	c.block.Encrypt(mac, mac)
	return mac
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
