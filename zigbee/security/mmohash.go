package security

import "crypto/aes"

// mmoBlockSize is AES's block size, the width mmoHash is specialized for.
const mmoBlockSize = 16

// mmoHash implements the Matyas-Meyer-Oseas hash function over AES-128, as
// used by ZigBee key derivation (original_source/src/zigbee/security/
// mmohash.rs). It satisfies hash.Hash so it can drive the stdlib's
// crypto/hmac implementation directly.
type mmoHash struct {
	hash   [mmoBlockSize]byte
	buffer [mmoBlockSize]byte
	filled int
	length int
}

func newMMOHash() *mmoHash { return &mmoHash{} }

func (h *mmoHash) processBlock() {
	block, err := aes.NewCipher(h.hash[:])
	if err != nil {
		panic(err)
	}
	var enc [mmoBlockSize]byte
	block.Encrypt(enc[:], h.buffer[:])
	for i := 0; i < mmoBlockSize; i++ {
		h.hash[i] = enc[i] ^ h.buffer[i]
		h.buffer[i] = 0
	}
	h.filled = 0
}

// Write implements io.Writer / hash.Hash.
func (h *mmoHash) Write(data []byte) (int, error) {
	for _, b := range data {
		h.buffer[h.filled] = b
		h.filled++
		if h.filled == mmoBlockSize {
			h.processBlock()
		}
	}
	h.length += len(data)
	return len(data), nil
}

// Reset implements hash.Hash.
func (h *mmoHash) Reset() { *h = mmoHash{} }

// Size implements hash.Hash.
func (h *mmoHash) Size() int { return mmoBlockSize }

// BlockSize implements hash.Hash.
func (h *mmoHash) BlockSize() int { return mmoBlockSize }

// Sum implements hash.Hash: it finalizes a copy of the running state (so
// further Writes remain valid) and appends the digest to b.
func (h *mmoHash) Sum(b []byte) []byte {
	clone := *h
	digest := clone.finish()
	return append(b, digest[:]...)
}

func (h *mmoHash) finish() [mmoBlockSize]byte {
	lengthInBits := h.length * 8
	fitsSmallSuffix := (lengthInBits >> mmoBlockSize) == 0
	fitsBigSuffix := (lengthInBits >> (2 * mmoBlockSize)) == 0
	if !fitsBigSuffix {
		panic("mmohash: message too long")
	}

	padding := make([]byte, mmoBlockSize*2)
	padding[0] = 0x80

	paddingBitsRequired := 1
	if fitsSmallSuffix {
		paddingBitsRequired += mmoBlockSize
	} else {
		paddingBitsRequired += mmoBlockSize * 3
	}
	paddingBytesRequired := (paddingBitsRequired + 7) / 8

	paddingBytes := mmoBlockSize - h.filled
	if paddingBytes < paddingBytesRequired {
		paddingBytes += mmoBlockSize
	}

	shift := paddingBytes * 8
	if !fitsSmallSuffix {
		shift -= 8
	}
	for i := 0; i < paddingBytes; i++ {
		shift -= 8
		if shift >= 0 && shift < 64 {
			padding[i] |= byte((lengthInBits >> uint(shift)) & 0xFF)
		}
	}

	h.Write(padding[:paddingBytes])
	return h.hash
}
