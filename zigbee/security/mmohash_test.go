package security

import (
	"crypto/hmac"
	"hash"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMMOHashVectors reproduces the unkeyed test vectors from
// original_source/src/zigbee/security/mmohash.rs.
func TestMMOHashVectors(t *testing.T) {
	h := newMMOHash()
	h.Write([]byte{0xC0})
	assert.Equal(t, []byte{0xAE, 0x3A, 0x10, 0x2A, 0x28, 0xD4, 0x3E, 0xE0, 0xD4, 0xA0, 0x9E, 0x22, 0x78, 0x8B, 0x20, 0x6C}, h.Sum(nil))

	h = newMMOHash()
	h.Write([]byte{0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9, 0xCA, 0xCB, 0xCC, 0xCD, 0xCE, 0xCF})
	assert.Equal(t, []byte{0xA7, 0x97, 0x7E, 0x88, 0xBC, 0x0B, 0x61, 0xE8, 0x21, 0x08, 0x27, 0x10, 0x9A, 0x22, 0x8F, 0x2D}, h.Sum(nil))

	m := make([]byte, 8191)
	for i := range m {
		m[i] = byte(i & 0xFF)
	}
	h = newMMOHash()
	h.Write(m)
	assert.Equal(t, []byte{0x24, 0xEC, 0x2F, 0xE7, 0x5B, 0xBF, 0xFC, 0xB3, 0x47, 0x89, 0xBC, 0x06, 0x10, 0xE7, 0xF1, 0x65}, h.Sum(nil))
}

func TestMMOHashKeyedHMAC(t *testing.T) {
	key := []byte{0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F}
	mac := hmac.New(func() hash.Hash { return newMMOHash() }, key)
	mac.Write([]byte{0xC0})
	assert.Equal(t, []byte{0x45, 0x12, 0x80, 0x7B, 0xF9, 0x4C, 0xB3, 0x40, 0x0F, 0x0E, 0x2C, 0x25, 0xFB, 0x76, 0xE9, 0x99}, mac.Sum(nil))
}

func TestMMOHashSumDoesNotMutateState(t *testing.T) {
	h := newMMOHash()
	h.Write([]byte{0xC0})
	first := h.Sum(nil)
	second := h.Sum(nil)
	assert.Equal(t, first, second)

	h.Write([]byte{0xC1, 0xC2})
	third := h.Sum(nil)
	assert.NotEqual(t, first, third)
}
