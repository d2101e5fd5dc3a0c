package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCCMStarVectors reproduces the CCM*/AES-128 test vector from
// original_source/src/zigbee/security/ccmstar.rs.
func TestCCMStarVectors(t *testing.T) {
	key := [16]byte{0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9, 0xCA, 0xCB, 0xCC, 0xCD, 0xCE, 0xCF}
	nonce := [NonceSize]byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, 0x03, 0x02, 0x01, 0x00, 0x06, 0x00, 0x00}
	plaintext := []byte{
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16,
		0x17, 0x18, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E,
	}
	aad := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	expected := []byte{
		0x1A, 0x55, 0xA3, 0x6A, 0xBB, 0x6C, 0x61, 0x0D, 0x06, 0x6B, 0x33, 0x75, 0x64, 0x9C, 0xEF,
		0x10, 0xD4, 0x66, 0x4E, 0xCA, 0xD8, 0x54, 0xA8, 0x0A, 0x89, 0x5C, 0xC1, 0xD8, 0xFF, 0x94,
		0x69,
	}

	ciphertext, err := EncryptAES128(key, nonce, IntegrityCodeMIC8, LengthField2, plaintext, aad)
	require.NoError(t, err)
	assert.Equal(t, expected, ciphertext)

	recovered, err := DecryptAES128(key, nonce, IntegrityCodeMIC8, LengthField2, ciphertext, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)

	mangled := append([]byte(nil), ciphertext...)
	mangled[len(plaintext)] ^= 0x8
	_, err = DecryptAES128(key, nonce, IntegrityCodeMIC8, LengthField2, mangled, aad)
	assert.Error(t, err)
}

func TestCCMStarNoAuthentication(t *testing.T) {
	var key [16]byte
	var nonce [NonceSize]byte
	plaintext := []byte("hello world")

	ciphertext, err := EncryptAES128(key, nonce, IntegrityCodeNone, LengthField2, plaintext, nil)
	require.NoError(t, err)
	assert.Len(t, ciphertext, len(plaintext))

	recovered, err := DecryptAES128(key, nonce, IntegrityCodeNone, LengthField2, ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestCCMStarCiphertextTooShortForTag(t *testing.T) {
	var key [16]byte
	var nonce [NonceSize]byte
	_, err := DecryptAES128(key, nonce, IntegrityCodeMIC16, LengthField2, []byte{1, 2, 3}, nil)
	assert.Error(t, err)
}
