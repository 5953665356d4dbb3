package verify

import (
	"crypto/sha256"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicKeyPEM_Secp256k1(t *testing.T) {
	t.Parallel()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	key, err := ParsePublicKeyPEM(marshalSecp256k1PEM(t, priv.PubKey()))
	require.NoError(t, err)
	assert.Equal(t, "secp256k1", key.Curve())

	sum := sha256.Sum256([]byte("hello"))
	ok, err := key.VerifyDigest(sum[:], signSecp256k1(priv, []byte("hello")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = key.VerifyDigest(sum[:], signSecp256k1(priv, []byte("bye")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParsePublicKeyPEM_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not pem", "selfcustody"},
		{"wrong block", "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"},
		{"bad der", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParsePublicKeyPEM([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestVerifyDigest_Malformed(t *testing.T) {
	t.Parallel()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	key, err := ParsePublicKeyPEM(marshalSecp256k1PEM(t, priv.PubKey()))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("x"))
	sig := signSecp256k1(priv, []byte("x"))

	for name, bad := range map[string][]byte{
		"empty":    nil,
		"trailing": append(append([]byte(nil), sig...), 0x00),
		"garbage":  []byte{0x30, 0x02, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := key.VerifyDigest(sum[:], bad)
			require.ErrorIs(t, err, errMalformedSignature)
		})
	}
}
