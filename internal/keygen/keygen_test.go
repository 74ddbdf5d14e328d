package keygen

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/keyforge/keyforge/internal/interfaces"
)

func decodePrivatePEM(t *testing.T, b64 string) *pem.Block {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	return block
}

func decodePublicKey(t *testing.T, b64 string) ssh.PublicKey {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	pub, _, _, _, err := ssh.ParseAuthorizedKey(raw)
	require.NoError(t, err)
	return pub
}

func TestGenerateEd25519RoundTrip(t *testing.T) {
	mat, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.NoError(t, err)

	block := decodePrivatePEM(t, mat.PrivateKey)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	priv, ok := parsed.(ed25519.PrivateKey)
	require.True(t, ok)

	// The stored public half must match the one derived from the
	// private half.
	derived, err := ssh.NewPublicKey(priv.Public())
	require.NoError(t, err)
	pub := decodePublicKey(t, mat.PublicKey)
	assert.Equal(t, derived.Marshal(), pub.Marshal())
}

func TestGenerateRSARoundTrip(t *testing.T) {
	mat, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeRSA, KeyBits: 2048})
	require.NoError(t, err)

	block := decodePrivatePEM(t, mat.PrivateKey)
	assert.Equal(t, "RSA PRIVATE KEY", block.Type)

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, priv.Validate())
	assert.Equal(t, 2048, priv.N.BitLen())

	derived, err := ssh.NewPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pub := decodePublicKey(t, mat.PublicKey)
	assert.Equal(t, derived.Marshal(), pub.Marshal())
}

func TestGenerateRSA4096(t *testing.T) {
	if testing.Short() {
		t.Skip("rsa-4096 generation is slow")
	}

	mat, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeRSA, KeyBits: 4096})
	require.NoError(t, err)

	block := decodePrivatePEM(t, mat.PrivateKey)
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, 4096, priv.N.BitLen())
}

func TestGenerateRejectsInvalidParams(t *testing.T) {
	_, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeRSA, KeyBits: 3072})
	require.Error(t, err)
	assert.True(t, interfaces.IsValidation(err))

	_, err = Generate(&interfaces.JobRequest{KeyType: "dsa"})
	require.Error(t, err)
	assert.True(t, interfaces.IsValidation(err))
}

func TestGeneratedKeysDiffer(t *testing.T) {
	a, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.NoError(t, err)
	b, err := Generate(&interfaces.JobRequest{KeyType: interfaces.KeyTypeEd25519})
	require.NoError(t, err)
	assert.NotEqual(t, a.PrivateKey, b.PrivateKey)
}
