// Package keygen produces SSH key pairs. It holds no state; everything
// here is a pure function of the request parameters and the entropy
// source.
package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/keyforge/keyforge/internal/interfaces"
)

// Material is one generated key pair in transport-safe form: the public
// key is a base64-wrapped OpenSSH authorized_keys line, the private key
// a base64-wrapped PEM block.
type Material struct {
	PublicKey  string
	PrivateKey string
}

// Generate produces key material for the request. The request must be
// normalized; invalid parameters come back as a ValidationError, which
// callers treat as permanent.
func Generate(req *interfaces.JobRequest) (*Material, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.KeyType {
	case interfaces.KeyTypeRSA:
		return generateRSA(req.KeyBits)
	case interfaces.KeyTypeEd25519:
		return generateEd25519()
	default:
		return nil, &interfaces.ValidationError{Reason: fmt.Sprintf("unknown key_type %q", req.KeyType)}
	}
}

func generateRSA(bits int) (*Material, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, interfaces.Transient(fmt.Errorf("failed to generate rsa key: %w", err))
	}

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}

	return encode(&key.PublicKey, pem.EncodeToMemory(block))
}

func generateEd25519() (*Material, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, interfaces.Transient(fmt.Errorf("failed to generate ed25519 key: %w", err))
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ed25519 key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	return encode(pub, pem.EncodeToMemory(block))
}

// encode renders the public half as an authorized_keys line and wraps
// both halves in base64 for storage.
func encode(pub any, privPEM []byte) (*Material, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to build ssh public key: %w", err)
	}

	return &Material{
		PublicKey:  base64.StdEncoding.EncodeToString(ssh.MarshalAuthorizedKey(sshPub)),
		PrivateKey: base64.StdEncoding.EncodeToString(privPEM),
	}, nil
}
