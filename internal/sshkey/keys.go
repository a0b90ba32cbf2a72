// sshkey generates the per-session ED25519 key pair and converts it into the
// two formats region-proxy needs: the 'authorized_keys' line imported into
// EC2 and the PEM-encoded OpenSSH private key written to the key file handed
// to the 'ssh' client.
//
// NOTE: 'x/crypto/ssh' has no 'PrivateKey' type of its own; the raw
// 'ed25519.PrivateKey' is marshaled directly and parsed back into an
// 'ssh.Signer' when a key file needs validating.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate a 'crypto/ed25519' keypair")
	ErrPubKeyConv     = fmt.Errorf("failed to convert the 'ed25519.PublicKey' to 'ssh.PublicKey'")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the 'ssh.PublicKey' to OpenSSH format")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the private key to OpenSSH format")
	ErrPEMEncode      = fmt.Errorf("failed to PEM-encode the private key")
	ErrKeyParse       = fmt.Errorf("failed to parse SSH private key")
)

type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

type PublicKey struct {
	key ed25519.PublicKey
}

type PrivateKey struct {
	key ed25519.PrivateKey
}

// New generates a fresh ED25519 key pair.
func New() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return KeyPair{
		Public:  PublicKey{key: pub},
		Private: PrivateKey{key: priv},
	}, nil
}

// AuthorizedKey marshals the public key to the 'authorized_keys' format, the
// format EC2 'ImportKeyPair' accepts.
func (k PublicKey) AuthorizedKey() ([]byte, error) {
	pub, err := ssh.NewPublicKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	marshaled := ssh.MarshalAuthorizedKey(pub)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

// Fingerprint returns the SHA256 fingerprint of the public key, as printed by
// 'ssh-keygen -l'.
func (k PublicKey) Fingerprint() (string, error) {
	pub, err := ssh.NewPublicKey(k.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// PEM marshals the private key to a PEM block with an 'OPENSSH PRIVATE KEY'
// header.
func (k PrivateKey) PEM(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(k.key, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(block)
	if encoded == nil {
		return nil, ErrPEMEncode
	}
	return encoded, nil
}

// Parse validates that 'data' holds an unencrypted OpenSSH private key and
// returns its signer.
func Parse(data []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyParse, err)
	}
	return signer, nil
}
