package remediation

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"collier/internal/apperr"
)

// Signer holds the operator keypair used as update authority and fee payer.
type Signer struct {
	key solana.PrivateKey
}

// LoadSigner reads a Solana CLI JSON keypair file.
// A missing or unreadable file is a Credential error.
func LoadSigner(path string) (*Signer, error) {
	const op = "load keypair"

	if _, err := os.Stat(path); err != nil {
		return nil, apperr.New(apperr.Credential, op, err)
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, apperr.New(apperr.Credential, op, fmt.Errorf("%s: %w", path, err))
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, apperr.Newf(apperr.Credential, op, "%s: keypair is %d bytes, want %d", path, len(key), ed25519.PrivateKeySize)
	}

	return &Signer{key: key}, nil
}

// NewSigner wraps an in-memory key.
func NewSigner(key solana.PrivateKey) *Signer {
	return &Signer{key: key}
}

// PublicKey returns the operator public key.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign adds the operator signature to tx.
func (s *Signer) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return apperr.New(apperr.Credential, "sign transaction", err)
	}
	return nil
}
