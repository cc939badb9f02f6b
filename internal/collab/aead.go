// Package collab stands in for the external collaborators spec.md §1 names
// but explicitly does not re-specify: an AEAD wrapper over a system crypto
// library, header-fingerprint templates, FEC shard recovery, and an
// SNI-hiding transform. Each is kept intentionally thin — a narrow
// contract plus one concrete implementation — so pkg/pmtu's demo harness
// has something real to wire against without this package re-implementing
// cryptography, stealth heuristics, or erasure coding in depth.
package collab

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer is the contract the QUIC layer's AEAD wrapper presents to the
// rest of the transport, generalized from original_source/crypto/aes_gcm's
// encrypt/decrypt/tag signature. pkg/pmtu never depends on this interface:
// the PMTUD core has no cryptographic key schedule (spec.md §1 Non-goals).
type Sealer interface {
	Seal(plaintext, additionalData []byte) (ciphertext []byte, err error)
	Open(ciphertext, additionalData []byte) (plaintext []byte, err error)
}

// chachaSealer implements Sealer with ChaCha20-Poly1305, standing in for
// the source's AES-128-GCM wrapper "over a system crypto library."
// Nonces are random and prepended to the ciphertext, and the tag follows
// the ciphertext. original_source's tests/aes_gcm_test.cpp also keeps the
// tag alongside the ciphertext but supplies the nonce out of band.
type chachaSealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (Sealer, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("collab: building aead: %w", err)
	}
	return &chachaSealer{aead: aead}, nil
}

func (s *chachaSealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("collab: generating nonce: %w", err)
	}
	sealed := s.aead.Seal(nil, nonce, plaintext, additionalData)
	return append(nonce, sealed...), nil
}

func (s *chachaSealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("collab: ciphertext shorter than nonce")
	}
	nonce := ciphertext[:chacha20poly1305.NonceSize]
	body := ciphertext[chacha20poly1305.NonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, body, additionalData)
	if err != nil {
		return nil, fmt.Errorf("collab: opening sealed payload: %w", err)
	}
	return plaintext, nil
}
