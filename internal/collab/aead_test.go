package collab

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestSealerRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	plaintext := []byte("path mtu probe payload")
	aad := []byte("connection-id-7")

	ciphertext, err := sealer.Seal(plaintext, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := sealer.Open(ciphertext, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Open() = %q, want %q", got, plaintext)
	}
}

func TestSealerRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, chacha20poly1305.KeySize)
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	ciphertext, err := sealer.Seal([]byte("hello"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := sealer.Open(ciphertext, nil); err == nil {
		t.Fatal("expected Open to reject a tampered ciphertext, got nil error")
	}
}

func TestSealerRejectsMismatchedAAD(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, chacha20poly1305.KeySize)
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	ciphertext, err := sealer.Seal([]byte("hello"), []byte("aad-a"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := sealer.Open(ciphertext, []byte("aad-b")); err == nil {
		t.Fatal("expected Open to reject mismatched additional data, got nil error")
	}
}
