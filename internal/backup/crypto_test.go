package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("shelf-pass", salt)
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if !bytes.Equal(key1, DeriveKey("shelf-pass", salt)) {
		t.Error("same passphrase+salt should produce same key")
	}
	if bytes.Equal(key1, DeriveKey("other-pass", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("SQLite format 3\x00 pretend snapshot bytes")

	sealed, err := Encrypt(original, "test-passphrase-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, original) {
		t.Error("sealed output should not contain the plaintext")
	}

	again, err := Encrypt(original, "test-passphrase-123")
	if err != nil {
		t.Fatalf("encrypt again: %v", err)
	}
	if bytes.Equal(sealed[:saltSize], again[:saltSize]) {
		t.Error("each snapshot should use a fresh salt")
	}

	opened, err := Decrypt(sealed, "test-passphrase-123")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, original) {
		t.Error("decrypted content should match original")
	}
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("secret data"), "correct-password")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(sealed, "wrong-password"); err == nil {
		t.Error("expected error with wrong passphrase")
	}

	tampered := bytes.Clone(sealed)
	tampered[saltSize+nonceSize+1] ^= 0xFF
	if _, err := Decrypt(tampered, "correct-password"); err == nil {
		t.Error("expected error with tampered ciphertext")
	}

	if _, err := Decrypt([]byte("too short"), "correct-password"); !errors.Is(err, ErrTooShort) {
		t.Errorf("short input err = %v, want ErrTooShort", err)
	}
}

func TestEncryptEmpty(t *testing.T) {
	sealed, err := Encrypt(nil, "password")
	if err != nil {
		t.Fatalf("encrypt empty: %v", err)
	}
	opened, err := Decrypt(sealed, "password")
	if err != nil {
		t.Fatalf("decrypt empty: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("expected empty plaintext, got %d bytes", len(opened))
	}
}
