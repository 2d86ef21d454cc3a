package secrets

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(Config{Passphrase: "test-passphrase-not-for-production"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewRequiresPassphrase(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrPassphraseEmpty) {
		t.Fatalf("expected ErrPassphraseEmpty, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	c := testCipher(t)

	cases := []string{
		"",
		"JBSWY3DPEHPK3PXP",
		"short",
		"пароль-секрет",
		"日本語のシークレット",
		strings.Repeat("x", 4096),
	}

	for _, plaintext := range cases {
		enc, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plaintext, err)
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt failed for %q: %v", plaintext, err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestFreshNoncePerEncrypt(t *testing.T) {
	c := testCipher(t)

	a, err := c.Encrypt("identical input")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := c.Encrypt("identical input")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of identical input produced identical output")
	}
}

func TestTamperDetection(t *testing.T) {
	c := testCipher(t)

	enc, err := c.Encrypt("totp-seed-material")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(enc))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Flip a single bit at every position: nonce, ciphertext, and tag all
	// must cause a loud decrypt failure.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		tampered := EncryptedSecret(base64.StdEncoding.EncodeToString(mutated))
		got, err := c.Decrypt(tampered)
		if !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("bit flip at byte %d: expected ErrDecryptFailed, got (%q, %v)", i, got, err)
		}
		if got != "" {
			t.Fatalf("bit flip at byte %d: leaked plaintext %q", i, got)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	a := testCipher(t)
	b, err := New(Config{Passphrase: "an-entirely-different-passphrase"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	enc, err := a.Encrypt("seed")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := b.Decrypt(enc); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed under wrong key, got %v", err)
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	c := testCipher(t)

	if _, err := c.Decrypt("%%% not base64 %%%"); !errors.Is(err, ErrNotBase64) {
		t.Fatalf("expected ErrNotBase64, got %v", err)
	}

	short := EncryptedSecret(base64.StdEncoding.EncodeToString([]byte("tiny")))
	if _, err := c.Decrypt(short); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestIsEncrypted(t *testing.T) {
	c := testCipher(t)

	enc, err := c.Encrypt("seed")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !IsEncrypted(string(enc)) {
		t.Fatal("genuine ciphertext reported as not encrypted")
	}

	for _, plain := range []string{"", "short", "JBSWY3DPEHPK3PXP!", "not encrypted at all"} {
		if IsEncrypted(plain) {
			t.Fatalf("IsEncrypted(%q) = true", plain)
		}
	}
}

func TestDecryptMigrating(t *testing.T) {
	c := testCipher(t)

	// Legacy plaintext passes through untouched.
	plain, encrypted, err := c.DecryptMigrating("legacy-seed")
	if err != nil || encrypted || plain != "legacy-seed" {
		t.Fatalf("legacy passthrough: got (%q, %v, %v)", plain, encrypted, err)
	}

	// Genuine ciphertext decrypts.
	enc, err := c.Encrypt("new-seed")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	plain, encrypted, err = c.DecryptMigrating(string(enc))
	if err != nil || !encrypted || plain != "new-seed" {
		t.Fatalf("migrated decrypt: got (%q, %v, %v)", plain, encrypted, err)
	}

	// Something that looks encrypted but is not must stay a loud failure,
	// never fall back to the raw value.
	fake := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("A", 40)))
	if _, _, err := c.DecryptMigrating(fake); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for undecryptable value, got %v", err)
	}
}
