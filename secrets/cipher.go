package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
	aesKeyLen    = 32

	// kdfIterations matches the cost the stored secrets were produced
	// with; changing it invalidates every existing ciphertext.
	kdfIterations = 100_000
)

// defaultSalt is the fixed KDF salt. The passphrase is the secret input;
// the salt only separates this key domain from other PBKDF2 uses of the
// same material.
var defaultSalt = []byte("repclub/guard/secrets.v1")

var (
	// ErrPassphraseEmpty indicates the cipher was built without key material.
	ErrPassphraseEmpty = errors.New("secrets: passphrase is empty")
	// ErrCiphertextTooShort indicates a truncated or non-encrypted value.
	ErrCiphertextTooShort = errors.New("secrets: ciphertext too short")
	// ErrNotBase64 indicates the value is not valid base64.
	ErrNotBase64 = errors.New("secrets: value is not base64")
	// ErrDecryptFailed indicates authentication failure: the value was
	// tampered with or encrypted under a different key. Callers must treat
	// this as loud failure, never substitute the raw value.
	ErrDecryptFailed = errors.New("secrets: decrypt failed")
)

// EncryptedSecret is the opaque encrypted wire form,
// base64(nonce ‖ ciphertext ‖ tag). The type distinction keeps encrypted
// values from being mixed up with plaintext in storage code.
type EncryptedSecret string

// Config controls key derivation.
type Config struct {
	// Passphrase is the secret key material. Required.
	Passphrase string
	// Salt overrides the fixed default KDF salt. Optional.
	Salt []byte
	// Iterations overrides the PBKDF2 iteration count. Zero means the
	// package default of 100,000.
	Iterations int
}

// Cipher performs authenticated encryption of small secrets. The key is
// derived once at construction; Encrypt and Decrypt are safe for
// concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 256-bit key via PBKDF2-SHA256 and prepares the AEAD.
func New(cfg Config) (*Cipher, error) {
	if cfg.Passphrase == "" {
		return nil, ErrPassphraseEmpty
	}
	salt := cfg.Salt
	if len(salt) == 0 {
		salt = defaultSalt
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = kdfIterations
	}

	key := pbkdf2.Key([]byte(cfg.Passphrase), salt, iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: aes init failed: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm init failed: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random 96-bit nonce. Nonce reuse
// under a fixed key breaks GCM, so the nonce is drawn from crypto/rand on
// every call and two encryptions of identical input never produce
// identical output.
func (c *Cipher) Encrypt(plaintext string) (EncryptedSecret, error) {
	if c == nil || c.aead == nil {
		return "", ErrPassphraseEmpty
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce generation failed: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce slice, yielding the full
	// nonce ‖ ciphertext ‖ tag layout in one allocation.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return EncryptedSecret(base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens an EncryptedSecret. Tag mismatch returns ErrDecryptFailed;
// the error never carries partial plaintext.
func (c *Cipher) Decrypt(value EncryptedSecret) (string, error) {
	if c == nil || c.aead == nil {
		return "", ErrPassphraseEmpty
	}

	raw, err := base64.StdEncoding.DecodeString(string(value))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotBase64, err)
	}
	if len(raw) < gcmNonceSize+gcmTagSize {
		return "", ErrCiphertextTooShort
	}

	nonce := raw[:gcmNonceSize]
	sealed := raw[gcmNonceSize:]

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Deliberately uniform: do not reveal whether the key was wrong
		// or the value tampered.
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// IsEncrypted reports whether value is plausibly an EncryptedSecret:
// valid base64 decoding to at least nonce + tag length. This is a
// migration-compatibility heuristic, not a security boundary; short
// plaintext strings fail it, but a crafted base64 string of sufficient
// length passes and will still fail Decrypt.
func IsEncrypted(value string) bool {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) >= gcmNonceSize+gcmTagSize
}

// DecryptMigrating attempts Decrypt and, when the value does not even look
// encrypted, returns it unchanged with encrypted=false.
//
// This exists solely for one-time migration of records written before
// encryption was introduced. It weakens tamper detection and must never be
// wired into steady-state read paths; use Decrypt there.
func (c *Cipher) DecryptMigrating(value string) (plaintext string, encrypted bool, err error) {
	if !IsEncrypted(value) {
		return value, false, nil
	}
	plain, err := c.Decrypt(EncryptedSecret(value))
	if err != nil {
		return "", true, err
	}
	return plain, true, nil
}
