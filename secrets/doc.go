// Package secrets encrypts small secret values (TOTP seeds, recovery
// material) with AES-256-GCM under a PBKDF2-derived key.
//
// The wire form is an opaque base64 string of nonce ‖ ciphertext ‖ tag, so
// an encrypted value can sit in any string column without schema changes.
// Decryption fails loudly on tag mismatch: a tampered or wrong-key value
// surfaces as ErrDecryptFailed, never as garbage plaintext.
//
// # What this package must NOT do
//
//   - Persist anything; storage of EncryptedSecret values is the caller's
//     concern.
//   - Fall back to treating undecryptable input as plaintext outside the
//     explicitly named migration helper.
package secrets
