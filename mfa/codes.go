package mfa

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// ErrCodeConsumed indicates a backup code was already used once.
var ErrCodeConsumed = errors.New("mfa: backup code already consumed")

// Code is a single-use backup code. The flow generates and displays
// codes; enforcement of single use at login time happens wherever
// backup-code login is implemented, using Consume.
type Code struct {
	Value    string
	Consumed bool
}

// Consume marks the code used. A consumed code can never authenticate
// again.
func (c *Code) Consume() error {
	if c.Consumed {
		return ErrCodeConsumed
	}
	c.Consumed = true
	return nil
}

const (
	backupCodeCount = 10
	backupCodeChars = 12

	// codeAlphabet is digits plus both letter cases, high entropy while
	// staying typeable.
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// GenerateBackupCodes produces 10 unique single-use codes formatted
// XXXX-XXXX-XXXX, drawn from crypto/rand.
func GenerateBackupCodes() ([]Code, error) {
	out := make([]Code, 0, backupCodeCount)
	seen := make(map[string]struct{}, backupCodeCount)

	for len(out) < backupCodeCount {
		value, err := generateCode()
		if err != nil {
			return nil, err
		}
		// extremely unlikely, but prevents accidental duplicates
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, Code{Value: value})
	}

	return out, nil
}

func generateCode() (string, error) {
	var sb strings.Builder
	sb.Grow(backupCodeChars + 2)

	for i := 0; i < backupCodeChars; i++ {
		if i > 0 && i%4 == 0 {
			sb.WriteByte('-')
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[idx.Int64()])
	}

	return sb.String(), nil
}
