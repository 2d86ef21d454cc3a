package mfa

import (
	"context"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Setup is the provisioning payload returned when enrollment begins.
type Setup struct {
	Secret      string
	QRCodeURI   string
	BackupCodes []Code
}

// Provisioner creates new second-factor material. The flow calls it once
// per enrollment attempt.
type Provisioner interface {
	InitiateSetup(ctx context.Context, account string) (Setup, error)
}

// Verifier checks a user-supplied code against the in-memory secret.
type Verifier interface {
	VerifyCode(ctx context.Context, secret, code string) (bool, error)
}

// TOTPProvider is the default Provisioner and Verifier, backed by
// RFC 6238 time-based codes.
type TOTPProvider struct {
	issuer string
	period uint
	skew   uint
}

// NewTOTPProvider creates a provider issuing 6-digit, 30-second codes
// under the given issuer label, accepting one period of clock skew.
func NewTOTPProvider(issuer string) *TOTPProvider {
	return &TOTPProvider{
		issuer: issuer,
		period: 30,
		skew:   1,
	}
}

// InitiateSetup generates a fresh secret, the otpauth:// provisioning
// URI for the authenticator QR code, and a new batch of backup codes.
func (p *TOTPProvider) InitiateSetup(_ context.Context, account string) (Setup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: account,
		Period:      p.period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Setup{}, err
	}

	codes, err := GenerateBackupCodes()
	if err != nil {
		return Setup{}, err
	}

	return Setup{
		Secret:      key.Secret(),
		QRCodeURI:   key.URL(),
		BackupCodes: codes,
	}, nil
}

// VerifyCode validates a 6-digit code against secret at the current
// time.
func (p *TOTPProvider) VerifyCode(_ context.Context, secret, code string) (bool, error) {
	return totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    p.period,
		Skew:      p.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
