package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func TestTOTPProviderSetup(t *testing.T) {
	prov := NewTOTPProvider("Rep Club")

	setup, err := prov.InitiateSetup(context.Background(), "alice@repclub.fit")
	if err != nil {
		t.Fatalf("InitiateSetup failed: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.HasPrefix(setup.QRCodeURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI %q", setup.QRCodeURI)
	}
	if !strings.Contains(setup.QRCodeURI, "Rep%20Club") {
		t.Fatalf("issuer missing from URI %q", setup.QRCodeURI)
	}
	if len(setup.BackupCodes) != 10 {
		t.Fatalf("got %d backup codes, want 10", len(setup.BackupCodes))
	}

	second, err := prov.InitiateSetup(context.Background(), "alice@repclub.fit")
	if err != nil {
		t.Fatalf("second InitiateSetup failed: %v", err)
	}
	if second.Secret == setup.Secret {
		t.Fatal("secret reused across setups")
	}
}

func TestTOTPProviderVerifyCode(t *testing.T) {
	prov := NewTOTPProvider("Rep Club")

	setup, err := prov.InitiateSetup(context.Background(), "alice@repclub.fit")
	if err != nil {
		t.Fatalf("InitiateSetup failed: %v", err)
	}

	code, err := totp.GenerateCodeCustom(setup.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}

	ok, err := prov.VerifyCode(context.Background(), setup.Secret, code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !ok {
		t.Fatal("freshly generated code rejected")
	}

	ok, err = prov.VerifyCode(context.Background(), setup.Secret, "000000")
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if ok {
		t.Fatal("bogus code accepted")
	}
}
