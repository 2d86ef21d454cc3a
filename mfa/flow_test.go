package mfa

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/repclub/guard/secrets"
)

type stubProvisioner struct {
	calls atomic.Int64
}

func (p *stubProvisioner) InitiateSetup(_ context.Context, account string) (Setup, error) {
	n := p.calls.Add(1)
	codes, err := GenerateBackupCodes()
	if err != nil {
		return Setup{}, err
	}
	return Setup{
		Secret:      fmt.Sprintf("SECRET-%s-%d", account, n),
		QRCodeURI:   fmt.Sprintf("otpauth://totp/RepClub:%s?secret=SECRET-%d", account, n),
		BackupCodes: codes,
	}, nil
}

type stubVerifier struct {
	accept   bool
	err      error
	calls    atomic.Int64
	onVerify func()
}

func (v *stubVerifier) VerifyCode(context.Context, string, string) (bool, error) {
	v.calls.Add(1)
	if v.onVerify != nil {
		v.onVerify()
	}
	return v.accept, v.err
}

type recordingPersister struct {
	account string
	secret  secrets.EncryptedSecret
	codes   []Code
	stores  atomic.Int64
	err     error
}

func (p *recordingPersister) StoreEnrollment(_ context.Context, account string, secret secrets.EncryptedSecret, codes []Code) error {
	if p.err != nil {
		return p.err
	}
	p.stores.Add(1)
	p.account = account
	p.secret = secret
	p.codes = codes
	return nil
}

func newTestFlow(t *testing.T, verif *stubVerifier) (*Flow, *stubProvisioner, *recordingPersister, *secrets.Cipher) {
	t.Helper()
	cipher, err := secrets.New(secrets.Config{Passphrase: "flow-test-passphrase"})
	if err != nil {
		t.Fatalf("cipher init failed: %v", err)
	}
	prov := &stubProvisioner{}
	store := &recordingPersister{}
	flow, err := NewFlow("alice@repclub.fit", prov, verif, cipher, store)
	if err != nil {
		t.Fatalf("NewFlow failed: %v", err)
	}
	return flow, prov, store, cipher
}

func advanceToVerify(t *testing.T, f *Flow) {
	t.Helper()
	if _, _, err := f.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := f.AdvanceToBackup(); err != nil {
		t.Fatalf("AdvanceToBackup failed: %v", err)
	}
	if err := f.AcknowledgeBackupCodes(); err != nil {
		t.Fatalf("AcknowledgeBackupCodes failed: %v", err)
	}
	if err := f.AdvanceToVerify(); err != nil {
		t.Fatalf("AdvanceToVerify failed: %v", err)
	}
}

func TestHappyPathEnrollment(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, _, store, cipher := newTestFlow(t, verif)

	uri, codes, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if uri == "" || len(codes) != 10 {
		t.Fatalf("Begin returned uri=%q, %d codes", uri, len(codes))
	}
	if flow.Step() != StepQR {
		t.Fatalf("step = %v, want qr", flow.Step())
	}

	if err := flow.AdvanceToBackup(); err != nil {
		t.Fatalf("AdvanceToBackup failed: %v", err)
	}
	if err := flow.AcknowledgeBackupCodes(); err != nil {
		t.Fatalf("AcknowledgeBackupCodes failed: %v", err)
	}
	if err := flow.AdvanceToVerify(); err != nil {
		t.Fatalf("AdvanceToVerify failed: %v", err)
	}

	if err := flow.Verify(context.Background(), "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if flow.Step() != StepComplete {
		t.Fatalf("step = %v, want complete", flow.Step())
	}

	// Only the encrypted form left the flow.
	if store.stores.Load() != 1 {
		t.Fatalf("stores = %d, want 1", store.stores.Load())
	}
	plain, err := cipher.Decrypt(store.secret)
	if err != nil {
		t.Fatalf("persisted secret not decryptable: %v", err)
	}
	if plain != "SECRET-alice@repclub.fit-1" {
		t.Fatalf("persisted secret = %q", plain)
	}
	if len(store.codes) != 10 {
		t.Fatalf("persisted %d backup codes", len(store.codes))
	}
}

func TestVerifyGatedOnBackupAcknowledgement(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, _, _, _ := newTestFlow(t, verif)

	if _, _, err := flow.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AdvanceToBackup(); err != nil {
		t.Fatalf("AdvanceToBackup failed: %v", err)
	}

	if err := flow.AdvanceToVerify(); !errors.Is(err, ErrBackupNotAcknowledged) {
		t.Fatalf("expected ErrBackupNotAcknowledged, got %v", err)
	}
	if flow.Step() != StepBackup {
		t.Fatalf("refused transition changed step to %v", flow.Step())
	}

	if err := flow.AcknowledgeBackupCodes(); err != nil {
		t.Fatalf("AcknowledgeBackupCodes failed: %v", err)
	}
	if err := flow.AdvanceToVerify(); err != nil {
		t.Fatalf("AdvanceToVerify after ack failed: %v", err)
	}
}

func TestTransitionOrderEnforced(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, _, _, _ := newTestFlow(t, verif)

	if err := flow.AdvanceToBackup(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backup from intro: %v", err)
	}
	if err := flow.AdvanceToVerify(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("verify from intro: %v", err)
	}
	if err := flow.Verify(context.Background(), "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from intro: %v", err)
	}
}

func TestCancelDiscardsSecretAndRegenerates(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, prov, store, _ := newTestFlow(t, verif)

	advanceToVerify(t, flow)
	firstID := flow.ID()

	flow.Cancel()
	if flow.Step() != StepCancelled {
		t.Fatalf("step after cancel = %v", flow.Step())
	}
	if flow.BackupAcknowledged() {
		t.Fatal("acknowledgement survived cancel")
	}

	// Starting over provisions a brand-new secret.
	if _, _, err := flow.Begin(context.Background()); err != nil {
		t.Fatalf("Begin after cancel failed: %v", err)
	}
	if prov.calls.Load() != 2 {
		t.Fatalf("provisioner calls = %d, want 2", prov.calls.Load())
	}
	if flow.ID() == firstID {
		t.Fatal("enrollment id reused after cancel")
	}
	if store.stores.Load() != 0 {
		t.Fatal("cancelled enrollment reached the persister")
	}
}

func TestCancelDuringInFlightVerification(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, _, store, _ := newTestFlow(t, verif)
	// Cancel lands while the verifier is out; its success must be
	// discarded.
	verif.onVerify = flow.Cancel

	advanceToVerify(t, flow)

	if err := flow.Verify(context.Background(), "123456"); !errors.Is(err, ErrFlowCancelled) {
		t.Fatalf("expected ErrFlowCancelled, got %v", err)
	}
	if flow.Step() != StepCancelled {
		t.Fatalf("step = %v, want cancelled", flow.Step())
	}
	if store.stores.Load() != 0 {
		t.Fatal("cancelled verification was persisted")
	}
}

func TestVerifyRejectsMalformedCode(t *testing.T) {
	verif := &stubVerifier{accept: true}
	flow, _, _, _ := newTestFlow(t, verif)
	advanceToVerify(t, flow)

	for _, code := range []string{"", "12345", "1234567", "12345a", "abc123"} {
		if err := flow.Verify(context.Background(), code); !errors.Is(err, ErrCodeMalformed) {
			t.Fatalf("Verify(%q): expected ErrCodeMalformed, got %v", code, err)
		}
	}
	if verif.calls.Load() != 0 {
		t.Fatalf("verifier called %d times for malformed input", verif.calls.Load())
	}
}

func TestVerifyRejectedCodeKeepsFlowInVerify(t *testing.T) {
	verif := &stubVerifier{accept: false}
	flow, _, store, _ := newTestFlow(t, verif)
	advanceToVerify(t, flow)

	if err := flow.Verify(context.Background(), "000000"); !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("expected ErrCodeRejected, got %v", err)
	}
	if flow.Step() != StepVerify {
		t.Fatalf("step = %v, want verify for retry", flow.Step())
	}
	if store.stores.Load() != 0 {
		t.Fatal("rejected code was persisted")
	}

	verif.accept = true
	if err := flow.Verify(context.Background(), "123456"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}
