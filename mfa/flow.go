package mfa

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/repclub/guard/secrets"
)

// Step is the enrollment state.
type Step uint8

const (
	// StepIntro is the initial state; no secret material exists yet.
	StepIntro Step = iota
	// StepQR means a secret was provisioned and the QR code is shown.
	StepQR
	// StepBackup means backup codes are being displayed.
	StepBackup
	// StepVerify means the user is entering their first code.
	StepVerify
	// StepComplete is terminal: the encrypted secret was persisted and
	// in-memory material wiped.
	StepComplete
	// StepCancelled records an abandoned enrollment; equivalent to intro
	// for every transition, with all secret material discarded.
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepIntro:
		return "intro"
	case StepQR:
		return "qr"
	case StepBackup:
		return "backup"
	case StepVerify:
		return "verify"
	case StepComplete:
		return "complete"
	case StepCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition indicates the requested step doesn't follow
	// from the current one.
	ErrInvalidTransition = errors.New("mfa: invalid enrollment transition")
	// ErrBackupNotAcknowledged gates backup → verify until the caller
	// confirms the codes were saved.
	ErrBackupNotAcknowledged = errors.New("mfa: backup codes not acknowledged")
	// ErrCodeMalformed rejects verification input that is not a 6-digit
	// number before any external call is made.
	ErrCodeMalformed = errors.New("mfa: code must be 6 digits")
	// ErrCodeRejected indicates the verifier did not accept the code.
	ErrCodeRejected = errors.New("mfa: code rejected")
	// ErrFlowCancelled indicates the enrollment was cancelled while a
	// verification was in flight; nothing was applied.
	ErrFlowCancelled = errors.New("mfa: enrollment cancelled")
)

// Persister stores the outcome of a completed enrollment. Only the
// encrypted secret and the backup codes ever leave the flow.
type Persister interface {
	StoreEnrollment(ctx context.Context, account string, secret secrets.EncryptedSecret, codes []Code) error
}

// Flow is the enrollment state machine for one account. It is driven by
// the setup UI one step at a time; methods are safe for concurrent use
// because an in-flight verification can race Cancel.
type Flow struct {
	mu sync.Mutex

	account string
	prov    Provisioner
	verif   Verifier
	cipher  *secrets.Cipher
	store   Persister

	id          string
	step        Step
	secret      string
	qrCodeURI   string
	backupCodes []Code
	backupAcked bool

	// gen orphans in-flight verifications: Cancel bumps it, and a
	// verification result is applied only if the generation it started
	// under still matches.
	gen uint64
}

// NewFlow creates an enrollment flow for account. All four collaborators
// are required.
func NewFlow(account string, prov Provisioner, verif Verifier, cipher *secrets.Cipher, store Persister) (*Flow, error) {
	if account == "" {
		return nil, errors.New("mfa: account is required")
	}
	if prov == nil || verif == nil || cipher == nil || store == nil {
		return nil, errors.New("mfa: missing collaborator")
	}
	return &Flow{
		account: account,
		prov:    prov,
		verif:   verif,
		cipher:  cipher,
		store:   store,
		step:    StepIntro,
	}, nil
}

// Step reports the current enrollment step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// ID identifies the current enrollment attempt; it changes on every
// Begin.
func (f *Flow) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// BackupAcknowledged reports whether the codes were confirmed saved.
func (f *Flow) BackupAcknowledged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backupAcked
}

// Begin drives intro → qr: it provisions a fresh secret and backup
// codes. A flow that was cancelled or completed starts over with
// entirely new material; secrets never survive across attempts.
func (f *Flow) Begin(ctx context.Context) (qrCodeURI string, backupCodes []Code, err error) {
	f.mu.Lock()
	if f.step != StepIntro && f.step != StepCancelled && f.step != StepComplete {
		step := f.step
		f.mu.Unlock()
		return "", nil, fmt.Errorf("%w: begin from %s", ErrInvalidTransition, step)
	}
	f.wipeLocked()
	gen := f.gen
	f.mu.Unlock()

	setup, err := f.prov.InitiateSetup(ctx, f.account)
	if err != nil {
		return "", nil, fmt.Errorf("mfa: provisioning failed: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return "", nil, ErrFlowCancelled
	}
	f.id = uuid.NewString()
	f.step = StepQR
	f.secret = setup.Secret
	f.qrCodeURI = setup.QRCodeURI
	f.backupCodes = setup.BackupCodes

	return f.qrCodeURI, f.copyCodesLocked(), nil
}

// AdvanceToBackup drives qr → backup. User-driven; no external
// validation.
func (f *Flow) AdvanceToBackup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepQR {
		return fmt.Errorf("%w: backup from %s", ErrInvalidTransition, f.step)
	}
	f.step = StepBackup
	return nil
}

// AcknowledgeBackupCodes records that the user downloaded or copied the
// codes. Only valid while they are on screen.
func (f *Flow) AcknowledgeBackupCodes() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepBackup {
		return fmt.Errorf("%w: acknowledge from %s", ErrInvalidTransition, f.step)
	}
	f.backupAcked = true
	return nil
}

// AdvanceToVerify drives backup → verify. The transition is refused, not
// merely discouraged, until the backup codes were acknowledged.
func (f *Flow) AdvanceToVerify() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepBackup {
		return fmt.Errorf("%w: verify from %s", ErrInvalidTransition, f.step)
	}
	if !f.backupAcked {
		return ErrBackupNotAcknowledged
	}
	f.step = StepVerify
	return nil
}

// Verify drives verify → complete. The code goes to the external
// verifier with the in-memory secret; on success the secret is encrypted
// and handed to the persister, then all in-memory material is wiped. If
// the flow was cancelled while the verifier was out, the result is
// discarded and nothing is stored.
func (f *Flow) Verify(ctx context.Context, code string) error {
	if !isSixDigits(code) {
		return ErrCodeMalformed
	}

	f.mu.Lock()
	if f.step != StepVerify {
		step := f.step
		f.mu.Unlock()
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, step)
	}
	secret := f.secret
	gen := f.gen
	f.mu.Unlock()

	ok, err := f.verif.VerifyCode(ctx, secret, code)
	if err != nil {
		return fmt.Errorf("mfa: verification failed: %w", err)
	}

	f.mu.Lock()
	if gen != f.gen || f.step != StepVerify {
		f.mu.Unlock()
		return ErrFlowCancelled
	}
	if !ok {
		f.mu.Unlock()
		return ErrCodeRejected
	}
	codes := f.copyCodesLocked()
	f.mu.Unlock()

	encrypted, err := f.cipher.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("mfa: secret encryption failed: %w", err)
	}
	if err := f.store.StoreEnrollment(ctx, f.account, encrypted, codes); err != nil {
		return fmt.Errorf("mfa: persisting enrollment failed: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		// Cancelled between verification and persistence
		// acknowledgement; the stored record stands but this flow
		// reports cancellation.
		return ErrFlowCancelled
	}
	f.step = StepComplete
	f.secret = ""
	f.qrCodeURI = ""
	f.backupCodes = nil
	return nil
}

// Cancel discards all in-memory secret material immediately, from any
// state. No setup state survives; a subsequent Begin provisions a new,
// different secret. In-flight verifications observe the generation bump
// and apply nothing.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wipeLocked()
	f.step = StepCancelled
}

func (f *Flow) wipeLocked() {
	f.gen++
	f.id = ""
	f.secret = ""
	f.qrCodeURI = ""
	f.backupCodes = nil
	f.backupAcked = false
	f.step = StepIntro
}

func (f *Flow) copyCodesLocked() []Code {
	out := make([]Code, len(f.backupCodes))
	copy(out, f.backupCodes)
	return out
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
