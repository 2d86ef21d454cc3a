// Package mfa implements the second-factor enrollment flow: a linear
// state machine
//
//	intro → qr → backup → verify → complete
//
// with a cancel edge from every state back to intro. The raw TOTP seed
// exists only in the flow's memory between setup and verification; on
// success it is encrypted through the secrets package and handed to an
// external persister, and the in-memory copy is wiped. Cancel discards
// all secret material immediately, and a generation token ensures an
// in-flight verification that completes after a cancel applies nothing.
//
// The backup → verify transition is gated on an explicit backup-code
// acknowledgement enforced here, not merely suggested by the UI.
package mfa
