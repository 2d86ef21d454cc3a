// Package identity mints and verifies the signed session tokens that
// carry a principal between the backend and the policy engine.
//
// A token embeds everything the engine needs to evaluate access for a
// request: user and tenant identifiers, role and role level, the
// permission strings, and the MFA flags. Parsing a token yields a
// guard.Principal whose SessionValidUntil comes from the token expiry,
// so the engine's session layer needs no extra lookup.
//
// Architecture boundaries:
//   - identity does not evaluate policy; it only authenticates tokens.
//   - identity does not talk to storage; revocation lives with the
//     caller.
package identity
