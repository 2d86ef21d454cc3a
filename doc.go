// Package guard is the security enforcement core of a multi-tenant gym
// management platform: a layered access-control policy engine with
// fail-fast evaluation, tenant/ownership query scoping, and structured
// audit emission.
//
// The engine evaluates ordered layers (authentication, MFA requirement,
// permission membership, minimum role level, resource ownership, and an
// optional custom predicate) and stops at the first failure, so costly
// checks never run after an earlier layer already denied and the audit
// record pinpoints exactly where evaluation stopped. Denials are
// structured [SecurityCheckResult] values rather than errors; callers
// decide the user-facing behavior.
//
// Checks operate on explicit [Principal] snapshots supplied per call.
// There is no ambient "current user": the engine holds no session state
// and never mutates a principal.
//
// # Architecture boundaries
//
// guard is the public surface. It exposes [Engine], [Builder], [Config],
// and value types. Audit transport lives under internal/ and is reached
// only through sinks. Session timeout tracking, secret encryption, MFA
// enrollment, and principal token parsing live in the session, secrets,
// mfa, and identity sub-packages respectively.
//
// # What this package must NOT do
//
//   - Talk to a database. Persistence is an external collaborator; this
//     package only produces filter maps and ownership verdicts for it.
//   - Throw on expected denial paths. CheckAccess always returns a
//     structured result.
//   - Block on audit sinks. Events are handed to an async dispatcher.
package guard
