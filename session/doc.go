// Package session tracks user activity and enforces per-role idle
// timeouts through an explicit lifecycle state machine:
//
//	Inactive → Active → Warning → Expired
//
// A single warning timer covers timeout−warning of inactivity, then a
// logout timer covers the warning window. Activity fully resets the
// timers only while Active; once Warning has been surfaced, only an
// explicit ExtendSession call extends, so a stuck or automated input
// source cannot keep a session alive forever.
//
// Scheduled timers are advisory only. Elapsed time is always recomputed
// from wall-clock timestamps on Heartbeat and Visible, because a
// backgrounded host may suspend timer callbacks arbitrarily long; the
// monitor must never report "still active" purely because a timer has
// not fired.
//
// Every reset bumps a generation counter under the monitor mutex, and
// timer callbacks re-check it before acting, so a stale timer from
// before a reset can never cause a spurious logout.
package session
