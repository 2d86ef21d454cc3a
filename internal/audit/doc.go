// Package audit defines the security audit event model, the asynchronous
// dispatcher that decouples check evaluation from sink latency, and the
// built-in sinks (no-op, channel, JSON writer, Redis list).
//
// # Architecture boundaries
//
// This package owns event transport only. It never decides what gets
// audited; the root package constructs events and hands them to a
// Dispatcher. Sinks receive events on the dispatcher goroutine and must
// not block indefinitely.
package audit
