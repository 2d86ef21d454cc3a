// Package permission parses dotted permission strings into typed values
// and provides set membership for exact-match checks.
//
// A permission string has the form "resource.action_scope", for example
// "members.view_all" or "invoices.edit_own". Parsing is total: malformed
// input produces a distinct invalid value that never matches anything,
// instead of a partial or fuzzy match at check time.
//
// # Architecture boundaries
//
// This package owns permission syntax and matching semantics. It must not
// import guard or any sibling package, perform I/O, or consult any policy
// source; which permissions a principal holds is the caller's concern.
package permission
