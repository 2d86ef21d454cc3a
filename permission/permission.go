package permission

import "strings"

// Scope restricts a permission to the caller's own records or to all
// records within the tenant.
type Scope uint8

const (
	// ScopeInvalid marks a permission that failed to parse.
	ScopeInvalid Scope = iota
	// ScopeOwn limits the action to records owned by the principal.
	ScopeOwn
	// ScopeAll allows the action on every record in the tenant.
	ScopeAll
)

// String returns the wire form of the scope suffix.
func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeAll:
		return "all"
	default:
		return "invalid"
	}
}

// Permission is a parsed "resource.action_scope" value. The zero value is
// invalid and never matches. Permission is comparable and safe to use as a
// map key.
type Permission struct {
	Resource string
	Action   string
	Scope    Scope

	raw string
}

// Parse converts a dotted permission string into a Permission. Parsing is
// total: malformed input returns a value with Scope == ScopeInvalid that
// compares unequal to every valid permission. The original input is kept
// for diagnostics via Raw.
func Parse(s string) Permission {
	invalid := Permission{raw: s}

	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return invalid
	}
	resource := s[:dot]
	rest := s[dot+1:]
	if strings.ContainsAny(resource, " \t.") {
		return invalid
	}

	under := strings.LastIndexByte(rest, '_')
	if under <= 0 || under == len(rest)-1 {
		return invalid
	}
	action := rest[:under]
	var scope Scope
	switch rest[under+1:] {
	case "own":
		scope = ScopeOwn
	case "all":
		scope = ScopeAll
	default:
		return invalid
	}
	if strings.ContainsAny(action, " \t.") {
		return invalid
	}

	return Permission{Resource: resource, Action: action, Scope: scope}
}

// MustParse is Parse for trusted static strings; it panics on malformed
// input so misspelled permission literals fail at startup, not at check
// time.
func MustParse(s string) Permission {
	p := Parse(s)
	if !p.Valid() {
		panic("permission: malformed permission string: " + s)
	}
	return p
}

// Valid reports whether the permission parsed successfully.
func (p Permission) Valid() bool {
	return p.Scope == ScopeOwn || p.Scope == ScopeAll
}

// IsZero reports whether the permission is the zero value, meaning no
// permission requirement was set at all.
func (p Permission) IsZero() bool {
	return p == Permission{}
}

// Raw returns the original unparsed string for invalid permissions, or the
// canonical string form for valid ones.
func (p Permission) Raw() string {
	if !p.Valid() {
		return p.raw
	}
	return p.String()
}

// String renders the canonical "resource.action_scope" form.
func (p Permission) String() string {
	if !p.Valid() {
		return "<invalid:" + p.raw + ">"
	}
	return p.Resource + "." + p.Action + "_" + p.Scope.String()
}

// Set is an exact-match permission set. Invalid permissions are never
// members, so a malformed requirement can never be satisfied by accident.
type Set map[Permission]struct{}

// NewSet parses each string and collects the valid results. Malformed
// strings are dropped; they cannot grant anything.
func NewSet(perms ...string) Set {
	set := make(Set, len(perms))
	for _, s := range perms {
		if p := Parse(s); p.Valid() {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports exact membership. There is no wildcard upgrade: holding
// "members.view_all" does not satisfy a "members.view_own" requirement or
// vice versa.
func (s Set) Has(p Permission) bool {
	if !p.Valid() {
		return false
	}
	_, ok := s[p]
	return ok
}

// Strings returns the canonical string form of every member, in no
// particular order.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	return out
}
