package permission

import "testing"

func TestParseValid(t *testing.T) {
	cases := []struct {
		in       string
		resource string
		action   string
		scope    Scope
	}{
		{"members.view_all", "members", "view", ScopeAll},
		{"members.view_own", "members", "view", ScopeOwn},
		{"invoices.mark_paid_all", "invoices", "mark_paid", ScopeAll},
		{"classes.edit_own", "classes", "edit", ScopeOwn},
	}

	for _, tc := range cases {
		p := Parse(tc.in)
		if !p.Valid() {
			t.Fatalf("Parse(%q) unexpectedly invalid", tc.in)
		}
		if p.Resource != tc.resource || p.Action != tc.action || p.Scope != tc.scope {
			t.Fatalf("Parse(%q) = %+v", tc.in, p)
		}
		if p.String() != tc.in {
			t.Fatalf("Parse(%q).String() = %q", tc.in, p.String())
		}
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"members",
		"members.",
		".view_all",
		"members.view",
		"members.view_",
		"members.view_some",
		"members.view_ALL",
		"members..view_all",
		"mem bers.view_all",
		"members.vi ew_all",
		"_all",
		"a.b.c",
	}

	for _, in := range cases {
		p := Parse(in)
		if p.Valid() {
			t.Fatalf("Parse(%q) unexpectedly valid: %+v", in, p)
		}
		if p.Raw() != in {
			t.Fatalf("Parse(%q).Raw() = %q", in, p.Raw())
		}
	}
}

func TestParseNestedDotIsInvalid(t *testing.T) {
	// "a.b.c_all" could be read as resource "a", action "b.c"; the parser
	// rejects dots past the first separator instead of guessing.
	if Parse("a.b.c_all").Valid() {
		t.Fatal("expected nested dot to be rejected")
	}
}

func TestMustParsePanicsOnMalformed(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustParse("broken")
}

func TestSetExactMatchOnly(t *testing.T) {
	set := NewSet("members.view_all", "classes.edit_own", "totally broken")

	if !set.Has(MustParse("members.view_all")) {
		t.Fatal("expected members.view_all membership")
	}
	if set.Has(MustParse("members.view_own")) {
		t.Fatal("view_all must not satisfy view_own")
	}
	if set.Has(MustParse("classes.edit_all")) {
		t.Fatal("edit_own must not satisfy edit_all")
	}
	if set.Has(Parse("totally broken")) {
		t.Fatal("invalid permission must never be a member")
	}
	if set.Has(Permission{}) {
		t.Fatal("zero permission must never be a member")
	}
	if len(set) != 2 {
		t.Fatalf("expected malformed string to be dropped, set = %v", set.Strings())
	}
}
