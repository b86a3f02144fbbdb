package modwire

import "testing"

func TestFilterMatch(t *testing.T) {
	cases := []struct {
		name   string
		filter string
		attrs  map[string]any
		want   bool
	}{
		{"simple equal", `(osgi.wiring.package=acme.lib)`, map[string]any{"osgi.wiring.package": "acme.lib"}, true},
		{"simple mismatch", `(osgi.wiring.package=acme.lib)`, map[string]any{"osgi.wiring.package": "acme.other"}, false},
		{"and both true", `(&(a=1)(b=2))`, map[string]any{"a": "1", "b": "2"}, true},
		{"and one false", `(&(a=1)(b=2))`, map[string]any{"a": "1", "b": "3"}, false},
		{"or either true", `(|(a=1)(b=2))`, map[string]any{"a": "9", "b": "2"}, true},
		{"not flips", `(!(a=1))`, map[string]any{"a": "1"}, false},
		{"presence test true", `(a=*)`, map[string]any{"a": "anything"}, true},
		{"presence test false", `(a=*)`, map[string]any{}, false},
		{"wildcard substring", `(a=ac*ib)`, map[string]any{"a": "acme.lib"}, true},
		{"wildcard no match", `(a=ac*zz)`, map[string]any{"a": "acme.lib"}, false},
		{"version range ge", `(version>=1.2.0)`, map[string]any{"version": "1.5.0"}, true},
		{"version range ge false", `(version>=2.0.0)`, map[string]any{"version": "1.5.0"}, false},
		{"version range le", `(version<=1.5.0)`, map[string]any{"version": "1.2.0"}, true},
		{"approx match ignores case and space", `(a~=Foo Bar)`, map[string]any{"a": "foobar"}, true},
		{"nested and-or-not", `(&(a=1)(|(b=2)(!(c=3))))`, map[string]any{"a": "1", "b": "9", "c": "9"}, true},
		{"empty filter matches everything", ``, map[string]any{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFilter(tc.filter)
			if err != nil {
				t.Fatalf("ParseFilter(%q): %v", tc.filter, err)
			}
			if got := f.Match(tc.attrs); got != tc.want {
				t.Errorf("Match(%v) = %v, want %v", tc.attrs, got, tc.want)
			}
		})
	}
}

func TestFilterParseErrors(t *testing.T) {
	cases := []string{
		`(a=1`,
		`a=1)`,
		`(&)`,
		`()`,
		`(a>1)`,
	}
	for _, s := range cases {
		if _, err := ParseFilter(s); err == nil {
			t.Errorf("ParseFilter(%q): expected error, got nil", s)
		}
	}
}

func TestFilterStringRoundtrip(t *testing.T) {
	const s = `(&(a=1)(b=2))`
	f, err := ParseFilter(s)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if got := f.String(); got != s {
		t.Errorf("String() = %q, want %q", got, s)
	}
}
