package errcat

import (
	"strings"
	"testing"
)

func TestCategoryFromCode(t *testing.T) {
	cases := map[string]Category{
		"FT-1001": CategoryMultiplexer,
		"FT-2999": CategoryStorage,
		"FT-9000": CategoryInternal,
	}
	for code, want := range cases {
		got, ok := CategoryFromCode(code)
		if !ok || got != want {
			t.Errorf("CategoryFromCode(%s) = %s, %v; want %s", code, got, ok, want)
		}
	}
	if _, ok := CategoryFromCode("bogus"); ok {
		t.Errorf("expected malformed code to fail")
	}
}

func TestDefaultCatalogueLookup(t *testing.T) {
	cat := Default()
	d, ok := cat.Lookup("FT-9001")
	if !ok {
		t.Fatalf("expected FT-9001 to be defined")
	}
	out := d.FormatPlain()
	for _, want := range []string{"FT-9001", "unhandled panic", "Recovery steps:", "1. inspect the crash bundle", "$ ft bundle show"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected rendering to contain %q, got:\n%s", want, out)
		}
	}

	if _, ok := cat.Lookup("FT-0000"); ok {
		t.Errorf("unknown code must not be found")
	}
}
