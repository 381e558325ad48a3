package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestKeyValuesAlignsLabels(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	got := KeyValues("  ",
		KV("project", "/srv/demo"),
		KV("bucket", "demo-site"),
	)

	want := "" +
		"  project: /srv/demo\n" +
		"  bucket:  demo-site\n"
	if got != want {
		t.Fatalf("KeyValues() = %q, want %q", got, want)
	}
}

func TestMessageHelpersPrefixSymbol(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{name: "warn", got: WarnMsg("history unavailable: %s", "locked"), want: "! history unavailable: locked"},
		{name: "error", got: ErrorMsg("deploy failed"), want: "✗ deploy failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("message = %q, want %q", tc.got, tc.want)
			}
		})
	}
}
