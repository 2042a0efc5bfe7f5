package dispatch

import "testing"

func TestSanitize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"  こんにちは  ", "こんにちは"},
		{"<color=#ff0000>危険</color>", "危険"},
		{"a\u200bb\ufeff", "ab"},
		{"a\u00a0b", "a b"},
		{"line\x07one\nline two", "lineone\nline two"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsSentinel(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", " \n", "...", "…", "。。。", "… …", "???", "？？", "?？"} {
		if !IsSentinel(text) {
			t.Fatalf("expected %q to be a sentinel", text)
		}
	}
	for _, text := range []string{"...Hello", "何？", "OK", "!"} {
		if IsSentinel(text) {
			t.Fatalf("expected %q to need translation", text)
		}
	}
}

func TestSplitContinuation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, prefix, body string
	}{
		{"...Hello", "...", "Hello"},
		{"... Hello", "... ", "Hello"},
		{"Hello...", "", "Hello..."},
		{"…Hello", "", "…Hello"},
	}
	for _, tc := range cases {
		prefix, body := splitContinuation(tc.in)
		if prefix != tc.prefix || body != tc.body {
			t.Fatalf("splitContinuation(%q) = (%q, %q), want (%q, %q)", tc.in, prefix, body, tc.prefix, tc.body)
		}
	}
}
