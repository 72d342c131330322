package relay

import "testing"

func TestFormatChat(t *testing.T) {
	if got := FormatChat("User1", "hi", false); got != "User1: hi" {
		t.Fatalf("FormatChat=%q, want %q", got, "User1: hi")
	}
	if got := FormatChat("Admin", "hello", true); got != "*Admin: hello" {
		t.Fatalf("FormatChat=%q, want %q", got, "*Admin: hello")
	}
}

func TestParseInput(t *testing.T) {
	cases := []struct {
		line string
		want Input
	}{
		{line: "hi", want: Input{Kind: InputChat, Text: "hi"}},
		{line: "/name alice", want: Input{Kind: InputRename, Text: "alice"}},
		{line: "/name  alice  smith", want: Input{Kind: InputRename, Text: "alice"}},
		{line: "/name ", want: Input{Kind: InputRename, Text: ""}},
		{line: "/name", want: Input{Kind: InputChat, Text: "/name"}},
		{line: "/names", want: Input{Kind: InputChat, Text: "/names"}},
		{line: " /name bob", want: Input{Kind: InputChat, Text: " /name bob"}},
	}
	for _, tc := range cases {
		if got := ParseInput(tc.line); got != tc.want {
			t.Fatalf("ParseInput(%q)=%+v, want %+v", tc.line, got, tc.want)
		}
	}
}
