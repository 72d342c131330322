package relay

import "strings"

const (
	adminMarker   = "*"
	renameCommand = "/name "
)

// FormatChat renders a chat line as it is shown to recipients. Operator lines
// carry a leading "*".
func FormatChat(nickname, body string, admin bool) string {
	if admin {
		return adminMarker + nickname + ": " + body
	}
	return nickname + ": " + body
}

type InputKind int

const (
	InputChat InputKind = iota
	InputRename
)

// Input is one parsed line of chat input.
type Input struct {
	Kind InputKind
	// Text is the chat body for InputChat and the requested nickname for
	// InputRename.
	Text string
}

// ParseInput recognizes "/name <nickname>"; only the first word after the
// command is used. Everything else is chat.
func ParseInput(line string) Input {
	rest, ok := strings.CutPrefix(line, renameCommand)
	if !ok {
		return Input{Kind: InputChat, Text: line}
	}
	var name string
	if fields := strings.Fields(rest); len(fields) > 0 {
		name = fields[0]
	}
	return Input{Kind: InputRename, Text: name}
}
