package term

import "strings"

// NormalizePaste rewrites pasted newlines as carriage returns so multi-line
// pastes move through the line buffer exactly like typed Enter presses.
func NormalizePaste(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\r")
	content = strings.ReplaceAll(content, "\n", "\r")
	return content
}
