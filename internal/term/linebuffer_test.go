package term

import (
	"strings"
	"testing"
)

type bufferProbe struct {
	echo  strings.Builder
	lines []string
}

func newBufferProbe() (*bufferProbe, *LineBuffer) {
	p := &bufferProbe{}
	lb := NewLineBuffer(
		func(data []byte) { p.echo.Write(data) },
		func(line string) { p.lines = append(p.lines, line) },
	)
	return p, lb
}

func TestLineBufferAppendsAndSubmitsOnEnter(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte("4"))
	lb.Feed([]byte("2"))
	if got := lb.Pending(); got != "42" {
		t.Fatalf("pending = %q, want %q", got, "42")
	}
	if len(p.lines) != 0 {
		t.Fatalf("line submitted before enter: %q", p.lines)
	}

	lb.Feed([]byte("\r"))
	if len(p.lines) != 1 || p.lines[0] != "42\n" {
		t.Fatalf("submitted lines = %q, want [%q]", p.lines, "42\n")
	}
	if got := lb.Pending(); got != "" {
		t.Fatalf("pending after enter = %q, want empty", got)
	}
	if got := p.echo.String(); got != "42\r\n" {
		t.Fatalf("echo = %q, want %q", got, "42\r\n")
	}
}

func TestLineBufferBackspaceErasesLastCharacter(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte("ab"))
	lb.Feed([]byte{0x7f})
	if got := lb.Pending(); got != "a" {
		t.Fatalf("pending = %q, want %q", got, "a")
	}
	if got := p.echo.String(); got != "ab\b \b" {
		t.Fatalf("echo = %q, want %q", got, "ab\b \b")
	}

	lb.Feed([]byte{'\b'})
	if got := lb.Pending(); got != "" {
		t.Fatalf("pending = %q, want empty", got)
	}
}

func TestLineBufferBackspaceOnEmptyBufferIsNoop(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte{0x7f})
	lb.Feed([]byte{'\b'})

	if got := p.echo.String(); got != "" {
		t.Fatalf("echo = %q, want empty", got)
	}
	if len(p.lines) != 0 {
		t.Fatalf("unexpected submitted lines: %q", p.lines)
	}
}

func TestLineBufferIgnoresEscapeSequencesAndControls(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "arrow up", input: "\x1b[A"},
		{name: "ctrl left", input: "\x1b[1;5D"},
		{name: "function key", input: "\x1bOP"},
		{name: "alt rune", input: "\x1bb"},
		{name: "bare escape", input: "\x1b"},
		{name: "bell", input: "\x07"},
		{name: "line feed", input: "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, lb := newBufferProbe()
			lb.Feed([]byte(tt.input))
			if got := lb.Pending(); got != "" {
				t.Fatalf("pending = %q, want empty", got)
			}
			if got := p.echo.String(); got != "" {
				t.Fatalf("echo = %q, want empty", got)
			}
			if len(p.lines) != 0 {
				t.Fatalf("unexpected submitted lines: %q", p.lines)
			}
		})
	}
}

func TestLineBufferAcceptsTab(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte("a\tb"))
	if got := lb.Pending(); got != "a\tb" {
		t.Fatalf("pending = %q, want %q", got, "a\tb")
	}
	if got := p.echo.String(); got != "a\tb" {
		t.Fatalf("echo = %q, want %q", got, "a\tb")
	}
}

func TestLineBufferMultiLinePasteSubmitsEachLine(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte(NormalizePaste("first\nsecond\n")))
	if len(p.lines) != 2 {
		t.Fatalf("submitted %d lines, want 2: %q", len(p.lines), p.lines)
	}
	if p.lines[0] != "first\n" || p.lines[1] != "second\n" {
		t.Fatalf("submitted lines = %q", p.lines)
	}
	if got := lb.Pending(); got != "" {
		t.Fatalf("pending = %q, want empty", got)
	}
}

func TestLineBufferResetDropsPendingInput(t *testing.T) {
	p, lb := newBufferProbe()

	lb.Feed([]byte("partial"))
	lb.Reset()
	if got := lb.Pending(); got != "" {
		t.Fatalf("pending after reset = %q, want empty", got)
	}

	echoBefore := p.echo.String()
	lb.Feed([]byte("\r"))
	if len(p.lines) != 1 || p.lines[0] != "\n" {
		t.Fatalf("submitted lines = %q, want [%q]", p.lines, "\n")
	}
	if got := p.echo.String(); got != echoBefore+"\r\n" {
		t.Fatalf("echo = %q", got)
	}
}
