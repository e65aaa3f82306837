package term

import "sync"

// LineBuffer implements cooked-mode input for the console. Typed characters
// are held and echoed locally until Enter submits the whole line, so the
// running program only ever receives complete lines. Echo goes to the local
// output surface, submitted lines to the live run session.
type LineBuffer struct {
	mu   sync.Mutex
	line []rune
	echo func(data []byte)
	send func(line string)
}

func NewLineBuffer(echo func(data []byte), send func(line string)) *LineBuffer {
	return &LineBuffer{echo: echo, send: send}
}

// Feed consumes raw input bytes, typically one key or paste event at a
// time. Handling per rune:
//   - DEL or BS remove the last pending character and erase it on screen;
//     on an empty buffer nothing happens at all.
//   - CR completes the line: a trailing newline is appended, the line is
//     handed to the send hook, a newline is echoed, and the buffer clears.
//   - Runes >= 0x20 and TAB append to the line and echo.
//   - Escape sequences (arrows, function keys, alt-chords) are skipped
//     whole, and any other control byte is dropped.
func (b *LineBuffer) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	runes := []rune(string(data))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == 0x1b:
			i += escapeTailLen(runes[i+1:])
		case r == 0x7f || r == '\b':
			if len(b.line) == 0 {
				continue
			}
			b.line = b.line[:len(b.line)-1]
			b.echoLocked([]byte("\b \b"))
		case r == '\r':
			line := string(append(b.line, '\n'))
			if b.send != nil {
				b.send(line)
			}
			b.echoLocked([]byte("\r\n"))
			b.line = b.line[:0]
		case r >= 0x20 || r == '\t':
			b.line = append(b.line, r)
			b.echoLocked([]byte(string(r)))
		}
	}
}

// Reset discards any pending input without echoing. Called when a run
// session starts or the console is cleared.
func (b *LineBuffer) Reset() {
	b.mu.Lock()
	b.line = b.line[:0]
	b.mu.Unlock()
}

// Pending returns the characters typed since the last completed line.
func (b *LineBuffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.line)
}

func (b *LineBuffer) echoLocked(data []byte) {
	if b.echo != nil {
		b.echo(data)
	}
}

// escapeTailLen reports how many runes after an ESC belong to the same
// escape sequence. CSI sequences run to their final byte, SS3 sequences
// carry one more rune, and anything else (alt-prefixed input) is a single
// rune.
func escapeTailLen(tail []rune) int {
	if len(tail) == 0 {
		return 0
	}
	switch tail[0] {
	case '[':
		for i := 1; i < len(tail); i++ {
			if tail[i] >= 0x40 && tail[i] <= 0x7e {
				return i + 1
			}
		}
		return len(tail)
	case 'O':
		if len(tail) >= 2 {
			return 2
		}
		return len(tail)
	default:
		return 1
	}
}
