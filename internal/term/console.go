package term

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/hinshun/vt10x"
)

const scrollbackMaxLines = 10000

// PlaybackFrame is one timed chunk of pre-recorded terminal output.
type PlaybackFrame struct {
	After time.Duration
	Data  []byte
}

// Snapshot is a renderer-agnostic capture of the console contents. Lines
// holds plain text, StyledLines the same rows with SGR color sequences
// embedded for direct composition into a styled view.
type Snapshot struct {
	Lines       []string
	StyledLines []string
	CursorX     int
	CursorY     int
	CursorShow  bool
	Scrollback  bool
}

// Console is the output surface for run sessions. It is fed raw program
// output through Write, keeps an in-memory vt10x screen plus a plain-text
// scrollback, and can replay pre-recorded frames for demos. It never owns
// a process; execution lives with the engine host.
type Console struct {
	mu sync.Mutex

	vt    vt10x.Terminal
	cols  int
	rows  int
	dirty func()

	playingBack  bool
	playbackStop context.CancelFunc

	scrollback       []string
	scrollbackMax    int
	inScrollback     bool
	scrollbackIndex  int
	lineTail         string
	totalOutputBytes atomic.Int64
}

func NewConsole(onDirty func()) *Console {
	c := &Console{
		dirty:         onDirty,
		scrollbackMax: scrollbackMaxLines,
		cols:          80,
		rows:          24,
	}
	c.vt = vt10x.New(vt10x.WithWriter(io.Discard), vt10x.WithSize(c.cols, c.rows))
	return c
}

// SetDirty updates the redraw callback used when console output changes.
func (c *Console) SetDirty(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = fn
}

// Write feeds program output into the screen and scrollback. It implements
// io.Writer so run sessions can hold the console as a plain output sink.
func (c *Console) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	c.totalOutputBytes.Add(int64(len(chunk)))

	c.mu.Lock()
	vt := c.vt
	c.mu.Unlock()
	if vt != nil {
		_, _ = vt.Write(chunk)
	}

	plain := stripForScrollback(chunk)
	c.mu.Lock()
	c.appendScrollbackPlainLocked(plain)
	c.mu.Unlock()

	c.markDirty()
	return len(p), nil
}

// Reset clears the screen and scrollback ahead of a new run session so
// output from consecutive runs never interleaves.
func (c *Console) Reset() {
	c.mu.Lock()
	c.stopPlaybackLocked()
	c.vt = vt10x.New(vt10x.WithWriter(io.Discard), vt10x.WithSize(max(1, c.cols), max(1, c.rows)))
	c.scrollback = nil
	c.inScrollback = false
	c.scrollbackIndex = 0
	c.lineTail = ""
	c.mu.Unlock()
	c.markDirty()
}

// StartPlayback replays recorded frames on the console. Any prior playback
// is stopped first; live session output should not be mixed with playback,
// callers reset the console when a real run starts.
func (c *Console) StartPlayback(ctx context.Context, frames []PlaybackFrame, loop bool) error {
	if len(frames) == 0 {
		return errors.New("playback frames are empty")
	}

	playCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stopPlaybackLocked()
	c.playingBack = true
	c.playbackStop = cancel
	c.vt = vt10x.New(vt10x.WithWriter(io.Discard), vt10x.WithSize(max(1, c.cols), max(1, c.rows)))
	c.scrollback = nil
	c.inScrollback = false
	c.scrollbackIndex = 0
	c.lineTail = ""
	c.totalOutputBytes.Store(0)
	c.mu.Unlock()

	go c.playbackLoop(playCtx, frames, loop)
	c.markDirty()
	return nil
}

func (c *Console) StopPlayback() {
	c.mu.Lock()
	c.stopPlaybackLocked()
	c.mu.Unlock()
	c.markDirty()
}

func (c *Console) stopPlaybackLocked() {
	if c.playbackStop != nil {
		c.playbackStop()
		c.playbackStop = nil
	}
	c.playingBack = false
}

func (c *Console) playbackLoop(ctx context.Context, frames []PlaybackFrame, loop bool) {
	for {
		for _, frame := range frames {
			if frame.After > 0 {
				timer := time.NewTimer(frame.After)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			} else {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			c.mu.Lock()
			if c.vt != nil {
				_, _ = c.vt.Write(frame.Data)
				c.appendScrollbackPlainLocked(stripForScrollback(frame.Data))
			}
			c.mu.Unlock()
			c.markDirty()
		}
		if !loop {
			return
		}
	}
}

func (c *Console) PlayingBack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playingBack
}

// TotalOutputBytes returns a monotonic counter of output bytes processed.
func (c *Console) TotalOutputBytes() int64 {
	return c.totalOutputBytes.Load()
}

func (c *Console) appendScrollbackPlainLocked(plain string) {
	if plain == "" {
		return
	}
	plain = c.lineTail + plain
	parts := strings.Split(plain, "\n")
	if len(parts) == 1 {
		c.lineTail = parts[0]
		return
	}
	c.lineTail = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		c.scrollback = append(c.scrollback, line)
	}
	if len(c.scrollback) > c.scrollbackMax {
		over := len(c.scrollback) - c.scrollbackMax
		c.scrollback = c.scrollback[over:]
	}
	if c.inScrollback {
		c.scrollbackIndex = len(c.scrollback)
	}
}

func (c *Console) markDirty() {
	c.mu.Lock()
	fn := c.dirty
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Console) Resize(cols, rows int) {
	c.mu.Lock()
	c.cols = cols
	c.rows = rows
	vt := c.vt
	c.mu.Unlock()

	if vt != nil {
		vt.Resize(max(1, cols), max(1, rows))
	}
	c.markDirty()
}

func (c *Console) Size() (cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols, c.rows
}

func (c *Console) ToggleScrollback() {
	c.mu.Lock()
	c.inScrollback = !c.inScrollback
	if c.inScrollback {
		c.scrollbackIndex = len(c.scrollback)
	}
	c.mu.Unlock()
	c.markDirty()
}

func (c *Console) InScrollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inScrollback
}

func (c *Console) Scroll(delta int) {
	c.mu.Lock()
	if !c.inScrollback {
		c.mu.Unlock()
		return
	}
	c.scrollbackIndex += delta
	if c.scrollbackIndex < 0 {
		c.scrollbackIndex = 0
	}
	if c.scrollbackIndex > len(c.scrollback) {
		c.scrollbackIndex = len(c.scrollback)
	}
	c.mu.Unlock()
	c.markDirty()
}

func (c *Console) scrollbackWindowLocked(height int) []string {
	if height <= 0 {
		return nil
	}
	if c.scrollbackIndex > len(c.scrollback) {
		c.scrollbackIndex = len(c.scrollback)
	}
	start := c.scrollbackIndex - height
	if start < 0 {
		start = 0
	}
	lines := append([]string(nil), c.scrollback[start:c.scrollbackIndex]...)
	return lines
}

// Snapshot captures the current console view at the given dimensions.
func (c *Console) Snapshot(width, height int) Snapshot {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	out := Snapshot{
		Lines:       make([]string, height),
		StyledLines: make([]string, height),
		CursorX:     -1,
		CursorY:     -1,
	}

	c.mu.Lock()
	if c.inScrollback {
		lines := c.scrollbackWindowLocked(height)
		c.mu.Unlock()
		out.Scrollback = true
		for row := 0; row < height; row++ {
			if row < len(lines) {
				out.Lines[row] = clipWidth(lines[row], width)
			} else {
				out.Lines[row] = strings.Repeat(" ", width)
			}
			out.StyledLines[row] = out.Lines[row]
		}
		return out
	}
	vt := c.vt
	c.mu.Unlock()

	if vt == nil {
		for row := 0; row < height; row++ {
			out.Lines[row] = strings.Repeat(" ", width)
			out.StyledLines[row] = out.Lines[row]
		}
		return out
	}

	vt.Lock()
	defer vt.Unlock()

	vtCols, vtRows := vt.Size()
	drawW := min(width, max(0, vtCols))
	drawH := min(height, max(0, vtRows))

	for row := 0; row < height; row++ {
		buf := make([]rune, width)
		for i := range buf {
			buf[i] = ' '
		}
		var styled strings.Builder
		var prev cellStyle
		hasStyle := false
		if row < drawH {
			for col := 0; col < drawW; col++ {
				g, ok := safeCell(vt, col, row)
				if !ok {
					continue
				}
				ch := sanitizeGlyphRune(g.Char)
				buf[col] = ch
				style := cellStyleFromGlyph(g)
				if !hasStyle || !style.equal(prev) {
					styled.WriteString(style.sgr())
					prev = style
					hasStyle = true
				}
				styled.WriteRune(ch)
			}
			for col := drawW; col < width; col++ {
				blank := defaultCellStyle()
				if !hasStyle || !blank.equal(prev) {
					styled.WriteString(blank.sgr())
					prev = blank
					hasStyle = true
				}
				styled.WriteRune(' ')
			}
		} else {
			styled.WriteString(strings.Repeat(" ", width))
		}
		if hasStyle {
			styled.WriteString("\x1b[0m")
		}
		out.Lines[row] = string(buf)
		out.StyledLines[row] = styled.String()
	}

	if vt.CursorVisible() {
		cur := vt.Cursor()
		if cur.X >= 0 && cur.X < width && cur.Y >= 0 && cur.Y < height {
			out.CursorX = cur.X
			out.CursorY = cur.Y
			out.CursorShow = true
		}
	}
	return out
}

func stripForScrollback(chunk []byte) string {
	plain := xansi.Strip(string(chunk))
	plain = strings.ReplaceAll(plain, "\r", "")
	return plain
}

const (
	vtAttrReverse   int16 = 1 << 0
	vtAttrUnderline int16 = 1 << 1
	vtAttrBold      int16 = 1 << 2
)

type cellStyle struct {
	FG        vt10x.Color
	BG        vt10x.Color
	Bold      bool
	Underline bool
}

func defaultCellStyle() cellStyle {
	return cellStyle{FG: vt10x.DefaultFG, BG: vt10x.DefaultBG}
}

func cellStyleFromGlyph(g vt10x.Glyph) cellStyle {
	style := cellStyle{
		FG:        g.FG,
		BG:        g.BG,
		Bold:      g.Mode&vtAttrBold != 0,
		Underline: g.Mode&vtAttrUnderline != 0,
	}
	if g.Mode&vtAttrReverse != 0 {
		style.FG, style.BG = style.BG, style.FG
	}
	return style
}

func (s cellStyle) equal(other cellStyle) bool {
	return s.FG == other.FG &&
		s.BG == other.BG &&
		s.Bold == other.Bold &&
		s.Underline == other.Underline
}

func (s cellStyle) sgr() string {
	codes := []string{"0"}
	if s.Bold {
		codes = append(codes, "1")
	}
	if s.Underline {
		codes = append(codes, "4")
	}
	codes = append(codes, vtColorToSGR(s.FG, true))
	codes = append(codes, vtColorToSGR(s.BG, false))
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func vtColorToSGR(c vt10x.Color, foreground bool) string {
	if c == vt10x.DefaultFG || c == vt10x.DefaultBG || c == vt10x.DefaultCursor {
		if foreground {
			return "39"
		}
		return "49"
	}
	n := int(c)
	if n >= 0 && n < 8 {
		if foreground {
			return strconv.Itoa(30 + n)
		}
		return strconv.Itoa(40 + n)
	}
	if n >= 8 && n < 16 {
		if foreground {
			return strconv.Itoa(90 + (n - 8))
		}
		return strconv.Itoa(100 + (n - 8))
	}
	if foreground {
		return "38;5;" + strconv.Itoa(n)
	}
	return "48;5;" + strconv.Itoa(n)
}

func clipWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if s == "" {
		return strings.Repeat(" ", w)
	}
	r := []rune(s)
	if len(r) > w {
		r = r[:w]
	}
	if len(r) < w {
		r = append(r, []rune(strings.Repeat(" ", w-len(r)))...)
	}
	return string(r)
}

func sanitizeGlyphRune(ch rune) rune {
	if ch == 0 || ch == utf8.RuneError || !utf8.ValidRune(ch) {
		return ' '
	}
	switch ch {
	case '□', '■', '▯', '␣', '␀':
		return ' '
	}
	if (ch >= 0xE000 && ch <= 0xF8FF) ||
		(ch >= 0xF0000 && ch <= 0xFFFFD) ||
		(ch >= 0x100000 && ch <= 0x10FFFD) {
		return ' '
	}
	if ch < 0x20 || ch == 0x7f {
		return ' '
	}
	if unicode.IsControl(ch) {
		return ' '
	}
	return ch
}

func safeCell(vt vt10x.Terminal, col, row int) (g vt10x.Glyph, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if vt == nil {
		return g, false
	}
	return vt.Cell(col, row), true
}
