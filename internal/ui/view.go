package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dsadojo/internal/term"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

type applyMsg struct {
	fn func(*Root)
}

type drawMsg struct{}
type clockMsg time.Time
type animateMsg time.Time

type practicalKeyMap struct {
	Statement  key.Binding
	History    key.Binding
	Reset      key.Binding
	Run        key.Binding
	Submit     key.Binding
	Stop       key.Binding
	Focus      key.Binding
	Scrollback key.Binding
	Menu       key.Binding
	Save       key.Binding
}

func (k practicalKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Submit, k.Focus, k.Statement, k.Menu}
}

func (k practicalKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Statement, k.History, k.Reset, k.Save},
		{k.Run, k.Submit, k.Stop},
		{k.Focus, k.Scrollback, k.Menu},
	}
}

type Root struct {
	theme        Theme
	ascii        bool
	console      *term.Console
	ctrl         Controller
	styleVariant string
	motionLevel  string

	mu      sync.Mutex
	program *tea.Program
	running bool

	screen Screen
	layout LayoutMode
	cols   int
	rows   int

	forceTooSmall bool
	tooSmallCols  int
	tooSmallRows  int

	mainMenu    MainMenuState
	catalog     []SetSummary
	selSet      string
	selQuestion string
	practical   PracticalState
	save        SaveState
	result      ResultState
	histRows    []HistoryRow
	setupMsg    string
	setupDetail string
	statusFlash string
	submitting  bool

	statementText string
	previewTitle  string
	previewLines  []string
	infoTitle     string
	infoText      string
	resetFile     string

	statementOpen bool
	historyOpen   bool
	menuOpen      bool
	closeOpen     bool
	resetOpen     bool
	previewOpen   bool
	infoOpen      bool

	mainMenuIndex int
	setIndex      int
	questionIndex int
	catalogFocus  int
	menuIndex     int
	historyIndex  int
	resetIndex    int
	closeIndex    int
	resultScroll  int
	stmtScroll    int

	editor         textarea.Model
	activeFile     string
	activeLocked   bool
	lockedLines    []string
	consoleFocused bool

	help       help.Model
	keymap     practicalKeyMap
	scoreBar   progress.Model
	submitSpin spinner.Model
	markdown   *glamour.TermRenderer
	logger     *clog.Logger
	overlayPos float64
	overlayVel float64
	spring     harmonica.Spring

	drawPending atomic.Bool

	consoleCursorX    int
	consoleCursorY    int
	consoleCursorShow bool

	lastInputEvent string
}

type Options struct {
	ASCIIOnly    bool
	ThemeVariant string
	MotionLevel  string
	Console      *term.Console
}

func New(opts Options) *Root {
	logger := clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "dsadojo-ui", Level: clog.WarnLevel})

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(76),
	)
	if err != nil {
		renderer = nil
	}

	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	motionLevel := normalizeMotionLevel(opts.MotionLevel)
	styleVariant := normalizeStyleVariant(opts.ThemeVariant)
	theme := ThemeForVariant(styleVariant)
	spring := harmonica.NewSpring(harmonica.FPS(60), 10.0, 0.8)
	switch motionLevel {
	case "reduced":
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.92)
	case "off":
		spring = harmonica.NewSpring(harmonica.FPS(60), 1000.0, 1.0)
	}
	scoreBar := progress.New(
		progress.WithWidth(24),
		progress.WithColors(lipgloss.Color("#5EC2FF"), lipgloss.Color("#79E6A6"), lipgloss.Color("#F2D16B")),
		progress.WithScaled(true),
	)
	if motionLevel == "off" {
		scoreBar.SetSpringOptions(1000.0, 1.0)
	}
	submitSpin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)

	ed := textarea.New()
	ed.Prompt = ""
	ed.ShowLineNumbers = true
	ed.CharLimit = 0
	ed.Focus()

	r := &Root{
		theme:        theme,
		ascii:        opts.ASCIIOnly,
		console:      opts.Console,
		styleVariant: styleVariant,
		motionLevel:  motionLevel,
		screen:       ScreenMainMenu,
		layout:       LayoutWide,
		cols:         120,
		rows:         30,
		editor:       ed,
		help:         h,
		scoreBar:     scoreBar,
		submitSpin:   submitSpin,
		markdown:     renderer,
		logger:       logger,
		spring:       spring,
	}
	r.keymap = practicalKeyMap{
		Statement:  key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "Statement")),
		History:    key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", "History")),
		Reset:      key.NewBinding(key.WithKeys("f3"), key.WithHelp("F3", "Reset file")),
		Run:        key.NewBinding(key.WithKeys("f5"), key.WithHelp("F5", "Run")),
		Submit:     key.NewBinding(key.WithKeys("f6"), key.WithHelp("F6", "Submit")),
		Stop:       key.NewBinding(key.WithKeys("f7"), key.WithHelp("F7", "Stop")),
		Focus:      key.NewBinding(key.WithKeys("f8"), key.WithHelp("F8", "Focus")),
		Scrollback: key.NewBinding(key.WithKeys("f9"), key.WithHelp("F9", "Scrollback")),
		Menu:       key.NewBinding(key.WithKeys("f10"), key.WithHelp("F10", "Menu")),
		Save:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("Ctrl+S", "Save")),
	}
	r.syncEditorSize()
	return r
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(clockTickCmd(), animateTickCmd(), spinnerTickCmd(r.submitSpin))
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		if r.layout != LayoutTooSmall {
			r.forceTooSmall = false
		}
		r.syncEditorSize()
		if r.screen == ScreenPractical {
			r.dispatchController(func(c Controller) { c.OnResize(msg.Width, msg.Height) })
		}
		return r, nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return r, r.animateIfNeeded()
	case drawMsg:
		r.drawPending.Store(false)
		return r, nil
	case clockMsg:
		return r, clockTickCmd()
	case animateMsg:
		target := 0.0
		if r.statementOpen {
			target = 1.0
		}
		r.overlayPos, r.overlayVel = r.spring.Update(r.overlayPos, r.overlayVel, target)
		if r.shouldAnimate(target) {
			return r, animateTickCmd()
		}
		r.overlayPos = target
		r.overlayVel = 0
		return r, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.submitSpin, cmd = r.submitSpin.Update(msg)
		return r, cmd
	case tea.PasteMsg:
		return r.handlePaste(msg)
	case tea.ClipboardMsg:
		return r.handlePaste(tea.PasteMsg{Content: msg.Content})
	case tea.MouseClickMsg:
		return r.handleMouseClick(msg)
	case tea.MouseWheelMsg:
		return r.handleMouseWheel(msg)
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	return r, nil
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := maxInt(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			if r.statusFlash == "" {
				r.statusFlash = "Recovered UI panic"
			}
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, maxInt(1, width-1))))
		}
	}()

	if r.cols < 1 {
		r.cols = 120
	}
	if r.rows < 1 {
		r.rows = 30
	}
	r.consoleCursorShow = false

	var base string
	switch r.screen {
	case ScreenMainMenu:
		base = r.renderMainMenu()
	case ScreenQuestionSelect:
		base = r.renderQuestionSelect()
	default:
		base = r.renderPractical()
	}

	if overlay := r.renderOverlay(); overlay != "" {
		base = composeOverlay(base, overlay, r.cols, r.rows)
	}
	v := tea.NewView(base)
	v.AltScreen = true
	v.MouseMode = r.currentMouseMode()
	if r.consoleCursorShow && r.consoleFocused && !r.overlayActive() && r.screen == ScreenPractical {
		v.Cursor = tea.NewCursor(r.consoleCursorX, r.consoleCursorY)
	}
	v.DisableBracketedPasteMode = false
	return v
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r)
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetScreen(screen Screen) {
	r.apply(func(m *Root) {
		m.screen = screen
		if screen == ScreenPractical {
			if m.practical.StartedAt.IsZero() {
				m.practical.StartedAt = time.Now()
			}
			m.syncEditorSize()
			cols, rows := m.cols, m.rows
			m.dispatchController(func(c Controller) { c.OnResize(cols, rows) })
		}
	})
}

func (r *Root) SetTheme(variant string) {
	r.apply(func(m *Root) {
		m.styleVariant = normalizeStyleVariant(variant)
		m.theme = ThemeForVariant(m.styleVariant)
		m.submitSpin = spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(m.theme.Accent),
		)
	})
}

func (r *Root) SetMainMenuState(state MainMenuState) {
	r.apply(func(m *Root) {
		m.mainMenu = state
	})
}

func (r *Root) SetCatalog(sets []SetSummary) {
	r.apply(func(m *Root) {
		m.catalog = append([]SetSummary(nil), sets...)
		m.syncCatalogSelection()
	})
}

func (r *Root) SetQuestionSelection(setID, questionID string) {
	r.apply(func(m *Root) {
		m.selSet = setID
		m.selQuestion = questionID
		m.syncCatalogSelection()
	})
}

func (r *Root) SetPracticalState(s PracticalState) {
	r.apply(func(m *Root) {
		if s.StartedAt.IsZero() {
			s.StartedAt = m.practical.StartedAt
		}
		m.practical = s
	})
}

func (r *Root) SetActiveFileContent(filename, content string, locked bool) {
	r.apply(func(m *Root) {
		m.activeFile = filename
		m.activeLocked = locked
		if locked {
			m.lockedLines = m.highlightLines(filename, content)
			return
		}
		m.lockedLines = nil
		m.editor.SetValue(content)
	})
}

func (r *Root) SetSaveState(s SaveState) {
	r.apply(func(m *Root) {
		m.save = s
	})
}

func (r *Root) SetStatement(markdown string) {
	r.apply(func(m *Root) {
		text := strings.TrimSpace(markdown)
		if m.markdown != nil && text != "" {
			if rendered, err := m.markdown.Render(text); err == nil {
				text = strings.TrimRight(rendered, "\n")
			}
		}
		m.statementText = text
		m.stmtScroll = 0
	})
}

func (r *Root) SetStatementOpen(open bool) {
	r.apply(func(m *Root) {
		m.statementOpen = open
		if !open {
			m.stmtScroll = 0
		}
		if m.motionLevel == "off" {
			if open {
				m.overlayPos = 1
			} else {
				m.overlayPos = 0
			}
			m.overlayVel = 0
		}
	})
}

func (r *Root) SetHistory(hs HistoryState) {
	r.apply(func(m *Root) {
		m.historyOpen = hs.Open
		m.histRows = append([]HistoryRow(nil), hs.Rows...)
		if m.historyIndex >= len(m.histRows) {
			m.historyIndex = maxInt(0, len(m.histRows)-1)
		}
		if !hs.Open {
			m.historyIndex = 0
		}
	})
}

func (r *Root) SetResult(state ResultState) {
	r.apply(func(m *Root) {
		m.result = state
		m.resultScroll = 0
	})
}

func (r *Root) SetMenuOpen(open bool) {
	r.apply(func(m *Root) {
		m.menuOpen = open
		if !open {
			m.menuIndex = 0
		}
	})
}

func (r *Root) SetCloseConfirmOpen(open bool) {
	r.apply(func(m *Root) {
		m.closeOpen = open
		if !open {
			m.closeIndex = 0
		}
	})
}

func (r *Root) SetResetConfirmOpen(filename string, open bool) {
	r.apply(func(m *Root) {
		m.resetFile = filename
		m.resetOpen = open
		if !open {
			m.resetIndex = 0
		}
	})
}

func (r *Root) SetFilePreview(filename, content string, open bool) {
	r.apply(func(m *Root) {
		m.previewTitle = filename
		m.previewOpen = open
		if open {
			m.previewLines = m.highlightLines(filename, content)
		} else {
			m.previewLines = nil
		}
	})
}

func (r *Root) SetInfo(title, text string, open bool) {
	r.apply(func(m *Root) {
		m.infoTitle = title
		m.infoText = text
		m.infoOpen = open
	})
}

func (r *Root) SetConsoleFocused(focused bool) {
	r.apply(func(m *Root) {
		m.setConsoleFocused(focused)
	})
}

func (r *Root) SetSubmitting(submitting bool) {
	r.apply(func(m *Root) {
		m.submitting = submitting
	})
}

func (r *Root) SetTooSmall(cols, rows int) {
	r.apply(func(m *Root) {
		m.forceTooSmall = true
		m.tooSmallCols = cols
		m.tooSmallRows = rows
	})
}

func (r *Root) SetSetupError(msg, details string) {
	r.apply(func(m *Root) {
		m.setupMsg = msg
		m.setupDetail = details
		m.screen = ScreenMainMenu
	})
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

func (r *Root) RequestDraw() {
	r.mu.Lock()
	p := r.program
	running := r.running
	r.mu.Unlock()
	if !running || p == nil {
		return
	}
	if !r.drawPending.CompareAndSwap(false, true) {
		return
	}
	time.AfterFunc(16*time.Millisecond, func() {
		r.mu.Lock()
		p := r.program
		running := r.running
		r.mu.Unlock()
		if !running || p == nil {
			r.drawPending.Store(false)
			return
		}
		p.Send(drawMsg{})
	})
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	if !running || p == nil {
		fn(r)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	p.Send(applyMsg{fn: fn})
}

func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	go fn(ctrl)
}

func (r *Root) setConsoleFocused(focused bool) {
	r.consoleFocused = focused
	if focused {
		r.editor.Blur()
	} else {
		r.editor.Focus()
	}
}

func (r *Root) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))

	if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+q"))) {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return r, nil
	}

	if r.overlayActive() {
		return r.handleOverlayKey(msg)
	}

	switch r.screen {
	case ScreenMainMenu:
		return r.handleMainMenuKey(msg)
	case ScreenQuestionSelect:
		return r.handleQuestionSelectKey(msg)
	default:
		return r.handlePracticalKey(msg)
	}
}

func (r *Root) handlePaste(msg tea.PasteMsg) (tea.Model, tea.Cmd) {
	r.recordInputEvent(fmt.Sprintf("paste:%d", len(msg.Content)))

	if r.screen != ScreenPractical || r.overlayActive() || msg.Content == "" {
		return r, nil
	}
	if r.consoleFocused {
		if r.console != nil && r.console.InScrollback() {
			r.console.ToggleScrollback()
		}
		content := term.NormalizePaste(msg.Content)
		if content == "" {
			return r, nil
		}
		data := []byte(content)
		r.dispatchController(func(c Controller) { c.OnConsoleInput(data) })
		return r, nil
	}
	if r.activeLocked {
		r.statusFlash = "File is read-only"
		return r, nil
	}
	r.editor.InsertString(term.NormalizePaste(msg.Content))
	r.dispatchEditorChange()
	return r, nil
}

func (r *Root) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	mouse := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("mouse_click:%d,%d button:%v", mouse.X, mouse.Y, mouse.Button))

	if mouse.Button != tea.MouseLeft {
		return r, nil
	}
	if r.overlayActive() {
		if r.topOverlay() == "menu" {
			return r.handleMenuMouseClick(mouse.X, mouse.Y)
		}
		return r, nil
	}
	switch r.screen {
	case ScreenMainMenu:
		return r.handleMainMenuMouseClick(mouse.X, mouse.Y)
	case ScreenQuestionSelect:
		return r.handleQuestionSelectMouseClick(mouse.X, mouse.Y)
	}
	return r, nil
}

func (r *Root) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	mouse := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("mouse_wheel:%d,%d button:%v", mouse.X, mouse.Y, mouse.Button))

	delta := 0
	if mouse.Button == tea.MouseWheelUp {
		delta = -1
	} else if mouse.Button == tea.MouseWheelDown {
		delta = 1
	}
	if delta == 0 {
		return r, nil
	}

	switch {
	case r.overlayActive() && r.topOverlay() == "history" && len(r.histRows) > 0:
		r.historyIndex = clampInt(r.historyIndex+delta, 0, len(r.histRows)-1)
	case r.overlayActive() && r.topOverlay() == "result":
		r.resultScroll = maxInt(0, r.resultScroll+delta*3)
	case r.console != nil && r.screen == ScreenPractical && !r.overlayActive():
		if !r.console.InScrollback() {
			r.console.ToggleScrollback()
		}
		r.console.Scroll(delta * 3)
	}
	return r, nil
}

func (r *Root) handleMainMenuMouseClick(x, y int) (tea.Model, tea.Cmd) {
	items := r.mainMenuItems()
	if len(items) == 0 {
		return r, nil
	}
	leftW := minInt(36, maxInt(24, r.cols/3))
	if x < 1 || x >= leftW-1 {
		return r, nil
	}
	idx := y - 2
	if idx < 0 || idx >= len(items) {
		return r, nil
	}
	r.mainMenuIndex = idx
	r.activateMainMenuSelection()
	return r, nil
}

func (r *Root) handleQuestionSelectMouseClick(x, y int) (tea.Model, tea.Cmd) {
	if y < 2 {
		return r, nil
	}
	leftW := minInt(34, maxInt(24, r.cols/4))
	middleW := minInt(50, maxInt(30, r.cols/3))
	idx := y - 2

	if x >= 1 && x < leftW-1 {
		if len(r.catalog) == 0 {
			return r, nil
		}
		r.catalogFocus = 0
		r.setIndex = wrapIndex(idx, len(r.catalog))
		r.syncSelectionFromIndices()
		return r, nil
	}
	if x >= leftW+1 && x < leftW+middleW-1 {
		qs := r.selectedSetQuestions()
		if len(qs) == 0 {
			return r, nil
		}
		r.catalogFocus = 1
		r.questionIndex = wrapIndex(idx, len(qs))
		r.syncSelectionFromIndices()
		r.startSelectedQuestion()
		return r, nil
	}
	return r, nil
}

func (r *Root) handleMenuMouseClick(x, y int) (tea.Model, tea.Cmd) {
	spec, ok := r.overlaySpec("menu")
	if !ok {
		return r, nil
	}
	if x < spec.startCol+1 || x >= spec.startCol+spec.width-1 || y < spec.startRow+1 || y >= spec.startRow+spec.height-1 {
		return r, nil
	}
	items := r.menuItems()
	row := y - (spec.startRow + 1)
	if row >= 0 && row < len(items) {
		r.menuIndex = row
		r.activateMenuItem(items[row])
	}
	return r, nil
}

func (r *Root) handleOverlayKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Code == tea.KeyF10 {
		if r.topOverlay() == "menu" {
			r.menuOpen = false
			r.dispatchController(func(c Controller) { c.OnMenu() })
			return r, nil
		}
		r.dismissAllOverlays()
		r.menuOpen = true
		r.dispatchController(func(c Controller) { c.OnMenu() })
		return r, nil
	}

	if (msg.Code == 'c' || msg.Code == 'C') && msg.Mod&tea.ModCtrl != 0 {
		text := r.overlayCopyText()
		if strings.TrimSpace(text) == "" {
			return r, nil
		}
		r.statusFlash = "Copied overlay text"
		return r, tea.SetClipboard(text)
	}

	if msg.Code == tea.KeyEsc || msg.Code == tea.KeyEscape ||
		(msg.Mod == 0 && (msg.Code == 'q' || msg.Code == 'Q')) {
		r.dismissTopOverlay()
		return r, nil
	}

	switch r.topOverlay() {
	case "close":
		switch msg.Code {
		case tea.KeyLeft, tea.KeyUp:
			r.closeIndex = 0
		case tea.KeyRight, tea.KeyDown, tea.KeyTab:
			r.closeIndex = 1
		case tea.KeyEnter:
			discard := r.closeIndex == 1
			r.closeOpen = false
			r.dispatchController(func(c Controller) { c.OnCloseConfirm(discard) })
		}
	case "reset":
		switch msg.Code {
		case tea.KeyLeft, tea.KeyUp:
			r.resetIndex = 0
		case tea.KeyRight, tea.KeyDown, tea.KeyTab:
			r.resetIndex = 1
		case tea.KeyEnter:
			confirmed := r.resetIndex == 1
			r.resetOpen = false
			r.dispatchController(func(c Controller) { c.OnResetFileConfirm(confirmed) })
		}
	case "result":
		switch msg.Code {
		case tea.KeyUp:
			r.resultScroll = maxInt(0, r.resultScroll-1)
		case tea.KeyDown:
			r.resultScroll++
		case tea.KeyPgUp:
			r.resultScroll = maxInt(0, r.resultScroll-10)
		case tea.KeyPgDown:
			r.resultScroll += 10
		case tea.KeyEnter:
			r.result = ResultState{}
		}
	case "history":
		switch msg.Code {
		case tea.KeyUp:
			r.historyIndex = wrapIndex(r.historyIndex-1, len(r.histRows))
		case tea.KeyDown, tea.KeyTab:
			r.historyIndex = wrapIndex(r.historyIndex+1, len(r.histRows))
		case tea.KeyEnter:
			if len(r.histRows) > 0 {
				id := r.histRows[wrapIndex(r.historyIndex, len(r.histRows))].EntryID
				r.dispatchController(func(c Controller) { c.OnRestoreHistory(id) })
			}
		}
	case "menu":
		items := r.menuItems()
		switch msg.Code {
		case tea.KeyUp:
			r.menuIndex = wrapIndex(r.menuIndex-1, len(items))
		case tea.KeyDown, tea.KeyTab:
			r.menuIndex = wrapIndex(r.menuIndex+1, len(items))
		case tea.KeyEnter:
			r.activateMenuItem(items[r.menuIndex])
		}
	}
	return r, nil
}

func (r *Root) dismissTopOverlay() {
	switch r.topOverlay() {
	case "close":
		r.closeOpen = false
		r.dispatchController(func(c Controller) { c.OnCloseConfirm(false) })
	case "reset":
		r.resetOpen = false
		r.dispatchController(func(c Controller) { c.OnResetFileConfirm(false) })
	case "preview":
		r.previewOpen = false
		r.previewLines = nil
	case "info":
		r.infoOpen = false
		r.infoText = ""
		r.infoTitle = ""
	case "result":
		r.result = ResultState{}
	case "history":
		r.historyOpen = false
		r.dispatchController(func(c Controller) { c.OnShowHistory() })
	case "menu":
		r.menuOpen = false
		r.dispatchController(func(c Controller) { c.OnMenu() })
	}
}

func (r *Root) dismissAllOverlays() {
	for i := 0; i < 8 && r.overlayActive(); i++ {
		r.dismissTopOverlay()
	}
}

func (r *Root) handleMainMenuKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	items := r.mainMenuItems()
	switch msg.Code {
	case tea.KeyUp:
		r.mainMenuIndex = wrapIndex(r.mainMenuIndex-1, len(items))
	case tea.KeyDown, tea.KeyTab:
		r.mainMenuIndex = wrapIndex(r.mainMenuIndex+1, len(items))
	case tea.KeyEnter:
		r.activateMainMenuSelection()
	case tea.KeyEsc:
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
	return r, nil
}

func (r *Root) handleQuestionSelectKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Code == tea.KeyEsc {
		r.dispatchController(func(c Controller) { c.OnBackToMainMenu() })
		return r, nil
	}
	if msg.Code == tea.KeyTab && msg.Mod&tea.ModShift != 0 {
		r.catalogFocus = 0
		return r, nil
	}

	switch msg.Code {
	case tea.KeyLeft:
		r.catalogFocus = 0
	case tea.KeyRight, tea.KeyTab:
		r.catalogFocus = 1
	case tea.KeyUp:
		if r.catalogFocus == 0 {
			r.setIndex = wrapIndex(r.setIndex-1, len(r.catalog))
		} else {
			r.questionIndex = wrapIndex(r.questionIndex-1, len(r.selectedSetQuestions()))
		}
		r.syncSelectionFromIndices()
	case tea.KeyDown:
		if r.catalogFocus == 0 {
			r.setIndex = wrapIndex(r.setIndex+1, len(r.catalog))
		} else {
			r.questionIndex = wrapIndex(r.questionIndex+1, len(r.selectedSetQuestions()))
		}
		r.syncSelectionFromIndices()
	case tea.KeyEnter:
		if r.catalogFocus == 0 {
			r.catalogFocus = 1
			return r, nil
		}
		r.startSelectedQuestion()
	}
	return r, nil
}

func (r *Root) handlePracticalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if (msg.Code == tea.KeyInsert && msg.Mod&tea.ModShift != 0) ||
		((msg.Code == 'v' || msg.Code == 'V') && msg.Mod&tea.ModCtrl != 0 && msg.Mod&tea.ModShift != 0) {
		return r, func() tea.Msg { return tea.ReadClipboard() }
	}

	switch msg.Code {
	case tea.KeyF1:
		r.dispatchController(func(c Controller) { c.OnShowStatement() })
		return r, nil
	case tea.KeyF2:
		r.dispatchController(func(c Controller) { c.OnShowHistory() })
		return r, nil
	case tea.KeyF3:
		r.dispatchController(func(c Controller) { c.OnResetFile() })
		return r, nil
	case tea.KeyF5:
		r.dispatchController(func(c Controller) { c.OnRun() })
		return r, nil
	case tea.KeyF6:
		r.dispatchController(func(c Controller) { c.OnSubmit() })
		return r, nil
	case tea.KeyF7:
		r.dispatchController(func(c Controller) { c.OnStopRun() })
		return r, nil
	case tea.KeyF8:
		r.setConsoleFocused(!r.consoleFocused)
		return r, nil
	case tea.KeyF9:
		if r.console != nil {
			r.console.ToggleScrollback()
		}
		return r, nil
	case tea.KeyF10:
		r.dispatchController(func(c Controller) { c.OnMenu() })
		return r, nil
	case tea.KeyEsc:
		if r.statementOpen {
			r.dispatchController(func(c Controller) { c.OnShowStatement() })
			return r, nil
		}
		if r.console != nil && r.console.InScrollback() {
			r.console.ToggleScrollback()
			return r, nil
		}
		if r.consoleFocused {
			r.setConsoleFocused(false)
			return r, nil
		}
		r.dispatchController(func(c Controller) { c.OnClosePractical() })
		return r, nil
	}

	if key.Matches(msg, r.keymap.Save) {
		r.dispatchController(func(c Controller) { c.OnManualSave() })
		return r, nil
	}
	if msg.Mod&tea.ModCtrl != 0 && (msg.Code == tea.KeyRight || msg.Code == tea.KeyLeft) {
		if next := r.adjacentTab(msg.Code == tea.KeyRight); next != "" {
			r.dispatchController(func(c Controller) { c.OnSelectFile(next) })
		}
		return r, nil
	}
	if msg.Mod&tea.ModCtrl != 0 && (msg.Code == 'p' || msg.Code == 'P') {
		name := r.activeFile
		if name != "" {
			r.dispatchController(func(c Controller) { c.OnPreviewFile(name) })
		}
		return r, nil
	}

	if r.statementOpen {
		switch msg.Code {
		case tea.KeyPgUp:
			r.stmtScroll = maxInt(0, r.stmtScroll-10)
			return r, nil
		case tea.KeyPgDown:
			r.stmtScroll += 10
			return r, nil
		}
	}

	if r.console != nil {
		if msg.Code == tea.KeyPgUp && msg.Mod&tea.ModShift != 0 {
			if !r.console.InScrollback() {
				r.console.ToggleScrollback()
			}
			r.console.Scroll(-10)
			return r, nil
		}
		if msg.Code == tea.KeyPgDown && msg.Mod&tea.ModShift != 0 {
			if !r.console.InScrollback() {
				r.console.ToggleScrollback()
			}
			r.console.Scroll(10)
			return r, nil
		}
		if r.console.InScrollback() {
			switch msg.Code {
			case tea.KeyUp:
				r.console.Scroll(-1)
			case tea.KeyDown:
				r.console.Scroll(1)
			case tea.KeyPgUp:
				r.console.Scroll(-10)
			case tea.KeyPgDown:
				r.console.Scroll(10)
			}
			return r, nil
		}
	}

	if r.consoleFocused {
		if data := term.EncodeKeyPressToBytes(msg); len(data) > 0 {
			r.dispatchController(func(c Controller) { c.OnConsoleInput(data) })
		}
		return r, nil
	}

	if r.activeLocked {
		if msg.Text != "" || msg.Code == tea.KeyBackspace || msg.Code == tea.KeyEnter || msg.Code == tea.KeyDelete {
			r.statusFlash = "File is read-only"
		}
		return r, nil
	}

	before := r.editor.Value()
	var cmd tea.Cmd
	r.editor, cmd = r.editor.Update(msg)
	if r.editor.Value() != before {
		r.dispatchEditorChange()
	}
	return r, cmd
}

func (r *Root) dispatchEditorChange() {
	name := r.activeFile
	content := r.editor.Value()
	if name == "" {
		return
	}
	r.dispatchController(func(c Controller) { c.OnEditorChanged(name, content) })
}

func (r *Root) adjacentTab(forward bool) string {
	tabs := r.practical.Tabs
	if len(tabs) == 0 {
		return ""
	}
	cur := 0
	for i, t := range tabs {
		if t.Filename == r.activeFile {
			cur = i
			break
		}
	}
	if forward {
		return tabs[wrapIndex(cur+1, len(tabs))].Filename
	}
	return tabs[wrapIndex(cur-1, len(tabs))].Filename
}

func (r *Root) renderMainMenu() string {
	w, h := r.cols, r.rows
	header := r.theme.Header.Width(maxInt(1, w)).Render("DSA Dojo")

	items := r.mainMenuItems()
	menuLines := make([]string, len(items))
	for i, item := range items {
		prefix := "  "
		if i == r.mainMenuIndex {
			prefix = "> "
		}
		menuLines[i] = prefix + item.Label
	}
	left := r.drawPanel("Main Menu", menuLines, minInt(36, maxInt(24, w/3)), maxInt(8, h-2))
	rightText := r.mainMenuInfoText(items)
	right := r.drawPanel("Overview", strings.Split(strings.TrimSuffix(rightText, "\n"), "\n"), maxInt(20, w-lipgloss.Width(left)), maxInt(8, h-2))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	if r.setupMsg != "" {
		setup := r.drawPanel("Setup", strings.Split(strings.TrimSpace(r.setupMsg+"\n\n"+r.setupDetail), "\n"), minInt(100, w), 10)
		body = body + "\n" + setup
	}
	return header + "\n" + body
}

func (r *Root) renderQuestionSelect() string {
	w, h := r.cols, r.rows
	header := r.theme.Header.Width(maxInt(1, w)).Render("DSA Dojo - Question Select")

	sets := make([]string, len(r.catalog))
	for i, s := range r.catalog {
		prefix := "  "
		if r.catalogFocus == 0 && i == r.setIndex {
			prefix = "> "
		}
		sets[i] = fmt.Sprintf("%s%s (%d)", prefix, s.Name, len(s.Questions))
	}
	if len(sets) == 0 {
		sets = []string{"No question sets loaded."}
	}
	left := r.drawPanel("Sets", sets, minInt(34, maxInt(24, w/4)), maxInt(8, h-2))

	qs := r.selectedSetQuestions()
	qLines := make([]string, len(qs))
	for i, q := range qs {
		prefix := "  "
		if r.catalogFocus == 1 && i == r.questionIndex {
			prefix = "> "
		}
		mark := " "
		if q.Done {
			mark = "v"
			if !r.ascii {
				mark = "✓"
			}
		}
		qLines[i] = fmt.Sprintf("%s%s %s", prefix, mark, q.Title)
	}
	if len(qLines) == 0 {
		qLines = []string{"No questions in this set."}
	}
	middleW := minInt(50, maxInt(30, w/3))
	middle := r.drawPanel("Questions", qLines, middleW, maxInt(8, h-2))

	detail := r.questionDetailText()
	right := r.drawPanel("Details", strings.Split(strings.TrimSuffix(detail, "\n"), "\n"), maxInt(22, w-lipgloss.Width(left)-lipgloss.Width(middle)), maxInt(8, h-2))

	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, middle, right)
}

func (r *Root) renderPractical() string {
	w, h := r.cols, r.rows
	mode := DetermineLayoutMode(w, h)
	if r.forceTooSmall {
		mode = LayoutTooSmall
	}
	r.layout = mode

	if mode == LayoutTooSmall {
		cols := w
		rows := h
		if r.forceTooSmall {
			cols = r.tooSmallCols
			rows = r.tooSmallRows
		}
		msg := []string{
			"Terminal too small",
			fmt.Sprintf("Current: %dx%d", cols, rows),
			fmt.Sprintf("Minimum: %dx%d", minCols, minRows),
			"Resize the terminal to continue.",
		}
		panel := r.drawPanel("Resize Required", msg, minInt(60, w), minInt(12, h))
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, panel)
	}

	header := r.headerText()
	status := r.statusText()
	bodyH := maxInt(3, h-2)
	bodyY := 1

	var body string
	if mode == LayoutWide {
		edW := editorPanelWidth(w)
		editorPanel := r.renderEditorPanel(edW, bodyH)
		consolePanel := r.renderConsolePanel(maxInt(20, w-edW), bodyH, edW, bodyY)
		body = lipgloss.JoinHorizontal(lipgloss.Top, editorPanel, consolePanel)
	} else {
		_, ch := ConsolePanelSize(w, h, mode)
		consoleH := ch + 2
		edH := maxInt(5, bodyH-consoleH)
		editorPanel := r.renderEditorPanel(w, edH)
		consolePanel := r.renderConsolePanel(w, consoleH, 0, bodyY+edH)
		body = editorPanel + "\n" + consolePanel
	}

	base := header + "\n" + body + "\n" + status
	if drawer := r.renderStatementDrawer(bodyH); drawer != "" {
		base = composeOverlayAt(base, drawer, w, h, bodyY, 0)
	}
	return base
}

func (r *Root) renderEditorPanel(width, height int) string {
	innerW := maxInt(1, width-2)
	innerH := maxInt(1, height-2)

	lines := make([]string, 0, innerH)
	lines = append(lines, r.tabBarLine(innerW))

	body := r.lockedLines
	if !r.activeLocked {
		body = strings.Split(r.editor.View(), "\n")
	}
	for i := 0; i < innerH-1; i++ {
		if i < len(body) {
			lines = append(lines, body[i])
		} else {
			lines = append(lines, "")
		}
	}

	border := r.theme.PanelBorder
	if !r.consoleFocused {
		border = r.theme.Accent
	}
	title := "Editor"
	if r.activeLocked {
		title = "Editor (read-only)"
	}
	return r.drawPanelWith(title, lines, width, height, border)
}

func (r *Root) tabBarLine(width int) string {
	if len(r.practical.Tabs) == 0 {
		return trimForWidth(r.activeFile, width)
	}
	parts := make([]string, 0, len(r.practical.Tabs))
	for _, t := range r.practical.Tabs {
		label := t.Filename
		if t.Locked {
			label += " [ro]"
		}
		switch {
		case t.Filename == r.activeFile:
			label = r.theme.TabActive.Render(label)
		case t.Locked:
			label = r.theme.TabLocked.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func (r *Root) renderConsolePanel(width, height, originX, originY int) string {
	innerW := maxInt(1, width-2)
	innerH := maxInt(1, height-2)
	lines := make([]string, innerH)
	scrollback := false
	if r.console != nil {
		snap := r.console.Snapshot(innerW, innerH)
		scrollback = snap.Scrollback
		src := snap.Lines
		if !r.ascii && !snap.Scrollback && len(snap.StyledLines) > 0 {
			src = snap.StyledLines
		}
		copy(lines, src)
		if snap.CursorShow && !snap.Scrollback {
			x := originX + 1 + snap.CursorX
			y := originY + 1 + snap.CursorY
			if x >= 0 && x < r.cols && y >= 0 && y < r.rows {
				r.consoleCursorX = x
				r.consoleCursorY = y
				r.consoleCursorShow = true
			}
		}
	} else {
		lines[0] = "No run session"
	}
	for i := range lines {
		lines[i] = padANSI(lines[i], innerW)
	}

	border := r.theme.ConsoleBorder
	if r.consoleFocused {
		border = r.theme.Accent
	}
	title := "Console"
	if scrollback {
		title = "Console (scrollback)"
	}
	return r.drawPanelWith(title, lines, width, height, border)
}

func (r *Root) renderStatementDrawer(bodyHeight int) string {
	progress := r.overlayPos
	if r.statementOpen && progress < 0.2 {
		progress = 0.2
	}
	if !r.statementOpen && progress < 0.05 {
		return ""
	}
	fullW := minInt(maxInt(46, r.cols*2/5), maxInt(46, r.cols-20))
	drawW := int(float64(fullW) * maxFloat(progress, 0))
	if drawW < 20 {
		return ""
	}
	text := r.statementText
	if strings.TrimSpace(text) == "" {
		text = "No statement for this question."
	}
	all := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if r.stmtScroll > maxInt(0, len(all)-1) {
		r.stmtScroll = maxInt(0, len(all)-1)
	}
	lines := all[r.stmtScroll:]
	lines = append(lines, "", "Esc closes  PgUp/PgDn scroll")
	return r.drawPanel("Statement", lines, drawW, bodyHeight)
}

func (r *Root) renderOverlay() string {
	spec, ok := r.overlaySpec(r.topOverlay())
	if !ok {
		return ""
	}
	return r.drawPanel(spec.title, spec.lines, spec.width, spec.height)
}

type overlaySpec struct {
	title    string
	lines    []string
	width    int
	height   int
	startRow int
	startCol int
}

func (r *Root) overlaySpec(top string) (overlaySpec, bool) {
	if top == "" {
		return overlaySpec{}, false
	}
	w := minInt(maxInt(56, r.cols-12), r.cols)
	h := minInt(maxInt(10, r.rows/2), maxInt(8, r.rows-4))

	var title string
	var lines []string
	switch top {
	case "close":
		title = "Unsaved Changes"
		lines = []string{"You have unsaved changes. Close this question?", ""}
		labels := []string{"Keep editing", "Discard changes"}
		for i, label := range labels {
			prefix := "  "
			if i == r.closeIndex {
				prefix = "> "
			}
			lines = append(lines, prefix+label)
		}
	case "reset":
		title = "Confirm Reset"
		lines = []string{fmt.Sprintf("Reset %s to its original content?", firstNonEmptyStr(r.resetFile, "this file")), ""}
		labels := []string{"Cancel", "Reset"}
		for i, label := range labels {
			prefix := "  "
			if i == r.resetIndex {
				prefix = "> "
			}
			lines = append(lines, prefix+label)
		}
	case "preview":
		title = firstNonEmptyStr(r.previewTitle, "Preview")
		lines = append(lines, r.previewLines...)
		lines = append(lines, "", "Ctrl+C: Copy text", "Esc/q: Close")
	case "info":
		title = firstNonEmptyStr(r.infoTitle, "Info")
		lines = strings.Split(strings.TrimSuffix(r.infoText, "\n"), "\n")
		lines = append(lines, "", "Ctrl+C: Copy text", "Esc/q: Close")
	case "result":
		title = "Results"
		all := strings.Split(strings.TrimSuffix(r.resultText(), "\n"), "\n")
		if r.resultScroll > maxInt(0, len(all)-1) {
			r.resultScroll = maxInt(0, len(all)-1)
		}
		lines = all[r.resultScroll:]
		lines = append(lines, "", "Up/Down: Scroll  Ctrl+C: Copy  Esc: Close")
	case "history":
		title = "History"
		lines = r.historyLines()
		lines = append(lines, "", "Enter: Restore  Ctrl+C: Copy  Esc: Close")
	case "menu":
		title = "Menu"
		items := r.menuItems()
		for i, item := range items {
			prefix := "  "
			if i == r.menuIndex {
				prefix = "> "
			}
			lines = append(lines, prefix+item.Label)
		}
	default:
		return overlaySpec{}, false
	}
	if len(lines) == 0 {
		lines = []string{"(empty)"}
	}
	needH := len(lines) + 2
	maxH := maxInt(8, r.rows-4)
	if needH > h {
		h = minInt(needH, maxH)
	}
	return overlaySpec{
		title:    title,
		lines:    lines,
		width:    w,
		height:   h,
		startRow: (r.rows - h) / 2,
		startCol: (r.cols - w) / 2,
	}, true
}

func (r *Root) headerText() string {
	elapsed := "0:00"
	if !r.practical.StartedAt.IsZero() {
		elapsed = formatElapsed(time.Since(r.practical.StartedAt))
	}
	width := maxInt(1, r.cols-1)
	engine := "Engine: " + firstNonEmptyStr(r.practical.EngineName, "unknown")
	title := firstNonEmptyStr(r.practical.Title, r.practical.QuestionID)
	parts := []string{"DSA Dojo"}
	if title != "" {
		parts = append(parts, title)
	}
	if r.practical.Language != "" {
		parts = append(parts, r.practical.Language)
	}
	if r.practical.Phase != "" {
		parts = append(parts, r.practical.Phase)
	}
	parts = append(parts, elapsed, engine)
	if r.practical.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts: %d", r.practical.Attempts))
	}
	if r.practical.Done {
		mark := "v solved"
		if !r.ascii {
			mark = "✓ solved"
		}
		parts = append(parts, mark)
	}
	txt := strings.Join(parts, " | ")
	if len([]rune(txt)) > width && title != "" {
		parts[1] = trimForWidth(title, maxInt(8, width/3))
		txt = strings.Join(parts, " | ")
	}
	txt = trimForWidth(txt, width)
	return r.theme.Header.Width(maxInt(1, r.cols)).Render(txt)
}

func (r *Root) statusText() string {
	keys := r.help.View(r.keymap)
	if keys == "" {
		keys = "F1 Statement  F2 History  F5 Run  F6 Submit  F8 Focus  F9 Scrollback  F10 Menu"
	}
	switch {
	case r.save.Saving:
		keys += " | Saving..."
	case r.save.Dirty:
		dot := "*"
		if !r.ascii {
			dot = "●"
		}
		keys += " | " + r.theme.Pending.Render(dot+" unsaved")
	default:
		keys += " | saved"
	}
	if r.submitting {
		keys += " | " + r.theme.Accent.Render(strings.TrimSpace(r.submitSpin.View())+" Judging...")
	}
	if r.consoleFocused {
		keys += " | " + r.theme.Accent.Render("[console]")
	}
	if r.statusFlash != "" {
		keys += " | " + r.statusFlash
	}
	keys = trimForWidth(keys, maxInt(1, r.cols-1))
	return r.theme.Status.Width(maxInt(1, r.cols)).Render(keys)
}

func (r *Root) resultText() string {
	if !r.result.Visible {
		return ""
	}
	banner := "FAIL"
	if r.result.Passed {
		banner = "PASS"
	}
	var b strings.Builder
	b.WriteString(banner + "\n\n")
	if r.result.Summary != "" {
		b.WriteString(r.result.Summary + "\n")
	}
	if r.result.Total > 0 {
		bar := r.scoreBar
		bar.SetWidth(24)
		b.WriteString(bar.ViewAs(float64(r.result.Score)/float64(r.result.Total)) + "\n")
	}
	b.WriteString("\n")
	if strings.TrimSpace(r.result.CompileError) != "" {
		b.WriteString("Compiler output:\n")
		for _, line := range strings.Split(strings.TrimRight(r.result.CompileError, "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}
	for _, row := range r.result.Rows {
		mark := "x"
		if row.Passed {
			mark = "v"
			if !r.ascii {
				mark = "✓"
			}
		} else if !r.ascii {
			mark = "✗"
		}
		meta := fmt.Sprintf("%dms", row.TimeMS)
		if row.MemoryKB > 0 {
			meta += " " + humanize.IBytes(uint64(row.MemoryKB)*1024)
		}
		if row.Hidden {
			b.WriteString(fmt.Sprintf("%s #%d hidden test (%s)\n", mark, row.Index, meta))
			continue
		}
		b.WriteString(fmt.Sprintf("%s #%d (%s)\n", mark, row.Index, meta))
		if !row.Passed {
			if row.Error != "" {
				b.WriteString("    error:    " + trimForWidth(row.Error, 60) + "\n")
			}
			b.WriteString("    input:    " + trimForWidth(row.Input, 60) + "\n")
			b.WriteString("    expected: " + trimForWidth(row.Expected, 60) + "\n")
			b.WriteString("    actual:   " + trimForWidth(row.Actual, 60) + "\n")
		}
	}
	if r.result.DurationMS > 0 {
		b.WriteString(fmt.Sprintf("\nJudged in %dms\n", r.result.DurationMS))
	}
	if strings.TrimSpace(r.result.Feedback) != "" {
		b.WriteString("\n" + r.result.Feedback + "\n")
	}
	return b.String()
}

func (r *Root) historyLines() []string {
	if len(r.histRows) == 0 {
		return []string{"No snapshots yet. Submissions and saved drafts land here."}
	}
	lines := make([]string, 0, len(r.histRows))
	for i, row := range r.histRows {
		prefix := "  "
		if i == r.historyIndex {
			prefix = "> "
		}
		score := ""
		if row.MaxScore > 0 {
			score = fmt.Sprintf("  %d/%d", row.Score, row.MaxScore)
		}
		lines = append(lines, fmt.Sprintf("%s%-12s %-16s%s  %d file(s)", prefix, row.Kind, humanize.Time(row.When), score, row.Files))
	}
	return lines
}

type menuItem struct {
	Label  string
	Action string
}

func (r *Root) mainMenuItems() []menuItem {
	return []menuItem{
		{Label: "Continue", Action: "continue"},
		{Label: "Question Select", Action: "select"},
		{Label: "Settings", Action: "settings"},
		{Label: "Stats", Action: "stats"},
		{Label: "Quit", Action: "quit"},
	}
}

func (r *Root) mainMenuInfoText(items []menuItem) string {
	idx := wrapIndex(r.mainMenuIndex, len(items))
	action := "Use Enter to select an option."
	if len(items) > 0 {
		switch items[idx].Action {
		case "continue":
			action = "Pick up the question you last worked on."
		case "select":
			action = "Browse sets and choose a question."
		case "settings":
			action = "Inspect runtime configuration."
		case "stats":
			action = "Review local progress summary."
		case "quit":
			action = "Exit DSA Dojo."
		}
	}
	engine := firstNonEmptyStr(r.mainMenu.EngineName, "unknown")
	if r.mainMenu.EngineMock {
		engine += " (mock)"
	}
	if r.mainMenu.EngineVersion != "" {
		engine += " " + r.mainMenu.EngineVersion
	}
	var b strings.Builder
	b.WriteString("DSA Dojo\n\n")
	b.WriteString("Engine: " + engine + "\n")
	b.WriteString(fmt.Sprintf("Sets: %d  Questions: %d\n", r.mainMenu.SetCount, r.mainMenu.QuestionCount))
	b.WriteString(fmt.Sprintf("Solved: %d of %d\n", r.mainMenu.DoneCount, r.mainMenu.QuestionCount))
	if r.mainMenu.LastSetID != "" && r.mainMenu.LastQuestionID != "" {
		b.WriteString(fmt.Sprintf("Last worked: %s / %s\n", r.mainMenu.LastSetID, r.mainMenu.LastQuestionID))
	}
	b.WriteString(fmt.Sprintf("Sessions: %d  Runs: %d  Submissions: %d  Passes: %d\n",
		r.mainMenu.Sessions, r.mainMenu.Runs, r.mainMenu.Submissions, r.mainMenu.Passes))
	if strings.TrimSpace(r.mainMenu.Tip) != "" {
		b.WriteString("\nTip:\n")
		b.WriteString(r.mainMenu.Tip)
		b.WriteString("\n")
	}
	b.WriteString("\nAction:\n" + action + "\n")
	return b.String()
}

func (r *Root) questionDetailText() string {
	set := r.selectedSetSummary()
	if set == nil || len(set.Questions) == 0 {
		return "No questions available in this set."
	}
	idx := wrapIndex(r.questionIndex, len(set.Questions))
	q := set.Questions[idx]
	var b strings.Builder
	b.WriteString(q.Title + "\n")
	b.WriteString("ID: " + q.QuestionID + "\n")
	b.WriteString("Difficulty: " + r.difficultyStars(q.Difficulty) + "\n")
	if len(q.Topics) > 0 {
		b.WriteString("Topics: " + strings.Join(q.Topics, ", ") + "\n")
	}
	if q.Attempts > 0 {
		b.WriteString(fmt.Sprintf("Attempts: %d\n", q.Attempts))
	}
	if q.TotalTests > 0 {
		bar := r.scoreBar
		bar.SetWidth(20)
		b.WriteString(fmt.Sprintf("Best: %d/%d %s\n", q.BestScore, q.TotalTests, bar.ViewAs(float64(q.BestScore)/float64(q.TotalTests))))
	}
	if q.Done {
		mark := "v"
		if !r.ascii {
			mark = "✓"
		}
		b.WriteString(mark + " solved\n")
	}
	b.WriteString("\nEnter: Start question    Esc: Back to main menu")
	return b.String()
}

func (r *Root) difficultyStars(d int) string {
	d = clampInt(d, 0, 5)
	full := "*"
	empty := "."
	if !r.ascii {
		full = "★"
		empty = "☆"
	}
	return strings.Repeat(full, d) + strings.Repeat(empty, 5-d)
}

func (r *Root) menuItems() []menuItem {
	return []menuItem{
		{Label: "Resume", Action: "resume"},
		{Label: "Run (F5)", Action: "run"},
		{Label: "Submit (F6)", Action: "submit"},
		{Label: "Save now (Ctrl+S)", Action: "save"},
		{Label: "Reset file", Action: "reset"},
		{Label: "Statement (F1)", Action: "statement"},
		{Label: "History (F2)", Action: "history"},
		{Label: "Preview file", Action: "preview"},
		{Label: "Toggle autosave", Action: "autosave"},
		{Label: "Switch theme", Action: "theme"},
		{Label: "Stats", Action: "stats"},
		{Label: "Settings", Action: "settings"},
		{Label: "Close question", Action: "close"},
		{Label: "Quit", Action: "quit"},
	}
}

func (r *Root) activateMainMenuSelection() {
	items := r.mainMenuItems()
	if len(items) == 0 {
		return
	}
	item := items[wrapIndex(r.mainMenuIndex, len(items))]
	switch item.Action {
	case "continue":
		r.dispatchController(func(c Controller) { c.OnContinue() })
	case "select":
		r.dispatchController(func(c Controller) { c.OnOpenQuestionSelect() })
	case "settings":
		r.dispatchController(func(c Controller) { c.OnOpenSettings() })
	case "stats":
		r.dispatchController(func(c Controller) { c.OnOpenStats() })
	case "quit":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
}

func (r *Root) activateMenuItem(item menuItem) {
	r.menuOpen = false
	r.dispatchController(func(c Controller) { c.OnMenu() })
	switch item.Action {
	case "run":
		r.dispatchController(func(c Controller) { c.OnRun() })
	case "submit":
		r.dispatchController(func(c Controller) { c.OnSubmit() })
	case "save":
		r.dispatchController(func(c Controller) { c.OnManualSave() })
	case "reset":
		r.dispatchController(func(c Controller) { c.OnResetFile() })
	case "statement":
		r.dispatchController(func(c Controller) { c.OnShowStatement() })
	case "history":
		r.dispatchController(func(c Controller) { c.OnShowHistory() })
	case "preview":
		name := r.activeFile
		if name != "" {
			r.dispatchController(func(c Controller) { c.OnPreviewFile(name) })
		}
	case "autosave":
		r.dispatchController(func(c Controller) { c.OnToggleAutosave() })
	case "theme":
		r.dispatchController(func(c Controller) { c.OnCycleTheme() })
	case "stats":
		r.dispatchController(func(c Controller) { c.OnOpenStats() })
	case "settings":
		r.dispatchController(func(c Controller) { c.OnOpenSettings() })
	case "close":
		r.dispatchController(func(c Controller) { c.OnClosePractical() })
	case "quit":
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
}

func (r *Root) startSelectedQuestion() {
	set := r.selectedSetSummary()
	if set == nil || len(set.Questions) == 0 {
		return
	}
	idx := wrapIndex(r.questionIndex, len(set.Questions))
	q := set.Questions[idx]
	r.selQuestion = q.QuestionID
	setID := set.SetID
	r.dispatchController(func(c Controller) { c.OnStartQuestion(setID, q.QuestionID) })
}

func (r *Root) syncCatalogSelection() {
	if len(r.catalog) == 0 {
		r.setIndex = 0
		r.questionIndex = 0
		return
	}
	sidx := 0
	if r.selSet != "" {
		for i, s := range r.catalog {
			if s.SetID == r.selSet {
				sidx = i
				break
			}
		}
	}
	r.setIndex = sidx
	set := r.catalog[sidx]
	if len(set.Questions) == 0 {
		r.questionIndex = 0
		return
	}
	qidx := 0
	if r.selQuestion != "" {
		for i, q := range set.Questions {
			if q.QuestionID == r.selQuestion {
				qidx = i
				break
			}
		}
	}
	r.questionIndex = qidx
	r.selSet = set.SetID
	r.selQuestion = set.Questions[qidx].QuestionID
}

func (r *Root) syncSelectionFromIndices() {
	if len(r.catalog) == 0 {
		return
	}
	r.setIndex = wrapIndex(r.setIndex, len(r.catalog))
	set := r.catalog[r.setIndex]
	r.selSet = set.SetID
	if len(set.Questions) == 0 {
		r.questionIndex = 0
		r.selQuestion = ""
		return
	}
	r.questionIndex = wrapIndex(r.questionIndex, len(set.Questions))
	r.selQuestion = set.Questions[r.questionIndex].QuestionID
}

func (r *Root) selectedSetSummary() *SetSummary {
	if len(r.catalog) == 0 {
		return nil
	}
	if r.setIndex < 0 || r.setIndex >= len(r.catalog) {
		r.setIndex = 0
	}
	return &r.catalog[r.setIndex]
}

func (r *Root) selectedSetQuestions() []QuestionSummary {
	set := r.selectedSetSummary()
	if set == nil {
		return nil
	}
	return set.Questions
}

func (r *Root) topOverlay() string {
	switch {
	case r.closeOpen:
		return "close"
	case r.resetOpen:
		return "reset"
	case r.previewOpen:
		return "preview"
	case r.infoOpen:
		return "info"
	case r.result.Visible:
		return "result"
	case r.historyOpen:
		return "history"
	case r.menuOpen:
		return "menu"
	}
	return ""
}

func (r *Root) overlayActive() bool {
	return r.topOverlay() != ""
}

func (r *Root) overlayCopyText() string {
	switch r.topOverlay() {
	case "result":
		return strings.TrimSpace(r.resultText())
	case "history":
		return strings.TrimSpace(strings.Join(r.historyLines(), "\n"))
	case "preview":
		return strings.TrimSpace(ansi.Strip(strings.Join(r.previewLines, "\n")))
	case "info":
		title := strings.TrimSpace(r.infoTitle)
		text := strings.TrimSpace(r.infoText)
		if title == "" {
			return text
		}
		if text == "" {
			return title
		}
		return title + "\n\n" + text
	}
	return ""
}

func (r *Root) highlightLines(filename, content string) []string {
	plain := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if r.ascii {
		return plain
	}
	var buf strings.Builder
	if err := quick.Highlight(&buf, content, lexerForFilename(filename), "terminal256", "monokai"); err != nil {
		return plain
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func lexerForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".java":
		return "java"
	case ".rs":
		return "rust"
	default:
		return "text"
	}
}

func (r *Root) syncEditorSize() {
	bodyH := maxInt(3, r.rows-2)
	var w, h int
	switch DetermineLayoutMode(r.cols, r.rows) {
	case LayoutWide:
		w = editorPanelWidth(r.cols)
		h = bodyH
	case LayoutMedium:
		_, ch := ConsolePanelSize(r.cols, r.rows, LayoutMedium)
		w = r.cols
		h = maxInt(5, bodyH-(ch+2))
	default:
		w = r.cols
		h = bodyH
	}
	// One row inside the panel is the tab bar.
	r.editor.SetWidth(maxInt(10, w-2))
	r.editor.SetHeight(maxInt(3, h-3))
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	return r.drawPanelWith(title, lines, width, height, r.theme.PanelBorder)
}

func (r *Root) drawPanelWith(title string, lines []string, width, height int, border lipgloss.Style) string {
	width = maxInt(4, width)
	height = maxInt(3, height)
	innerW := width - 2
	innerH := height - 2

	h := "─"
	v := "│"
	tl := "┌"
	tr := "┐"
	bl := "└"
	br := "┘"
	if r.ascii {
		h = "-"
		v = "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := tl + strings.Repeat(h, innerW) + tr
	if title != "" && innerW > 2 {
		t := " " + title + " "
		runes := []rune(top)
		start := 1
		for i, ch := range []rune(t) {
			pos := start + i
			if pos >= len(runes)-1 {
				break
			}
			runes[pos] = ch
		}
		top = string(runes)
	}

	out := make([]string, 0, height)
	out = append(out, border.Render(top))
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		var body string
		if strings.ContainsRune(line, '\x1b') {
			body = padANSI(line, innerW)
		} else {
			body = r.theme.PanelBody.Render(padRune(line, innerW))
		}
		out = append(out, border.Render(v)+body+border.Render(v))
	}
	out = append(out, border.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

func (r *Root) animateIfNeeded() tea.Cmd {
	target := 0.0
	if r.statementOpen {
		target = 1.0
	}
	if r.shouldAnimate(target) {
		return animateTickCmd()
	}
	return nil
}

func (r *Root) shouldAnimate(target float64) bool {
	if r.motionLevel == "off" {
		return false
	}
	if target > 0 {
		return r.overlayPos < 0.999 || abs(r.overlayVel) > 0.001
	}
	return r.overlayPos > 0.001 || abs(r.overlayVel) > 0.001
}

func (r *Root) currentMouseMode() tea.MouseMode {
	if r.screen == ScreenPractical && !r.overlayActive() && !r.statementOpen {
		return tea.MouseModeNone
	}
	return tea.MouseModeCellMotion
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func firstNonEmptyStr(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		i = n - 1
	}
	if i >= n {
		i = 0
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func padRune(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(s, "\t", "    "))
	if len(r) > width {
		r = r[:width]
	}
	if len(r) < width {
		r = append(r, []rune(strings.Repeat(" ", width-len(r)))...)
	}
	return string(r)
}

// padANSI pads or truncates a line to the given cell width without
// destroying embedded SGR sequences.
func padANSI(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if !strings.ContainsRune(s, '\x1b') {
		return padRune(s, width)
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	s = ansi.Truncate(s, width, "")
	if gap := width - ansi.StringWidth(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s + "\x1b[0m"
}

func composeOverlay(base, overlay string, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	overlayLines := strings.Split(strings.TrimRight(ansi.Strip(overlay), "\n"), "\n")
	ow := 1
	for _, line := range overlayLines {
		if lw := len([]rune(line)); lw > ow {
			ow = lw
		}
	}
	if ow > cols {
		ow = cols
	}
	oh := minInt(len(overlayLines), rows)
	return composeOverlayAt(base, overlay, cols, rows, (rows-oh)/2, (cols-ow)/2)
}

func composeOverlayAt(base, overlay string, cols, rows, startRow, startCol int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	base = ansi.Strip(base)
	overlay = ansi.Strip(overlay)
	baseLines := strings.Split(base, "\n")
	if len(baseLines) < rows {
		pad := make([]string, rows-len(baseLines))
		baseLines = append(baseLines, pad...)
	}
	for i := 0; i < rows; i++ {
		baseLines[i] = padRune(baseLines[i], cols)
	}

	overlayLines := strings.Split(strings.TrimRight(overlay, "\n"), "\n")
	if len(overlayLines) == 0 {
		return strings.Join(baseLines[:rows], "\n")
	}
	ow := 1
	for _, line := range overlayLines {
		if lw := len([]rune(line)); lw > ow {
			ow = lw
		}
	}
	if ow > cols {
		ow = cols
	}
	if startRow < 0 {
		startRow = 0
	}
	if startCol < 0 {
		startCol = 0
	}

	for i, line := range overlayLines {
		row := startRow + i
		if row < 0 || row >= rows {
			continue
		}
		dst := []rune(baseLines[row])
		src := []rune(line)
		if len(src) > ow {
			src = src[:ow]
		}
		for j := 0; j < ow && startCol+j < len(dst); j++ {
			dst[startCol+j] = ' '
		}
		for j := 0; j < len(src) && startCol+j < len(dst); j++ {
			dst[startCol+j] = src[j]
		}
		baseLines[row] = string(dst)
	}
	return strings.Join(baseLines[:rows], "\n")
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func normalizeStyleVariant(v string) string {
	switch strings.TrimSpace(v) {
	case "cozy_clean", "retro_terminal", "modern_arcade":
		return strings.TrimSpace(v)
	default:
		return "modern_arcade"
	}
}

func normalizeMotionLevel(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "reduced", "full":
		return strings.TrimSpace(v)
	default:
		return "full"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}

	message := fmt.Sprintf("%v", recovered)
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered", map[string]any{
		"where":       where,
		"panic":       message,
		"messageType": msgType,
		"screen":      r.screen,
		"layout":      r.layout,
		"cols":        r.cols,
		"rows":        r.rows,
		"overlay":     r.topOverlay(),
		"last_input":  r.lastInputEvent,
		"stack":       string(debug.Stack()),
	})
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
