package ui

import (
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"dsadojo/internal/term"
)

type mockController struct {
	mu sync.Mutex

	continueCalls  int
	quitCalls      int
	resetCalls     int
	runCalls       int
	submitCalls    int
	saveCalls      int
	closeConfirms  []bool
	resetConfirms  []bool
	restoredIDs    []int64
	editorChanges  []string
	selectedFiles  []string
	inputs         [][]byte
	statementCalls int
	historyCalls   int
}

func (m *mockController) OnContinue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continueCalls++
}
func (m *mockController) OnOpenQuestionSelect()      {}
func (m *mockController) OnStartQuestion(_, _ string) {}
func (m *mockController) OnBackToMainMenu()          {}
func (m *mockController) OnRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCalls++
}
func (m *mockController) OnStopRun() {}
func (m *mockController) OnSubmit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
}
func (m *mockController) OnSelectFile(filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectedFiles = append(m.selectedFiles, filename)
}
func (m *mockController) OnEditorChanged(_, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editorChanges = append(m.editorChanges, content)
}
func (m *mockController) OnManualSave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
}
func (m *mockController) OnResetFile() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
}
func (m *mockController) OnResetFileConfirm(confirmed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetConfirms = append(m.resetConfirms, confirmed)
}
func (m *mockController) OnShowStatement() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statementCalls++
}
func (m *mockController) OnShowHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
}
func (m *mockController) OnRestoreHistory(entryID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restoredIDs = append(m.restoredIDs, entryID)
}
func (m *mockController) OnPreviewFile(string) {}
func (m *mockController) OnClosePractical()    {}
func (m *mockController) OnCloseConfirm(discard bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConfirms = append(m.closeConfirms, discard)
}
func (m *mockController) OnQuit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitCalls++
}
func (m *mockController) OnMenu()           {}
func (m *mockController) OnToggleAutosave() {}
func (m *mockController) OnCycleTheme()     {}
func (m *mockController) OnOpenStats()      {}
func (m *mockController) OnOpenSettings()   {}
func (m *mockController) OnConsoleInput(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), data...)
	m.inputs = append(m.inputs, cp)
}
func (m *mockController) OnResize(int, int) {}

func (m *mockController) snapshotInputs() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.inputs...)
}

func press(v *Root, code rune, mod tea.KeyMod, text string) {
	_, _ = v.Update(tea.KeyPressMsg{Code: code, Mod: mod, Text: text})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(300 * time.Millisecond)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within deadline")
	}
}

func newTestView(ctrl Controller) *Root {
	console := term.NewConsole(nil)
	v := New(Options{Console: console})
	if ctrl != nil {
		v.SetController(ctrl)
	}
	return v
}

func TestF3DispatchesResetWithoutLocalConfirm(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)

	press(v, tea.KeyF3, 0, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.resetCalls == 1
	})
	// The confirm modal opens only when the controller pushes it back.
	if v.resetOpen {
		t.Fatalf("expected reset confirm to stay closed until controller opens it")
	}
}

func TestResetConfirmEnterReportsChoice(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetResetConfirmOpen("main.c", true)

	press(v, tea.KeyRight, 0, "")
	press(v, tea.KeyEnter, 0, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.resetConfirms) == 1 && ctrl.resetConfirms[0]
	})
	if v.resetOpen {
		t.Fatalf("expected reset confirm to close on enter")
	}
}

func TestCloseConfirmEscKeepsEditing(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetCloseConfirmOpen(true)

	press(v, tea.KeyEsc, 0, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.closeConfirms) == 1 && !ctrl.closeConfirms[0]
	})
}

func TestOverlayEscClosesResultModal(t *testing.T) {
	v := newTestView(nil)
	v.SetScreen(ScreenPractical)
	v.SetResult(ResultState{Visible: true, Passed: false, Summary: "1 of 2 tests passed."})

	press(v, tea.KeyEsc, 0, "")
	if v.result.Visible {
		t.Fatalf("expected result modal to close on escape")
	}
}

func TestF8TogglesConsoleFocus(t *testing.T) {
	v := newTestView(&mockController{})
	v.SetScreen(ScreenPractical)

	if v.consoleFocused {
		t.Fatalf("editor should start focused")
	}
	press(v, tea.KeyF8, 0, "")
	if !v.consoleFocused {
		t.Fatalf("expected F8 to focus the console")
	}
	press(v, tea.KeyF8, 0, "")
	if v.consoleFocused {
		t.Fatalf("expected F8 to hand focus back to the editor")
	}
}

func TestConsoleFocusForwardsKeys(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetConsoleFocused(true)

	press(v, 'a', 0, "a")

	waitFor(t, func() bool { return len(ctrl.snapshotInputs()) == 1 })
	if got := string(ctrl.snapshotInputs()[0]); got != "a" {
		t.Fatalf("forwarded bytes = %q, want %q", got, "a")
	}
}

func TestEditorKeyDispatchesChange(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetActiveFileContent("main.c", "", false)

	press(v, 'a', 0, "a")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.editorChanges) == 1
	})
	ctrl.mu.Lock()
	got := ctrl.editorChanges[0]
	ctrl.mu.Unlock()
	if got != "a" {
		t.Fatalf("editor change content = %q, want %q", got, "a")
	}
}

func TestLockedFileRejectsEdits(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetActiveFileContent("runner.c", "int run(void);\n", true)

	press(v, 'a', 0, "a")

	time.Sleep(50 * time.Millisecond)
	ctrl.mu.Lock()
	changes := len(ctrl.editorChanges)
	ctrl.mu.Unlock()
	if changes != 0 {
		t.Fatalf("expected no editor change for a locked file")
	}
	if v.statusFlash == "" {
		t.Fatalf("expected a status flash explaining the file is read-only")
	}
}

func TestHistoryEnterRestoresSelectedEntry(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetHistory(HistoryState{Open: true, Rows: []HistoryRow{
		{EntryID: 11, Kind: "submission", When: time.Now().Add(-time.Hour)},
		{EntryID: 12, Kind: "iteration", When: time.Now().Add(-time.Minute)},
	}})

	press(v, tea.KeyDown, 0, "")
	press(v, tea.KeyEnter, 0, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.restoredIDs) == 1
	})
	ctrl.mu.Lock()
	got := ctrl.restoredIDs[0]
	ctrl.mu.Unlock()
	if got != 12 {
		t.Fatalf("restored entry = %d, want 12", got)
	}
}

func TestMainMenuEnterActivatesSelection(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenMainMenu)

	press(v, tea.KeyEnter, 0, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.continueCalls == 1
	})
}

func TestCtrlQQuitsFromAnyScreen(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)

	press(v, 'q', tea.ModCtrl, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.quitCalls == 1
	})
}

func TestCtrlSDispatchesManualSave(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)

	press(v, 's', tea.ModCtrl, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.saveCalls == 1
	})
}

func TestCtrlRightCyclesFileTabs(t *testing.T) {
	ctrl := &mockController{}
	v := newTestView(ctrl)
	v.SetScreen(ScreenPractical)
	v.SetPracticalState(PracticalState{
		QuestionID: "q-001-array-reverse",
		Tabs: []FileTab{
			{Filename: "main.c", Answer: true},
			{Filename: "runner.c", Locked: true},
		},
	})
	v.SetActiveFileContent("main.c", "", false)

	press(v, tea.KeyRight, tea.ModCtrl, "")

	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return len(ctrl.selectedFiles) == 1
	})
	ctrl.mu.Lock()
	got := ctrl.selectedFiles[0]
	ctrl.mu.Unlock()
	if got != "runner.c" {
		t.Fatalf("selected file = %q, want runner.c", got)
	}
}

func TestViewImplementsInterfaceCompileTime(t *testing.T) {
	var _ View = newTestView(nil)
}
