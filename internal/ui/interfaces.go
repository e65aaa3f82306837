package ui

import "time"

// Controller is the app-side handler for everything the view can ask for.
// All methods are dispatched off the program goroutine.
type Controller interface {
	OnContinue()
	OnOpenQuestionSelect()
	OnStartQuestion(setID, questionID string)
	OnBackToMainMenu()
	OnRun()
	OnStopRun()
	OnSubmit()
	OnSelectFile(filename string)
	OnEditorChanged(filename, content string)
	OnManualSave()
	OnResetFile()
	OnResetFileConfirm(confirmed bool)
	OnShowStatement()
	OnShowHistory()
	OnRestoreHistory(entryID int64)
	OnPreviewFile(filename string)
	OnClosePractical()
	OnCloseConfirm(discard bool)
	OnQuit()
	OnMenu()
	OnToggleAutosave()
	OnCycleTheme()
	OnOpenStats()
	OnOpenSettings()
	OnConsoleInput(data []byte)
	OnResize(cols, rows int)
}

type View interface {
	Run() error
	Stop()
	SetController(Controller)
	SetScreen(screen Screen)
	SetTheme(variant string)
	SetMainMenuState(state MainMenuState)
	SetCatalog(sets []SetSummary)
	SetQuestionSelection(setID, questionID string)
	SetPracticalState(PracticalState)
	SetActiveFileContent(filename, content string, locked bool)
	SetSaveState(SaveState)
	SetStatement(markdown string)
	SetStatementOpen(open bool)
	SetHistory(HistoryState)
	SetResult(ResultState)
	SetMenuOpen(open bool)
	SetCloseConfirmOpen(open bool)
	SetResetConfirmOpen(filename string, open bool)
	SetFilePreview(filename, content string, open bool)
	SetInfo(title, text string, open bool)
	SetConsoleFocused(focused bool)
	SetSubmitting(submitting bool)
	SetTooSmall(cols, rows int)
	SetSetupError(msg, details string)
	FlashStatus(msg string)
	RequestDraw()
}

type Screen int

const (
	ScreenMainMenu Screen = iota
	ScreenQuestionSelect
	ScreenPractical
)

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutMedium
	LayoutTooSmall
)

// FileTab is one entry in the practical screen's tab bar. Hidden files
// never reach the view; the controller filters them out.
type FileTab struct {
	Filename string
	Locked   bool
	Answer   bool
}

type PracticalState struct {
	SetID      string
	QuestionID string
	Title      string
	Difficulty int
	Topics     []string
	Language   string
	Tabs       []FileTab
	ActiveFile string
	Phase      string
	EngineName string
	Attempts   int
	StartedAt  time.Time
	Done       bool
	BestScore  int
	TotalTests int
}

type SaveState struct {
	Dirty  bool
	Saving bool
}

type ResultState struct {
	Visible      bool
	Passed       bool
	Status       string
	Summary      string
	Score        int
	Total        int
	Rows         []ResultRow
	CompileError string
	Feedback     string
	DurationMS   int64
}

// ResultRow is one judged test case. Hidden rows carry no input or output
// detail; the controller blanks them before they reach the view.
type ResultRow struct {
	Index    int
	Passed   bool
	Hidden   bool
	TimeMS   int64
	MemoryKB int64
	Input    string
	Expected string
	Actual   string
	Error    string
}

type HistoryState struct {
	Open bool
	Rows []HistoryRow
}

type HistoryRow struct {
	EntryID  int64
	Kind     string
	When     time.Time
	Score    int
	MaxScore int
	Files    int
}

type MainMenuState struct {
	EngineName     string
	EngineVersion  string
	EngineMock     bool
	SetCount       int
	QuestionCount  int
	Sessions       int
	Runs           int
	Submissions    int
	Passes         int
	DoneCount      int
	LastSetID      string
	LastQuestionID string
	Tip            string
}

type SetSummary struct {
	SetID     string
	Name      string
	Questions []QuestionSummary
}

type QuestionSummary struct {
	QuestionID string
	Title      string
	Difficulty int
	Topics     []string
	Done       bool
	BestScore  int
	TotalTests int
	Attempts   int
}
