package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dsadojo/internal/grading"
	"dsadojo/internal/history"
	"dsadojo/internal/questions"
	"dsadojo/internal/state"
	"dsadojo/internal/ui"
)

// recordingView satisfies ui.View so controller handlers can run without a
// terminal. Only the calls the tests assert on are recorded.
type recordingView struct {
	mu      sync.Mutex
	flashes []string
	active  []string
}

func (v *recordingView) Run() error                          { return nil }
func (v *recordingView) Stop()                               {}
func (v *recordingView) SetController(ui.Controller)         {}
func (v *recordingView) SetScreen(ui.Screen)                 {}
func (v *recordingView) SetTheme(string)                     {}
func (v *recordingView) SetMainMenuState(ui.MainMenuState)   {}
func (v *recordingView) SetCatalog([]ui.SetSummary)          {}
func (v *recordingView) SetQuestionSelection(_, _ string)    {}
func (v *recordingView) SetPracticalState(ui.PracticalState) {}
func (v *recordingView) SetActiveFileContent(filename, content string, locked bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = append(v.active, filename+":"+content)
}
func (v *recordingView) SetSaveState(ui.SaveState)            {}
func (v *recordingView) SetStatement(string)                  {}
func (v *recordingView) SetStatementOpen(bool)                {}
func (v *recordingView) SetHistory(ui.HistoryState)           {}
func (v *recordingView) SetResult(ui.ResultState)             {}
func (v *recordingView) SetMenuOpen(bool)                     {}
func (v *recordingView) SetCloseConfirmOpen(bool)             {}
func (v *recordingView) SetResetConfirmOpen(_ string, _ bool) {}
func (v *recordingView) SetFilePreview(_, _ string, _ bool)   {}
func (v *recordingView) SetInfo(_, _ string, _ bool)          {}
func (v *recordingView) SetConsoleFocused(bool)               {}
func (v *recordingView) SetSubmitting(bool)                   {}
func (v *recordingView) SetTooSmall(_, _ int)                 {}
func (v *recordingView) SetSetupError(_, _ string)            {}
func (v *recordingView) RequestDraw()                         {}
func (v *recordingView) FlashStatus(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flashes = append(v.flashes, msg)
}

func (v *recordingView) flashLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.flashes...)
}

func newTestStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newStoreBackedApp(t *testing.T, store *state.SQLiteStore) *App {
	t.Helper()
	return &App{
		store:   store,
		history: history.NewClient(store),
		logger:  testLogger(t),
	}
}

func sampleQuestion() questions.Question {
	return questions.Question{
		Kind:          questions.QuestionKind,
		SchemaVersion: 1,
		QuestionID:    "q-001-array-reverse",
		Title:         "Reverse an Array",
		Difficulty:    1,
		Language:      "c",
		Topics:        []string{"arrays"},
		Files: []questions.CodeFile{
			{Filename: "main.c", Content: "", IsAnswerFile: true},
			{Filename: "runner.c", Content: "int run(void);\n", IsLocked: true},
			{Filename: "grader.c", Content: "static int grade;\n", IsHidden: true},
		},
		Tests: []questions.TestCase{
			{Input: "3\n1 2 3\n", ExpectedOutput: "3 2 1\n"},
			{Input: "1\n9\n", ExpectedOutput: "9\n", IsHidden: true},
		},
	}
}

func TestSeedFilesPrecedence(t *testing.T) {
	q := sampleQuestion()
	drafts := []state.DraftFile{
		{Filename: "main.c", Content: "int main(void) { return 0; }\n"},
		{Filename: "runner.c", Content: "   \n"},
	}

	files := seedFiles(q, drafts)

	if got := files[0].Content; got != "int main(void) { return 0; }\n" {
		t.Fatalf("answer file content = %q, want draft", got)
	}
	// Whitespace-only draft falls back to the bank content.
	if got := files[1].Content; got != "int run(void);\n" {
		t.Fatalf("locked file content = %q, want bank content", got)
	}
	if got := files[2].Content; got != "static int grade;\n" {
		t.Fatalf("hidden file content = %q, want bank content", got)
	}
}

func TestSeedFilesPlaceholderForBlankAnswer(t *testing.T) {
	q := sampleQuestion()
	files := seedFiles(q, nil)
	if got := files[0].Content; got != "// your solution here\n" {
		t.Fatalf("blank answer file = %q, want placeholder", got)
	}
}

func TestOriginalContent(t *testing.T) {
	q := sampleQuestion()
	if got := originalContent(q, "runner.c"); got != "int run(void);\n" {
		t.Fatalf("runner.c original = %q", got)
	}
	if got := originalContent(q, "main.c"); got != "// your solution here\n" {
		t.Fatalf("blank answer original = %q, want placeholder", got)
	}
	if got := originalContent(q, "missing.c"); got != "" {
		t.Fatalf("unknown file original = %q, want empty", got)
	}
}

func TestValidateRunFiles(t *testing.T) {
	cases := []struct {
		name    string
		files   []questions.CodeFile
		wantErr bool
	}{
		{"none", nil, true},
		{"blank name", []questions.CodeFile{{Filename: " ", Content: "x"}}, true},
		{"empty content", []questions.CodeFile{{Filename: "main.c", Content: "  \n"}}, true},
		{"ok", []questions.CodeFile{{Filename: "main.c", Content: "int main(void){}"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRunFiles(tc.files)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %t", err, tc.wantErr)
			}
		})
	}
}

func TestSubmitTimeout(t *testing.T) {
	q := sampleQuestion()
	if got := submitTimeout(q); got != 25*time.Second {
		t.Fatalf("default timeout = %v, want 25s", got)
	}
	q.Judge.TimeoutSeconds = 2
	if got := submitTimeout(q); got != 19*time.Second {
		t.Fatalf("custom timeout = %v, want 19s", got)
	}
}

func TestResultViewStateMasksHiddenRows(t *testing.T) {
	result := grading.Result{
		Status: grading.StatusOK,
		Score:  grading.Score{PassedTests: 1, TotalTests: 2},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true, Input: "3\n", ExpectedOutput: "3 2 1\n", ActualOutput: "3 2 1\n"},
			{Index: 1, Passed: false, IsHidden: true, Input: "1\n", ExpectedOutput: "9\n", ActualOutput: "8\n"},
		},
		Run: grading.RunInfo{DurationMS: 40},
	}

	st := resultViewState(result, "feedback")
	if !st.Visible || st.Passed {
		t.Fatalf("visible/passed = %t/%t, want true/false", st.Visible, st.Passed)
	}
	if st.Rows[0].Index != 1 || st.Rows[0].Input != "3\n" {
		t.Fatalf("visible row = %+v", st.Rows[0])
	}
	hidden := st.Rows[1]
	if !hidden.Hidden || hidden.Input != "" || hidden.Expected != "" || hidden.Actual != "" {
		t.Fatalf("hidden row leaks details: %+v", hidden)
	}
	if st.Summary != "1 of 2 tests passed." {
		t.Fatalf("summary = %q", st.Summary)
	}
}

func TestPersistSubmissionFullPassMarksDone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newStoreBackedApp(t, store)

	rowID, err := store.StartPracticeSession(ctx, state.PracticeSession{
		SessionID: "s1", SetID: "dsa-core", QuestionID: "q-001-array-reverse", StartTS: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("StartPracticeSession: %v", err)
	}
	a.sessionRowID = rowID

	files := []questions.CodeFile{{Filename: "main.c", Content: "int main(void){}", IsAnswerFile: true}}
	result := grading.Result{
		QuestionID: "q-001-array-reverse",
		Status:     grading.StatusOK,
		Passed:     true,
		Score:      grading.Score{PassedTests: 2, TotalTests: 2},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true},
			{Index: 1, Passed: true, IsHidden: true},
		},
	}
	if err := a.persistSubmission(ctx, result, files); err != nil {
		t.Fatalf("persistSubmission: %v", err)
	}

	progress, err := store.GetQuestionProgress(ctx, "q-001-array-reverse")
	if err != nil {
		t.Fatalf("GetQuestionProgress: %v", err)
	}
	if progress == nil || !progress.Done {
		t.Fatalf("progress = %+v, want done", progress)
	}
	if progress.BestScore != 2 || progress.TotalTests != 2 || progress.Attempts != 1 {
		t.Fatalf("progress = %+v", progress)
	}

	entries, err := a.history.List(ctx, "q-001-array-reverse")
	if err != nil {
		t.Fatalf("history.List: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != history.KindSubmission {
		t.Fatalf("entries = %+v, want one submission", entries)
	}
	if entries[0].Score != 2 || entries[0].MaxScore != 2 {
		t.Fatalf("entry score = %d/%d, want 2/2", entries[0].Score, entries[0].MaxScore)
	}
}

func TestPersistSubmissionPartialKeepsDoneSticky(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newStoreBackedApp(t, store)

	files := []questions.CodeFile{{Filename: "main.c", Content: "int main(void){}", IsAnswerFile: true}}
	partial := grading.Result{
		QuestionID: "q-001-array-reverse",
		Status:     grading.StatusOK,
		Score:      grading.Score{PassedTests: 1, TotalTests: 2},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true},
			{Index: 1, Passed: false, IsHidden: true},
		},
	}
	if err := a.persistSubmission(ctx, partial, files); err != nil {
		t.Fatalf("persistSubmission: %v", err)
	}
	progress, _ := store.GetQuestionProgress(ctx, "q-001-array-reverse")
	if progress == nil || progress.Done {
		t.Fatalf("progress = %+v, want not done", progress)
	}
	if progress.BestScore != 1 {
		t.Fatalf("best score = %d, want 1", progress.BestScore)
	}

	full := partial
	full.Passed = true
	full.Score = grading.Score{PassedTests: 2, TotalTests: 2}
	if err := a.persistSubmission(ctx, full, files); err != nil {
		t.Fatalf("persistSubmission full: %v", err)
	}

	// A later regression never clears done and never lowers the best score.
	if err := a.persistSubmission(ctx, partial, files); err != nil {
		t.Fatalf("persistSubmission regression: %v", err)
	}
	progress, _ = store.GetQuestionProgress(ctx, "q-001-array-reverse")
	if progress == nil || !progress.Done {
		t.Fatalf("progress = %+v, want done to stick", progress)
	}
	if progress.BestScore != 2 {
		t.Fatalf("best score = %d, want 2", progress.BestScore)
	}
	if progress.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", progress.Attempts)
	}
}

// newSessionApp builds an App with a loaded question, a fake view and a
// disabled autosaver, enough to drive the controller handlers directly.
func newSessionApp(t *testing.T, store *state.SQLiteStore) (*App, *recordingView) {
	t.Helper()
	a := newStoreBackedApp(t, store)
	v := &recordingView{}
	a.view = v
	a.saver = NewAutosaver(func() bool { return false }, func(context.Context) error { return nil }, a.logger)
	t.Cleanup(a.saver.Shutdown)
	a.question = sampleQuestion()
	a.files = seedFiles(a.question, nil)
	a.activeFile = "main.c"
	a.phase = PhaseEditing
	return a, v
}

func TestEditorChangeAcceptedWhileRunning(t *testing.T) {
	a, _ := newSessionApp(t, newTestStore(t))
	a.phase = PhaseRunning

	a.OnEditorChanged("main.c", "int main(void) { return 0; }\n")

	a.mu.Lock()
	got := a.files[0].Content
	phase := a.phase
	a.mu.Unlock()
	if got != "int main(void) { return 0; }\n" {
		t.Fatalf("file content = %q, want the edit to land during a run", got)
	}
	if phase != PhaseRunning {
		t.Fatalf("phase = %v, want running to be untouched by an edit", phase)
	}
	if !a.saver.Dirty() {
		t.Fatal("edit during a run did not mark unsaved changes")
	}
}

func TestEditorChangeRejectedWhileLoading(t *testing.T) {
	a, _ := newSessionApp(t, newTestStore(t))
	a.phase = PhaseLoading

	a.OnEditorChanged("main.c", "stray edit")

	a.mu.Lock()
	got := a.files[0].Content
	a.mu.Unlock()
	if got == "stray edit" {
		t.Fatal("edit landed while the question was still loading")
	}
}

func TestRestoreSubmissionCapturesIterationDraft(t *testing.T) {
	ctx := context.Background()
	a, v := newSessionApp(t, newTestStore(t))
	qid := a.question.QuestionID

	submitted := cloneFiles(a.files)
	submitted[0].Content = "int main(void) { return 1; }\n"
	if err := a.history.RecordSubmission(ctx, qid, submitted, nil, 1, 2); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	entries, err := a.history.List(ctx, qid)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, %v, want one submission", entries, err)
	}
	subID := entries[0].ID

	a.mu.Lock()
	a.files[0].Content = "int main(void) { return 0; }\n"
	a.mu.Unlock()

	a.OnRestoreHistory(subID)

	a.mu.Lock()
	restored := a.files[0].Content
	active := a.activeFile
	a.mu.Unlock()
	if restored != "int main(void) { return 1; }\n" {
		t.Fatalf("restored content = %q, want submitted snapshot", restored)
	}
	if active != "main.c" {
		t.Fatalf("active file = %q, want first answer file", active)
	}
	if a.saver.Dirty() {
		t.Fatal("restore left the unsaved flag set")
	}
	v.mu.Lock()
	pushed := append([]string(nil), v.active...)
	v.mu.Unlock()
	if len(pushed) == 0 || pushed[len(pushed)-1] != "main.c:int main(void) { return 1; }\n" {
		t.Fatalf("editor pushes = %v, want the restored content last", pushed)
	}

	// Exactly one pre-restore draft was captured, holding what the user
	// had before the restore.
	entries, err = a.history.List(ctx, qid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var drafts []history.Entry
	for _, e := range entries {
		if e.Kind == history.KindIteration {
			drafts = append(drafts, e)
		}
	}
	if len(drafts) != 1 {
		t.Fatalf("iteration drafts = %d, want exactly 1", len(drafts))
	}
	if got := drafts[0].Files[0].Content; got != "int main(void) { return 0; }\n" {
		t.Fatalf("draft content = %q, want the pre-restore edit", got)
	}
}

func TestRestoreIterationIsOneShot(t *testing.T) {
	ctx := context.Background()
	a, v := newSessionApp(t, newTestStore(t))
	qid := a.question.QuestionID

	draft := cloneFiles(a.files)
	draft[0].Content = "int main(void) { return 7; }\n"
	if err := a.history.RecordIteration(ctx, qid, draft); err != nil {
		t.Fatalf("RecordIteration: %v", err)
	}
	entries, err := a.history.List(ctx, qid)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, %v, want one draft", entries, err)
	}
	iterID := entries[0].ID

	a.OnRestoreHistory(iterID)

	a.mu.Lock()
	restored := a.files[0].Content
	a.mu.Unlock()
	if restored != "int main(void) { return 7; }\n" {
		t.Fatalf("restored content = %q, want the draft", restored)
	}

	// Restoring the draft consumed it.
	entries, err = a.history.List(ctx, qid)
	if err != nil {
		t.Fatalf("List after restore: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after restore = %+v, want the draft gone", entries)
	}

	// A second restore of the same entry is a no-op.
	a.mu.Lock()
	a.files[0].Content = "int main(void) { return 8; }\n"
	a.mu.Unlock()
	a.OnRestoreHistory(iterID)

	a.mu.Lock()
	after := a.files[0].Content
	a.mu.Unlock()
	if after != "int main(void) { return 8; }\n" {
		t.Fatalf("second restore changed files to %q", after)
	}
	found := false
	for _, msg := range v.flashLog() {
		if strings.Contains(msg, "snapshot no longer exists") {
			found = true
		}
	}
	if !found {
		t.Fatalf("flashes = %v, want a missing-snapshot notice", v.flashLog())
	}
}

func TestCatalogMarksProgress(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newStoreBackedApp(t, store)
	a.sets = []questions.Set{{
		SetID:           "dsa-core",
		Name:            "DSA Core",
		LoadedQuestions: []questions.Question{sampleQuestion()},
	}}

	if err := store.UpsertQuestionProgress(ctx, state.QuestionProgressUpdate{
		QuestionID: "q-001-array-reverse", Score: 2, TotalTests: 2, SubmittedTS: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("UpsertQuestionProgress: %v", err)
	}
	if err := store.SetQuestionDone(ctx, "q-001-array-reverse", true, 2); err != nil {
		t.Fatalf("SetQuestionDone: %v", err)
	}

	catalog := a.catalog()
	if len(catalog) != 1 || len(catalog[0].Questions) != 1 {
		t.Fatalf("catalog shape = %+v", catalog)
	}
	q := catalog[0].Questions[0]
	if !q.Done || q.BestScore != 2 || q.TotalTests != 2 {
		t.Fatalf("question summary = %+v", q)
	}
}
