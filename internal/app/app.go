package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dsadojo/internal/devtools"
	"dsadojo/internal/engine"
	"dsadojo/internal/grading"
	"dsadojo/internal/history"
	"dsadojo/internal/questions"
	"dsadojo/internal/run"
	"dsadojo/internal/state"
	"dsadojo/internal/telemetry"
	"dsadojo/internal/term"
	"dsadojo/internal/ui"

	"github.com/google/uuid"
)

const appVersion = "0.1.0"

// Settings keys persisted in the store. Store values win over config.
const (
	settingAutosaveEnabled  = "autosave_enabled"
	settingAutosaveInterval = "autosave_interval_seconds"
	settingStyleVariant     = "ui_style_variant"
)

type App struct {
	cfg Config

	logger  *telemetry.JSONLogger
	store   *state.SQLiteStore
	loader  *questions.FSLoader
	history *history.Client
	demo    *devtools.Manager

	view    ui.View
	console *term.Console
	lines   *term.LineBuffer
	saver   *Autosaver

	sessionID string
	sets      []questions.Set

	mu             sync.Mutex
	engine         engine.Engine
	info           engine.Info
	runner         *run.Session
	set            questions.Set
	question       questions.Question
	files          []questions.CodeFile
	activeFile     string
	phase          Phase
	attempt        int
	sessionRowID   int64
	startTime      time.Time
	lastResult     grading.Result
	selSetID       string
	selQuestionID  string
	statementOpen  bool
	historyOpen    bool
	menuOpen       bool
	quitAfterClose bool

	devMu     sync.Mutex
	devServer *http.Server
	demoMu    sync.Mutex
	devState  struct {
		State     string
		Demo      string
		RenderSeq int
		Rendered  bool
		Pending   bool
		Error     string
	}
}

func New(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewJSONLogger(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	store, err := state.NewSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	loader := questions.NewLoader()
	sets, err := loader.LoadSets(context.Background(), cfg.SetsDir)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}
	if len(sets) == 0 || len(sets[0].LoadedQuestions) == 0 {
		_ = store.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("no question sets available under %s/", cfg.SetsDir)
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		loader:        loader,
		history:       history.NewClient(store),
		demo:          devtools.NewManager(),
		sessionID:     uuid.NewString(),
		sets:          sets,
		phase:         PhaseIdle,
		selSetID:      sets[0].SetID,
		selQuestionID: sets[0].LoadedQuestions[0].QuestionID,
	}

	console := term.NewConsole(nil)
	view := ui.New(ui.Options{
		ASCIIOnly:    cfg.ASCIIOnly,
		ThemeVariant: cfg.UI.StyleVariant,
		MotionLevel:  cfg.UI.MotionLevel,
		Console:      console,
	})
	console.SetDirty(view.RequestDraw)

	a.console = console
	a.view = view
	a.lines = term.NewLineBuffer(a.echoToConsole, a.sendConsoleLine)
	a.saver = NewAutosaver(a.saveReady, a.persistDraft, logger)
	a.saver.SetOnChange(a.syncSaveState)
	a.saver.Configure(cfg.Autosave.Enabled, time.Duration(cfg.Autosave.IntervalSeconds)*time.Second)

	view.SetController(a)
	view.SetCatalog(a.catalog())
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", map[string]any{"session": a.sessionID, "engine_mode": a.cfg.EngineMode})

	var (
		eng engine.Engine
		err error
	)
	if a.cfg.EngineMode == "mock" {
		eng = engine.NewMock(a.logger)
	} else {
		eng, err = engine.Detect(ctx, a.cfg.EngineOverride, a.cfg.EngineMode == "auto", a.logger)
	}
	if err != nil {
		a.logger.Error("engine.detect_failed", map[string]any{"error": err.Error()})
		a.mu.Lock()
		a.info = engine.Info{Name: "unavailable"}
		a.mu.Unlock()
		a.view.SetSetupError("No execution engine available",
			err.Error()+"\nInstall dsadojo-engine on PATH, point DSADOJO_ENGINE at it, or set DSADOJO_ENGINE_MODE=mock.")
	} else {
		a.mu.Lock()
		a.engine = eng
		a.info = eng.Info()
		a.runner = run.NewSession(eng, a.console, a.onRunExit)
		a.mu.Unlock()
		a.logger.Info("engine.detected", map[string]any{"engine": a.info.Name, "version": a.info.Version, "mock": a.info.Mock})
	}

	a.applyStoredSettings(ctx)

	a.view.SetMainMenuState(a.mainMenuState())
	a.view.SetQuestionSelection(a.selSetID, a.selQuestionID)
	a.view.SetScreen(ui.ScreenMainMenu)

	if a.cfg.Dev {
		if err := a.startDevHTTP(); err != nil {
			return err
		}
		if a.cfg.DemoScenario != "" {
			if _, err := a.runDemoScenario(context.Background(), a.cfg.DemoScenario); err != nil {
				a.logger.Error("dev.demo.initial_failed", map[string]any{"demo": a.cfg.DemoScenario, "error": err.Error()})
			}
		} else {
			a.setDevState("main_menu", "")
			_ = a.demo.SetState(context.Background(), "", "main_menu", true)
		}
	}

	return a.view.Run()
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.devMu.Lock()
	devServer := a.devServer
	a.devMu.Unlock()
	if devServer != nil {
		_ = devServer.Shutdown(ctx)
	}
	a.mu.Lock()
	runner := a.runner
	eng := a.engine
	a.mu.Unlock()
	if runner != nil {
		_ = runner.Stop(ctx)
	}
	if a.saver != nil {
		a.saver.Shutdown()
	}
	if eng != nil {
		_ = eng.Close()
	}
	_ = a.store.Close()
	_ = a.logger.Close()
}

// applyStoredSettings lets runtime settings from the store override the
// config defaults for autosave and theme.
func (a *App) applyStoredSettings(ctx context.Context) {
	settings, err := a.store.LoadSettings(ctx)
	if err != nil {
		a.logger.Error("settings.load_failed", map[string]any{"error": err.Error()})
		return
	}
	enabled, interval := a.autosaveSettings(settings)
	a.saver.Configure(enabled, interval)
	if v := settings[settingStyleVariant]; v != "" {
		a.view.SetTheme(v)
	}
}

func (a *App) autosaveSettings(settings map[string]string) (bool, time.Duration) {
	enabled := a.cfg.Autosave.Enabled
	if v, ok := settings[settingAutosaveEnabled]; ok {
		enabled = v == "true"
	}
	seconds := a.cfg.Autosave.IntervalSeconds
	if v, ok := settings[settingAutosaveInterval]; ok {
		if n, err := time.ParseDuration(v + "s"); err == nil && n > 0 {
			return enabled, n
		}
	}
	return enabled, time.Duration(seconds) * time.Second
}

// loadQuestion is the load operation: bank lookup, draft merge, autosaver
// reset, persisted progress and history fetch, view sync.
func (a *App) loadQuestion(ctx context.Context, setID, questionID string) error {
	set, q, err := a.loader.FindQuestion(a.sets, setID, questionID)
	if err != nil {
		return err
	}
	a.logger.Info("session.load.begin", map[string]any{"set": setID, "question": questionID})
	a.setPhase(PhaseLoading)

	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		if err := runner.Stop(ctx); err != nil {
			a.logger.Error("session.load.stop_failed", map[string]any{"error": err.Error()})
		}
	}
	a.console.Reset()
	a.lines.Reset()

	drafts, err := a.store.LoadDraftFiles(ctx, q.QuestionID)
	if err != nil {
		a.logger.Error("session.load.drafts_failed", map[string]any{"error": err.Error()})
		drafts = nil
	}
	files := seedFiles(q, drafts)

	progress, err := a.store.GetQuestionProgress(ctx, q.QuestionID)
	if err != nil {
		progress = nil
	}
	entries, err := a.history.List(ctx, q.QuestionID)
	if err != nil {
		a.logger.Error("session.load.history_failed", map[string]any{"error": err.Error()})
		entries = nil
	}

	a.mu.Lock()
	a.set = set
	a.question = q
	a.files = files
	a.activeFile = questions.FirstAnswerFile(files)
	a.attempt = 0
	if progress != nil {
		a.attempt = progress.Attempts
	}
	a.lastResult = grading.Result{}
	a.startTime = time.Now()
	a.selSetID = set.SetID
	a.selQuestionID = q.QuestionID
	a.statementOpen = false
	a.historyOpen = false
	a.menuOpen = false
	a.quitAfterClose = false
	a.mu.Unlock()

	a.saver.Reset()
	settings, _ := a.store.LoadSettings(ctx)
	enabled, interval := a.autosaveSettings(settings)
	a.saver.Configure(enabled, interval)

	rowID, err := a.store.StartPracticeSession(ctx, state.PracticeSession{
		SessionID:  a.sessionID,
		SetID:      set.SetID,
		QuestionID: q.QuestionID,
		StartTS:    time.Now().UTC(),
	})
	if err != nil {
		a.logger.Error("session.load.persist_failed", map[string]any{"error": err.Error()})
	} else {
		a.mu.Lock()
		a.sessionRowID = rowID
		a.mu.Unlock()
	}

	a.view.SetStatement(q.StatementMD)
	a.view.SetStatementOpen(false)
	a.view.SetResult(ui.ResultState{})
	a.view.SetHistory(historyViewState(entries, false))
	a.view.SetMenuOpen(false)
	a.view.SetCloseConfirmOpen(false)
	a.view.SetPracticalState(a.practicalState(progress))
	a.pushActiveFile()
	a.syncSaveState()
	a.view.SetScreen(ui.ScreenPractical)
	a.setPhase(PhaseReady)

	_ = a.store.AppendActivity(ctx, q.QuestionID, "load", "", time.Now().UTC())
	a.setDevState("practical", "practical")
	_ = a.demo.SetState(context.Background(), "", "practical", true)
	a.logger.Info("session.load.done", map[string]any{"question": q.QuestionID, "files": len(files)})
	return nil
}

// seedFiles builds the working set: saved draft content wins, then the
// bank's starter content, then the language placeholder for answer files.
func seedFiles(q questions.Question, drafts []state.DraftFile) []questions.CodeFile {
	byName := make(map[string]string, len(drafts))
	for _, d := range drafts {
		byName[d.Filename] = d.Content
	}
	out := cloneFiles(q.Files)
	for i := range out {
		if saved, ok := byName[out[i].Filename]; ok && strings.TrimSpace(saved) != "" {
			out[i].Content = saved
			continue
		}
		if out[i].IsAnswerFile && strings.TrimSpace(out[i].Content) == "" {
			out[i].Content = questions.PlaceholderFor(fileLanguage(out[i], q))
		}
	}
	return out
}

func (a *App) OnContinue() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	setID, questionID := a.sets[0].SetID, a.sets[0].LoadedQuestions[0].QuestionID
	if last, err := a.store.GetLastSession(ctx); err == nil && last != nil {
		if _, _, findErr := a.loader.FindQuestion(a.sets, last.SetID, last.QuestionID); findErr == nil {
			setID, questionID = last.SetID, last.QuestionID
		}
	}
	if err := a.loadQuestion(ctx, setID, questionID); err != nil {
		a.view.FlashStatus("continue failed: " + err.Error())
	}
}

func (a *App) OnOpenQuestionSelect() {
	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if loaded {
		a.OnClosePractical()
		return
	}
	a.showQuestionSelect()
}

func (a *App) showQuestionSelect() {
	a.view.SetCatalog(a.catalog())
	a.mu.Lock()
	setID, questionID := a.selSetID, a.selQuestionID
	a.mu.Unlock()
	a.view.SetQuestionSelection(setID, questionID)
	a.view.SetScreen(ui.ScreenQuestionSelect)
	a.setDevState("question_select", "question_select")
	_ = a.demo.SetState(context.Background(), "", "question_select", true)
}

func (a *App) OnStartQuestion(setID, questionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := a.loadQuestion(ctx, setID, questionID); err != nil {
		a.view.FlashStatus("open failed: " + err.Error())
	}
}

func (a *App) OnBackToMainMenu() {
	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if loaded {
		a.OnClosePractical()
		return
	}
	a.view.SetMainMenuState(a.mainMenuState())
	a.view.SetScreen(ui.ScreenMainMenu)
	a.setDevState("main_menu", "main_menu")
	_ = a.demo.SetState(context.Background(), "", "main_menu", true)
}

// OnRun compiles and launches the current files in an interactive console
// session.
func (a *App) OnRun() {
	a.mu.Lock()
	if a.question.QuestionID == "" {
		a.mu.Unlock()
		a.view.FlashStatus("open a question first")
		return
	}
	if !canOperate(a.phase) {
		a.mu.Unlock()
		return
	}
	if a.runner == nil {
		a.mu.Unlock()
		a.view.FlashStatus("execution engine unavailable")
		return
	}
	q := a.question
	files := cloneFiles(a.files)
	runner := a.runner
	rowID := a.sessionRowID
	a.mu.Unlock()

	if err := validateRunFiles(files); err != nil {
		a.view.FlashStatus("run blocked: " + err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := a.saver.SaveNow(ctx); err != nil {
		a.logger.Error("run.save_failed", map[string]any{"error": err.Error()})
	}

	a.console.Reset()
	a.lines.Reset()
	a.setPhase(PhaseRunning)
	a.syncPractical()
	a.view.FlashStatus("Compiling...")

	err := runner.Start(ctx, engine.StartRequest{
		QuestionID: q.QuestionID,
		Language:   q.Language,
		Files:      files,
	})
	if err != nil {
		a.logger.Error("run.start_failed", map[string]any{"question": q.QuestionID, "error": err.Error()})
		a.setPhase(PhaseEditing)
		a.syncPractical()
		a.view.FlashStatus("run failed: " + err.Error())
		return
	}

	_ = a.store.RecordRun(ctx, rowID)
	_ = a.store.AppendActivity(ctx, q.QuestionID, "run", "", time.Now().UTC())
	a.view.SetConsoleFocused(true)
	a.view.FlashStatus("Running (F7 stops)")
	a.logger.Info("run.started", map[string]any{"question": q.QuestionID, "files": len(files)})
}

func (a *App) onRunExit(ev engine.Event) {
	a.mu.Lock()
	wasRunning := a.phase == PhaseRunning
	a.mu.Unlock()
	if wasRunning {
		a.setPhase(PhaseEditing)
	}
	a.syncPractical()
	a.view.FlashStatus(fmt.Sprintf("Process exited with code %d", ev.ExitCode))
	a.view.RequestDraw()
	a.logger.Info("run.exit", map[string]any{"session": ev.SessionID, "code": ev.ExitCode, "time_ms": ev.ExecutionTimeMS, "memory_kb": ev.MemoryUsageKB})
}

func (a *App) OnStopRun() {
	a.mu.Lock()
	running := a.phase == PhaseRunning
	runner := a.runner
	a.mu.Unlock()
	if !running || runner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		a.view.FlashStatus("stop failed: " + err.Error())
		return
	}
	a.view.FlashStatus("Stopped")
}

// OnSubmit judges the current files against all test cases.
func (a *App) OnSubmit() {
	a.mu.Lock()
	if a.question.QuestionID == "" {
		a.mu.Unlock()
		a.view.FlashStatus("open a question first")
		return
	}
	if !canOperate(a.phase) {
		a.mu.Unlock()
		return
	}
	eng := a.engine
	if eng == nil {
		a.mu.Unlock()
		a.view.FlashStatus("execution engine unavailable")
		return
	}
	set := a.set
	q := a.question
	files := cloneFiles(a.files)
	info := a.info
	a.attempt++
	attempt := a.attempt
	a.mu.Unlock()

	if err := validateRunFiles(files); err != nil {
		a.mu.Lock()
		a.attempt--
		a.mu.Unlock()
		a.view.FlashStatus("submit blocked: " + err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout(q))
	defer cancel()

	if err := a.saver.SaveNow(ctx); err != nil {
		a.logger.Error("submit.save_failed", map[string]any{"error": err.Error()})
	}

	a.setPhase(PhaseSubmitting)
	a.view.SetSubmitting(true)
	a.syncPractical()
	a.view.FlashStatus("Judging...")
	a.logger.Info("submit.begin", map[string]any{"question": q.QuestionID, "attempt": attempt})

	started := time.Now()
	result, err := eng.Judge(ctx, grading.Request{
		AppVersion:            appVersion,
		SetID:                 set.SetID,
		SetVersion:            set.Version,
		QuestionID:            q.QuestionID,
		Title:                 q.Title,
		Difficulty:            q.Difficulty,
		Topics:                q.Topics,
		SubmissionID:          fmt.Sprintf("%s-%d", a.sessionID, attempt),
		Attempt:               attempt,
		StartedAt:             started,
		Engine:                info.Name,
		EngineVersion:         info.Version,
		Language:              q.Language,
		Files:                 files,
		Tests:                 q.Tests,
		NormalizeCRLF:         boolOr(q.Judge.NormalizeCRLF, true),
		IgnoreExtraWhitespace: boolOr(q.Judge.IgnoreExtraWhitespace, true),
		TimeoutSeconds:        timeoutOr(q.Judge.TimeoutSeconds, 5),
	})
	a.view.SetSubmitting(false)
	if err != nil {
		a.logger.Error("submit.failed", map[string]any{"question": q.QuestionID, "error": err.Error()})
		a.setPhase(PhaseEditing)
		a.syncPractical()
		a.view.FlashStatus("submit failed: " + err.Error())
		return
	}

	a.mu.Lock()
	a.lastResult = result
	a.mu.Unlock()

	pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pcancel()
	if err := a.persistSubmission(pctx, result, files); err != nil {
		a.logger.Error("submit.persist_failed", map[string]any{"question": q.QuestionID, "error": err.Error()})
	}

	feedback := buildSubmissionFeedback(q, result)
	a.view.SetResult(resultViewState(result, feedback))
	a.view.SetCatalog(a.catalog())
	progress, _ := a.store.GetQuestionProgress(pctx, q.QuestionID)
	a.view.SetPracticalState(a.practicalState(progress))

	if result.Passed {
		a.view.FlashStatus("PASS")
		a.setDevState("results_pass", "results_pass")
	} else {
		a.view.FlashStatus("FAIL")
		a.setDevState("results_fail", "results_fail")
	}
	_ = a.demo.SetState(context.Background(), "", a.currentDevState(), true)
	a.setPhase(PhaseEditing)
	a.logger.Info("submit.done", map[string]any{
		"question": q.QuestionID,
		"attempt":  attempt,
		"passed":   result.Passed,
		"status":   string(result.Status),
		"score":    fmt.Sprintf("%d/%d", result.Score.PassedTests, result.Score.TotalTests),
	})
}

// persistSubmission writes history and progress for one judge result. A
// full pass marks the question done with the full score; partial passes
// only update progress.
func (a *App) persistSubmission(ctx context.Context, result grading.Result, files []questions.CodeFile) error {
	a.mu.Lock()
	rowID := a.sessionRowID
	a.mu.Unlock()

	if err := a.history.RecordSubmission(ctx, result.QuestionID, files, result.Tests, result.Score.PassedTests, result.Score.TotalTests); err != nil {
		return fmt.Errorf("record submission history: %w", err)
	}
	if err := a.store.RecordSubmission(ctx, rowID, result.Passed); err != nil {
		a.logger.Error("submit.session_row_failed", map[string]any{"error": err.Error()})
	}
	if err := a.store.UpsertQuestionProgress(ctx, state.QuestionProgressUpdate{
		QuestionID:  result.QuestionID,
		Passed:      result.Passed,
		Score:       result.Score.PassedTests,
		TotalTests:  result.Score.TotalTests,
		SubmittedTS: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	if result.Passed {
		if err := a.store.SetQuestionDone(ctx, result.QuestionID, true, result.Score.TotalTests); err != nil {
			return fmt.Errorf("mark done: %w", err)
		}
	}
	_ = a.store.AppendActivity(ctx, result.QuestionID, "submit", string(result.Status), time.Now().UTC())
	return nil
}

func (a *App) OnSelectFile(filename string) {
	a.mu.Lock()
	if filename == a.activeFile || a.question.QuestionID == "" {
		a.mu.Unlock()
		return
	}
	idx := fileIndex(a.files, filename)
	if idx < 0 || a.files[idx].IsHidden {
		a.mu.Unlock()
		a.view.FlashStatus("unknown file: " + filename)
		return
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	if err := a.saver.SaveNow(ctx); err != nil {
		a.logger.Error("file_switch.save_failed", map[string]any{"error": err.Error()})
	}

	a.mu.Lock()
	a.activeFile = filename
	a.mu.Unlock()
	a.pushActiveFile()
	a.syncPractical()
}

// OnEditorChanged accepts content in every phase with a live editor,
// running and submitting included: the textarea stays writable while a
// program runs, and a run started right after the exit must execute what
// the editor shows.
func (a *App) OnEditorChanged(filename, content string) {
	a.mu.Lock()
	if !editablePhase(a.phase) || filename != a.activeFile {
		a.mu.Unlock()
		return
	}
	idx := fileIndex(a.files, filename)
	if idx < 0 || a.files[idx].IsLocked {
		a.mu.Unlock()
		return
	}
	if a.files[idx].Content == content {
		a.mu.Unlock()
		return
	}
	a.files[idx].Content = content
	firstEdit := a.phase == PhaseReady
	a.mu.Unlock()

	if firstEdit {
		a.setPhase(PhaseEditing)
	}
	a.saver.NoteEdit()
}

func (a *App) OnManualSave() {
	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	if err := a.saver.SaveNow(ctx); err != nil {
		a.view.FlashStatus("save failed: " + err.Error())
		return
	}
	a.view.FlashStatus("Saved")
}

func (a *App) OnResetFile() {
	a.mu.Lock()
	name := a.activeFile
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if !loaded || name == "" {
		return
	}
	a.view.SetResetConfirmOpen(name, true)
}

func (a *App) OnResetFileConfirm(confirmed bool) {
	a.view.SetResetConfirmOpen("", false)
	if !confirmed {
		return
	}

	a.mu.Lock()
	name := a.activeFile
	q := a.question
	idx := fileIndex(a.files, name)
	if idx < 0 {
		a.mu.Unlock()
		return
	}
	content := originalContent(q, name)
	a.files[idx].Content = content
	locked := a.files[idx].IsLocked
	a.mu.Unlock()

	a.saver.NoteEdit()
	a.view.SetActiveFileContent(name, content, locked)

	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	if err := a.saver.SaveNow(ctx); err != nil {
		a.view.FlashStatus("reset saved with errors: " + err.Error())
	} else {
		a.view.FlashStatus("File reset to original")
	}
	_ = a.store.AppendActivity(ctx, q.QuestionID, "reset", name, time.Now().UTC())
}

// originalContent is what resetFile restores: the bank's starter content,
// or the placeholder for an answer file that started blank.
func originalContent(q questions.Question, filename string) string {
	for _, f := range q.Files {
		if f.Filename != filename {
			continue
		}
		if strings.TrimSpace(f.Content) != "" {
			return f.Content
		}
		if f.IsAnswerFile {
			return questions.PlaceholderFor(fileLanguage(f, q))
		}
		return f.Content
	}
	return ""
}

func (a *App) OnShowStatement() {
	a.mu.Lock()
	a.statementOpen = !a.statementOpen
	open := a.statementOpen
	a.mu.Unlock()
	a.view.SetStatementOpen(open)
	if open {
		a.setDevState("statement_open", "statement_open")
		_ = a.demo.SetState(context.Background(), "", "statement_open", true)
	}
}

func (a *App) OnShowHistory() {
	a.mu.Lock()
	a.historyOpen = !a.historyOpen
	open := a.historyOpen
	qid := a.question.QuestionID
	a.mu.Unlock()
	if qid == "" {
		return
	}
	if !open {
		a.view.SetHistory(ui.HistoryState{})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	entries, err := a.history.List(ctx, qid)
	if err != nil {
		a.view.FlashStatus("history unavailable: " + err.Error())
		return
	}
	a.view.SetHistory(historyViewState(entries, true))
	a.setDevState("history_open", "history_open")
	_ = a.demo.SetState(context.Background(), "", "history_open", true)
}

// OnRestoreHistory replaces file contents from a snapshot. Restoring a
// submission first captures the current state as the iteration draft;
// restoring the iteration draft consumes it.
func (a *App) OnRestoreHistory(entryID int64) {
	a.mu.Lock()
	qid := a.question.QuestionID
	current := cloneFiles(a.files)
	a.mu.Unlock()
	if qid == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	entries, err := a.history.List(ctx, qid)
	if err != nil {
		a.view.FlashStatus("restore failed: " + err.Error())
		return
	}
	var entry *history.Entry
	for i := range entries {
		if entries[i].ID == entryID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		a.view.FlashStatus("snapshot no longer exists")
		return
	}

	if entry.Kind == history.KindSubmission {
		if err := a.history.RecordIteration(ctx, qid, current); err != nil {
			a.logger.Error("restore.capture_failed", map[string]any{"error": err.Error()})
		}
	}

	merged := history.MergeFiles(current, entry.Files)
	a.mu.Lock()
	a.files = merged
	a.activeFile = questions.FirstAnswerFile(merged)
	a.historyOpen = false
	a.mu.Unlock()

	if entry.Kind == history.KindIteration {
		if err := a.history.ClearIteration(ctx, qid); err != nil {
			a.logger.Error("restore.clear_failed", map[string]any{"error": err.Error()})
		}
	}

	a.saver.MarkClean()
	a.pushActiveFile()
	a.syncPractical()
	entries, _ = a.history.List(ctx, qid)
	a.view.SetHistory(historyViewState(entries, false))
	a.view.FlashStatus("Snapshot restored")
	_ = a.store.AppendActivity(ctx, qid, "restore", entry.Kind, time.Now().UTC())
}

func (a *App) OnPreviewFile(filename string) {
	a.mu.Lock()
	idx := fileIndex(a.files, filename)
	if idx < 0 {
		a.mu.Unlock()
		return
	}
	content := a.files[idx].Content
	a.mu.Unlock()
	a.view.SetFilePreview(filename, content, true)
}

func (a *App) OnClosePractical() {
	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if !loaded {
		return
	}
	if a.saver.Dirty() {
		a.saver.BeginPendingClose()
		a.view.SetCloseConfirmOpen(true)
		a.logger.Info("close.confirm", map[string]any{})
		return
	}
	a.teardownPractical(false)
}

func (a *App) OnCloseConfirm(discard bool) {
	a.view.SetCloseConfirmOpen(false)
	if !discard {
		a.mu.Lock()
		a.quitAfterClose = false
		a.mu.Unlock()
		a.saver.CancelPendingClose()
		a.view.FlashStatus("Kept editing")
		return
	}
	a.saver.BeginDiscard()
	a.logger.Info("close.discard", map[string]any{})
	a.mu.Lock()
	quit := a.quitAfterClose
	a.quitAfterClose = false
	a.mu.Unlock()
	a.teardownPractical(quit)
}

func (a *App) teardownPractical(quit bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.setPhase(PhaseClosing)
	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		_ = runner.Stop(ctx)
	}
	a.console.Reset()
	a.lines.Reset()

	a.mu.Lock()
	a.set = questions.Set{}
	a.question = questions.Question{}
	a.files = nil
	a.activeFile = ""
	a.lastResult = grading.Result{}
	a.statementOpen = false
	a.historyOpen = false
	a.menuOpen = false
	a.mu.Unlock()

	a.view.SetResult(ui.ResultState{})
	a.view.SetHistory(ui.HistoryState{})
	a.view.SetStatementOpen(false)
	a.view.SetMenuOpen(false)
	a.setPhase(PhaseIdle)

	if quit {
		a.view.Stop()
		return
	}
	a.showQuestionSelect()
}

func (a *App) OnQuit() {
	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if loaded && a.saver.Dirty() {
		a.mu.Lock()
		a.quitAfterClose = true
		a.mu.Unlock()
		a.saver.BeginPendingClose()
		a.view.SetCloseConfirmOpen(true)
		return
	}
	a.view.Stop()
}

func (a *App) OnMenu() {
	a.mu.Lock()
	a.menuOpen = !a.menuOpen
	open := a.menuOpen
	a.mu.Unlock()
	a.view.SetMenuOpen(open)
}

func (a *App) OnToggleAutosave() {
	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	settings, err := a.store.LoadSettings(ctx)
	if err != nil {
		a.view.FlashStatus("settings unavailable: " + err.Error())
		return
	}
	enabled, interval := a.autosaveSettings(settings)
	enabled = !enabled
	if err := a.store.SaveSettings(ctx, map[string]string{settingAutosaveEnabled: fmt.Sprintf("%t", enabled)}); err != nil {
		a.view.FlashStatus("settings save failed: " + err.Error())
		return
	}
	a.saver.Configure(enabled, interval)
	if enabled {
		a.view.FlashStatus("Autosave on")
	} else {
		a.view.FlashStatus("Autosave off")
	}
}

func (a *App) OnCycleTheme() {
	variants := []string{"modern_arcade", "cozy_clean", "retro_terminal"}
	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	settings, _ := a.store.LoadSettings(ctx)
	current := firstNonEmpty(settings[settingStyleVariant], a.cfg.UI.StyleVariant)
	next := variants[0]
	for i, v := range variants {
		if v == current {
			next = variants[(i+1)%len(variants)]
			break
		}
	}
	if err := a.store.SaveSettings(ctx, map[string]string{settingStyleVariant: next}); err != nil {
		a.logger.Error("settings.save_failed", map[string]any{"error": err.Error()})
	}
	a.view.SetTheme(next)
	a.view.FlashStatus("Theme: " + next)
}

func (a *App) OnOpenStats() {
	summary, err := a.store.GetSummary(context.Background())
	if err != nil {
		a.view.SetInfo("Stats", "Failed to load stats: "+err.Error(), true)
		return
	}
	text := fmt.Sprintf("Practice sessions: %d\nRuns: %d\nSubmissions: %d\nPasses: %d\nQuestions done: %d",
		summary.Sessions, summary.Runs, summary.Submissions, summary.Passes, summary.QuestionsDone)
	a.view.SetInfo("Stats", text, true)
}

func (a *App) OnOpenSettings() {
	a.mu.Lock()
	info := a.info
	a.mu.Unlock()
	settings, _ := a.store.LoadSettings(context.Background())
	enabled, interval := a.autosaveSettings(settings)
	text := fmt.Sprintf("Engine: %s %s\nEngine mode: %s\nData dir: %s\nSets dir: %s\nAutosave: %t every %s\nTheme: %s",
		info.Name, info.Version, a.cfg.EngineMode, a.cfg.DataDir, a.cfg.SetsDir,
		enabled, interval, firstNonEmpty(settings[settingStyleVariant], a.cfg.UI.StyleVariant))
	a.view.SetInfo("Settings", text, true)
}

// OnConsoleInput feeds raw key bytes through the line discipline while a
// program is running. Echo goes to the console, completed lines to the
// session.
func (a *App) OnConsoleInput(data []byte) {
	if len(data) == 0 {
		return
	}
	a.mu.Lock()
	running := a.phase == PhaseRunning
	a.mu.Unlock()
	if !running {
		return
	}
	a.lines.Feed(data)
}

func (a *App) echoToConsole(b []byte) {
	_, _ = a.console.Write(b)
}

func (a *App) sendConsoleLine(line string) {
	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		runner.WriteLine(line)
	}
}

func (a *App) OnResize(cols, rows int) {
	mode := ui.DetermineLayoutMode(cols, rows)
	if mode == ui.LayoutTooSmall {
		a.view.SetTooSmall(cols, rows)
		return
	}
	w, h := ui.ConsolePanelSize(cols, rows, mode)
	a.console.Resize(w, h)
}

func (a *App) setPhase(to Phase) {
	a.mu.Lock()
	from := a.phase
	a.phase = to
	a.mu.Unlock()
	if from == to {
		return
	}
	if !validPhaseChange(from, to) {
		a.logger.Error("session.phase.invalid", map[string]any{"from": string(from), "to": string(to)})
		return
	}
	a.logger.Debug("session.phase", map[string]any{"from": string(from), "to": string(to)})
}

// saveReady gates autosave attempts: a question must be loaded with a
// working file set.
func (a *App) saveReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.question.QuestionID != "" && len(a.files) > 0 && a.activeFile != ""
}

// persistDraft is the autosaver's save hook: the full working set goes to
// the draft table and the iteration history entry.
func (a *App) persistDraft(ctx context.Context) error {
	a.mu.Lock()
	qid := a.question.QuestionID
	files := cloneFiles(a.files)
	a.mu.Unlock()
	if qid == "" {
		return nil
	}

	drafts := make([]state.DraftFile, 0, len(files))
	for _, f := range files {
		drafts = append(drafts, state.DraftFile{Filename: f.Filename, Content: f.Content})
	}
	if err := a.store.SaveDraftFiles(ctx, qid, drafts); err != nil {
		return err
	}
	if err := a.history.RecordIteration(ctx, qid, files); err != nil {
		a.logger.Error("autosave.iteration_failed", map[string]any{"error": err.Error()})
	}
	a.logger.Debug("autosave.saved", map[string]any{"question": qid, "files": len(files)})
	return nil
}

func (a *App) syncSaveState() {
	if a.view == nil || a.saver == nil {
		return
	}
	a.view.SetSaveState(ui.SaveState{Dirty: a.saver.Dirty(), Saving: a.saver.Saving()})
}

func (a *App) syncPractical() {
	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	qid := a.question.QuestionID
	a.mu.Unlock()
	if !loaded {
		return
	}
	progress, _ := a.store.GetQuestionProgress(context.Background(), qid)
	a.view.SetPracticalState(a.practicalState(progress))
}

func (a *App) pushActiveFile() {
	a.mu.Lock()
	name := a.activeFile
	idx := fileIndex(a.files, name)
	content, locked := "", false
	if idx >= 0 {
		content = a.files[idx].Content
		locked = a.files[idx].IsLocked
	}
	a.mu.Unlock()
	if name == "" {
		return
	}
	a.view.SetActiveFileContent(name, content, locked)
}

func (a *App) practicalState(progress *state.QuestionProgress) ui.PracticalState {
	a.mu.Lock()
	defer a.mu.Unlock()

	visible := questions.VisibleFiles(a.files)
	tabs := make([]ui.FileTab, 0, len(visible))
	for _, f := range visible {
		tabs = append(tabs, ui.FileTab{Filename: f.Filename, Locked: f.IsLocked, Answer: f.IsAnswerFile})
	}
	st := ui.PracticalState{
		SetID:      a.set.SetID,
		QuestionID: a.question.QuestionID,
		Title:      a.question.Title,
		Difficulty: a.question.Difficulty,
		Topics:     append([]string(nil), a.question.Topics...),
		Language:   a.question.Language,
		Tabs:       tabs,
		ActiveFile: a.activeFile,
		Phase:      string(a.phase),
		EngineName: a.info.Name,
		Attempts:   a.attempt,
		StartedAt:  a.startTime,
	}
	if progress != nil {
		st.Done = progress.Done
		st.BestScore = progress.BestScore
		st.TotalTests = progress.TotalTests
		if progress.Attempts > st.Attempts {
			st.Attempts = progress.Attempts
		}
	}
	return st
}

func (a *App) mainMenuState() ui.MainMenuState {
	summary, _ := a.store.GetSummary(context.Background())
	last, _ := a.store.GetLastSession(context.Background())
	a.mu.Lock()
	info := a.info
	a.mu.Unlock()

	st := ui.MainMenuState{
		EngineName:    info.Name,
		EngineVersion: info.Version,
		EngineMock:    info.Mock,
		SetCount:      len(a.sets),
		Sessions:      summary.Sessions,
		Runs:          summary.Runs,
		Submissions:   summary.Submissions,
		Passes:        summary.Passes,
		DoneCount:     summary.QuestionsDone,
		Tip:           "F8 focuses the console when your program waits for input.",
	}
	for _, s := range a.sets {
		st.QuestionCount += len(s.LoadedQuestions)
	}
	if last != nil {
		st.LastSetID = last.SetID
		st.LastQuestionID = last.QuestionID
	}
	return st
}

func (a *App) catalog() []ui.SetSummary {
	progress, err := a.store.GetQuestionProgressMap(context.Background())
	if err != nil {
		progress = nil
	}
	out := make([]ui.SetSummary, 0, len(a.sets))
	for _, s := range a.sets {
		ss := ui.SetSummary{
			SetID:     s.SetID,
			Name:      s.Name,
			Questions: make([]ui.QuestionSummary, 0, len(s.LoadedQuestions)),
		}
		for _, q := range s.LoadedQuestions {
			qs := ui.QuestionSummary{
				QuestionID: q.QuestionID,
				Title:      q.Title,
				Difficulty: q.Difficulty,
				Topics:     append([]string(nil), q.Topics...),
			}
			if p, ok := progress[q.QuestionID]; ok {
				qs.Done = p.Done
				qs.BestScore = p.BestScore
				qs.TotalTests = p.TotalTests
				qs.Attempts = p.Attempts
			}
			ss.Questions = append(ss.Questions, qs)
		}
		out = append(out, ss)
	}
	return out
}

func resultViewState(result grading.Result, feedback string) ui.ResultState {
	rows := make([]ui.ResultRow, 0, len(result.Tests))
	for _, t := range result.Tests {
		row := ui.ResultRow{
			Index:    t.Index + 1,
			Passed:   t.Passed,
			Hidden:   t.IsHidden,
			TimeMS:   t.ExecutionTimeMS,
			MemoryKB: t.MemoryUsageKB,
			Error:    t.Error,
		}
		if !t.IsHidden {
			row.Input = t.Input
			row.Expected = t.ExpectedOutput
			row.Actual = t.ActualOutput
		}
		rows = append(rows, row)
	}
	summary := fmt.Sprintf("%d of %d tests passed.", result.Score.PassedTests, result.Score.TotalTests)
	if result.Passed {
		summary = "All tests passed."
	} else if result.Status == grading.StatusCompileError {
		summary = "Compilation failed."
	}
	return ui.ResultState{
		Visible:      true,
		Passed:       result.Passed,
		Status:       string(result.Status),
		Summary:      summary,
		Score:        result.Score.PassedTests,
		Total:        result.Score.TotalTests,
		Rows:         rows,
		CompileError: result.CompileError,
		Feedback:     feedback,
		DurationMS:   result.Run.DurationMS,
	}
}

func historyViewState(entries []history.Entry, open bool) ui.HistoryState {
	rows := make([]ui.HistoryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ui.HistoryRow{
			EntryID:  e.ID,
			Kind:     e.Kind,
			When:     e.Timestamp,
			Score:    e.Score,
			MaxScore: e.MaxScore,
			Files:    len(e.Files),
		})
	}
	return ui.HistoryState{Open: open, Rows: rows}
}

func validateRunFiles(files []questions.CodeFile) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to run")
	}
	for _, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			return fmt.Errorf("a file is missing its filename")
		}
		if strings.TrimSpace(f.Content) == "" {
			return fmt.Errorf("file %s is empty", f.Filename)
		}
	}
	return nil
}

func submitTimeout(q questions.Question) time.Duration {
	per := q.Judge.TimeoutSeconds
	if per <= 0 {
		per = 5
	}
	return time.Duration(15+per*len(q.Tests)) * time.Second
}

func fileLanguage(f questions.CodeFile, q questions.Question) string {
	if f.Language != "" {
		return f.Language
	}
	return q.Language
}

func cloneFiles(files []questions.CodeFile) []questions.CodeFile {
	return append([]questions.CodeFile(nil), files...)
}

func fileIndex(files []questions.CodeFile, filename string) int {
	for i := range files {
		if files[i].Filename == filename {
			return i
		}
	}
	return -1
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func timeoutOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func (a *App) currentDevState() string {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	return a.devState.State
}

func (a *App) setDevState(state, demo string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = true
	a.devState.Pending = false
	a.devState.Error = ""
	a.devState.RenderSeq++
}

func (a *App) setDevPending(state, demo string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = false
	a.devState.Pending = true
	a.devState.Error = ""
	a.devState.RenderSeq++
}

func (a *App) setDevError(state, demo, errText string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = false
	a.devState.Pending = false
	a.devState.Error = errText
	a.devState.RenderSeq++
}

func (a *App) getDevState() map[string]any {
	a.mu.Lock()
	phase := a.phase
	a.mu.Unlock()
	a.devMu.Lock()
	defer a.devMu.Unlock()
	return map[string]any{
		"ok":            true,
		"state":         a.devState.State,
		"demo":          a.devState.Demo,
		"render_seq":    a.devState.RenderSeq,
		"rendered":      a.devState.Rendered,
		"pending":       a.devState.Pending,
		"error":         a.devState.Error,
		"phase":         string(phase),
		"console_bytes": a.console.TotalOutputBytes(),
	}
}

func (a *App) runDemoScenario(ctx context.Context, requested string) (string, error) {
	resolved := a.demo.Resolve(requested).Name
	a.logger.Info("dev.demo.begin", map[string]any{"requested": requested, "resolved": resolved})
	a.setDevPending(resolved, requested)

	a.demoMu.Lock()
	defer a.demoMu.Unlock()

	if err := a.applyDemoScenario(ctx, requested); err != nil {
		a.logger.Error("dev.demo.apply_failed", map[string]any{"requested": requested, "error": err.Error()})
		a.setDevError(resolved, requested, err.Error())
		_ = a.demo.SetState(ctx, "", resolved, false)
		return resolved, err
	}
	a.view.RequestDraw()
	a.setDevState(resolved, resolved)
	if err := a.demo.SetState(ctx, "", resolved, true); err != nil {
		a.logger.Error("dev_state.write_failed", map[string]any{"state": resolved, "error": err.Error()})
	}
	a.logger.Info("dev.demo.done", map[string]any{"requested": requested, "resolved": resolved})
	return resolved, nil
}

func (a *App) applyDemoScenario(ctx context.Context, scenario string) error {
	s := a.demo.Resolve(scenario)
	switch s.Name {
	case "main_menu":
		a.OnBackToMainMenu()
		return nil
	case "question_select":
		a.showQuestionSelect()
		return nil
	}

	a.mu.Lock()
	loaded := a.question.QuestionID != ""
	a.mu.Unlock()
	if !loaded {
		if err := a.loadQuestion(ctx, a.sets[0].SetID, a.sets[0].LoadedQuestions[0].QuestionID); err != nil {
			return err
		}
	}
	a.mu.Lock()
	set := a.set
	q := a.question
	mock := a.info.Mock
	a.mu.Unlock()

	if mock {
		if err := a.console.StartPlayback(ctx, a.demo.PlaybackFrames(q.QuestionID, s.Name), false); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.statementOpen = s.StatementOpen
	a.historyOpen = s.HistoryOpen
	a.menuOpen = s.MenuOpen
	a.mu.Unlock()
	a.view.SetStatementOpen(s.StatementOpen)
	a.view.SetMenuOpen(s.MenuOpen)
	if s.HistoryOpen {
		entries, _ := a.history.List(ctx, q.QuestionID)
		a.view.SetHistory(historyViewState(entries, true))
	}

	if s.ResultPass != nil {
		result := demoResult(set, q, *s.ResultPass)
		a.mu.Lock()
		a.lastResult = result
		a.mu.Unlock()
		a.view.SetResult(resultViewState(result, buildSubmissionFeedback(q, result)))
	} else {
		a.view.SetResult(ui.ResultState{})
	}
	return nil
}

// demoResult fabricates a deterministic judge outcome for screenshot and
// smoke flows: a pass, or a fail on the final test.
func demoResult(set questions.Set, q questions.Question, passed bool) grading.Result {
	now := time.Now()
	req := grading.Request{
		AppVersion:   appVersion,
		SetID:        set.SetID,
		SetVersion:   set.Version,
		QuestionID:   q.QuestionID,
		Title:        q.Title,
		SubmissionID: "demo",
		Attempt:      1,
		StartedAt:    now.Add(-2 * time.Second),
		FinishedAt:   now,
		Language:     q.Language,
		Tests:        q.Tests,
	}
	tests := make([]grading.TestResult, 0, len(q.Tests))
	for i, tc := range q.Tests {
		ok := passed || i < len(q.Tests)-1
		actual := tc.ExpectedOutput
		if !ok {
			actual = ""
		}
		tests = append(tests, grading.TestResult{
			Index:           i,
			Passed:          ok,
			IsHidden:        tc.IsHidden,
			Input:           tc.Input,
			ExpectedOutput:  tc.ExpectedOutput,
			ActualOutput:    actual,
			ExecutionTimeMS: int64(2 + i),
			MemoryUsageKB:   1024,
		})
	}
	return grading.BuildResult(req, tests, "")
}

func (a *App) startDevHTTP() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/__dev/ready", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.getDevState())
	})
	mux.HandleFunc("/__dev/demo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Demo string `json:"demo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid json"})
			return
		}
		req.Demo = strings.TrimSpace(req.Demo)
		if req.Demo == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "demo is required"})
			return
		}
		a.logger.Info("dev.demo.request", map[string]any{"demo": req.Demo})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		resolved, err := a.runDemoScenario(ctx, req.Demo)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error(), "state": resolved})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "state": resolved, "requested": req.Demo})
	})

	srv := &http.Server{Addr: a.cfg.DevHTTP, Handler: mux}
	a.devMu.Lock()
	a.devServer = srv
	a.devMu.Unlock()
	a.setDevState("main_menu", a.cfg.DemoScenario)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("dev_http.listen_failed", map[string]any{"error": err.Error(), "addr": a.cfg.DevHTTP})
		}
	}()
	return nil
}
