package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"
	"dsadojo/internal/telemetry"
)

const (
	// DefaultBinary is the engine looked up on PATH when no override is set.
	DefaultBinary = "dsadojo-engine"

	minEngineVersion     = "0.1.0"
	defaultMemoryLimitMB = 256
)

// Detect resolves a judge engine. Order: explicit command override, then
// DefaultBinary on PATH, then the builtin mock when allowed. A resolved
// engine that fails its version probe is an error, not a mock fallback;
// silently downgrading a broken install would hide it from the user.
func Detect(ctx context.Context, override string, allowMock bool, log *telemetry.JSONLogger) (Engine, error) {
	command, err := resolveCommand(override)
	if err != nil {
		return nil, err
	}
	if command == nil {
		if allowMock {
			log.Info("engine not found, using builtin mock", map[string]any{"binary": DefaultBinary})
			return NewMock(log), nil
		}
		return nil, fmt.Errorf("%s not found in PATH (install the judge engine or set the engine command override)", DefaultBinary)
	}

	client, err := StartClient(command, log)
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ver, err := client.Version(vctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("engine version probe failed: %w", err)
	}
	if err := checkVersion(ver); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info("engine detected", map[string]any{"command": strings.Join(command, " "), "version": ver})
	return NewService(client, Info{Name: command[0], Version: ver}, log), nil
}

func resolveCommand(override string) ([]string, error) {
	if override != "" {
		parts, err := shlex.Split(override, true)
		if err != nil {
			return nil, fmt.Errorf("parse engine command %q: %w", override, err)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("engine command %q is empty", override)
		}
		if !containsArg(parts, "--stdio") {
			parts = append(parts, "--stdio")
		}
		return parts, nil
	}
	path, err := exec.LookPath(DefaultBinary)
	if err != nil {
		return nil, nil
	}
	return []string{path, "--stdio"}, nil
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func checkVersion(v string) error {
	got, err := version.NewVersion(strings.TrimPrefix(strings.TrimSpace(v), "v"))
	if err != nil {
		return fmt.Errorf("engine reported unparsable version %q: %w", v, err)
	}
	minimum := version.Must(version.NewVersion(minEngineVersion))
	if got.LessThan(minimum) {
		return fmt.Errorf("engine version %s is older than the required %s", got, minimum)
	}
	return nil
}

// Service wraps the external engine binary. Grading goes over the stdio
// RPC; interactive runs compile over RPC and then execute the produced
// binary locally under a PTY so the program sees a real terminal.
type Service struct {
	client *Client
	info   Info
	log    *telemetry.JSONLogger

	events chan Event

	mu       sync.Mutex
	sessions map[string]*execSession
	closed   bool
}

func NewService(client *Client, info Info, log *telemetry.JSONLogger) *Service {
	return &Service{
		client:   client,
		info:     info,
		log:      log,
		events:   make(chan Event, 1024),
		sessions: make(map[string]*execSession),
	}
}

type execSession struct {
	id        string
	cmd       *exec.Cmd
	ptmx      *os.File
	execPath  string
	startedAt time.Time

	writeMu sync.Mutex
	peakKB  atomic.Int64
	stop    sync.Once

	done       chan struct{} // process reaped
	readerDone chan struct{} // output fully drained
	finished   chan struct{} // exit event emitted
}

func (x *execSession) kill() {
	x.stop.Do(func() {
		if x.cmd.Process != nil {
			_ = x.cmd.Process.Kill()
		}
	})
}

func (s *Service) Info() Info { return s.info }

func (s *Service) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *Service) EnvCheck(ctx context.Context) error { return s.client.EnvCheck(ctx) }

func (s *Service) Events() <-chan Event { return s.events }

// StartExecution compiles the file set and launches the executable under a
// PTY. A compile failure is not an error return: it comes back in
// StartResult.Error so the caller can print it on the console.
func (s *Service) StartExecution(ctx context.Context, req StartRequest) (StartResult, error) {
	cr, err := s.client.Compile(ctx, toWireFiles(req.Files), req.Language)
	if err != nil {
		return StartResult{}, err
	}
	if !cr.Success {
		return StartResult{Error: strings.TrimSpace(cr.Error)}, nil
	}
	if cr.ExecutablePath == "" {
		return StartResult{Error: "engine returned no executable"}, nil
	}

	cmd := exec.Command(cr.ExecutablePath)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		_ = os.Remove(cr.ExecutablePath)
		return StartResult{Error: fmt.Sprintf("start program: %v", err)}, nil
	}

	sess := &execSession{
		id:         uuid.NewString(),
		cmd:        cmd,
		ptmx:       ptmx,
		execPath:   cr.ExecutablePath,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		finished:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.kill()
		_ = ptmx.Close()
		return StartResult{}, errors.New("engine service is closed")
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	go s.readOutput(sess)
	go s.sampleMemory(sess)
	go s.awaitExit(sess)

	s.log.Info("run session started", map[string]any{
		"session":         sess.id,
		"question":        req.QuestionID,
		"language":        req.Language,
		"files":           len(req.Files),
		"compile_time_ms": cr.CompileTimeMS,
	})
	return StartResult{Success: true, SessionID: sess.id}, nil
}

func (s *Service) readOutput(sess *execSession) {
	defer close(sess.readerDone)
	buf := make([]byte, 8192)
	for {
		n, err := sess.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.emit(Event{SessionID: sess.id, Data: chunk})
		}
		if err != nil {
			return
		}
	}
}

func (s *Service) sampleMemory(sess *execSession) {
	pid := 0
	if sess.cmd.Process != nil {
		pid = sess.cmd.Process.Pid
	}
	if pid == 0 {
		return
	}
	t := time.NewTicker(30 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-sess.done:
			return
		case <-t.C:
			if kb := readPeakRSSKB(pid); kb > sess.peakKB.Load() {
				sess.peakKB.Store(kb)
			}
		}
	}
}

// readPeakRSSKB reads VmHWM from /proc. Returns 0 where procfs is not
// available; the summary then simply reports zero memory.
func readPeakRSSKB(pid int) int64 {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return 0
	}
	return parseVmHWM(data)
}

func parseVmHWM(status []byte) int64 {
	for _, line := range strings.Split(string(status), "\n") {
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb
	}
	return 0
}

func (s *Service) awaitExit(sess *execSession) {
	_ = sess.cmd.Wait()
	exitCode := -1
	if sess.cmd.ProcessState != nil {
		exitCode = sess.cmd.ProcessState.ExitCode()
	}
	close(sess.done)
	_ = sess.ptmx.Close()
	<-sess.readerDone

	elapsed := time.Since(sess.startedAt).Milliseconds()
	peak := sess.peakKB.Load()

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	_ = os.Remove(sess.execPath)

	s.emit(Event{
		SessionID:       sess.id,
		Exit:            true,
		ExitCode:        exitCode,
		ExecutionTimeMS: elapsed,
		MemoryUsageKB:   peak,
	})
	close(sess.finished)

	s.log.Info("run session exited", map[string]any{
		"session":   sess.id,
		"exit_code": exitCode,
		"time_ms":   elapsed,
		"memory_kb": peak,
	})
}

func (s *Service) emit(ev Event) {
	s.events <- ev
}

// WriteExecution forwards input to the running program. Writes to unknown
// or already exited sessions are dropped.
func (s *Service) WriteExecution(sessionID string, data []byte) error {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.writeMu.Lock()
	_, err := sess.ptmx.Write(data)
	sess.writeMu.Unlock()
	return err
}

// StopExecution kills the session's process and waits for its exit event
// to be emitted. Unknown session ids are a no-op, so stopping an already
// exited session is safe.
func (s *Service) StopExecution(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.kill()
	select {
	case <-sess.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Judge grades a submission through the engine and reshapes the wire
// response into a Result.
func (s *Service) Judge(ctx context.Context, req grading.Request) (grading.Result, error) {
	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now()
	}
	resp, err := s.client.Judge(ctx, buildJudgeRequest(req))
	if err != nil {
		return grading.Result{}, err
	}
	req.FinishedAt = time.Now()
	return resultFromWire(req, resp)
}

// resultFromWire maps the judge response onto a Result. Input and hidden
// flags are rejoined from the request by test index since the engine does
// not echo them back.
func resultFromWire(req grading.Request, resp JudgeResponse) (grading.Result, error) {
	if resp.Result == nil {
		if resp.Error != "" {
			return grading.Result{}, errors.New(resp.Error)
		}
		return grading.Result{}, fmt.Errorf("judge returned no result (status %s)", resp.Status)
	}

	sub := resp.Result
	tests := make([]grading.TestResult, 0, len(sub.TestCaseResults))
	for _, tc := range sub.TestCaseResults {
		tr := grading.TestResult{
			Index:           tc.TestCaseID,
			Passed:          tc.Passed,
			ExpectedOutput:  tc.ExpectedOutput,
			ActualOutput:    tc.ActualOutput,
			ExecutionTimeMS: tc.ExecutionResult.ExecutionTime,
			MemoryUsageKB:   tc.ExecutionResult.MemoryUsage,
			Error:           tc.ExecutionResult.Error,
		}
		if tc.TestCaseID >= 0 && tc.TestCaseID < len(req.Tests) {
			src := req.Tests[tc.TestCaseID]
			tr.Input = src.Input
			tr.IsHidden = src.IsHidden
		}
		tests = append(tests, tr)
	}
	compileErr := ""
	if !sub.CompilationSuccessful {
		compileErr = sub.CompilationError
	}
	return grading.BuildResult(req, tests, compileErr), nil
}

func buildJudgeRequest(req grading.Request) JudgeRequest {
	title := req.Title
	if title == "" {
		title = req.QuestionID
	}
	return JudgeRequest{
		Files:    toWireFiles(req.Files),
		Language: req.Language,
		Problem: Problem{
			ID:          req.QuestionID,
			Title:       title,
			Description: title,
			Difficulty:  difficultyBucket(req.Difficulty),
			TimeLimit:   int64(req.TimeoutSeconds) * 1000,
			MemoryLimit: defaultMemoryLimitMB,
			TestCases:   toWireTests(req.Tests),
			Tags:        req.Topics,
		},
		Normalization: NormalizationOptions{
			NormalizeCRLF:         req.NormalizeCRLF,
			IgnoreExtraWhitespace: req.IgnoreExtraWhitespace,
		},
	}
}

// Close tears down all run sessions, then the engine subprocess.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*execSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.kill()
	}
	for _, sess := range sessions {
		<-sess.finished
	}
	err := s.client.Close()
	close(s.events)
	return err
}

func difficultyBucket(level int) string {
	switch {
	case level <= 2:
		return DifficultyEasy
	case level == 3:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func toWireFiles(files []questions.CodeFile) []CodeFile {
	out := make([]CodeFile, 0, len(files))
	for _, f := range files {
		out = append(out, CodeFile{Filename: f.Filename, Content: f.Content})
	}
	return out
}

func toWireTests(tests []questions.TestCase) []TestCase {
	out := make([]TestCase, 0, len(tests))
	for _, t := range tests {
		out = append(out, TestCase{
			Input:          t.Input,
			ExpectedOutput: t.ExpectedOutput,
			IsHidden:       t.IsHidden,
		})
	}
	return out
}
