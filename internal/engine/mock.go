package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dsadojo/internal/grading"
	"dsadojo/internal/telemetry"
)

const mockPeakMemoryKB = 2048

// Mock stands in when no judge engine is installed. Run sessions host a
// builtin echo program so the console input path can be exercised, and
// judging is deterministic per question: the first submission fails its
// last test, later ones pass. Everything happens in-process.
type Mock struct {
	log    *telemetry.JSONLogger
	events chan Event

	mu       sync.Mutex
	sessions map[string]*mockSession
	attempts map[string]int
	closed   bool
}

func NewMock(log *telemetry.JSONLogger) *Mock {
	return &Mock{
		log:      log,
		events:   make(chan Event, 256),
		sessions: make(map[string]*mockSession),
		attempts: make(map[string]int),
	}
}

type mockSession struct {
	id        string
	startedAt time.Time
	input     chan []byte
	quit      chan struct{}
	stop      sync.Once
	finished  chan struct{}
}

func (s *mockSession) stopNow() {
	s.stop.Do(func() { close(s.quit) })
}

func (m *Mock) Info() Info {
	return Info{Name: "mock", Version: "builtin", Mock: true}
}

func (m *Mock) Ping(ctx context.Context) error { return nil }

func (m *Mock) EnvCheck(ctx context.Context) error { return nil }

func (m *Mock) Events() <-chan Event { return m.events }

func (m *Mock) StartExecution(ctx context.Context, req StartRequest) (StartResult, error) {
	sess := &mockSession{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		input:     make(chan []byte, 16),
		quit:      make(chan struct{}),
		finished:  make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return StartResult{}, fmt.Errorf("mock engine is closed")
	}
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	go m.runEcho(sess, req)
	m.log.Info("mock run session started", map[string]any{"session": sess.id, "question": req.QuestionID})
	return StartResult{Success: true, SessionID: sess.id}, nil
}

func (m *Mock) runEcho(sess *mockSession, req StartRequest) {
	m.events <- Event{SessionID: sess.id, Data: []byte(fmt.Sprintf("[mock] judge engine not installed, running builtin echo program (%d files staged)\r\n", len(req.Files)))}
	m.events <- Event{SessionID: sess.id, Data: []byte("[mock] type 'exit' to finish\r\n")}

	exitCode := 0
loop:
	for {
		select {
		case <-sess.quit:
			exitCode = -1
			break loop
		case line := <-sess.input:
			text := strings.TrimRight(string(line), "\r\n")
			if text == "exit" {
				m.events <- Event{SessionID: sess.id, Data: []byte("bye\r\n")}
				break loop
			}
			m.events <- Event{SessionID: sess.id, Data: []byte(text + "\r\n")}
		}
	}

	elapsed := time.Since(sess.startedAt).Milliseconds()
	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.mu.Unlock()

	m.events <- Event{
		SessionID:       sess.id,
		Exit:            true,
		ExitCode:        exitCode,
		ExecutionTimeMS: elapsed,
		MemoryUsageKB:   mockPeakMemoryKB,
	}
	close(sess.finished)
}

func (m *Mock) WriteExecution(sessionID string, data []byte) error {
	m.mu.Lock()
	sess := m.sessions[sessionID]
	m.mu.Unlock()
	if sess == nil {
		return nil
	}
	select {
	case sess.input <- data:
	default:
	}
	return nil
}

func (m *Mock) StopExecution(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess := m.sessions[sessionID]
	m.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.stopNow()
	select {
	case <-sess.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Judge fabricates results without running anything. The attempt counter
// makes progress visible: resubmitting the same question passes.
func (m *Mock) Judge(ctx context.Context, req grading.Request) (grading.Result, error) {
	if req.StartedAt.IsZero() {
		req.StartedAt = time.Now()
	}
	select {
	case <-ctx.Done():
		return grading.Result{}, ctx.Err()
	case <-time.After(150 * time.Millisecond):
	}

	m.mu.Lock()
	m.attempts[req.QuestionID]++
	attempt := m.attempts[req.QuestionID]
	m.mu.Unlock()

	tests := make([]grading.TestResult, 0, len(req.Tests))
	for i, tc := range req.Tests {
		passed := attempt > 1 || i < len(req.Tests)-1
		actual := tc.ExpectedOutput
		if !passed {
			actual = ""
		}
		tests = append(tests, grading.TestResult{
			Index:           i,
			Passed:          passed,
			IsHidden:        tc.IsHidden,
			Input:           tc.Input,
			ExpectedOutput:  tc.ExpectedOutput,
			ActualOutput:    actual,
			ExecutionTimeMS: int64(3 + 2*i),
			MemoryUsageKB:   1024 + int64(128*i),
		})
	}
	req.FinishedAt = time.Now()
	return grading.BuildResult(req, tests, ""), nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*mockSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.stopNow()
	}
	for _, sess := range sessions {
		<-sess.finished
	}
	close(m.events)
	return nil
}
