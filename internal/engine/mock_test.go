package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"dsadojo/internal/questions"
	"dsadojo/internal/telemetry"
)

func newTestMock(t *testing.T) *Mock {
	t.Helper()
	log, err := telemetry.NewJSONLogger("")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	m := NewMock(log)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func collectUntilExit(t *testing.T, events <-chan Event, sessionID string) (output string, exit Event) {
	t.Helper()
	var b strings.Builder
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.SessionID != sessionID {
				continue
			}
			if ev.Exit {
				return b.String(), ev
			}
			b.Write(ev.Data)
		case <-deadline:
			t.Fatalf("no exit event within deadline, output so far: %q", b.String())
		}
	}
}

func TestMockRunSessionEchoesAndExits(t *testing.T) {
	m := newTestMock(t)

	res, err := m.StartExecution(context.Background(), StartRequest{
		QuestionID: "q-001",
		Language:   "c",
		Files:      []questions.CodeFile{{Filename: "main.c", Content: "x"}},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !res.Success || res.SessionID == "" {
		t.Fatalf("unexpected start result: %+v", res)
	}

	if err := m.WriteExecution(res.SessionID, []byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.WriteExecution(res.SessionID, []byte("exit\n")); err != nil {
		t.Fatalf("write exit: %v", err)
	}

	output, exit := collectUntilExit(t, m.Events(), res.SessionID)
	if !strings.Contains(output, "hello") {
		t.Fatalf("echo missing from output: %q", output)
	}
	if exit.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", exit.ExitCode)
	}
	if exit.MemoryUsageKB != mockPeakMemoryKB {
		t.Fatalf("memory = %d, want %d", exit.MemoryUsageKB, mockPeakMemoryKB)
	}
}

func TestMockStopExecutionIsIdempotent(t *testing.T) {
	m := newTestMock(t)

	res, err := m.StartExecution(context.Background(), StartRequest{QuestionID: "q-002", Language: "c",
		Files: []questions.CodeFile{{Filename: "main.c", Content: "x"}}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.StopExecution(ctx, res.SessionID); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := m.StopExecution(ctx, res.SessionID); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
	if err := m.StopExecution(ctx, "never-existed"); err != nil {
		t.Fatalf("stop of unknown session should be a no-op: %v", err)
	}

	_, exit := collectUntilExit(t, m.Events(), res.SessionID)
	if exit.ExitCode != -1 {
		t.Fatalf("killed session exit code = %d, want -1", exit.ExitCode)
	}
}

func TestMockWriteAfterExitIsDropped(t *testing.T) {
	m := newTestMock(t)

	res, err := m.StartExecution(context.Background(), StartRequest{QuestionID: "q-003", Language: "c",
		Files: []questions.CodeFile{{Filename: "main.c", Content: "x"}}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.StopExecution(ctx, res.SessionID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	collectUntilExit(t, m.Events(), res.SessionID)

	if err := m.WriteExecution(res.SessionID, []byte("late\n")); err != nil {
		t.Fatalf("write after exit must be dropped, got %v", err)
	}
}

func TestMockJudgePassesOnSecondAttempt(t *testing.T) {
	m := newTestMock(t)
	req := judgeRequestFixture()

	first, err := m.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("first judge: %v", err)
	}
	if first.Passed {
		t.Fatalf("first attempt should not pass")
	}
	if first.Score.PassedTests != len(req.Tests)-1 {
		t.Fatalf("first attempt passed %d tests, want %d", first.Score.PassedTests, len(req.Tests)-1)
	}

	second, err := m.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("second judge: %v", err)
	}
	if !second.Passed {
		t.Fatalf("second attempt should pass: %+v", second.Score)
	}
	if second.Status != "Ok" {
		t.Fatalf("second attempt status = %q, want Ok", second.Status)
	}

	reqOther := req
	reqOther.QuestionID = "q-elsewhere"
	other, err := m.Judge(context.Background(), reqOther)
	if err != nil {
		t.Fatalf("other judge: %v", err)
	}
	if other.Passed {
		t.Fatalf("attempt counting must be per question")
	}
}
