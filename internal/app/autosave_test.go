package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dsadojo/internal/telemetry"
)

func testLogger(t *testing.T) *telemetry.JSONLogger {
	t.Helper()
	log, err := telemetry.NewJSONLogger("")
	if err != nil {
		t.Fatalf("NewJSONLogger: %v", err)
	}
	return log
}

func waitUntil(t *testing.T, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

type countingSaver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingSaver) save(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingSaver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSaver) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func TestAutosaveDebounceCollapsesRapidEdits(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, 40*time.Millisecond)

	s.NoteEdit()
	s.NoteEdit()
	s.NoteEdit()
	if !s.Dirty() {
		t.Fatal("expected dirty after edits")
	}

	waitUntil(t, func() bool { return cs.count() == 1 }, "debounced save")
	waitUntil(t, func() bool { return !s.Dirty() }, "dirty cleared")

	// A clean buffer must not trigger further saves.
	time.Sleep(120 * time.Millisecond)
	if got := cs.count(); got != 1 {
		t.Fatalf("save calls = %d, want 1", got)
	}
}

func TestSaveNowIsSilentWhenClean(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, time.Minute)

	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if got := cs.count(); got != 0 {
		t.Fatalf("save calls = %d, want 0", got)
	}
}

func TestEditDuringSaveKeepsDirty(t *testing.T) {
	release := make(chan struct{}, 2)
	var calls atomic.Int32
	s := NewAutosaver(nil, func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, testLogger(t))
	defer s.Shutdown()
	s.Configure(false, time.Minute)

	s.NoteEdit()
	done := make(chan error, 1)
	go func() { done <- s.SaveNow(context.Background()) }()
	waitUntil(t, s.Saving, "save in flight")

	// This edit lands while the save holds the old snapshot.
	s.NoteEdit()
	release <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if !s.Dirty() {
		t.Fatal("edit during save must keep the buffer dirty")
	}

	release <- struct{}{}
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("second SaveNow: %v", err)
	}
	if s.Dirty() {
		t.Fatal("expected clean after second save")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("save calls = %d, want 2", got)
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	cs := &countingSaver{err: errors.New("disk full")}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(false, time.Minute)

	s.NoteEdit()
	if err := s.SaveNow(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if !s.Dirty() {
		t.Fatal("failed save must keep dirty")
	}

	cs.setErr(nil)
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow after recovery: %v", err)
	}
	if s.Dirty() {
		t.Fatal("expected clean after successful save")
	}
}

func TestPendingCloseSuppressesAutosaveUntilCancelled(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, 30*time.Millisecond)

	s.NoteEdit()
	s.BeginPendingClose()

	time.Sleep(120 * time.Millisecond)
	if got := cs.count(); got != 0 {
		t.Fatalf("save calls during pending close = %d, want 0", got)
	}
	if !s.Dirty() {
		t.Fatal("pending close must not drop the dirty flag")
	}

	s.CancelPendingClose()
	waitUntil(t, func() bool { return cs.count() == 1 }, "save after cancel")
	waitUntil(t, func() bool { return !s.Dirty() }, "dirty cleared")
}

func TestDiscardSuppressesSaves(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, 20*time.Millisecond)

	s.NoteEdit()
	s.BeginDiscard()
	time.Sleep(100 * time.Millisecond)
	if got := cs.count(); got != 0 {
		t.Fatalf("save calls after discard = %d, want 0", got)
	}
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if got := cs.count(); got != 0 {
		t.Fatalf("manual save after discard = %d calls, want 0", got)
	}
}

func TestDisabledAutosaveStillSavesManually(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(false, 20*time.Millisecond)

	s.NoteEdit()
	time.Sleep(100 * time.Millisecond)
	if got := cs.count(); got != 0 {
		t.Fatalf("disabled autosave ran %d saves, want 0", got)
	}

	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if got := cs.count(); got != 1 {
		t.Fatalf("save calls = %d, want 1", got)
	}
}

func TestConfigureKeepsUnsavedMarker(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(false, time.Minute)

	s.NoteEdit()
	s.Configure(true, time.Hour)
	if !s.Dirty() {
		t.Fatal("toggling autosave must not drop unsaved changes")
	}
}

func TestNotReadySkipsSaves(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(func() bool { return false }, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, 20*time.Millisecond)

	s.NoteEdit()
	time.Sleep(80 * time.Millisecond)
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if got := cs.count(); got != 0 {
		t.Fatalf("save calls = %d, want 0", got)
	}
	if !s.Dirty() {
		t.Fatal("not-ready save must keep dirty")
	}
}

func TestResetClearsPerQuestionState(t *testing.T) {
	cs := &countingSaver{}
	s := NewAutosaver(nil, cs.save, testLogger(t))
	defer s.Shutdown()
	s.Configure(true, 25*time.Millisecond)

	s.NoteEdit()
	s.Reset()
	if s.Dirty() {
		t.Fatal("Reset must clear dirty")
	}
	time.Sleep(100 * time.Millisecond)
	if got := cs.count(); got != 0 {
		t.Fatalf("save calls after Reset = %d, want 0", got)
	}
}
