package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"dsadojo/internal/engine"
)

// Host is the execution side of the engine consumed by run sessions.
type Host interface {
	StartExecution(ctx context.Context, req engine.StartRequest) (engine.StartResult, error)
	WriteExecution(sessionID string, data []byte) error
	StopExecution(ctx context.Context, sessionID string) error
	Events() <-chan engine.Event
}

const (
	exitFooterFormat = "\r\n\x1b[90m[process exited with code %d | time: %dms | memory: %dKB]\x1b[0m\r\n"
	errorBlockFormat = "\r\n\x1b[31m%s\x1b[0m\r\n"
)

// Session owns the single live run session and its console routing. The
// live session id is the only routing key: output events carrying any
// other id are dropped, so a stopped session's trailing output can never
// bleed into the next run. All rendering goes through the one out writer.
type Session struct {
	host   Host
	out    io.Writer
	onExit func(engine.Event)

	mu       sync.Mutex
	liveID   string
	running  bool
	done     chan struct{}
	starting bool
	pending  []engine.Event
}

// NewSession starts the event pump. onExit fires after the exit footer has
// been rendered; it may be nil.
func NewSession(host Host, out io.Writer, onExit func(engine.Event)) *Session {
	s := &Session{host: host, out: out, onExit: onExit}
	go s.pump()
	return s
}

func (s *Session) pump() {
	for ev := range s.host.Events() {
		s.handle(ev)
	}
}

func (s *Session) handle(ev engine.Event) {
	s.mu.Lock()
	if s.starting {
		// The host may emit before Start has learned the new session id.
		// Park the event; Start replays it once the id is known.
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	exited := s.deliverLocked(ev)
	s.mu.Unlock()

	if exited && s.onExit != nil {
		s.onExit(ev)
	}
}

// deliverLocked renders one event and reports whether it ended the live
// session. Caller holds s.mu.
func (s *Session) deliverLocked(ev engine.Event) bool {
	if !s.running || ev.SessionID != s.liveID {
		return false
	}
	if len(ev.Data) > 0 {
		_, _ = s.out.Write(ev.Data)
	}
	if ev.Err != "" {
		fmt.Fprintf(s.out, errorBlockFormat, ev.Err)
	}
	if ev.Exit {
		fmt.Fprintf(s.out, exitFooterFormat, ev.ExitCode, ev.ExecutionTimeMS, ev.MemoryUsageKB)
		s.running = false
		if s.done != nil {
			close(s.done)
			s.done = nil
		}
		return true
	}
	return false
}

// Start launches a new run session. Any prior session is stopped and
// awaited first. Compile and transport failures are printed once on the
// console; the returned error carries the same text for the status line.
func (s *Session) Start(ctx context.Context, req engine.StartRequest) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}

	// Hold events emitted during StartExecution: the host's reader
	// goroutine is live before the call returns the session id.
	s.mu.Lock()
	s.starting = true
	s.pending = nil
	s.mu.Unlock()

	res, err := s.host.StartExecution(ctx, req)
	if err != nil {
		s.reportStartFailure(err.Error())
		return err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "failed to start run session"
		}
		s.reportStartFailure(msg)
		return errors.New(firstLine(msg))
	}

	s.mu.Lock()
	s.liveID = res.SessionID
	s.running = true
	s.done = make(chan struct{})
	s.starting = false
	var exitEv *engine.Event
	for i := range s.pending {
		ev := s.pending[i]
		if s.deliverLocked(ev) {
			exitEv = &ev
		}
	}
	s.pending = nil
	s.mu.Unlock()

	if exitEv != nil && s.onExit != nil {
		s.onExit(*exitEv)
	}
	return nil
}

func (s *Session) reportStartFailure(msg string) {
	s.mu.Lock()
	s.liveID = ""
	s.running = false
	s.done = nil
	s.starting = false
	s.pending = nil
	fmt.Fprintf(s.out, errorBlockFormat, strings.TrimSpace(msg))
	s.mu.Unlock()
}

// WriteLine sends one completed input line to the live session. Writes
// while nothing is live are dropped, not errors; the exit footer may race
// a final Enter press and that must stay harmless.
func (s *Session) WriteLine(line string) {
	s.mu.Lock()
	id := s.liveID
	running := s.running
	s.mu.Unlock()
	if !running || id == "" {
		return
	}
	_ = s.host.WriteExecution(id, []byte(line))
}

// Stop kills the live session and waits until its exit footer has been
// rendered. Idempotent: stopping an already exited (or never started)
// session returns nil immediately.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	id := s.liveID
	running := s.running
	done := s.done
	s.mu.Unlock()

	if id == "" {
		return nil
	}
	if err := s.host.StopExecution(ctx, id); err != nil {
		return err
	}
	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) LiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveID
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
