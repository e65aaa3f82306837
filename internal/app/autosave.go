package app

import (
	"context"
	"sync"
	"time"

	"dsadojo/internal/telemetry"
)

const saveOpTimeout = 10 * time.Second

// Autosaver owns the unsaved flag and decides when the injected save hook
// runs. Two automatic triggers share one interval: a debounce timer reset
// on every edit, and a periodic ticker. At most one save is in flight;
// triggers that arrive during a save coalesce into a single follow-up.
//
// The ready and save hooks are always invoked without the scheduler mutex
// held, so they may take the controller's lock.
type Autosaver struct {
	ready func() bool
	save  func(ctx context.Context) error
	log   *telemetry.JSONLogger

	mu           sync.Mutex
	enabled      bool
	interval     time.Duration
	dirty        bool
	gen          uint64
	saving       bool
	queued       bool
	discarding   bool
	pendingClose bool
	closed       bool
	inflight     chan struct{}
	debounce     *time.Timer

	tick     *time.Ticker
	quit     chan struct{}
	quitOnce sync.Once

	onChange func()
}

func NewAutosaver(ready func() bool, save func(ctx context.Context) error, log *telemetry.JSONLogger) *Autosaver {
	a := &Autosaver{
		ready:    ready,
		save:     save,
		log:      log,
		interval: 30 * time.Second,
		tick:     time.NewTicker(time.Hour),
		quit:     make(chan struct{}),
	}
	a.tick.Stop()
	go a.tickLoop()
	return a
}

// SetOnChange registers a callback fired after the dirty or saving state
// changes. It runs without the scheduler mutex held.
func (a *Autosaver) SetOnChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Configure applies the autosave settings. It does not touch the dirty
// flag; toggling autosave mid-edit must not lose the unsaved marker.
func (a *Autosaver) Configure(enabled bool, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	a.mu.Lock()
	a.enabled = enabled
	a.interval = interval
	if enabled {
		a.tick.Reset(interval)
	} else {
		a.tick.Stop()
		a.stopDebounceLocked()
	}
	a.mu.Unlock()
}

// Reset clears per-question state on load: the dirty flag, the close and
// discard suppressions, and any armed debounce.
func (a *Autosaver) Reset() {
	a.mu.Lock()
	a.dirty = false
	a.gen++
	a.queued = false
	a.discarding = false
	a.pendingClose = false
	a.stopDebounceLocked()
	a.mu.Unlock()
	a.notifyChange()
}

// NoteEdit marks unsaved changes and re-arms the debounce so the save
// lands one interval after the last edit.
func (a *Autosaver) NoteEdit() {
	a.mu.Lock()
	a.dirty = true
	a.gen++
	arm := a.enabled && !a.closed && !a.discarding && !a.pendingClose
	if arm {
		if a.debounce == nil {
			a.debounce = time.AfterFunc(a.interval, a.debounceFire)
		} else {
			a.debounce.Reset(a.interval)
		}
	}
	a.mu.Unlock()
	a.notifyChange()
}

func (a *Autosaver) debounceFire() {
	ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
	defer cancel()
	_ = a.attempt(ctx)
}

func (a *Autosaver) tickLoop() {
	for {
		select {
		case <-a.tick.C:
			ctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
			_ = a.attempt(ctx)
			cancel()
		case <-a.quit:
			return
		}
	}
}

// SaveNow performs an awaited save for the forced paths: manual save, file
// switch, before run, before submit. A clean buffer is a silent no-op. If
// a save is already in flight it waits for it and re-checks.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.saving {
			ch := a.inflight
			a.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		a.mu.Unlock()
		return a.attempt(ctx)
	}
}

// attempt runs one guarded save. All gate conditions are re-checked under
// the mutex, so a timer that fired just before BeginPendingClose still
// sees the suppression.
func (a *Autosaver) attempt(ctx context.Context) error {
	if a.ready != nil && !a.ready() {
		return nil
	}

	a.mu.Lock()
	if a.closed || a.discarding || a.pendingClose || !a.dirty {
		a.mu.Unlock()
		return nil
	}
	if a.saving {
		a.queued = true
		a.mu.Unlock()
		return nil
	}
	gen := a.gen
	a.saving = true
	a.inflight = make(chan struct{})
	a.mu.Unlock()
	a.notifyChange()

	err := a.save(ctx)

	a.mu.Lock()
	a.saving = false
	close(a.inflight)
	a.inflight = nil
	if err == nil && gen == a.gen {
		a.dirty = false
	}
	retry := a.queued && a.dirty && !a.discarding && !a.pendingClose && !a.closed
	a.queued = false
	a.mu.Unlock()
	a.notifyChange()

	if err != nil && a.log != nil {
		a.log.Error("autosave.save_failed", map[string]any{"error": err.Error()})
	}
	if retry {
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), saveOpTimeout)
			defer cancel()
			_ = a.attempt(rctx)
		}()
	}
	return err
}

// MarkClean drops the unsaved flag without saving, for restores that
// replace the working set wholesale.
func (a *Autosaver) MarkClean() {
	a.mu.Lock()
	a.dirty = false
	a.gen++
	a.queued = false
	a.stopDebounceLocked()
	a.mu.Unlock()
	a.notifyChange()
}

// BeginDiscard suppresses all saving for the rest of this question's life.
func (a *Autosaver) BeginDiscard() {
	a.mu.Lock()
	a.discarding = true
	a.stopDebounceLocked()
	a.mu.Unlock()
}

// BeginPendingClose stops the timers while a close confirmation is on
// screen so no save races the user's discard decision.
func (a *Autosaver) BeginPendingClose() {
	a.mu.Lock()
	a.pendingClose = true
	a.stopDebounceLocked()
	a.mu.Unlock()
}

// CancelPendingClose resumes normal operation after "keep editing",
// re-arming the debounce when unsaved changes remain.
func (a *Autosaver) CancelPendingClose() {
	a.mu.Lock()
	a.pendingClose = false
	if a.enabled && a.dirty && !a.discarding && !a.closed {
		if a.debounce == nil {
			a.debounce = time.AfterFunc(a.interval, a.debounceFire)
		} else {
			a.debounce.Reset(a.interval)
		}
	}
	a.mu.Unlock()
}

func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

func (a *Autosaver) Saving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saving
}

// Shutdown stops both timers. Pending state is left as is; a save already
// in flight finishes on its own.
func (a *Autosaver) Shutdown() {
	a.mu.Lock()
	a.closed = true
	a.stopDebounceLocked()
	a.tick.Stop()
	a.mu.Unlock()
	a.quitOnce.Do(func() { close(a.quit) })
}

func (a *Autosaver) stopDebounceLocked() {
	if a.debounce != nil {
		a.debounce.Stop()
	}
}

func (a *Autosaver) notifyChange() {
	a.mu.Lock()
	fn := a.onChange
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}
