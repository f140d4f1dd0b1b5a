package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shootboard/internal/domain"
	"shootboard/internal/events"
)

// SaveState is the autosave indicator shown next to the next-shoot fields.
type SaveState string

const (
	StateIdle   SaveState = "idle"
	StateSaving SaveState = "saving"
	StateSaved  SaveState = "saved"
	StateError  SaveState = "error"
)

const (
	DefaultDebounce  = 600 * time.Millisecond
	DefaultSavedHold = 1200 * time.Millisecond
)

// Draft is the local, not yet persisted next-shoot pair.
type Draft struct {
	Count string
	Date  string
}

func (d Draft) fields() domain.Record {
	return domain.Record{"next_shoot_count": d.Count, "next_shoot_date": d.Date}
}

// AutosaveConfig tunes the controller. Zero values take the defaults.
type AutosaveConfig struct {
	Debounce  time.Duration
	SavedHold time.Duration
	// RequestTimeout bounds timer-driven persists. Zero means no timeout.
	RequestTimeout time.Duration
}

// Autosave keeps the open project's next-shoot pair in sync. Edits patch the
// Store immediately and arm a single debounce timer; the timer or a blur
// persists the draft through the Gateway.
type Autosave struct {
	eng       *Engine
	debounce  time.Duration
	savedHold time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	projectID string
	epoch     uint64 // bumped on Open and Close
	draft     Draft
	persisted Draft
	state     SaveState
	timer     *time.Timer
	seq       uint64 // identifies the live debounce timer
	holdGen   uint64 // identifies the live saved->idle revert
}

func NewAutosave(eng *Engine, cfg AutosaveConfig) *Autosave {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SavedHold <= 0 {
		cfg.SavedHold = DefaultSavedHold
	}
	return &Autosave{
		eng:       eng,
		debounce:  cfg.Debounce,
		savedHold: cfg.SavedHold,
		timeout:   cfg.RequestTimeout,
		logger:    eng.logger.Named("autosave"),
		state:     StateIdle,
	}
}

// Open starts tracking projectID, dropping any pending timer for the
// previous project. It reports whether the project is in the Store; an
// absent project leaves the draft empty.
func (a *Autosave) Open(projectID string) bool {
	p, ok := a.eng.store.Project(projectID)

	a.mu.Lock()
	a.stopTimerLocked()
	a.epoch++
	a.holdGen++
	a.projectID = projectID
	a.draft = Draft{Count: p.NextShootCount, Date: p.NextShootDate}
	a.persisted = a.draft
	a.state = StateIdle
	a.mu.Unlock()

	a.publishState(projectID, StateIdle)
	return ok
}

// Close stops tracking the open project.
func (a *Autosave) Close() {
	a.mu.Lock()
	a.stopTimerLocked()
	a.epoch++
	a.holdGen++
	pid := a.projectID
	a.projectID = ""
	a.draft = Draft{}
	a.persisted = Draft{}
	a.state = StateIdle
	a.mu.Unlock()

	if pid != "" {
		a.publishState(pid, StateIdle)
	}
}

func (a *Autosave) SetCount(v string) {
	a.edit(func(d *Draft) { d.Count = v })
}

func (a *Autosave) SetDate(v string) {
	a.edit(func(d *Draft) { d.Date = v })
}

func (a *Autosave) edit(apply func(*Draft)) {
	a.mu.Lock()
	if a.projectID == "" {
		a.mu.Unlock()
		return
	}
	apply(&a.draft)
	a.stopTimerLocked()
	pid := a.projectID
	if a.draft == a.persisted {
		// Back to the saved values: nothing to persist.
		a.eng.store.patchProject(pid, a.persisted.fields())
		a.mu.Unlock()
		a.publishPatch(pid)
		return
	}
	a.eng.store.patchProject(pid, a.draft.fields())
	a.armLocked()
	a.mu.Unlock()
	a.publishPatch(pid)
}

func (a *Autosave) armLocked() {
	seq := a.seq
	a.timer = time.AfterFunc(a.debounce, func() { a.fire(seq) })
}

// stopTimerLocked clears the pending debounce. A persist already sent is
// not affected.
func (a *Autosave) stopTimerLocked() {
	a.seq++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosave) fire(seq uint64) {
	a.mu.Lock()
	if seq != a.seq || a.projectID == "" {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	pid, epoch, d := a.projectID, a.epoch, a.draft
	a.mu.Unlock()

	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.persist(ctx, pid, epoch, d); err != nil {
		a.logger.Warn("timed persist failed",
			zap.String("project", pid),
			zap.String("count", d.Count),
			zap.String("date", d.Date),
			zap.Error(err))
	}
}

// Blur persists the current draft now. A pending debounce timer stays armed
// and may send the same update again.
func (a *Autosave) Blur(ctx context.Context) error {
	a.mu.Lock()
	if a.projectID == "" {
		a.mu.Unlock()
		return nil
	}
	pid, epoch, d := a.projectID, a.epoch, a.draft
	a.mu.Unlock()
	return a.persist(ctx, pid, epoch, d)
}

func (a *Autosave) persist(ctx context.Context, pid string, epoch uint64, d Draft) error {
	a.mu.Lock()
	current := epoch == a.epoch
	if current {
		a.holdGen++
		a.state = StateSaving
	}
	a.mu.Unlock()
	if current {
		a.publishState(pid, StateSaving)
	}

	a.logger.Debug("persist next shoot", zap.String("project", pid), zap.String("count", d.Count), zap.String("date", d.Date))
	err := a.eng.persistNextShoot(ctx, pid, d)

	a.mu.Lock()
	if epoch != a.epoch {
		// Another project is open now; its indicator is not ours to move.
		a.mu.Unlock()
		return err
	}
	written := err == nil || isCode(err, CodeRefreshFailure)
	if written {
		a.persisted = d
	}
	if a.draft != a.persisted {
		// Newer keystrokes arrived while the request was out; the refresh
		// replaced their optimistic patch.
		a.eng.store.patchProject(pid, a.draft.fields())
		if written && a.timer == nil {
			// The edit matched the old saved values, so it never armed.
			a.armLocked()
		}
	}
	if err != nil {
		a.state = StateError
		a.mu.Unlock()
		a.publishState(pid, StateError)
		return err
	}
	a.state = StateSaved
	a.holdGen++
	gen := a.holdGen
	a.mu.Unlock()

	a.publishState(pid, StateSaved)
	time.AfterFunc(a.savedHold, func() { a.revertToIdle(gen, pid) })
	return nil
}

func (a *Autosave) revertToIdle(gen uint64, pid string) {
	a.mu.Lock()
	if gen != a.holdGen || a.state != StateSaved {
		a.mu.Unlock()
		return
	}
	a.state = StateIdle
	a.mu.Unlock()
	a.publishState(pid, StateIdle)
}

func isCode(err error, c Code) bool {
	f, ok := AsFailure(err)
	return ok && f.Code == c
}

func (a *Autosave) State() SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Autosave) Draft() Draft {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draft
}

// ProjectID returns the tracked project, empty when none is open.
func (a *Autosave) ProjectID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projectID
}

// Pending reports whether a debounce timer is armed.
func (a *Autosave) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

func (a *Autosave) publishState(pid string, s SaveState) {
	a.eng.publish(events.Change{Type: events.SaveStateChanged, ProjectID: pid, State: string(s)})
}

func (a *Autosave) publishPatch(pid string) {
	a.eng.publish(events.Change{Type: events.StorePatched, Kind: string(domain.KindProjects), ProjectID: pid})
}
