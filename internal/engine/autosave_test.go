package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"shootboard/internal/domain"
	"shootboard/internal/engine"
	"shootboard/internal/events"
)

const (
	testDebounce  = 60 * time.Millisecond
	testSavedHold = 120 * time.Millisecond
	waitFor       = 2 * time.Second
	tick          = 5 * time.Millisecond
)

func newAutosave(t *testing.T, g *fakeGateway, opts ...engine.Option) (*engine.Engine, *engine.Autosave) {
	t.Helper()
	eng := newLoadedEngine(t, g, opts...)
	a := engine.NewAutosave(eng, engine.AutosaveConfig{Debounce: testDebounce, SavedHold: testSavedHold})
	t.Cleanup(a.Close)
	return eng, a
}

func projectUpdates(g *fakeGateway) []call {
	return g.callsOf("update", domain.KindProjects)
}

func drainStates(ch <-chan events.Change) []string {
	var out []string
	for {
		select {
		case c := <-ch:
			if c.Type == events.SaveStateChanged {
				out = append(out, c.State)
			}
		default:
			return out
		}
	}
}

func TestAutosaveCoalescesBurst(t *testing.T) {
	g := seededGateway()
	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe()
	eng, a := newAutosave(t, g, engine.WithBus(bus))

	require.True(t, a.Open("p1"))
	assert.Equal(t, engine.StateIdle, a.State())

	a.SetCount("3")
	time.Sleep(testDebounce / 3)
	a.SetDate("2024-05-01")

	// Optimistic patch is visible before any remote call.
	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "3", p.NextShootCount)
	assert.Equal(t, "2024-05-01", p.NextShootDate)
	assert.Empty(t, projectUpdates(g))

	var states []string
	assert.Eventually(t, func() bool {
		states = append(states, drainStates(ch)...)
		return len(states) >= 4
	}, waitFor, tick)
	assert.Equal(t, []string{"idle", "saving", "saved", "idle"}, states)

	updates := projectUpdates(g)
	require.Len(t, updates, 1)
	assert.Equal(t, "p1", updates[0].ID)
	assert.Equal(t, domain.Record{"next_shoot_count": "3", "next_shoot_date": "2024-05-01"}, updates[0].Fields)
}

func TestAutosaveBlurDuringDebounce(t *testing.T) {
	g := seededGateway()
	_, a := newAutosave(t, g)
	a.Open("p1")

	a.SetCount("3")
	require.True(t, a.Pending())
	require.NoError(t, a.Blur(context.Background()))
	require.Len(t, projectUpdates(g), 1)
	assert.Equal(t, engine.StateSaved, a.State())

	// The debounce timer still fires and repeats the same update.
	assert.Eventually(t, func() bool { return len(projectUpdates(g)) == 2 }, waitFor, tick)
	updates := projectUpdates(g)
	assert.Equal(t, updates[0].Fields, updates[1].Fields)
}

func TestAutosaveBlurWithoutEdit(t *testing.T) {
	g := seededGateway()
	_, a := newAutosave(t, g)
	a.Open("p1")

	require.NoError(t, a.Blur(context.Background()))
	updates := projectUpdates(g)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.Record{"next_shoot_count": "", "next_shoot_date": ""}, updates[0].Fields)
}

func TestAutosaveConvergesOnRemote(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")

	a.SetCount("4")
	g.set(domain.KindProjects, "p1", "memo", "changed elsewhere")

	assert.Eventually(t, func() bool { return a.State() == engine.StateSaved }, waitFor, tick)
	p, ok := eng.Store().Project("p1")
	require.True(t, ok)
	assert.Equal(t, domain.ProjectFromRecord(g.get(domain.KindProjects, "p1")), p)
	assert.Equal(t, "changed elsewhere", p.Memo)
}

func TestAutosaveFailureKeepsPatch(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")
	g.failOn("update", domain.KindProjects, errBoom)

	a.SetCount("5")
	assert.Eventually(t, func() bool { return a.State() == engine.StateError }, waitFor, tick)

	msg, ok := eng.Notifier().Current()
	assert.True(t, ok)
	assert.Equal(t, "next shoot save failed", msg)

	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "5", p.NextShootCount)

	// No automatic retry.
	time.Sleep(3 * testDebounce)
	assert.Len(t, projectUpdates(g), 1)
	assert.Equal(t, engine.StateError, a.State())

	// The next blur tries again.
	g.clearFailures()
	require.NoError(t, a.Blur(context.Background()))
	assert.Equal(t, engine.StateSaved, a.State())
}

func TestAutosaveBlurReturnsFailure(t *testing.T) {
	g := seededGateway()
	_, a := newAutosave(t, g)
	a.Open("p1")
	a.SetCount("abc")

	err := a.Blur(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrAutosavePersistFailure))
	assert.Equal(t, engine.StateError, a.State())
	assert.Empty(t, projectUpdates(g))
}

func TestAutosaveRevertCancelsTimer(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")

	a.SetCount("3")
	a.SetCount("")
	assert.False(t, a.Pending())

	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "", p.NextShootCount)

	time.Sleep(3 * testDebounce)
	assert.Empty(t, projectUpdates(g))
	assert.Equal(t, engine.StateIdle, a.State())
}

func TestAutosaveSwitchProjectDropsTimer(t *testing.T) {
	g := seededGateway()
	g.set(domain.KindProjects, "p2", "next_shoot_count", "2")
	_, a := newAutosave(t, g)
	a.Open("p1")
	a.SetCount("3")

	require.True(t, a.Open("p2"))
	assert.Equal(t, engine.Draft{Count: "2"}, a.Draft())
	assert.False(t, a.Pending())

	time.Sleep(3 * testDebounce)
	assert.Empty(t, projectUpdates(g))
}

func TestAutosaveInFlightForPreviousProject(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")
	a.SetCount("3")

	release := g.holdUpdates()
	done := make(chan error, 1)
	go func() { done <- a.Blur(context.Background()) }()
	assert.Eventually(t, func() bool { return a.State() == engine.StateSaving }, waitFor, tick)

	a.Open("p2")
	close(release)
	require.NoError(t, <-done)

	p1, _ := eng.Store().Project("p1")
	assert.Equal(t, "3", p1.NextShootCount)
	assert.Equal(t, engine.StateIdle, a.State())
	assert.Equal(t, "p2", a.ProjectID())
}

func TestAutosaveEditDuringFlightIsReapplied(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")
	a.SetCount("3")

	release := g.holdUpdates()
	done := make(chan error, 1)
	go func() { done <- a.Blur(context.Background()) }()
	assert.Eventually(t, func() bool { return a.State() == engine.StateSaving }, waitFor, tick)

	a.SetDate("2024-06-01")
	close(release)
	require.NoError(t, <-done)

	// The refresh overwrote the Store; the newer draft is patched back on top.
	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "3", p.NextShootCount)
	assert.Equal(t, "2024-06-01", p.NextShootDate)

	assert.Eventually(t, func() bool {
		return g.get(domain.KindProjects, "p1")["next_shoot_date"] == "2024-06-01"
	}, waitFor, tick)
}

func TestAutosaveRevertDuringFlightIsPersisted(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")
	a.SetCount("3")

	release := g.holdUpdates()
	done := make(chan error, 1)
	go func() { done <- a.Blur(context.Background()) }()
	assert.Eventually(t, func() bool { return a.State() == engine.StateSaving }, waitFor, tick)

	// Back to the value saved before the request went out.
	a.SetCount("")
	close(release)
	require.NoError(t, <-done)

	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "", p.NextShootCount)
	assert.True(t, a.Pending())

	assert.Eventually(t, func() bool {
		return g.get(domain.KindProjects, "p1")["next_shoot_count"] == "" && len(projectUpdates(g)) == 2
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return a.State() == engine.StateIdle }, waitFor, tick)
	p, _ = eng.Store().Project("p1")
	assert.Equal(t, "", p.NextShootCount)
	assert.False(t, a.Pending())
}

func TestUpdateAfterFailedAutosaveIsSent(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)
	a.Open("p1")
	g.failOn("update", domain.KindProjects, errBoom)
	a.SetCount("5")
	assert.Eventually(t, func() bool { return a.State() == engine.StateError }, waitFor, tick)
	g.clearFailures()

	// The Store shows the unsaved "5"; the remote still has "".
	ctx := context.Background()
	require.NoError(t, eng.Update(ctx, domain.KindProjects, "p1", domain.Record{"next_shoot_count": "5"}))
	updates := projectUpdates(g)
	require.Len(t, updates, 2)
	assert.Equal(t, domain.Record{"next_shoot_count": "5"}, updates[1].Fields)
	assert.Equal(t, "5", g.get(domain.KindProjects, "p1")["next_shoot_count"])

	g.failOn("update", domain.KindProjects, errBoom)
	a.SetDate("2024-07-01")
	assert.Eventually(t, func() bool { return len(projectUpdates(g)) == 3 }, waitFor, tick)
	assert.Eventually(t, func() bool { return a.State() == engine.StateError }, waitFor, tick)
	g.clearFailures()

	// The project form submits the patched copy, unsaved date included.
	p, _ := eng.Store().Project("p1")
	require.Equal(t, "2024-07-01", p.NextShootDate)
	require.NoError(t, eng.SaveProject(ctx, p))
	assert.Equal(t, "2024-07-01", g.get(domain.KindProjects, "p1")["next_shoot_date"])
}

func TestAutosaveTimedFailureIsLogged(t *testing.T) {
	g := seededGateway()
	core, logs := observer.New(zap.WarnLevel)
	_, a := newAutosave(t, g, engine.WithLogger(zap.New(core)))
	a.Open("p1")
	g.failOn("update", domain.KindProjects, errBoom)

	a.SetCount("5")
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("timed persist failed").Len() == 1
	}, waitFor, tick)

	entry := logs.FilterMessage("timed persist failed").All()[0]
	assert.Equal(t, "autosave", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "p1", fields["project"])
	assert.Equal(t, "5", fields["count"])
	assert.Contains(t, fields["error"], "next shoot save failed")
}

func TestAutosaveUnknownProject(t *testing.T) {
	g := seededGateway()
	_, a := newAutosave(t, g)

	assert.False(t, a.Open("missing"))
	assert.Equal(t, engine.Draft{}, a.Draft())
}

func TestAutosaveClosedIgnoresEdits(t *testing.T) {
	g := seededGateway()
	eng, a := newAutosave(t, g)

	a.SetCount("9")
	require.NoError(t, a.Blur(context.Background()))
	assert.Empty(t, projectUpdates(g))
	p, _ := eng.Store().Project("p1")
	assert.Equal(t, "", p.NextShootCount)
}
