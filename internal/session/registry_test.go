package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream/streamtest"
	"github.com/harperreed/radiowatch/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStations(ids ...string) []station.Station {
	out := make([]station.Station, len(ids))
	for i, id := range ids {
		out[i] = station.Station{ID: id, Name: id, StreamURL: "http://radio.test/" + id}
	}
	return out
}

func newTestRegistry(opener *streamtest.Opener) (*Registry, *output.Null) {
	out := output.NewNull()
	return NewRegistry(Config{
		Opener:       opener,
		Output:       out,
		StallTimeout: 100 * time.Millisecond,
	}), out
}

type transitions struct {
	mu  sync.Mutex
	all []Transition
}

func (tr *transitions) record(t Transition) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.all = append(tr.all, t)
}

func (tr *transitions) forStation(id string) []Transition {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var out []Transition
	for _, t := range tr.all {
		if t.StationID == id {
			out = append(out, t)
		}
	}
	return out
}

func waitStatus(t *testing.T, r *Registry, id string, want station.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State(id).Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("station %s: expected %s, got %s", id, want, r.State(id).Status)
}

func TestInitializePlaysEveryStation(t *testing.T) {
	opener := streamtest.NewOpener()
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	require.NoError(t, r.Initialize(context.Background(), testStations("a", "b", "c")))

	for _, id := range []string{"a", "b", "c"} {
		st := r.State(id)
		assert.Equal(t, station.StatusPlaying, st.Status, id)
		assert.Equal(t, station.DefaultVolume, st.Volume)
		assert.False(t, st.IsFocused)
		assert.Equal(t, station.DefaultVolume, st.Gain)
	}

	summary := r.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Active)
	assert.True(t, summary.AllPlaying)
	assert.False(t, summary.AllMuted)
}

func TestInitializeIsolatesFailures(t *testing.T) {
	opener := streamtest.NewOpener()
	opener.Fail("http://radio.test/bad", errors.New("connection refused"))
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	tr := &transitions{}
	r.OnTransition(tr.record)

	require.NoError(t, r.Initialize(context.Background(), testStations("good", "bad")))

	assert.Equal(t, station.StatusPlaying, r.State("good").Status)
	bad := r.State("bad")
	assert.Equal(t, station.StatusError, bad.Status)
	assert.Contains(t, bad.LastError, "connection refused")

	got := tr.forStation("bad")
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.NotNil(t, last.Fault)
	assert.Equal(t, station.FaultStream, last.Fault.Kind)

	summary := r.Summary()
	assert.Equal(t, 1, summary.Active)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.AllPlaying)
}

func TestInitializeRejectsInvalidStations(t *testing.T) {
	r, _ := newTestRegistry(streamtest.NewOpener())
	defer r.Teardown()

	err := r.Initialize(context.Background(), []station.Station{
		{ID: "a", StreamURL: "http://radio.test/a"},
		{ID: "a", StreamURL: "http://radio.test/b"},
	})
	assert.Error(t, err)
	assert.Empty(t, r.States())
}

func TestStateForUnknownStation(t *testing.T) {
	r, _ := newTestRegistry(streamtest.NewOpener())
	assert.Equal(t, station.DefaultState(), r.State("nope"))

	_, err := r.Tap("nope")
	assert.ErrorIs(t, err, ErrUnknownStation)
}

func TestStatesKeepConfiguredOrder(t *testing.T) {
	r, _ := newTestRegistry(streamtest.NewOpener())
	defer r.Teardown()

	require.NoError(t, r.Initialize(context.Background(), testStations("z", "a", "m")))

	states := r.States()
	require.Len(t, states, 3)
	assert.Equal(t, "z", states[0].Station.ID)
	assert.Equal(t, "a", states[1].Station.ID)
	assert.Equal(t, "m", states[2].Station.ID)
}

func TestStreamEndIsError(t *testing.T) {
	opener := streamtest.NewOpener()
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	require.NoError(t, r.Initialize(context.Background(), testStations("a")))
	opener.End("http://radio.test/a")

	waitStatus(t, r, "a", station.StatusError)
}

func TestStallGoesLoadingThenPlaying(t *testing.T) {
	opener := streamtest.NewOpener()
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	require.NoError(t, r.Initialize(context.Background(), testStations("a")))
	opener.Stall("http://radio.test/a")
	waitStatus(t, r, "a", station.StatusLoading)

	opener.Resume("http://radio.test/a")
	waitStatus(t, r, "a", station.StatusPlaying)
}

func TestTeardownReleasesEverything(t *testing.T) {
	opener := streamtest.NewOpener()
	r, out := newTestRegistry(opener)

	tr := &transitions{}
	require.NoError(t, r.Initialize(context.Background(), testStations("a", "b")))
	taps := make(map[string]bool)
	for _, id := range []string{"a", "b"} {
		tap, err := r.Tap(id)
		require.NoError(t, err)
		_, err = tap.Subscribe(1)
		taps[id] = err == nil
	}
	assert.True(t, taps["a"] && taps["b"])

	r.OnTransition(tr.record)
	r.Teardown()

	assert.Empty(t, r.States())
	for _, v := range out.Voices() {
		assert.True(t, v.Closed())
	}
	for _, id := range []string{"a", "b"} {
		got := tr.forStation(id)
		require.Len(t, got, 1)
		assert.True(t, got[0].Removed)
		assert.Equal(t, station.StatusPlaying, got[0].From)
	}

	// Second teardown is a no-op
	r.Teardown()
	assert.Len(t, tr.forStation("a"), 1)
}

func TestTeardownDuringCommands(t *testing.T) {
	r, _ := newTestRegistry(streamtest.NewOpener())
	require.NoError(t, r.Initialize(context.Background(), testStations("a", "b")))
	c := NewController(r)

	tr := &transitions{}
	r.OnTransition(tr.record)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = c.SetVolume("a", float64(i%10)/10)
			_ = c.ToggleFocus(context.Background(), "b")
		}
	}()

	time.Sleep(20 * time.Millisecond)
	r.Teardown()
	close(stop)
	<-done

	for _, id := range []string{"a", "b"} {
		var removed []Transition
		for _, tn := range tr.forStation(id) {
			if tn.Removed {
				removed = append(removed, tn)
			}
		}
		require.Len(t, removed, 1, id)
		assert.Equal(t, station.StatusPlaying, removed[0].From, id)
	}
}

func TestReinitializeDropsOldHandles(t *testing.T) {
	opener := streamtest.NewOpener()
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	require.NoError(t, r.Initialize(context.Background(), testStations("a")))
	require.NoError(t, r.Initialize(context.Background(), testStations("b")))

	_, ok := r.Station("a")
	assert.False(t, ok)
	assert.Equal(t, station.StatusPlaying, r.State("b").Status)
	assert.Equal(t, 1, r.Summary().Total)
}

func TestTransitionsArriveInOrderPerStation(t *testing.T) {
	opener := streamtest.NewOpener()
	r, _ := newTestRegistry(opener)
	defer r.Teardown()

	tr := &transitions{}
	r.OnTransition(tr.record)

	require.NoError(t, r.Initialize(context.Background(), testStations("a")))
	c := NewController(r)
	require.NoError(t, c.TogglePlay(context.Background(), "a"))
	require.NoError(t, c.TogglePlay(context.Background(), "a"))

	got := tr.forStation("a")
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].To, got[i].From, "transition %d", i)
	}
	assert.Equal(t, station.StatusPlaying, got[len(got)-1].To)
}
