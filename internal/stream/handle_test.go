package stream

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

const testURL = "http://radio.test/live"

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 64)}
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recorder) signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Signal
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, sig Signal) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Signal == sig {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, got %v", sig, r.signals())
		}
	}
}

func newTestHandle(opener Opener, out output.Output, rec *recorder) *Handle {
	return NewHandle(Config{
		StationID:    "s1",
		URL:          testURL,
		Opener:       opener,
		Output:       out,
		StallTimeout: 100 * time.Millisecond,
	}, rec.listen)
}

func TestPlayEmitsLoadStartThenPlaying(t *testing.T) {
	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), output.NewNull(), rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))

	assert.True(t, h.Running())
	assert.Equal(t, []Signal{SignalLoadStart, SignalPlaying}, rec.signals())
}

func TestPlayTwiceIsNoop(t *testing.T) {
	opener := streamtest.NewOpener()
	rec := newRecorder()
	h := newTestHandle(opener, output.NewNull(), rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	require.NoError(t, h.Play(context.Background()))

	assert.Equal(t, 1, opener.Opens(testURL))
}

func TestOpenFailureEmitsStreamFault(t *testing.T) {
	opener := streamtest.NewOpener()
	boom := errors.New("connection refused")
	opener.Fail(testURL, boom)

	rec := newRecorder()
	h := newTestHandle(opener, output.NewNull(), rec)
	defer h.Release()

	err := h.Play(context.Background())
	require.ErrorIs(t, err, boom)

	ev := rec.waitFor(t, SignalError)
	assert.Equal(t, station.FaultStream, ev.Kind)
	assert.ErrorIs(t, ev.Err, boom)
	assert.False(t, h.Running(), "failed handle should be idle so it can be retried")

	opener.Fail(testURL, nil)
	require.NoError(t, h.Play(context.Background()))
	assert.True(t, h.Running())
}

func TestVoiceRejectionIsCommandFault(t *testing.T) {
	out := output.NewNull()
	out.Close()

	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), out, rec)
	defer h.Release()

	err := h.Play(context.Background())
	require.ErrorIs(t, err, output.ErrClosed)

	ev := rec.waitFor(t, SignalError)
	assert.Equal(t, station.FaultCommand, ev.Kind)
}

func TestPauseKeepsVoiceAndResumeReconnects(t *testing.T) {
	opener := streamtest.NewOpener()
	out := output.NewNull()
	rec := newRecorder()
	h := newTestHandle(opener, out, rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	h.Pause()

	assert.False(t, h.Running())
	assert.Equal(t, SignalPause, rec.signals()[len(rec.signals())-1])
	require.Len(t, out.Voices(), 1)
	assert.False(t, out.Voices()[0].Closed())

	require.NoError(t, h.Play(context.Background()))
	assert.Equal(t, 2, opener.Opens(testURL))
	assert.Len(t, out.Voices(), 1, "resume should reuse the voice")
}

func TestStopDropsVoice(t *testing.T) {
	out := output.NewNull()
	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), out, rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	h.Stop()

	require.Len(t, out.Voices(), 1)
	assert.True(t, out.Voices()[0].Closed())
	assert.Equal(t, SignalPause, rec.signals()[len(rec.signals())-1])

	require.NoError(t, h.Play(context.Background()))
	assert.Len(t, out.Voices(), 2)
}

func TestNoSignalsAfterPause(t *testing.T) {
	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), output.NewNull(), rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	h.Pause()
	count := len(rec.signals())

	time.Sleep(250 * time.Millisecond)
	assert.Len(t, rec.signals(), count, "paused pump must not emit")
}

func TestReleaseIsIdempotent(t *testing.T) {
	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), output.NewNull(), rec)

	require.NoError(t, h.Play(context.Background()))
	before := len(rec.signals())

	h.Release()
	h.Release()

	assert.Len(t, rec.signals(), before, "release emits nothing")
	assert.False(t, h.Running())
	assert.ErrorIs(t, h.Play(context.Background()), ErrReleased)

	_, err := h.Tap().Subscribe(1)
	assert.ErrorIs(t, err, ErrTapClosed)
}

func TestTapIsPreGain(t *testing.T) {
	out := output.NewNull()
	rec := newRecorder()
	h := newTestHandle(streamtest.NewOpener(), out, rec)
	defer h.Release()

	h.SetGain(0)
	sub, err := h.Tap().Subscribe(16)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, h.Play(context.Background()))

	select {
	case buf := <-sub.C:
		require.NotEmpty(t, buf.Samples)
		assert.Equal(t, streamtest.Level, buf.Samples[0])
		assert.False(t, buf.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no audio on tap")
	}

	assert.Equal(t, int32(0), out.Voices()[0].Peak())
	assert.Equal(t, 0.0, out.Voices()[0].Gain())
}

func TestSetGainReachesVoice(t *testing.T) {
	out := output.NewNull()
	h := newTestHandle(streamtest.NewOpener(), out, newRecorder())
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	h.SetGain(0.8)

	assert.Equal(t, 0.8, h.Gain())
	assert.Equal(t, 0.8, out.Voices()[0].Gain())
}

func TestStallEmitsWaitingThenPlaying(t *testing.T) {
	opener := streamtest.NewOpener()
	rec := newRecorder()
	h := newTestHandle(opener, output.NewNull(), rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))

	opener.Stall(testURL)
	rec.waitFor(t, SignalWaiting)
	assert.True(t, h.Running(), "a stalled stream keeps its connection")

	opener.Resume(testURL)
	rec.waitFor(t, SignalPlaying)
}

func TestStreamEndIsStreamFault(t *testing.T) {
	opener := streamtest.NewOpener()
	rec := newRecorder()
	h := newTestHandle(opener, output.NewNull(), rec)
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	opener.End(testURL)

	ev := rec.waitFor(t, SignalError)
	assert.ErrorIs(t, ev.Err, ErrStreamEnded)
	assert.Equal(t, station.FaultStream, ev.Kind)
}

func TestHandleIdleWhenFaultArrives(t *testing.T) {
	opener := streamtest.NewOpener()
	runningAtFault := make(chan bool, 1)

	var h *Handle
	h = NewHandle(Config{
		StationID:    "s1",
		URL:          testURL,
		Opener:       opener,
		Output:       output.NewNull(),
		StallTimeout: time.Second,
	}, func(ev Event) {
		if ev.Signal == SignalError {
			runningAtFault <- h.Running()
		}
	})
	defer h.Release()

	require.NoError(t, h.Play(context.Background()))
	opener.End(testURL)

	select {
	case running := <-runningAtFault:
		assert.False(t, running, "a retry issued on the error signal must play, not pause")
	case <-time.After(2 * time.Second):
		t.Fatal("no error signal")
	}
}

func TestPlayHonorsContext(t *testing.T) {
	opener := streamtest.NewOpener()
	opener.Stall(testURL)
	defer opener.Resume(testURL)

	h := newTestHandle(opener, output.NewNull(), newRecorder())
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.Play(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, h.Running(), "the connection attempt continues after the caller gives up")
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "loadstart", SignalLoadStart.String())
	assert.Equal(t, "error", SignalError.String())
	assert.Equal(t, "signal(42)", Signal(42).String())
}
