package sampling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream"
	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFormat = audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 1, BitDepth: 24}

type fakeTaps struct {
	mu   sync.Mutex
	taps map[string]*stream.Tap
}

func newFakeTaps(ids ...string) *fakeTaps {
	f := &fakeTaps{taps: make(map[string]*stream.Tap)}
	for _, id := range ids {
		f.taps[id] = stream.NewTap()
	}
	return f
}

func (f *fakeTaps) Tap(id string) (*stream.Tap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.taps[id]
	if !ok {
		return nil, errors.New("unknown station")
	}
	return t, nil
}

func (f *fakeTaps) get(id string) *stream.Tap {
	t, _ := f.Tap(id)
	return t
}

type fakeUploader struct {
	segments chan Segment
	err      error
	block    chan struct{}
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{segments: make(chan Segment, 16)}
}

func (u *fakeUploader) Upload(ctx context.Context, seg Segment) (Receipt, error) {
	if u.block != nil {
		select {
		case <-u.block:
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
	u.segments <- seg
	if u.err != nil {
		return Receipt{}, u.err
	}
	return Receipt{Filename: seg.Filename("wav"), Bytes: len(seg.Samples) * 2, StatusCode: 200}, nil
}

func (u *fakeUploader) next(t *testing.T) Segment {
	t.Helper()
	select {
	case seg := <-u.segments:
		return seg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upload")
		return Segment{}
	}
}

func (u *fakeUploader) none(t *testing.T) {
	t.Helper()
	select {
	case seg := <-u.segments:
		t.Fatalf("unexpected upload of %s", seg.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// feed publishes ms milliseconds of audio in 10ms chunks
func feed(tap *stream.Tap, ms int, value int32) {
	for i := 0; i < ms/10; i++ {
		samples := make([]int32, 10)
		for j := range samples {
			samples[j] = value
		}
		tap.Publish(audio.Buffer{Samples: samples, Format: testFormat})
		time.Sleep(time.Millisecond)
	}
}

func testConfig() Config {
	return Config{Duration: 100 * time.Millisecond, Interval: time.Second}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{Duration: DefaultDuration, Interval: DefaultInterval}, false},
		{"zero duration", Config{Interval: time.Second}, true},
		{"too long", Config{Duration: 61 * time.Second, Interval: time.Minute}, true},
		{"zero interval", Config{Duration: time.Second}, true},
		{"duration longer than interval", Config{Duration: 30 * time.Second, Interval: 20 * time.Second}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFirstCaptureStartsImmediately(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	mock := clock.NewMock()
	p := New(testConfig(), taps, up, WithClock(mock))
	defer p.Close(context.Background())

	startedAt := mock.Now()
	require.NoError(t, p.Start("kexp"))
	assert.True(t, p.Active("kexp"))

	feed(taps.get("kexp"), 100, 7)

	seg := up.next(t)
	assert.Equal(t, "kexp", seg.StationID)
	assert.Equal(t, 100*time.Millisecond, seg.Duration)
	assert.Len(t, seg.Samples, 100)
	assert.Equal(t, testFormat, seg.Format)
	assert.True(t, seg.CapturedAt.Equal(startedAt))
	assert.NotEmpty(t, seg.ID)

	// Nothing more until the next tick
	feed(taps.get("kexp"), 100, 7)
	up.none(t)
}

func TestCaptureOnEveryTick(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	mock := clock.NewMock()
	p := New(testConfig(), taps, up, WithClock(mock))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 100, 1)
	first := up.next(t)

	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	feed(taps.get("kexp"), 100, 2)
	second := up.next(t)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int32(2), second.Samples[0])
	assert.True(t, second.CapturedAt.After(first.CapturedAt))
}

func TestCapturesNeverOverlap(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	mock := clock.NewMock()
	p := New(testConfig(), taps, up, WithClock(mock))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 50, 1)

	// Two ticks during one capture collapse into a single pending capture
	mock.Add(time.Second)
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	feed(taps.get("kexp"), 50, 1)
	up.next(t)

	feed(taps.get("kexp"), 100, 2)
	pending := up.next(t)
	assert.Equal(t, int32(2), pending.Samples[0])

	feed(taps.get("kexp"), 100, 3)
	up.none(t)
}

func TestLayoutChangeRestartsCapture(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 50, 1)

	stereo := audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 2, BitDepth: 24}
	for i := 0; i < 10; i++ {
		taps.get("kexp").Publish(audio.Buffer{Samples: make([]int32, 20), Format: stereo})
		time.Sleep(time.Millisecond)
	}

	seg := up.next(t)
	assert.Equal(t, stereo, seg.Format)
	assert.Len(t, seg.Samples, 200)
	assert.Equal(t, 100*time.Millisecond, seg.Duration)
}

func TestStopDiscardsPartialCapture(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 50, 1)
	p.Stop("kexp")

	assert.False(t, p.Active("kexp"))
	assert.Equal(t, 0, taps.get("kexp").Subscribers())
	assert.False(t, p.Stats("kexp").Active)

	feed(taps.get("kexp"), 100, 1)
	up.none(t)

	// Stopping twice is harmless
	p.Stop("kexp")
}

func TestRestartReplacesSession(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	require.NoError(t, p.Start("kexp"))
	assert.Equal(t, 1, taps.get("kexp").Subscribers())

	feed(taps.get("kexp"), 100, 1)
	up.next(t)
	up.none(t)
}

func TestStartWithoutTapIsCaptureFault(t *testing.T) {
	p := New(testConfig(), newFakeTaps(), newFakeUploader(), WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	err := p.Start("ghost")
	require.Error(t, err)

	var fault *station.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, station.FaultCapture, fault.Kind)
	assert.Equal(t, "ghost", fault.StationID)
	assert.False(t, p.Active("ghost"))
	assert.NotEmpty(t, p.Stats("ghost").LastError)
}

func TestStartOnClosedTap(t *testing.T) {
	taps := newFakeTaps("kexp")
	taps.get("kexp").Close()
	p := New(testConfig(), taps, newFakeUploader(), WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	err := p.Start("kexp")
	assert.ErrorIs(t, err, stream.ErrTapClosed)
}

func TestStationsSampleIndependently(t *testing.T) {
	taps := newFakeTaps("a", "b")
	up := newFakeUploader()
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("a"))
	require.NoError(t, p.Start("b"))
	p.Stop("a")

	feed(taps.get("a"), 100, 1)
	feed(taps.get("b"), 100, 2)

	seg := up.next(t)
	assert.Equal(t, "b", seg.StationID)
	up.none(t)
}

func TestUploadOutcomes(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	up.err = errors.New("ingest down")
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	outcomes := make(chan Outcome, 4)
	p.OnOutcome(func(o Outcome) { outcomes <- o })

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 100, 1)
	up.next(t)

	var o Outcome
	select {
	case o = <-outcomes:
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}

	assert.False(t, o.OK())
	var fault *station.Fault
	require.ErrorAs(t, o.Err, &fault)
	assert.Equal(t, station.FaultUpload, fault.Kind)

	stats := p.Stats("kexp")
	assert.Equal(t, 1, stats.Captured)
	assert.Equal(t, 0, stats.Uploaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, stats.LastError, "ingest down")

	// Sampling continues after a failed upload
	assert.True(t, p.Active("kexp"))
}

func TestCloseWaitsForUploads(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	up.block = make(chan struct{})
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 100, 1)
	time.Sleep(10 * time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(up.block)
	}()

	require.NoError(t, p.Close(context.Background()))
	assert.Len(t, up.segments, 1)
	assert.False(t, p.Active("kexp"))
	assert.ErrorIs(t, p.Start("kexp"), ErrClosed)
}

func TestCloseDeadlineCancelsUploads(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	up.block = make(chan struct{})
	p := New(testConfig(), taps, up, WithClock(clock.NewMock()))

	require.NoError(t, p.Start("kexp"))
	feed(taps.get("kexp"), 100, 1)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
	assert.Len(t, up.segments, 0)
}

func TestScenarioEightOfTwenty(t *testing.T) {
	taps := newFakeTaps("s1")
	up := newFakeUploader()
	mock := clock.NewMock()
	p := New(Config{Duration: 8000 * time.Millisecond, Interval: 20000 * time.Millisecond}, taps, up, WithClock(mock))
	defer p.Close(context.Background())

	tap := taps.get("s1")
	publish := func(ms int, value int32) {
		// 100ms chunks at 1kHz mono
		for i := 0; i < ms/100; i++ {
			samples := make([]int32, 100)
			for j := range samples {
				samples[j] = value
			}
			tap.Publish(audio.Buffer{Samples: samples, Format: testFormat})
			time.Sleep(time.Millisecond)
		}
	}

	start := mock.Now()
	require.NoError(t, p.Start("s1"))

	// Not complete until 8 seconds of audio arrived
	publish(7900, 1)
	up.none(t)
	publish(100, 1)
	first := up.next(t)
	assert.Equal(t, 8*time.Second, first.Duration)
	assert.Len(t, first.Samples, 8000)
	assert.True(t, first.CapturedAt.Equal(start))

	// Idle between captures
	publish(2000, 1)
	up.none(t)

	mock.Add(20 * time.Second)
	time.Sleep(10 * time.Millisecond)
	publish(8000, 2)
	second := up.next(t)
	assert.True(t, second.CapturedAt.Equal(start.Add(20*time.Second)))
	assert.Equal(t, int32(2), second.Samples[0])

	assert.NotEqual(t, first.Timestamp(), second.Timestamp())
	assert.NotEqual(t, first.Filename("ogg"), second.Filename("ogg"))
	assert.True(t, strings.HasPrefix(first.Filename("ogg"), "s1_"))
	assert.True(t, strings.HasPrefix(second.Filename("ogg"), "s1_"))

	stats := p.Stats("s1")
	assert.Equal(t, 2, stats.Captured)
	assert.Equal(t, 2, stats.Uploaded)
}

func TestCaptureRestartDiscardsBufferedAudio(t *testing.T) {
	start := time.Date(2024, 3, 9, 13, 0, 0, 0, time.UTC)
	c := newCapture("kexp", start, 100*time.Millisecond)

	assert.False(t, c.add(audio.Buffer{Samples: make([]int32, 60), Format: testFormat}))

	later := start.Add(time.Second)
	c.restart(later)
	assert.False(t, c.add(audio.Buffer{Samples: make([]int32, 60), Format: testFormat}))
	assert.True(t, c.add(audio.Buffer{Samples: make([]int32, 60), Format: testFormat}))

	seg := c.segment()
	assert.Len(t, seg.Samples, 100)
	assert.True(t, seg.CapturedAt.Equal(later))
}

func TestLaggingCaptureCountsDroppedAudio(t *testing.T) {
	taps := newFakeTaps("kexp")
	up := newFakeUploader()
	cfg := testConfig()
	cfg.Buffer = 1
	p := New(cfg, taps, up, WithClock(clock.NewMock()))
	defer p.Close(context.Background())

	require.NoError(t, p.Start("kexp"))
	p.mu.Lock()
	sub := p.sessions["kexp"].sub
	p.mu.Unlock()

	// Publish without pause until the one-chunk subscription overflows
	tap := taps.get("kexp")
	for i := 0; i < 1_000_000 && sub.Dropped() == 0; i++ {
		tap.Publish(audio.Buffer{Samples: make([]int32, 10), Format: testFormat})
	}
	require.Positive(t, sub.Dropped())

	// The next delivered chunk carries the gap
	feed(tap, 20, 1)
	assert.Eventually(t, func() bool {
		return p.Stats("kexp").Dropped == sub.Dropped()
	}, time.Second, 5*time.Millisecond)
}

func TestSegmentNaming(t *testing.T) {
	seg := Segment{
		StationID:  "kexp",
		CapturedAt: time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.FixedZone("X", 3600)),
	}

	assert.Equal(t, "2024-03-09T13:05:07.123Z", seg.Timestamp())
	assert.Equal(t, "kexp_20240309T130507.123Z.ogg", seg.Filename("ogg"))
}
