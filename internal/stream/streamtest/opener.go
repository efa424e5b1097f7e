// ABOUTME: Synthetic stream opener for tests
// ABOUTME: Produces paced constant-level PCM with controllable failures, stalls and endings
package streamtest

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/decode"
)

// Level is the sample value every synthetic stream produces
const Level int32 = 1 << 20

// Opener opens synthetic streams keyed by URL
type Opener struct {
	// Format of produced audio; defaults to 48kHz stereo
	Format audio.Format
	// ChunkFrames per Read; defaults to 480 (10ms at 48kHz)
	ChunkFrames int
	// Pace between chunks; defaults to 5ms
	Pace time.Duration

	mu      sync.Mutex
	fail    map[string]error
	opens   map[string]int
	stalled map[string]chan struct{}
	ended   map[string]bool
}

// NewOpener creates an opener with default settings
func NewOpener() *Opener {
	return &Opener{
		Format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
		ChunkFrames: 480,
		Pace:        5 * time.Millisecond,
		fail:        make(map[string]error),
		opens:       make(map[string]int),
		stalled:     make(map[string]chan struct{}),
		ended:       make(map[string]bool),
	}
}

// Fail makes every Open of url return err; nil clears it
func (o *Opener) Fail(url string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.fail, url)
		return
	}
	o.fail[url] = err
}

// Stall blocks reads on url until Resume
func (o *Opener) Stall(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.stalled[url]; !ok {
		o.stalled[url] = make(chan struct{})
	}
}

// Resume releases a stalled url
func (o *Opener) Resume(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.stalled[url]; ok {
		close(ch)
		delete(o.stalled, url)
	}
}

// End makes open streams on url return io.EOF
func (o *Opener) End(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended[url] = true
}

// Opens returns how many times url was opened successfully
func (o *Opener) Opens(url string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[url]
}

// Open starts a synthetic stream for url
func (o *Opener) Open(ctx context.Context, url string) (decode.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.fail[url]; err != nil {
		return nil, err
	}
	o.opens[url]++
	o.ended[url] = false

	return &stream{ctx: ctx, url: url, opener: o}, nil
}

func (o *Opener) state(url string) (stall chan struct{}, ended bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stalled[url], o.ended[url]
}

type stream struct {
	ctx    context.Context
	url    string
	opener *Opener
}

func (s *stream) Read() (audio.Buffer, error) {
	for {
		stall, ended := s.opener.state(s.url)
		if ended {
			return audio.Buffer{}, io.EOF
		}
		if stall == nil {
			break
		}
		select {
		case <-stall:
		case <-s.ctx.Done():
			return audio.Buffer{}, s.ctx.Err()
		}
	}

	if s.opener.Pace > 0 {
		select {
		case <-time.After(s.opener.Pace):
		case <-s.ctx.Done():
			return audio.Buffer{}, s.ctx.Err()
		}
	} else if err := s.ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	format := s.opener.Format
	samples := make([]int32, s.opener.ChunkFrames*format.Channels)
	for i := range samples {
		samples[i] = Level
	}
	return audio.Buffer{Samples: samples, Format: format}, nil
}

func (s *stream) Close() error {
	return nil
}
