package session

import (
	"testing"

	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream"
)

func TestNext(t *testing.T) {
	const (
		loading = station.StatusLoading
		playing = station.StatusPlaying
		paused  = station.StatusPaused
		errored = station.StatusError
	)

	tests := []struct {
		from     station.Status
		signal   stream.Signal
		expected station.Status
	}{
		{loading, stream.SignalPlaying, playing},
		{loading, stream.SignalError, errored},
		{loading, stream.SignalPause, paused},
		{playing, stream.SignalWaiting, loading},
		{playing, stream.SignalPause, paused},
		{playing, stream.SignalError, errored},
		{playing, stream.SignalLoadStart, loading},
		{paused, stream.SignalLoadStart, loading},
		{paused, stream.SignalWaiting, paused},
		{paused, stream.SignalPlaying, playing},
		{errored, stream.SignalLoadStart, loading},
		{errored, stream.SignalPlaying, errored},
		{errored, stream.SignalWaiting, errored},
		{errored, stream.SignalPause, paused},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_"+tt.signal.String(), func(t *testing.T) {
			if got := Next(tt.from, tt.signal); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestNextUnknownSignalKeepsStatus(t *testing.T) {
	if got := Next(station.StatusPlaying, stream.Signal(99)); got != station.StatusPlaying {
		t.Errorf("expected playing, got %s", got)
	}
}

func TestErrorLeftOnlyByCommands(t *testing.T) {
	for sig := stream.SignalLoadStart; sig <= stream.SignalError; sig++ {
		to := Next(station.StatusError, sig)
		if to == station.StatusError {
			continue
		}
		if sig != stream.SignalLoadStart && sig != stream.SignalPause {
			t.Errorf("error left by %s", sig)
		}
	}
}
