// ABOUTME: Station status state machine as an explicit transition table
// ABOUTME: Maps (current status, handle signal) to the next status
package session

import (
	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream"
)

// transitions[from][signal] = to. error is left only by an explicit play
// (loadstart) or stop/pause command.
var transitions = map[station.Status]map[stream.Signal]station.Status{
	station.StatusLoading: {
		stream.SignalLoadStart: station.StatusLoading,
		stream.SignalPlaying:   station.StatusPlaying,
		stream.SignalWaiting:   station.StatusLoading,
		stream.SignalPause:     station.StatusPaused,
		stream.SignalError:     station.StatusError,
	},
	station.StatusPlaying: {
		stream.SignalLoadStart: station.StatusLoading,
		stream.SignalPlaying:   station.StatusPlaying,
		stream.SignalWaiting:   station.StatusLoading,
		stream.SignalPause:     station.StatusPaused,
		stream.SignalError:     station.StatusError,
	},
	station.StatusPaused: {
		stream.SignalLoadStart: station.StatusLoading,
		stream.SignalPlaying:   station.StatusPlaying,
		stream.SignalWaiting:   station.StatusPaused,
		stream.SignalPause:     station.StatusPaused,
		stream.SignalError:     station.StatusError,
	},
	station.StatusError: {
		stream.SignalLoadStart: station.StatusLoading,
		stream.SignalPlaying:   station.StatusError,
		stream.SignalWaiting:   station.StatusError,
		stream.SignalPause:     station.StatusPaused,
		stream.SignalError:     station.StatusError,
	},
}

// Next returns the status after sig is observed in status from
func Next(from station.Status, sig stream.Signal) station.Status {
	if row, ok := transitions[from]; ok {
		if to, ok := row[sig]; ok {
			return to
		}
	}
	return from
}
