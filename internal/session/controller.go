// ABOUTME: Playback controller exposing intent-level commands over the registry
// ABOUTME: Enforces focus exclusivity and the effective gain rule
package session

import (
	"context"
	"log"

	"github.com/harperreed/radiowatch/internal/stream"
	"github.com/harperreed/radiowatch/pkg/audio"
)

// Controller issues playback commands. Command failures surface as station
// status, never as errors; the only error returned is ErrUnknownStation.
type Controller struct {
	reg *Registry
}

// NewController creates a controller for reg
func NewController(reg *Registry) *Controller {
	return &Controller{reg: reg}
}

// TogglePlay pauses a running station or plays an idle one
func (c *Controller) TogglePlay(ctx context.Context, id string) error {
	e, err := c.reg.lookup(id)
	if err != nil {
		return err
	}

	if e.handle.Running() {
		e.handle.Pause()
		return nil
	}

	if err := e.handle.Play(ctx); err != nil && c.reg.cfg.Debug {
		log.Printf("[DEBUG] Station %s: play settled with %v", id, err)
	}
	return nil
}

// SetVolume sets a station's volume; only the playback gain follows it
func (c *Controller) SetVolume(id string, volume float64) error {
	e, err := c.reg.lookup(id)
	if err != nil {
		return err
	}

	c.reg.mu.Lock()
	e.state.Volume = audio.ClampGain(volume)
	e.state.Gain = c.reg.effectiveGainLocked(e)
	gain := e.state.Gain
	c.reg.mu.Unlock()

	e.handle.SetGain(gain)
	c.reg.notifyChange()
	return nil
}

// ToggleFocus makes id the only audible station; focusing the sole focused
// station again restores every station via PlayAll
func (c *Controller) ToggleFocus(ctx context.Context, id string) error {
	e, err := c.reg.lookup(id)
	if err != nil {
		return err
	}

	c.reg.mu.Lock()
	if c.soleFocusLocked(e) {
		c.reg.mu.Unlock()
		return c.PlayAll(ctx)
	}
	for _, other := range c.reg.entries {
		other.state.IsFocused = other == e
	}
	c.reg.globalMute = false
	c.reg.mu.Unlock()

	log.Printf("Station %s focused", id)
	c.reg.applyGains()

	if !e.handle.Running() {
		if err := e.handle.Play(ctx); err != nil && c.reg.cfg.Debug {
			log.Printf("[DEBUG] Station %s: play settled with %v", id, err)
		}
	}
	return nil
}

func (c *Controller) soleFocusLocked(e *entry) bool {
	if !e.state.IsFocused {
		return false
	}
	for _, other := range c.reg.entries {
		if other != e && other.state.IsFocused {
			return false
		}
	}
	return true
}

// PlayAll clears focus and mute, restores every gain to its volume and
// resumes every idle station. It waits for all attempts to settle.
func (c *Controller) PlayAll(ctx context.Context) error {
	c.reg.mu.Lock()
	for _, e := range c.reg.entries {
		e.state.IsFocused = false
	}
	c.reg.globalMute = false
	idle := make([]*stream.Handle, 0, len(c.reg.order))
	for _, h := range c.reg.handlesLocked() {
		if !h.Running() {
			idle = append(idle, h)
		}
	}
	c.reg.mu.Unlock()

	c.reg.applyGains()
	c.reg.playSettled(ctx, idle)
	return nil
}

// PauseAll pauses every station; handles and voices are kept
func (c *Controller) PauseAll(ctx context.Context) error {
	forEachSettled(c.handles(), (*stream.Handle).Pause)
	return nil
}

// StopAll fully stops every station: connections released, buffered
// playback dropped, status paused (errored stations included)
func (c *Controller) StopAll(ctx context.Context) error {
	forEachSettled(c.handles(), (*stream.Handle).Stop)
	return nil
}

// ToggleVolumeAll unmutes when every station is silent, otherwise mutes
// every station's playback. Volumes are never changed.
func (c *Controller) ToggleVolumeAll() {
	c.reg.mu.Lock()
	allSilent := len(c.reg.order) > 0
	for _, e := range c.reg.entries {
		if !e.state.Silent() {
			allSilent = false
			break
		}
	}
	if allSilent {
		c.reg.globalMute = false
		for _, e := range c.reg.entries {
			e.state.IsFocused = false
		}
	} else {
		c.reg.globalMute = true
	}
	c.reg.mu.Unlock()

	if allSilent {
		log.Printf("Unmuting all stations")
	} else {
		log.Printf("Muting all stations")
	}
	c.reg.applyGains()
}

func (c *Controller) handles() []*stream.Handle {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.reg.handlesLocked()
}
