// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output and Voice interfaces with oto and null implementations
// Package output mixes one playback voice per station onto a sound device.
//
// Each Voice carries its own software gain so a station can be silenced
// without touching the decoded signal that feeds sampling.
//
// Example:
//
//	out := output.NewOto(48000, 2)
//	voice, err := out.NewVoice(buf.Format)
//	voice.SetGain(0.5)
//	err = voice.Write(buf.Samples)
package output
