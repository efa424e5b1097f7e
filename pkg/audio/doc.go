// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the PCM types shared by every radiowatch audio stage.
//
// Decoders produce Buffers of interleaved int32 samples in 24-bit range.
// The same Buffer feeds two independent paths:
//   - the sampling tap, which always sees the decoded signal untouched
//   - the playback voice, which applies the station's gain with ApplyGain
//
// Example:
//
//	buf := audio.Buffer{Samples: pcm, Format: audio.Format{SampleRate: 44100, Channels: 2}}
//	quieter := audio.ApplyGain(buf.Samples, 0.5) // buf.Samples is left as decoded
package audio
