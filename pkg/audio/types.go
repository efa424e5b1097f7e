// ABOUTME: Audio type definitions shared by the stream, sampling and output layers
// ABOUTME: Defines PCM formats, decoded buffers, gain and duration helpers
package audio

import "time"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a decoded PCM stream
type Format struct {
	Codec      string // source codec the PCM was decoded from ("mp3", "flac")
	SampleRate int
	Channels   int
	BitDepth   int
}

// IsZero reports whether the format has not been set
func (f Format) IsZero() bool {
	return f.SampleRate == 0 || f.Channels == 0
}

// SameLayout reports whether two formats carry interchangeable PCM
func (f Format) SameLayout(o Format) bool {
	return f.SampleRate == o.SampleRate && f.Channels == o.Channels
}

// Buffer represents one chunk of decoded PCM audio.
// Samples are interleaved and left-justified in 24-bit range.
type Buffer struct {
	At      time.Time // wall time the chunk was decoded
	Samples []int32
	Format  Format
}

// Frames returns the number of sample frames (samples per channel) in the buffer
func (b Buffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the playback duration of the buffer
func (b Buffer) Duration() time.Duration {
	return FramesDuration(b.Frames(), b.Format.SampleRate)
}

// FramesDuration converts a frame count at the given rate into a duration
func FramesDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// DurationSamples returns how many interleaved samples cover d in format f
func DurationSamples(d time.Duration, f Format) int {
	frames := int(int64(d) * int64(f.SampleRate) / int64(time.Second))
	return frames * f.Channels
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// ClampGain limits a gain value to [0, 1]
func ClampGain(gain float64) float64 {
	if gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}

// ApplyGain returns a scaled copy of samples with clipping protection.
// The input slice is never modified.
func ApplyGain(samples []int32, gain float64) []int32 {
	result := make([]int32, len(samples))
	if gain <= 0 {
		return result
	}

	for i, sample := range samples {
		scaled := int64(float64(sample) * gain)

		// Clamp to 24-bit range to prevent overflow
		if scaled > Max24Bit {
			scaled = Max24Bit
		} else if scaled < Min24Bit {
			scaled = Min24Bit
		}

		result[i] = int32(scaled)
	}

	return result
}
