// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Carries the last frame across chunks so consecutive calls join without gaps
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastFrame  []int32 // final frame of the previous chunk
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int32, channels),
	}
}

// InputRate returns the rate the resampler expects
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the rate the resampler produces
func (r *Resampler) OutputRate() int { return r.outputRate }

// Resample converts input samples to output sample rate using linear interpolation.
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate, sized with OutputSamplesNeeded
func (r *Resampler) Resample(input []int32, output []int32) int {
	ch := r.channels
	inputFrames := len(input) / ch
	if inputFrames == 0 {
		return 0
	}

	// Virtual frame 0 is the tail of the previous chunk once primed
	total := inputFrames
	if r.primed {
		total++
	}
	frame := func(idx, c int) int32 {
		if r.primed {
			if idx == 0 {
				return r.lastFrame[c]
			}
			return input[(idx-1)*ch+c]
		}
		return input[idx*ch+c]
	}

	outIdx := 0
	outputFrames := len(output) / ch
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx+1 >= total {
			break
		}

		frac := r.position - float64(inputIdx)
		for c := 0; c < ch; c++ {
			interpolated := float64(frame(inputIdx, c))*(1.0-frac) + float64(frame(inputIdx+1, c))*frac
			output[outIdx*ch+c] = int32(math.Round(interpolated))
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase so the last input frame becomes virtual frame 0 of the next chunk
	r.position -= float64(total - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastFrame, input[(inputFrames-1)*ch:inputFrames*ch])
	r.primed = true

	return outIdx * ch
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded returns an output buffer size large enough for inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	outputFrames := int(float64(inputFrames)/r.ratio) + 1
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}

// Convert resamples a complete buffer in one call
func Convert(input []int32, inputRate, outputRate, channels int) []int32 {
	if inputRate == outputRate || channels <= 0 {
		out := make([]int32, len(input))
		copy(out, input)
		return out
	}

	r := New(inputRate, outputRate, channels)
	out := make([]int32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, out)
	return out[:n]
}
