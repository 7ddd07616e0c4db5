// Package audio synthesizes the ambient soundtrack as interleaved 48 kHz
// stereo int16 PCM, framed in 20 ms frames.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Track is a rendered soundtrack: interleaved stereo samples at SampleRate.
type Track struct {
	Samples []int16
}

// Duration is the playing time of the track.
func (t *Track) Duration() time.Duration {
	if t == nil {
		return 0
	}
	return time.Duration(len(t.Samples)/Channels) * time.Second / SampleRate
}

// FrameCount returns the number of 20ms frames, counting a trailing partial frame.
func (t *Track) FrameCount() int {
	if t == nil {
		return 0
	}
	return (len(t.Samples) + FrameSamples - 1) / FrameSamples
}

// Frame returns frame i, zero-padded to FrameSamples. Out of range returns nil.
func (t *Track) Frame(i int) []int16 {
	if t == nil || i < 0 || i >= t.FrameCount() {
		return nil
	}
	start := i * FrameSamples
	end := start + FrameSamples
	if end <= len(t.Samples) {
		return t.Samples[start:end]
	}
	frame := make([]int16, FrameSamples)
	copy(frame, t.Samples[start:])
	return frame
}
