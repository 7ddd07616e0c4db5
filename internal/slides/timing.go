package slides

import "time"

// Timing fixes how long each slide lasts, how long its fades take and the
// frame rate the show is sampled at.
type Timing struct {
	PerSlide time.Duration
	Fade     time.Duration
	FPS      int
}

// Frame is the result of sampling the show at one instant.
type Frame struct {
	Index   int
	Intra   time.Duration // time since the slide started
	Opacity float64
}

// TotalFrames is slideCount × seconds-per-slide × fps.
func (t Timing) TotalFrames(slideCount int) int {
	return int(float64(slideCount) * t.PerSlide.Seconds() * float64(t.FPS))
}

// Total is the nominal length of the whole show.
func (t Timing) Total(slideCount int) time.Duration {
	return time.Duration(slideCount) * t.PerSlide
}

// FrameTime is the elapsed time at which frame n is sampled.
func (t Timing) FrameTime(n int) time.Duration {
	if t.FPS <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(t.FPS)
}

// Locate maps elapsed time onto a slide index and the time into that slide.
// Times past the end stay on the last slide.
func (t Timing) Locate(elapsed time.Duration, slideCount int) (int, time.Duration) {
	if slideCount <= 0 || t.PerSlide <= 0 || elapsed <= 0 {
		return 0, 0
	}
	idx := int(elapsed / t.PerSlide)
	if idx > slideCount-1 {
		idx = slideCount - 1
	}
	intra := elapsed - time.Duration(idx)*t.PerSlide
	if intra >= t.PerSlide {
		intra = t.PerSlide - 1
	}
	return idx, intra
}

// Opacity ramps 0→1 over the fade-in window, holds 1, then ramps 1→0 over
// the fade-out window that ends exactly at PerSlide.
func (t Timing) Opacity(intra time.Duration) float64 {
	fade := t.fade()
	if fade <= 0 {
		return 1
	}
	switch {
	case intra <= 0:
		return 0
	case intra < fade:
		return float64(intra) / float64(fade)
	case intra >= t.PerSlide:
		return 0
	case intra > t.PerSlide-fade:
		return float64(t.PerSlide-intra) / float64(fade)
	default:
		return 1
	}
}

// At samples the show at elapsed.
func (t Timing) At(elapsed time.Duration, slideCount int) Frame {
	idx, intra := t.Locate(elapsed, slideCount)
	op := t.Opacity(intra)
	if slideCount > 0 && elapsed >= t.Total(slideCount) {
		// the last fade-out has finished
		op = 0
	}
	return Frame{Index: idx, Intra: intra, Opacity: op}
}

func (t Timing) fade() time.Duration {
	if half := t.PerSlide / 2; t.Fade > half {
		return half
	}
	return t.Fade
}
