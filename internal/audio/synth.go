package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidParams is returned when the signal chain cannot be built.
var ErrInvalidParams = errors.New("invalid synth parameters")

// MinChordDuration keeps chord slots from collapsing on very short runs.
const MinChordDuration = 500 * time.Millisecond

// Chord assigns one pitch to each oscillator.
type Chord struct {
	Name  string
	Root  float64 // Hz, sine voice
	Upper float64 // Hz, triangle voice
}

// Progression is the repeating four-chord loop (Am F C G).
var Progression = []Chord{
	{"Am", 110.00, 329.63},
	{"F", 87.31, 261.63},
	{"C", 130.81, 392.00},
	{"G", 98.00, 293.66},
}

// Params configures the signal chain.
type Params struct {
	Duration time.Duration // total runtime to cover
	Peak     float64       // envelope peak gain, 0..1
	Cutoff   float64       // low-pass cutoff in Hz
	Q        float64
	Drift    float64 // relative pitch drift depth, e.g. 0.006
}

// DefaultParams returns the ambient bed settings for a run of length d.
func DefaultParams(d time.Duration) Params {
	return Params{
		Duration: d,
		Peak:     0.18,
		Cutoff:   1400,
		Q:        0.7,
		Drift:    0.006,
	}
}

// Synth renders the chain: sine + triangle -> gain -> low-pass -> track.
type Synth struct {
	p      Params
	chord  time.Duration
	filter biquad
}

// NewSynth validates p and builds the chain.
func NewSynth(p Params) (*Synth, error) {
	switch {
	case p.Duration <= 0:
		return nil, fmt.Errorf("%w: duration %v", ErrInvalidParams, p.Duration)
	case p.Peak <= 0 || p.Peak > 1:
		return nil, fmt.Errorf("%w: peak %v", ErrInvalidParams, p.Peak)
	case p.Cutoff <= 0 || p.Cutoff >= SampleRate/2:
		return nil, fmt.Errorf("%w: cutoff %vHz", ErrInvalidParams, p.Cutoff)
	case p.Q <= 0:
		return nil, fmt.Errorf("%w: Q %v", ErrInvalidParams, p.Q)
	}
	return &Synth{
		p:      p,
		chord:  ChordDuration(p.Duration, len(Progression)),
		filter: newLowpass(p.Cutoff, p.Q, SampleRate),
	}, nil
}

// ChordDuration splits total evenly across the chords, never below MinChordDuration.
func ChordDuration(total time.Duration, chords int) time.Duration {
	if chords <= 0 {
		return MinChordDuration
	}
	d := total / time.Duration(chords)
	if d < MinChordDuration {
		return MinChordDuration
	}
	return d
}

// ChordDuration is the slot length used by this synth.
func (s *Synth) ChordDuration() time.Duration { return s.chord }

// ChordAt returns the chord playing at t.
func (s *Synth) ChordAt(t time.Duration) Chord {
	if t < 0 {
		t = 0
	}
	return Progression[int(t/s.chord)%len(Progression)]
}

// Envelope is the gain multiplier at offset t inside a chord slot of length
// slot: linear attack, sustain, linear release reaching 0 at the slot end.
func Envelope(t, slot time.Duration) float64 {
	if t <= 0 || t >= slot {
		return 0
	}
	attack := min(600*time.Millisecond, slot/4)
	release := min(1200*time.Millisecond, slot/3)
	switch {
	case t < attack:
		return float64(t) / float64(attack)
	case t > slot-release:
		return float64(slot-t) / float64(release)
	default:
		return 1
	}
}

// Render produces the whole track. Each call starts from silence.
func (s *Synth) Render() *Track {
	n := int(s.p.Duration.Seconds() * SampleRate)
	out := make([]int16, n*Channels)
	s.filter.reset()

	var phaseA, phaseB float64
	dt := 1.0 / SampleRate
	for i := 0; i < n; i++ {
		t := time.Duration(i) * time.Second / SampleRate
		slot := int(t / s.chord)
		chord := Progression[slot%len(Progression)]
		env := Envelope(t-time.Duration(slot)*s.chord, s.chord)

		sec := float64(i) * dt
		fa := chord.Root * (1 + s.p.Drift*math.Sin(2*math.Pi*0.13*sec))
		fb := chord.Upper * (1 + s.p.Drift*math.Sin(2*math.Pi*0.21*sec+1.3))
		phaseA = math.Mod(phaseA+fa*dt, 1)
		phaseB = math.Mod(phaseB+fb*dt, 1)

		mix := (math.Sin(2*math.Pi*phaseA) + 0.6*triangle(phaseB)) / 1.6
		v := s.filter.process(mix*s.p.Peak*env) * 32767

		sample := clip16(v)
		out[i*Channels] = sample
		out[i*Channels+1] = sample
	}
	return &Track{Samples: out}
}

func triangle(phase float64) float64 {
	return 4*math.Abs(phase-math.Floor(phase+0.5)) - 1
}
