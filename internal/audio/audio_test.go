package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- SamplesToBytes ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestClip16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{40000, 32767},
		{-40000, -32768},
		{123.9, 123},
	}
	for _, tt := range tests {
		if got := clip16(tt.in); got != tt.want {
			t.Errorf("clip16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// --- Track framing ---

func TestTrackFrames(t *testing.T) {
	tr := &Track{Samples: make([]int16, FrameSamples*2+10)}
	for i := range tr.Samples {
		tr.Samples[i] = 7
	}
	if tr.FrameCount() != 3 {
		t.Fatalf("FrameCount = %d, want 3", tr.FrameCount())
	}
	last := tr.Frame(2)
	if len(last) != FrameSamples {
		t.Fatalf("last frame length = %d, want %d", len(last), FrameSamples)
	}
	if last[9] != 7 || last[10] != 0 {
		t.Errorf("last frame not zero padded: [9]=%d [10]=%d", last[9], last[10])
	}
	if tr.Frame(3) != nil || tr.Frame(-1) != nil {
		t.Error("out of range frames should be nil")
	}

	var nilTrack *Track
	if nilTrack.FrameCount() != 0 || nilTrack.Duration() != 0 || nilTrack.Frame(0) != nil {
		t.Error("nil track should behave as empty")
	}
}

// --- Chord scheduling ---

func TestChordDuration(t *testing.T) {
	tests := []struct {
		total time.Duration
		want  time.Duration
	}{
		{30 * time.Second, 7500 * time.Millisecond},
		{4 * time.Second, time.Second},
		{time.Second, MinChordDuration},
		{0, MinChordDuration},
	}
	for _, tt := range tests {
		if got := ChordDuration(tt.total, 4); got != tt.want {
			t.Errorf("ChordDuration(%v, 4) = %v, want %v", tt.total, got, tt.want)
		}
	}
	if got := ChordDuration(10*time.Second, 0); got != MinChordDuration {
		t.Errorf("ChordDuration with no chords = %v, want floor", got)
	}
}

func TestChordAtRepeats(t *testing.T) {
	s, err := NewSynth(DefaultParams(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	// 1s total -> 500ms floor; 8 slots cycle through the progression twice
	want := []string{"Am", "F", "C", "G", "Am", "F", "C", "G"}
	for i, name := range want {
		at := time.Duration(i)*s.ChordDuration() + time.Millisecond
		if got := s.ChordAt(at).Name; got != name {
			t.Errorf("ChordAt(%v) = %s, want %s", at, got, name)
		}
	}
}

func TestEnvelope(t *testing.T) {
	slot := 4 * time.Second // attack 600ms, release 1200ms
	tests := []struct {
		t    time.Duration
		want float64
	}{
		{0, 0},
		{300 * time.Millisecond, 0.5},
		{600 * time.Millisecond, 1},
		{2 * time.Second, 1},
		{3400 * time.Millisecond, 0.5},
		{slot, 0},
		{5 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := Envelope(tt.t, slot); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Envelope(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestEnvelopeShortSlot(t *testing.T) {
	slot := MinChordDuration // attack 125ms, release ~166ms
	peak := 0.0
	for ms := 0; ms <= 500; ms += 5 {
		v := Envelope(time.Duration(ms)*time.Millisecond, slot)
		if v < 0 || v > 1 {
			t.Fatalf("Envelope(%dms) = %v out of [0,1]", ms, v)
		}
		peak = math.Max(peak, v)
	}
	if peak != 1 {
		t.Errorf("short slot never sustains: peak %v", peak)
	}
}

// --- Synth ---

func TestNewSynthRejectsBadParams(t *testing.T) {
	good := DefaultParams(time.Second)
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero duration", func(p *Params) { p.Duration = 0 }},
		{"zero peak", func(p *Params) { p.Peak = 0 }},
		{"peak above one", func(p *Params) { p.Peak = 2 }},
		{"cutoff above nyquist", func(p *Params) { p.Cutoff = 30000 }},
		{"zero Q", func(p *Params) { p.Q = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := good
			tt.mutate(&p)
			if _, err := NewSynth(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("NewSynth err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestRenderTrack(t *testing.T) {
	s, err := NewSynth(DefaultParams(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	tr := s.Render()

	if got := len(tr.Samples); got != 2*SampleRate*Channels {
		t.Fatalf("sample count = %d, want %d", got, 2*SampleRate*Channels)
	}
	if tr.Duration() != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", tr.Duration())
	}
	if tr.Samples[0] != 0 || tr.Samples[1] != 0 {
		t.Errorf("first sample = %d/%d, want silence at envelope start", tr.Samples[0], tr.Samples[1])
	}

	var peak int16
	var energy float64
	for i := 0; i < len(tr.Samples); i += Channels {
		if tr.Samples[i] != tr.Samples[i+1] {
			t.Fatalf("channels differ at %d", i)
		}
		v := tr.Samples[i]
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
		energy += float64(v) * float64(v)
	}
	if energy == 0 {
		t.Fatal("rendered track is silent")
	}
	// Peak gain 0.18 leaves plenty of headroom even with filter overshoot.
	if peak > 12000 {
		t.Errorf("peak sample %d louder than expected", peak)
	}
}

func TestRenderDeterministic(t *testing.T) {
	s, _ := NewSynth(DefaultParams(500 * time.Millisecond))
	a := s.Render()
	b := s.Render()
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("render differs at sample %d", i)
		}
	}
}

// --- Filter ---

func rmsThrough(f biquad, freq float64) float64 {
	var sum float64
	n := SampleRate / 2
	for i := 0; i < n; i++ {
		y := f.process(math.Sin(2 * math.Pi * freq * float64(i) / SampleRate))
		if i > n/2 {
			sum += y * y
		}
	}
	return math.Sqrt(sum / float64(n/2))
}

func TestLowpassAttenuatesHighs(t *testing.T) {
	low := rmsThrough(newLowpass(1400, 0.7, SampleRate), 110)
	high := rmsThrough(newLowpass(1400, 0.7, SampleRate), 12000)
	if low < 0.6 {
		t.Errorf("110Hz RMS = %.3f, want close to 0.707", low)
	}
	if high > 0.05 {
		t.Errorf("12kHz RMS = %.3f, want strongly attenuated", high)
	}
}
