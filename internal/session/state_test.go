package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/slidereel/internal/capture"
	"github.com/satindergrewal/slidereel/internal/render"
)

func TestNewSessionIsIdle(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	if snap.Phase != Idle || snap.Progress != 0 || snap.InProgress || snap.Output != nil || snap.Error != "" {
		t.Errorf("new session = %+v, want idle and empty", snap)
	}
}

func TestBeginRejectsWhileGenerating(t *testing.T) {
	s := New()
	if err := s.begin("a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.begin("b"); !errors.Is(err, ErrBusy) {
		t.Errorf("second begin err = %v, want ErrBusy", err)
	}
	if got := s.Snapshot().RunID; got != "a" {
		t.Errorf("RunID = %q, want a", got)
	}
}

func TestAdvance(t *testing.T) {
	s := New()
	s.begin("run")
	s.started()

	tests := []struct {
		frame, total int
		want         int
	}{
		{0, 900, 0},
		{9, 900, 1},
		{450, 900, 50},
		{449, 900, 50}, // never decreases
		{899, 900, 99},
		{900, 900, 99}, // capped until finalized
		{5, 0, 99},     // degenerate total ignored
	}
	for _, tt := range tests {
		s.advance(tt.frame, tt.total)
		if got := s.Snapshot().Progress; got != tt.want {
			t.Errorf("advance(%d, %d): progress = %d, want %d", tt.frame, tt.total, got, tt.want)
		}
	}
	if !s.Snapshot().InProgress {
		t.Error("InProgress = false while generating")
	}
}

func TestCompleteAndRestart(t *testing.T) {
	s := New()
	s.begin("one")
	s.started()
	s.advance(10, 20)
	out := &capture.Output{ID: "out", MimeType: capture.DefaultMimeType, Data: []byte{1, 2, 3}}
	s.complete(out)

	snap := s.Snapshot()
	if snap.Phase != Complete || snap.Progress != 100 || snap.InProgress {
		t.Errorf("after complete = %+v", snap)
	}
	if snap.Output == nil || snap.Output.Size != 3 || snap.Output.MimeType != "video/webm" {
		t.Errorf("output info = %+v", snap.Output)
	}
	if s.Output() != out {
		t.Error("Output() does not return the finished recording")
	}

	// a new run clears the previous artifact
	if err := s.begin("two"); err != nil {
		t.Fatalf("begin after complete: %v", err)
	}
	if s.Output() != nil || s.Snapshot().Output != nil {
		t.Error("output survived into the next run")
	}
	if got := s.Snapshot().Progress; got != 100 {
		t.Errorf("progress before start = %d, want previous value 100", got)
	}
	s.started()
	if got := s.Snapshot().Progress; got != 0 {
		t.Errorf("progress after start = %d, want 0", got)
	}
}

func TestFailKeepsProgress(t *testing.T) {
	s := New()
	s.begin("run")
	s.started()
	s.advance(30, 100)
	s.fail(capture.ErrUnsupportedFormat)

	snap := s.Snapshot()
	if snap.Phase != Failed || snap.InProgress {
		t.Errorf("phase = %v inProgress = %v, want failed/false", snap.Phase, snap.InProgress)
	}
	if snap.Progress != 30 {
		t.Errorf("progress = %d, want 30", snap.Progress)
	}
	if snap.Error != Message(capture.ErrUnsupportedFormat) {
		t.Errorf("error = %q", snap.Error)
	}
	if snap.Output != nil {
		t.Error("failed run has output")
	}

	// failed runs can be retried by the user
	if err := s.begin("again"); err != nil {
		t.Fatalf("begin after fail: %v", err)
	}
	if s.Snapshot().Error != "" {
		t.Error("error not cleared on new run")
	}
}

func TestSubscribe(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()

	first := <-ch
	if first.Phase != Idle {
		t.Errorf("initial snapshot phase = %v, want idle", first.Phase)
	}

	s.begin("run")
	select {
	case snap := <-ch:
		if snap.Phase != Generating {
			t.Errorf("phase = %v, want generating", snap.Phase)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after begin")
	}

	cancel()
	cancel()
	if s.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d after cancel", s.SubscriberCount())
	}
	for range ch {
	}
}

func TestSubscribeSlowReaderSeesLatest(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.begin("run")
	s.started()
	for f := 1; f <= 100; f++ {
		s.advance(f, 100)
	}
	s.complete(&capture.Output{ID: "x"})

	var last Snapshot
	for {
		select {
		case last = <-ch:
			continue
		default:
		}
		break
	}
	if last.Phase != Complete || last.Progress != 100 {
		t.Errorf("latest snapshot = %+v, want complete at 100", last)
	}
}

func TestSnapshotJSON(t *testing.T) {
	s := New()
	s.begin("run-1")
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"phase":"generating"`, `"run_id":"run-1"`, `"in_progress":true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("json %s missing %s", data, want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{Idle, "idle"},
		{Generating, "generating"},
		{Complete, "complete"},
		{Failed, "failed"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", render.ErrNoSurface), "Drawing surface is not available."},
		{render.ErrNoContext, "Could not get a drawing context."},
		{capture.ErrRecorderUnavailable, "Video recording is not supported here."},
		{fmt.Errorf("%w: video/webm", capture.ErrUnsupportedFormat), "No supported video format for recording."},
		{ErrBusy, "A video is already being generated."},
		{context.Canceled, "Video generation was interrupted."},
		{errors.New("disk on fire"), "Video generation failed: disk on fire"},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestImmediateTicker(t *testing.T) {
	tk := Immediate()
	defer tk.Stop()
	if err := tk.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tk.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestRealTimeTicker(t *testing.T) {
	tk := RealTime(50) // 20ms
	defer tk.Stop()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tk.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if el := time.Since(start); el < 50*time.Millisecond {
		t.Errorf("3 ticks at 50fps took %v, want at least ~60ms", el)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tk.Wait(ctx); err == nil {
		// a tick may already be pending; the next wait must see the cancel
		if err := tk.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Wait on cancelled ctx = %v", err)
		}
	}
}
