package session

import (
	"context"
	"time"
)

// Ticker schedules the next frame of a run.
type Ticker interface {
	// Wait blocks until the next frame is due.
	Wait(ctx context.Context) error
	Stop()
}

type realTime struct {
	t *time.Ticker
}

// RealTime paces frames at fps, so a run takes as long as the slideshow.
func RealTime(fps int) Ticker {
	return &realTime{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (r *realTime) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.t.C:
		return nil
	}
}

func (r *realTime) Stop() { r.t.Stop() }

type immediate struct{}

// Immediate never waits; frames are produced as fast as they encode.
func Immediate() Ticker { return immediate{} }

func (immediate) Wait(ctx context.Context) error { return ctx.Err() }

func (immediate) Stop() {}
