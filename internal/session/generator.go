package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/slidereel/internal/audio"
	"github.com/satindergrewal/slidereel/internal/capture"
	"github.com/satindergrewal/slidereel/internal/config"
	"github.com/satindergrewal/slidereel/internal/render"
	"github.com/satindergrewal/slidereel/internal/slides"
)

// Options configures a Generator.
type Options struct {
	Width, Height int
	Timing        slides.Timing
	FontData      []byte
	Audio         bool
	// RealTime paces frames at Timing.FPS; otherwise frames are produced back to back.
	RealTime bool
	// Monitor, when set, receives each 20ms soundtrack frame as the run reaches it.
	// It must not block.
	Monitor func(frame []int16)
}

// OptionsFromConfig maps the service configuration onto generator options.
func OptionsFromConfig(cfg config.Config, fontData []byte) Options {
	return Options{
		Width:  cfg.Width,
		Height: cfg.Height,
		Timing: slides.Timing{
			PerSlide: cfg.SlideDuration(),
			Fade:     time.Duration(cfg.FadeSeconds * float64(time.Second)),
			FPS:      cfg.FPS,
		},
		FontData: fontData,
		Audio:    cfg.AudioEnabled,
		RealTime: cfg.RealTime,
	}
}

// Generator renders the deck into a recording, one run at a time.
type Generator struct {
	opts     Options
	session  *Session
	facility capture.Facility
	deck     []slides.Slide

	buildAudio func(total time.Duration) (*audio.Track, error)
	newTicker  func() Ticker

	previewMu sync.Mutex
	preview   *render.Compositor

	wg sync.WaitGroup
}

// NewGenerator wires a generator to its session and recording facility.
// facility may be nil, in which case every run fails its precondition check.
func NewGenerator(opts Options, s *Session, facility capture.Facility) *Generator {
	g := &Generator{
		opts:       opts,
		session:    s,
		facility:   facility,
		deck:       slides.Deck(),
		buildAudio: synthesize,
	}
	g.newTicker = func() Ticker {
		if opts.RealTime {
			return RealTime(opts.Timing.FPS)
		}
		return Immediate()
	}
	return g
}

func synthesize(total time.Duration) (*audio.Track, error) {
	synth, err := audio.NewSynth(audio.DefaultParams(total))
	if err != nil {
		return nil, err
	}
	return synth.Render(), nil
}

// Session returns the state the generator reports into.
func (g *Generator) Session() *Session { return g.session }

// TotalFrames is the frame count of one run.
func (g *Generator) TotalFrames() int {
	return g.opts.Timing.TotalFrames(len(g.deck))
}

// Duration is the running time of the finished video.
func (g *Generator) Duration() time.Duration {
	return g.opts.Timing.Total(len(g.deck))
}

// Start begins a run. Preconditions are checked before it returns; a failed
// check leaves the session Failed and no recording behind. The frame loop
// runs on ctx, which should outlive the request that triggered it.
func (g *Generator) Start(ctx context.Context) (Snapshot, error) {
	runID := uuid.NewString()
	if err := g.session.begin(runID); err != nil {
		return g.session.Snapshot(), err
	}
	log := config.Log.WithField("run", runID)

	comp, rec, track, err := g.prepare(ctx, log)
	if err != nil {
		log.WithError(err).Warn("generation rejected")
		g.session.fail(err)
		return g.session.Snapshot(), err
	}
	g.session.started()

	log.WithFields(logrus.Fields{
		"frames": g.TotalFrames(),
		"format": rec.MimeType(),
		"sound":  track != nil,
	}).Info("generation started")

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer comp.Close()
		g.run(ctx, log, comp, rec, track)
	}()
	return g.session.Snapshot(), nil
}

// prepare checks surface, drawing context and recording facility in that
// order, then builds the optional soundtrack and opens the recorder.
func (g *Generator) prepare(ctx context.Context, log *logrus.Entry) (*render.Compositor, capture.Recorder, *audio.Track, error) {
	comp, err := render.NewCompositor(g.opts.Width, g.opts.Height, g.opts.FontData)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := capture.Negotiate(g.facility); err != nil {
		comp.Close()
		return nil, nil, nil, err
	}

	var track *audio.Track
	if g.opts.Audio {
		track, err = g.buildAudio(g.Duration())
		if err != nil {
			log.WithError(err).Warn("audio unavailable, recording without sound")
			track = nil
		}
	}

	rec, err := capture.Open(ctx, g.facility, capture.Stream{
		Width:  g.opts.Width,
		Height: g.opts.Height,
		FPS:    g.opts.Timing.FPS,
		Audio:  track,
	})
	if err != nil {
		comp.Close()
		return nil, nil, nil, err
	}
	return comp, rec, track, nil
}

func (g *Generator) run(ctx context.Context, log *logrus.Entry, comp *render.Compositor, rec capture.Recorder, track *audio.Track) {
	start := time.Now()
	total := g.TotalFrames()
	ticker := g.newTicker()
	defer ticker.Stop()

	var chunks, bytes int
	rec.OnData(func(p []byte) {
		chunks++
		bytes += len(p)
	})

	nextAudio := 0
	for f := 0; f < total; f++ {
		if err := ticker.Wait(ctx); err != nil {
			g.abort(log, rec, err)
			return
		}
		fr := g.opts.Timing.At(g.opts.Timing.FrameTime(f), len(g.deck))
		comp.Draw(g.deck[fr.Index], fr.Index, fr.Opacity)
		if err := rec.WriteFrame(comp.RGBA()); err != nil {
			g.abort(log, rec, fmt.Errorf("frame %d: %w", f, err))
			return
		}
		nextAudio = g.monitor(track, nextAudio, g.opts.Timing.FrameTime(f+1))
		g.session.advance(f+1, total)
	}

	out, err := rec.Stop()
	if err != nil {
		log.WithError(err).Error("finalize recording failed")
		g.session.fail(err)
		return
	}
	g.session.complete(out)
	log.WithFields(logrus.Fields{
		"id":      out.ID,
		"bytes":   out.Size(),
		"chunks":  chunks,
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	}).Info("generation complete")
}

// monitor publishes the soundtrack frames that start before until and
// returns the index of the next unpublished frame.
func (g *Generator) monitor(track *audio.Track, next int, until time.Duration) int {
	if g.opts.Monitor == nil || track == nil {
		return next
	}
	for ; next < track.FrameCount() && time.Duration(next)*audio.FrameDuration < until; next++ {
		g.opts.Monitor(track.Frame(next))
	}
	return next
}

func (g *Generator) abort(log *logrus.Entry, rec capture.Recorder, err error) {
	log.WithError(err).Error("generation aborted")
	// the partial recording is discarded
	if _, stopErr := rec.Stop(); stopErr != nil {
		log.WithError(stopErr).Debug("stop after abort")
	}
	g.session.fail(err)
}

// Wait blocks until the current run, if any, has finished.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// Frame writes a PNG of the frame shown at elapsed. It does not touch the
// session and may run while a recording is in progress.
func (g *Generator) Frame(w io.Writer, elapsed time.Duration) error {
	g.previewMu.Lock()
	defer g.previewMu.Unlock()
	if g.preview == nil {
		comp, err := render.NewCompositor(g.opts.Width, g.opts.Height, g.opts.FontData)
		if err != nil {
			return err
		}
		g.preview = comp
	}
	fr := g.opts.Timing.At(elapsed, len(g.deck))
	g.preview.Draw(g.deck[fr.Index], fr.Index, fr.Opacity)
	return g.preview.PNG(w)
}

// Close releases the preview surface.
func (g *Generator) Close() error {
	g.previewMu.Lock()
	defer g.previewMu.Unlock()
	if g.preview == nil {
		return nil
	}
	err := g.preview.Close()
	g.preview = nil
	return err
}
