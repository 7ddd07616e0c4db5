package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/slidereel/internal/capture"
	"github.com/satindergrewal/slidereel/internal/config"
	"github.com/satindergrewal/slidereel/internal/render"
	"github.com/satindergrewal/slidereel/internal/session"
	"github.com/satindergrewal/slidereel/internal/stream"
	"github.com/satindergrewal/slidereel/internal/web"
)

func main() {
	cfg := config.Load()
	config.InitLogger(cfg.LogLevel)
	log := config.Log

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration rejected")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fontData, err := render.LoadFont(cfg.FontPath)
	if err != nil {
		log.WithError(err).Fatal("font unavailable")
	}

	// A missing recorder is reported per run, not at startup.
	var facility capture.Facility
	if ff, err := capture.DetectFFmpeg(cfg.FFmpegPath); err != nil {
		log.WithError(err).Warn("ffmpeg not available, video generation disabled")
	} else {
		log.WithField("ffmpeg", ff.Path()).Info("ffmpeg recorder ready")
		facility = ff
	}

	opts := session.OptionsFromConfig(cfg, fontData)

	if cfg.OutputPath != "" {
		opts.RealTime = false
		code := renderOnce(ctx, opts, facility, cfg.OutputPath)
		cancel()
		os.Exit(code)
	}

	// Soundtrack monitor: the generator hands frames over without blocking
	monitor := stream.NewMonitor()
	opts.Monitor = monitor.Feed(ctx)

	gen := session.NewGenerator(opts, session.New(), facility)
	defer gen.Close()

	srv := web.NewServer(ctx, gen, web.Extras{
		Offer:   stream.NewWebRTCHandler(monitor),
		Monitor: stream.NewHTTPHandler(monitor, cfg.FFmpegPath),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: srv}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		server.Close()
	}()

	log.WithFields(logrus.Fields{
		"addr":   addr,
		"size":   fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps":    cfg.FPS,
		"frames": gen.TotalFrames(),
		"audio":  cfg.AudioEnabled,
	}).Info("slidereel live")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("HTTP server error")
	}
	gen.Wait()
}

// renderOnce generates a single video into path and returns the exit code.
func renderOnce(ctx context.Context, opts session.Options, facility capture.Facility, path string) int {
	log := config.Log.WithField("output", path)

	gen := session.NewGenerator(opts, session.New(), facility)
	defer gen.Close()

	if _, err := gen.Start(ctx); err != nil {
		log.WithError(err).Error(session.Message(err))
		return 1
	}
	gen.Wait()

	snap := gen.Session().Snapshot()
	if snap.Phase != session.Complete {
		log.WithField("error", snap.Error).Error("generation failed")
		return 1
	}
	out := gen.Session().Output()
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		log.WithError(err).Error("write video")
		return 1
	}
	log.WithFields(logrus.Fields{
		"bytes":  out.Size(),
		"format": out.Format,
	}).Info("video written")
	return 0
}
