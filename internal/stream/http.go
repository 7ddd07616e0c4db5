package stream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/slidereel/internal/audio"
	"github.com/satindergrewal/slidereel/internal/config"
)

// HTTPHandler serves the soundtrack monitor as a chunked MP3 stream for
// clients without WebRTC. Each connection spawns an ffmpeg encoder.
type HTTPHandler struct {
	monitor *Monitor
	ffmpeg  string
}

// NewHTTPHandler creates an HTTP monitor handler using the given ffmpeg binary.
func NewHTTPHandler(m *Monitor, ffmpegPath string) *HTTPHandler {
	return &HTTPHandler{monitor: m, ffmpeg: ffmpegPath}
}

func mp3Args() []string {
	return []string{
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	log := config.Log.WithFields(logrus.Fields{"component": "http-monitor", "remote": r.RemoteAddr})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.ffmpeg, mp3Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.WithError(err).Error("stdin pipe")
		http.Error(w, "monitor unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.WithError(err).Error("stdout pipe")
		http.Error(w, "monitor unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("ffmpeg start")
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	listener := h.monitor.Subscribe()
	defer h.monitor.Unsubscribe(listener)

	log.WithField("listeners", h.monitor.ListenerCount()).Info("monitor listener connected")
	defer log.Info("monitor listener disconnected")

	// Feed PCM frames to ffmpeg
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame := <-listener.C:
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Warn("ffmpeg read")
			}
			break
		}
	}

	cancel()
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		log.WithError(err).WithField("stderr", stderr.String()).Warn("ffmpeg exited")
	}
}
