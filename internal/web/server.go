// Package web serves the single-page UI and the JSON API behind it.
package web

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/satindergrewal/slidereel/internal/config"
	"github.com/satindergrewal/slidereel/internal/session"
	"github.com/satindergrewal/slidereel/internal/stream"
)

//go:embed index.html
var IndexHTML []byte

// DownloadName is the fixed filename offered for the finished video.
const DownloadName = "slideshow.webm"

// Extras are optional handlers mounted next to the API.
type Extras struct {
	Offer   http.Handler // WebRTC soundtrack monitor
	Monitor http.Handler // MP3 soundtrack monitor
}

// Server routes the page, API, progress websocket and monitors.
type Server struct {
	ctx     context.Context
	gen     *session.Generator
	handler http.Handler
}

// NewServer builds the HTTP surface. Runs started over the API live on ctx,
// not on the request that triggered them.
func NewServer(ctx context.Context, gen *session.Generator, extras Extras) *Server {
	s := &Server{ctx: ctx, gen: gen}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/video", s.handleVideo)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.Handle("/api/progress", stream.NewProgressHandler[session.Snapshot](gen.Session()))
	if extras.Offer != nil {
		mux.Handle("/offer", extras.Offer)
	}
	if extras.Monitor != nil {
		mux.Handle("/stream", extras.Monitor)
	}

	s.handler = RequestLogger(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.Log.WithError(err).Warn("encode response")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(IndexHTML)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.gen.Start(s.ctx)
	switch {
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    session.Message(err),
			"snapshot": snap,
		})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    snap.Error,
			"snapshot": snap,
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"snapshot":     snap,
			"total_frames": s.gen.TotalFrames(),
			"duration":     s.gen.Duration().Seconds(),
		})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.gen.Session().Snapshot())
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	out := s.gen.Session().Output()
	if out == nil {
		http.Error(w, "no video generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", out.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, DownloadName))
	}
	http.ServeContent(w, r, DownloadName, out.CreatedAt, bytes.NewReader(out.Data))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	var at time.Duration
	if v := r.URL.Query().Get("t"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			http.Error(w, "t must be a non-negative number of seconds", http.StatusBadRequest)
			return
		}
		at = time.Duration(secs * float64(time.Second))
	}

	var buf bytes.Buffer
	if err := s.gen.Frame(&buf, at); err != nil {
		config.Log.WithError(err).Error("render preview")
		http.Error(w, session.Message(err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
