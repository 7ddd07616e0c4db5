package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/slidereel/internal/audio"
	"github.com/satindergrewal/slidereel/internal/config"
)

// codec name in a MIME "codecs" parameter -> ffmpeg encoder
var encoderFor = map[string]string{
	"vp9":    "libvpx-vp9",
	"vp8":    "libvpx",
	"opus":   "libopus",
	"vorbis": "libvorbis",
}

// FFmpeg is a Facility backed by an ffmpeg binary. Capabilities are probed
// once, on first use.
type FFmpeg struct {
	path string

	once     sync.Once
	encoders map[string]bool
	muxers   map[string]bool
	probeErr error
}

// DetectFFmpeg resolves the ffmpeg binary and probes its encoders. A missing
// binary yields ErrRecorderUnavailable.
func DetectFFmpeg(path string) (*FFmpeg, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecorderUnavailable, err)
	}
	f := &FFmpeg{path: resolved}
	f.probe()
	if f.probeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecorderUnavailable, f.probeErr)
	}
	return f, nil
}

// Path is the resolved binary.
func (f *FFmpeg) Path() string { return f.path }

func (f *FFmpeg) probe() {
	f.once.Do(func() {
		enc, err := f.list("-encoders")
		if err != nil {
			f.probeErr = err
			return
		}
		mux, err := f.list("-muxers")
		if err != nil {
			f.probeErr = err
			return
		}
		f.encoders = parseEncoders(enc)
		f.muxers = parseMuxers(mux)
		config.Log.WithFields(logrus.Fields{
			"ffmpeg":  f.path,
			"vp9":     f.encoders["libvpx-vp9"],
			"vp8":     f.encoders["libvpx"],
			"opus":    f.encoders["libopus"],
			"webm":    f.muxers["webm"],
			"formats": len(f.encoders),
		}).Info("ffmpeg capabilities probed")
	})
}

func (f *FFmpeg) list(flag string) ([]byte, error) {
	cmd := exec.Command(f.path, "-hide_banner", flag)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s failed: %v\nStderr: %s", flag, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// parseEncoders reads `ffmpeg -encoders` output. Entries look like
// " V....D libvpx-vp9           libvpx VP9 (codec vp9)".
func parseEncoders(out []byte) map[string]bool {
	return parseTable(out, func(flags string) bool {
		return len(flags) == 6 && strings.ContainsAny(flags[:1], "VAS")
	})
}

// parseMuxers reads `ffmpeg -muxers` output. Entries look like " E webm  WebM".
func parseMuxers(out []byte) map[string]bool {
	return parseTable(out, func(flags string) bool {
		return strings.Contains(flags, "E") && len(flags) <= 2
	})
}

func parseTable(out []byte, isEntry func(flags string) bool) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	past := false
	for sc.Scan() {
		line := sc.Text()
		if t := strings.TrimSpace(line); len(t) >= 2 && strings.Trim(t, "-") == "" {
			past = true
			continue
		}
		if !past {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !isEntry(fields[0]) {
			continue
		}
		// muxer names may be comma separated aliases ("matroska,webm")
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

// plan is the concrete encoder choice for one MIME type.
type plan struct {
	video, audio string
}

// planFor maps a WebM MIME type onto available encoders.
func (f *FFmpeg) planFor(mimeType string) (plan, bool) {
	f.probe()
	if f.probeErr != nil || !f.muxers["webm"] {
		return plan{}, false
	}
	mt, codecs := splitMimeType(mimeType)
	if mt != DefaultMimeType {
		return plan{}, false
	}

	if codecs == "" {
		// unparameterized: best available pair
		p := plan{}
		for _, v := range []string{"libvpx-vp9", "libvpx"} {
			if f.encoders[v] {
				p.video = v
				break
			}
		}
		for _, a := range []string{"libopus", "libvorbis"} {
			if f.encoders[a] {
				p.audio = a
				break
			}
		}
		return p, p.video != "" && p.audio != ""
	}

	var p plan
	for _, c := range strings.Split(codecs, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		enc, known := encoderFor[c]
		if !known || !f.encoders[enc] {
			return plan{}, false
		}
		switch c {
		case "vp8", "vp9":
			p.video = enc
		default:
			p.audio = enc
		}
	}
	return p, p.video != "" && p.audio != ""
}

// splitMimeType returns the media type and the raw codecs parameter of
// strings like `video/webm;codecs="vp9,opus"`. The codecs list contains commas,
// which mime.ParseMediaType rejects when unquoted.
func splitMimeType(s string) (mediaType, codecs string) {
	parts := strings.Split(s, ";")
	mediaType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "codecs") {
			codecs = strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return mediaType, codecs
}

// IsTypeSupported reports whether ffmpeg can record mimeType.
func (f *FFmpeg) IsTypeSupported(mimeType string) bool {
	_, ok := f.planFor(mimeType)
	return ok
}

// NewRecorder starts ffmpeg reading RGBA frames on stdin and PCM on fd 3.
func (f *FFmpeg) NewRecorder(ctx context.Context, s Stream, mimeType string) (Recorder, error) {
	p, ok := f.planFor(mimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	if s.Width <= 0 || s.Height <= 0 || s.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream %dx%d@%d", s.Width, s.Height, s.FPS)
	}

	args := recordArgs(s, p)
	cmd := exec.CommandContext(ctx, f.path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	r := &ffmpegRecorder{
		cmd:      cmd,
		stdin:    stdin,
		format:   mimeType,
		frameLen: s.FrameBytes(),
		done:     make(chan struct{}),
	}
	cmd.Stderr = &r.stderr

	var audioR, audioW *os.File
	if s.HasAudio() {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR} // fd 3
	}

	if err := cmd.Start(); err != nil {
		if audioR != nil {
			audioR.Close()
			audioW.Close()
		}
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	go r.collect(stdout)
	if audioR != nil {
		audioR.Close()
		r.audioDone = make(chan error, 1)
		go writeAudio(audioW, s.Audio, r.audioDone)
	}

	config.Log.WithFields(logrus.Fields{
		"format": mimeType,
		"video":  p.video,
		"audio":  p.audio,
		"size":   fmt.Sprintf("%dx%d", s.Width, s.Height),
		"fps":    s.FPS,
		"sound":  s.HasAudio(),
	}).Info("recorder started")
	return r, nil
}

func recordArgs(s Stream, p plan) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-r", strconv.Itoa(s.FPS),
		"-i", "pipe:0",
	}
	if s.HasAudio() {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(audio.SampleRate),
			"-ac", strconv.Itoa(audio.Channels),
			"-i", "pipe:3",
			"-map", "0:v", "-map", "1:a",
		)
	}
	args = append(args,
		"-c:v", p.video,
		"-pix_fmt", "yuv420p",
		"-b:v", "2M",
		"-deadline", "realtime",
		"-cpu-used", "8",
	)
	if s.HasAudio() {
		args = append(args, "-c:a", p.audio, "-b:a", "128k")
	}
	return append(args, "-f", "webm", "pipe:1")
}

func writeAudio(w *os.File, tr *audio.Track, done chan<- error) {
	defer w.Close()
	for i := 0; i < tr.FrameCount(); i++ {
		if _, err := w.Write(audio.SamplesToBytes(tr.Frame(i))); err != nil {
			done <- fmt.Errorf("write audio: %w", err)
			return
		}
	}
	done <- nil
}

// stderrBuffer is written by the exec copy goroutine while frames are still
// being fed, so reads and writes share a lock.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type ffmpegRecorder struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   stderrBuffer
	format   string
	frameLen int

	chunks    chunks
	done      chan struct{}
	readErr   error
	audioDone chan error

	mu      sync.Mutex
	stopped bool
}

func (r *ffmpegRecorder) MimeType() string { return r.format }

func (r *ffmpegRecorder) OnData(fn func([]byte)) { r.chunks.setOnData(fn) }

func (r *ffmpegRecorder) collect(stdout io.Reader) {
	defer close(r.done)
	buf := make([]byte, 64*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			r.chunks.add(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				r.readErr = err
			}
			return
		}
	}
}

func (r *ffmpegRecorder) WriteFrame(rgba []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRecorderStopped
	}
	if len(rgba) != r.frameLen {
		return fmt.Errorf("frame is %d bytes, want %d", len(rgba), r.frameLen)
	}
	if _, err := r.stdin.Write(rgba); err != nil {
		return fmt.Errorf("write frame: %w\nStderr: %s", err, r.stderr.String())
	}
	return nil
}

func (r *ffmpegRecorder) Stop() (*Output, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrRecorderStopped
	}
	r.stopped = true
	r.mu.Unlock()

	r.stdin.Close()
	<-r.done

	var audioErr error
	if r.audioDone != nil {
		audioErr = <-r.audioDone
	}
	if err := r.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nStderr: %s", err, r.stderr.String())
	}
	if r.readErr != nil {
		return nil, fmt.Errorf("read output: %w", r.readErr)
	}
	if audioErr != nil {
		return nil, audioErr
	}
	out := r.chunks.output(r.format)
	config.Log.WithFields(logrus.Fields{
		"id":     out.ID,
		"format": r.format,
		"bytes":  out.Size(),
	}).Info("recorder finalized")
	return out, nil
}
