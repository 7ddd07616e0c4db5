// Package capture combines rendered frames and the synthesized soundtrack
// into one stream and records it into an in-memory WebM file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/slidereel/internal/audio"
)

var (
	// ErrRecorderUnavailable means there is no recording facility at all.
	ErrRecorderUnavailable = errors.New("recording is not supported on this host")
	// ErrUnsupportedFormat means the facility exists but cannot produce any WebM variant.
	ErrUnsupportedFormat = errors.New("no supported recording format")
	// ErrRecorderStopped is returned by writes after Stop.
	ErrRecorderStopped = errors.New("recorder already stopped")
)

// DefaultMimeType is used when none of the preferred variants is supported.
const DefaultMimeType = "video/webm"

// PreferredMimeTypes is tried in order by SelectMimeType.
var PreferredMimeTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
}

// Stream is the combined stream handed to a recorder: a visual track of
// Width×Height RGBA frames at FPS plus an optional audio track.
type Stream struct {
	Width  int
	Height int
	FPS    int
	Audio  *audio.Track
}

// HasAudio reports whether the stream carries a soundtrack.
func (s Stream) HasAudio() bool {
	return s.Audio != nil && len(s.Audio.Samples) > 0
}

// FrameBytes is the size of one RGBA frame.
func (s Stream) FrameBytes() int {
	return s.Width * s.Height * 4
}

// Output is the finished recording. MimeType is always the container type;
// Format names the negotiated codec variant.
type Output struct {
	ID        string
	MimeType  string
	Format    string
	Data      []byte
	CreatedAt time.Time
}

// Size is the blob size in bytes.
func (o *Output) Size() int {
	if o == nil {
		return 0
	}
	return len(o.Data)
}

// Recorder serializes a Stream incrementally.
type Recorder interface {
	MimeType() string
	// OnData registers a callback for each encoded chunk as it is produced.
	OnData(fn func(chunk []byte))
	// WriteFrame feeds one RGBA frame of the visual track.
	WriteFrame(rgba []byte) error
	// Stop finalizes the container and returns the recording.
	Stop() (*Output, error)
}

// Facility is a recording backend.
type Facility interface {
	IsTypeSupported(mimeType string) bool
	NewRecorder(ctx context.Context, s Stream, mimeType string) (Recorder, error)
}

// SelectMimeType returns the first preferred type that is supported,
// otherwise DefaultMimeType.
func SelectMimeType(supported func(string) bool) string {
	for _, mt := range PreferredMimeTypes {
		if supported(mt) {
			return mt
		}
	}
	return DefaultMimeType
}

// Negotiate returns the MIME type f would record with, or the reason it
// cannot record at all.
func Negotiate(f Facility) (string, error) {
	if f == nil {
		return "", ErrRecorderUnavailable
	}
	mt := SelectMimeType(f.IsTypeSupported)
	if !f.IsTypeSupported(mt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt)
	}
	return mt, nil
}

// Open picks a format and starts a recorder on s. There is no retry: a
// missing facility or format fails immediately.
func Open(ctx context.Context, f Facility, s Stream) (Recorder, error) {
	mt, err := Negotiate(f)
	if err != nil {
		return nil, err
	}
	rec, err := f.NewRecorder(ctx, s, mt)
	if err != nil {
		return nil, fmt.Errorf("start recorder (%s): %w", mt, err)
	}
	return rec, nil
}

// chunks accumulates encoded data the way a browser recorder collects
// dataavailable blobs.
type chunks struct {
	mu     sync.Mutex
	parts  [][]byte
	size   int
	onData func([]byte)
}

func (c *chunks) setOnData(fn func([]byte)) {
	c.mu.Lock()
	c.onData = fn
	c.mu.Unlock()
}

func (c *chunks) add(p []byte) {
	chunk := append([]byte(nil), p...)
	c.mu.Lock()
	c.parts = append(c.parts, chunk)
	c.size += len(chunk)
	fn := c.onData
	c.mu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

func (c *chunks) output(format string) *Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := make([]byte, 0, c.size)
	for _, p := range c.parts {
		data = append(data, p...)
	}
	return &Output{
		ID:        uuid.NewString(),
		MimeType:  DefaultMimeType,
		Format:    format,
		Data:      data,
		CreatedAt: time.Now(),
	}
}
