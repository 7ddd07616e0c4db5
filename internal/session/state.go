// Package session holds the generation state machine and the generator that
// drives a run from first frame to finished recording.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/satindergrewal/slidereel/internal/capture"
)

// ErrBusy is returned when a run is requested while one is generating.
var ErrBusy = errors.New("a video is already being generated")

// Phase is the coarse state of the session.
type Phase int

const (
	Idle Phase = iota
	Generating
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// OutputInfo describes a finished recording without carrying its bytes.
type OutputInfo struct {
	ID        string    `json:"id"`
	MimeType  string    `json:"mime_type"`
	Format    string    `json:"format"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	RunID      string      `json:"run_id,omitempty"`
	Phase      Phase       `json:"phase"`
	Progress   int         `json:"progress"`
	Error      string      `json:"error,omitempty"`
	Output     *OutputInfo `json:"output,omitempty"`
	InProgress bool        `json:"in_progress"`
}

// Session is the single source of truth for what the page shows. Only the
// transition methods below mutate it.
type Session struct {
	mu       sync.Mutex
	runID    string
	phase    Phase
	progress int
	output   *capture.Output
	err      string

	subs map[chan Snapshot]struct{}
}

// New returns an idle session.
func New() *Session {
	return &Session{subs: make(map[chan Snapshot]struct{})}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:      s.runID,
		Phase:      s.phase,
		Progress:   s.progress,
		Error:      s.err,
		InProgress: s.phase == Generating,
	}
	if s.output != nil {
		snap.Output = &OutputInfo{
			ID:        s.output.ID,
			MimeType:  s.output.MimeType,
			Format:    s.output.Format,
			Size:      s.output.Size(),
			CreatedAt: s.output.CreatedAt,
		}
	}
	return snap
}

// Output returns the finished recording, or nil unless the last run completed.
func (s *Session) Output() *capture.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Subscribe returns a channel receiving every state change, starting with the
// current state. Slow subscribers lose intermediate snapshots but always see
// the latest one. Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SubscriberCount reports how many subscribers are attached.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// publishLocked must be called with s.mu held.
func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the oldest queued snapshot to make room for the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// begin reserves the session for a new run. Output and error from the
// previous run are cleared; progress keeps its value until the run starts.
func (s *Session) begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Generating {
		return ErrBusy
	}
	s.runID = runID
	s.phase = Generating
	s.output = nil
	s.err = ""
	s.publishLocked()
	return nil
}

// started resets progress once every precondition has passed.
func (s *Session) started() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Generating {
		return
	}
	s.progress = 0
	s.publishLocked()
}

// advance records that frame frames out of total have been produced. The
// percentage stays below 100 until the recording is finalized.
func (s *Session) advance(frame, total int) {
	if total <= 0 {
		return
	}
	p := min(frame*100/total, 99)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Generating || p <= s.progress {
		return
	}
	s.progress = p
	s.publishLocked()
}

func (s *Session) complete(out *capture.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Complete
	s.progress = 100
	s.output = out
	s.err = ""
	s.publishLocked()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Failed
	s.output = nil
	s.err = Message(err)
	s.publishLocked()
}
