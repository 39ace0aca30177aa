package attendance

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// Status is a snapshot of the session for display.
type Status struct {
	State     State      `json:"state"`
	SessionID string     `json:"session_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Records   int        `json:"records"`
	Present   []string   `json:"present"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithResetOnStart clears the log every time a session starts.
func WithResetOnStart(reset bool) SessionOption {
	return func(s *Session) {
		s.resetOnStart = reset
	}
}

// Session deduplicates recognitions while Active and appends one record per
// identity per Active period to the log. The log survives Stop and Start and
// is cleared only by Reset (or on Start when configured so).
type Session struct {
	EventBroadcaster

	mu           sync.Mutex
	clock        func() time.Time
	state        State
	id           string
	startedAt    time.Time
	stoppedAt    time.Time
	seen         map[string]struct{}
	current      []string
	log          []Record
	resetOnStart bool
}

// NewSession creates an Idle session. A nil clock uses time.Now.
func NewSession(clock func() time.Time, opts ...SessionOption) *Session {
	if clock == nil {
		clock = time.Now
	}
	s := &Session{
		clock: clock,
		state: StateIdle,
		seen:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start moves Idle to Active with a fresh dedup set and returns the new
// session id.
func (s *Session) Start() (string, error) {
	s.mu.Lock()
	if s.state == StateActive {
		id := s.id
		s.mu.Unlock()
		return "", fmt.Errorf("session %s: %w", id, domain.ErrSessionActive)
	}

	s.id = uuid.New().String()
	s.state = StateActive
	s.startedAt = s.clock()
	s.stoppedAt = time.Time{}
	s.seen = make(map[string]struct{})
	s.current = nil
	if s.resetOnStart {
		s.log = nil
	}
	id := s.id
	status := s.statusLocked()
	s.mu.Unlock()

	log.WithField("session", id).Info("attendance session started")
	s.SendEvent(Event{Type: EventSession, Data: status})
	return id, nil
}

// OnFrameResult records the identities recognised in one frame. Unknown
// faces and identities already logged in this Active period are ignored;
// identities compare the way the roster compares names.
// All records of a frame share one clock reading. It returns the records
// added, or nil when the session is Idle.
func (s *Session) OnFrameResult(names []string) []Record {
	s.mu.Lock()

	if s.state != StateActive {
		s.mu.Unlock()
		return nil
	}

	var (
		added   []Record
		now     time.Time
		stamped bool
	)
	inFrame := make(map[string]struct{}, len(names))
	current := make([]string, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || name == constants.UnknownIdentity {
			continue
		}
		key := roster.NormalizeName(name)
		if _, dup := inFrame[key]; dup {
			continue
		}
		inFrame[key] = struct{}{}
		current = append(current, name)

		if _, logged := s.seen[key]; logged {
			continue
		}
		if !stamped {
			now = s.clock()
			stamped = true
		}
		rec := NewRecord(name, s.id, now)
		s.seen[key] = struct{}{}
		s.log = append(s.log, rec)
		added = append(added, rec)
	}
	s.current = current
	id := s.id
	s.mu.Unlock()

	for _, rec := range added {
		log.WithFields(logrus.Fields{"session": id, "student": rec.Name}).Info("student marked present")
		s.SendEvent(Event{Type: EventRecord, Data: rec})
	}
	return added
}

// Current returns the identities recognised in the most recent frame.
func (s *Session) Current() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.current...)
}

// Stop moves Active to Idle. The log and the dedup set are kept.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return fmt.Errorf("stop: %w", domain.ErrSessionIdle)
	}
	s.state = StateIdle
	s.stoppedAt = s.clock()
	s.current = nil
	id := s.id
	count := len(s.log)
	status := s.statusLocked()
	s.mu.Unlock()

	log.WithFields(logrus.Fields{"session": id, "records": count}).Info("attendance session stopped")
	s.SendEvent(Event{Type: EventSession, Data: status})
	return nil
}

// Reset clears the log and the dedup set. The state is unchanged, so an
// Active session keeps running and will log everybody again.
func (s *Session) Reset() {
	s.mu.Lock()
	s.log = nil
	s.seen = make(map[string]struct{})
	s.current = nil
	s.mu.Unlock()

	log.Info("attendance log cleared")
	s.SendEvent(Event{Type: EventReset})
}

// Records returns a copy of the log in append order.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.log...)
}

// Active reports whether the session is Active.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		State:     s.state,
		SessionID: s.id,
		Records:   len(s.log),
		Present:   append([]string{}, s.current...),
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.stoppedAt.IsZero() {
		t := s.stoppedAt
		st.StoppedAt = &t
	}
	return st
}

// Export writes the current log to an xlsx file.
func (s *Session) Export(path string) error {
	return Export(path, s.Records())
}
