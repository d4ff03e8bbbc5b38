package notify

import (
	"sync"
	"time"

	"github.com/yungbote/companion-client/internal/platform/apierr"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Kind string

const (
	KindPersonaCreated  Kind = "persona_created"
	KindDressCreated    Kind = "dress_created"
	KindPersonaUpdated  Kind = "persona_updated"
	KindPersonaDeleted  Kind = "persona_deleted"
	KindFavoriteChanged Kind = "favorite_changed"
	KindDressEquipped   Kind = "dress_equipped"
	KindVideoRequested  Kind = "video_requested"
	KindJobComplete     Kind = "job_complete"
	KindJobPending      Kind = "job_pending"
	KindRefreshed       Kind = "refreshed"
	KindRejected        Kind = "rejected"
	KindFailed          Kind = "failed"
)

// Notification is the toast/alert-equivalent outcome of an operation.
type Notification struct {
	Kind       Kind        `json:"kind"`
	Severity   Severity    `json:"severity"`
	Code       apierr.Code `json:"code,omitempty"`
	PersonaKey string      `json:"persona_key,omitempty"`
	Message    string      `json:"message"`
	// Celebrate asks the presenter for the completion acknowledgement.
	Celebrate bool      `json:"celebrate,omitempty"`
	At        time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

// Fanout delivers to every non-nil notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, t := range f {
		if t != nil {
			t.Notify(n)
		}
	}
}

// ChannelSink buffers notifications for a presenter goroutine. When the
// buffer is full the oldest entry is dropped so producers never block.
type ChannelSink struct {
	mu  sync.Mutex
	ch  chan Notification
	log *logger.Logger
}

func NewChannelSink(size int, log *logger.Logger) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChannelSink{ch: make(chan Notification, size), log: log.With("component", "ChannelSink")}
}

func (s *ChannelSink) C() <-chan Notification { return s.ch }

func (s *ChannelSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- n:
			return
		default:
		}
		select {
		case dropped := <-s.ch:
			s.log.Warn("notification buffer full, dropped oldest", "kind", dropped.Kind)
		default:
		}
	}
}

// Drain returns everything currently buffered without blocking.
func (s *ChannelSink) Drain() []Notification {
	out := []Notification{}
	for {
		select {
		case n := <-s.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

// Recorder keeps every notification; handy for presenters that render a log.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
