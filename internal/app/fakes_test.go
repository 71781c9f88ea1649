package app_test

import (
	"sync"
	"time"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
)

// recordingChannel delivers synchronously and remembers what was published.
type recordingChannel struct {
	mu       sync.Mutex
	handlers []channel.Handler
	sent     []domain.Message
	closed   bool
}

func (c *recordingChannel) Name() string { return "session:test" }

func (c *recordingChannel) Publish(msg domain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return channel.ErrClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) Subscribe(h channel.Handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

func (c *recordingChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingChannel) deliver(msgs ...domain.Message) {
	c.mu.Lock()
	handlers := append([]channel.Handler(nil), c.handlers...)
	c.mu.Unlock()
	for _, msg := range msgs {
		for _, h := range handlers {
			h(msg)
		}
	}
}

func (c *recordingChannel) messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.sent...)
}

func (c *recordingChannel) reveals() []domain.RevealAnswer {
	var out []domain.RevealAnswer
	for _, m := range c.messages() {
		if r, ok := m.(domain.RevealAnswer); ok {
			out = append(out, r)
		}
	}
	return out
}

func (c *recordingChannel) lastSnapshot() (domain.StateSnapshot, bool) {
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if s, ok := msgs[i].(domain.StateSnapshot); ok {
			return s, true
		}
	}
	return domain.StateSnapshot{}, false
}

// manualScheduler fires timers only when told to.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
	last    *manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	f       func()
	stopped bool
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) app.Timer {
	t := &manualTimer{s: s, f: f}
	s.mu.Lock()
	s.pending = append(s.pending, t)
	s.last = t
	s.mu.Unlock()
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fire runs the oldest live timer and reports whether one existed.
func (s *manualScheduler) fire() bool {
	s.mu.Lock()
	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		if t.stopped {
			continue
		}
		t.stopped = true
		s.mu.Unlock()
		t.f()
		return true
	}
	s.mu.Unlock()
	return false
}

func (s *manualScheduler) advance(n int) {
	for i := 0; i < n; i++ {
		s.fire()
	}
}

// lastCallback returns the most recently scheduled callback even if it was
// stopped, to simulate a tick that was already running.
func (s *manualScheduler) lastCallback() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return func() {}
	}
	return s.last.f
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:               "q1",
			Kind:             domain.KindMultipleChoice,
			Prompt:           "Which letter comes second?",
			Options:          []string{"A", "B", "C", "D"},
			CorrectAnswer:    "B",
			Explanation:      "A, then B.",
			TimeLimitSeconds: 15,
		},
		{
			ID:               "q2",
			Kind:             domain.KindShortAnswer,
			Prompt:           "Name the process plants use to make food.",
			CorrectAnswer:    "photosynthesis",
			TimeLimitSeconds: 20,
		},
	}
}
