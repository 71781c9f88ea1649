package app

import (
	"math"
	"strings"
	"sync"
	"time"

	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StudentView is everything a participant's screen renders. It is derived
// from host messages plus the participant's own pending answer.
type StudentView struct {
	SessionID             string               `json:"sessionId"`
	ParticipantID         string               `json:"participantId"`
	DisplayName           string               `json:"displayName"`
	Joined                bool                 `json:"joined"`
	Synced                bool                 `json:"synced"`
	Phase                 domain.Phase         `json:"phase"`
	QuestionIndex         int                  `json:"questionIndex"`
	TotalQuestions        int                  `json:"totalQuestions"`
	Question              *domain.QuestionView `json:"question,omitempty"`
	QuestionStartedAt     time.Time            `json:"questionStartedAt"`
	TimeRemainingSeconds  int                  `json:"timeRemainingSeconds"`
	LeaderboardVisible    bool                 `json:"leaderboardVisible"`
	MyAnswer              string               `json:"myAnswer,omitempty"`
	RevealedCorrectAnswer string               `json:"revealedCorrectAnswer,omitempty"`
	Explanation           string               `json:"explanation,omitempty"`
	Ended                 bool                 `json:"ended"`
}

// NewStudentView is the view before any snapshot arrived.
func NewStudentView(participantID string) StudentView {
	return StudentView{ParticipantID: participantID, QuestionIndex: -1}
}

// Reduce folds one channel message into view. Snapshots replace every
// host-derived field; a snapshot for a different question index also drops
// the local answer and any revealed answer. Reveals only apply to the
// question currently shown. Once ended, the view ignores everything else.
func Reduce(view StudentView, msg domain.Message) StudentView {
	if view.Ended {
		return view
	}
	switch m := msg.(type) {
	case domain.StateSnapshot:
		next := view
		if !view.Synced || m.State.QuestionIndex != view.QuestionIndex {
			next.MyAnswer = ""
			next.RevealedCorrectAnswer = ""
			next.Explanation = ""
		}
		next.Synced = true
		next.SessionID = m.SessionID
		next.Phase = m.State.Phase
		next.QuestionIndex = m.State.QuestionIndex
		next.TotalQuestions = m.TotalQuestions
		next.Question = m.CurrentQuestion
		next.QuestionStartedAt = m.State.QuestionStartedAt
		next.TimeRemainingSeconds = m.State.TimeRemainingSeconds
		next.LeaderboardVisible = m.State.LeaderboardVisible
		return next
	case domain.RevealAnswer:
		if view.Question == nil || m.QuestionID != view.Question.ID {
			return view
		}
		view.RevealedCorrectAnswer = m.CorrectAnswer
		view.Explanation = m.Explanation
		return view
	case domain.SessionEnded:
		view.Ended = true
		return view
	default:
		return view
	}
}

// StudentOptions configures a StudentClient.
type StudentOptions struct {
	ParticipantID string
	Clock         func() time.Time
	Logger        zerolog.Logger
}

// StudentClient is a passive participant: it renders host messages and
// publishes its own join and answers. It never scores anything.
type StudentClient struct {
	id  string
	ch  channel.Channel
	now func() time.Time
	log zerolog.Logger

	mu       sync.Mutex
	view     StudentView
	watchers map[chan StudentView]struct{}
	closed   bool
}

// NewStudentClient subscribes a new participant to ch. The client owns ch.
func NewStudentClient(ch channel.Channel, opts StudentOptions) *StudentClient {
	id := opts.ParticipantID
	if id == "" {
		id = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &StudentClient{
		id:       id,
		ch:       ch,
		now:      opts.Clock,
		log:      opts.Logger.With().Str("component", "student").Str("participant_id", id).Logger(),
		view:     NewStudentView(id),
		watchers: make(map[chan StudentView]struct{}),
	}
	ch.Subscribe(c.handle)
	return c
}

func (c *StudentClient) ParticipantID() string {
	return c.id
}

// Join announces the participant and asks the host for the current state.
func (c *StudentClient) Join(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.ErrDisplayNameRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.view.Ended {
		return channel.ErrClosed
	}
	if c.view.Joined {
		return nil
	}
	id := c.id
	if err := c.ch.Publish(domain.Join{ParticipantID: id, DisplayName: displayName}); err != nil {
		return err
	}
	if err := c.ch.Publish(domain.RequestState{ParticipantID: id}); err != nil {
		return err
	}
	c.view.Joined = true
	c.view.DisplayName = displayName
	c.notifyLocked()
	return nil
}

// Submit sends an answer for the current question. Only the first call per
// question has an effect.
func (c *StudentClient) Submit(value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view
	if c.closed || v.Ended || !v.Joined || v.Phase != domain.PhaseQuestionActive || v.Question == nil {
		return false
	}
	if v.MyAnswer != "" || v.RevealedCorrectAnswer != "" || strings.TrimSpace(value) == "" {
		return false
	}
	if v.Question.Kind == domain.KindMultipleChoice && !containsOption(v.Question.Options, value) {
		return false
	}

	elapsed := math.Floor(c.now().Sub(v.QuestionStartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	msg := domain.SubmitAnswer{
		ParticipantID:        v.ParticipantID,
		QuestionID:           v.Question.ID,
		Value:                value,
		ClientElapsedSeconds: elapsed,
	}
	if err := c.ch.Publish(msg); err != nil {
		c.log.Debug().Err(err).Msg("submit failed")
		return false
	}
	c.view.MyAnswer = value
	c.notifyLocked()
	return true
}

// View returns the current rendered state.
func (c *StudentClient) View() StudentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Watch streams views, starting with the current one. The caller must invoke
// the returned cancel function.
func (c *StudentClient) Watch() (<-chan StudentView, func()) {
	ch := make(chan StudentView, 8)

	c.mu.Lock()
	if c.closed || c.view.Ended {
		if !c.closed {
			ch <- c.view
		}
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.watchers[ch] = struct{}{}
	ch <- c.view
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Close releases the channel endpoint and all watchers.
func (c *StudentClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.releaseWatchersLocked()
	c.mu.Unlock()
	return c.ch.Close()
}

func (c *StudentClient) handle(msg domain.Message) {
	switch msg.(type) {
	case domain.StateSnapshot, domain.RevealAnswer, domain.SessionEnded:
	default:
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.view.Ended {
		return
	}
	c.view = Reduce(c.view, msg)
	c.notifyLocked()
	if c.view.Ended {
		// watchers get the final view, then their channel closes
		c.releaseWatchersLocked()
	}
}

func (c *StudentClient) releaseWatchersLocked() {
	for ch := range c.watchers {
		delete(c.watchers, ch)
		close(ch)
	}
}

func (c *StudentClient) notifyLocked() {
	view := c.view
	for ch := range c.watchers {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
