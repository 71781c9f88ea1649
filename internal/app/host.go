package app

import (
	"errors"
	"sync"
	"time"

	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is the countdown resolution.
const DefaultTickInterval = time.Second

// HostOptions configures a Host.
type HostOptions struct {
	SessionID    string
	Questions    []domain.Question
	Channel      channel.Channel
	Scheduler    Scheduler
	TickInterval time.Duration
	Clock        func() time.Time
	Logger       zerolog.Logger
}

// HostView is what the presenter's screen renders. Unlike snapshots it
// includes the answer key and the roster.
type HostView struct {
	SessionID      string                     `json:"sessionId"`
	State          domain.SessionState        `json:"state"`
	Question       *domain.Question           `json:"question,omitempty"`
	TotalQuestions int                        `json:"totalQuestions"`
	Participants   int                        `json:"participants"`
	Answered       int                        `json:"answered"`
	Leaderboard    []domain.LeaderboardEntry  `json:"leaderboard"`
	Distribution   *domain.AnswerDistribution `json:"distribution,omitempty"`
}

// Host is the authoritative state machine of one live session. All inputs
// (presenter actions, channel messages, timer ticks) are serialised by mu.
type Host struct {
	id        string
	questions []domain.Question
	ch        channel.Channel
	now       func() time.Time
	log       zerolog.Logger

	mu           sync.Mutex
	state        domain.SessionState
	roster       *Roster
	timer        countdown
	distribution *domain.AnswerDistribution
	watchers     map[chan HostView]struct{}
	closed       bool
}

// NewHost validates the questions and subscribes the host to its channel.
// The host takes ownership of the channel and closes it on Close.
func NewHost(opts HostOptions) (*Host, error) {
	if opts.Channel == nil {
		return nil, errors.New("host requires a channel")
	}
	if err := (domain.Deck{Questions: opts.Questions}).Validate(); err != nil {
		return nil, err
	}
	if opts.Scheduler == nil {
		opts.Scheduler = WallScheduler()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	questions := make([]domain.Question, len(opts.Questions))
	copy(questions, opts.Questions)

	h := &Host{
		id:        opts.SessionID,
		questions: questions,
		ch:        opts.Channel,
		now:       opts.Clock,
		log:       opts.Logger.With().Str("component", "host").Str("session_id", opts.SessionID).Logger(),
		state:     domain.SessionState{Phase: domain.PhaseLobby},
		roster:    NewRoster(opts.Clock),
		timer:     countdown{sched: opts.Scheduler, interval: opts.TickInterval},
		watchers:  make(map[chan HostView]struct{}),
	}
	h.ch.Subscribe(h.handle)
	return h, nil
}

func (h *Host) SessionID() string {
	return h.id
}

// Questions returns a copy of the session's question set.
func (h *Host) Questions() []domain.Question {
	out := make([]domain.Question, len(h.questions))
	copy(out, h.questions)
	return out
}

// Start moves the lobby to the first question.
func (h *Host) Start() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.state.Phase != domain.PhaseLobby {
		return false
	}
	h.log.Info().Int("participants", h.roster.Len()).Msg("session started")
	h.beginQuestionLocked(0)
	return true
}

// Reveal ends the answering window of the current question early.
func (h *Host) Reveal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.state.Phase != domain.PhaseQuestionActive {
		return false
	}
	h.log.Info().Int("question_index", h.state.QuestionIndex).Msg("answer revealed by host")
	h.revealLocked()
	return true
}

// Next advances past a revealed question, completing the session after the last one.
func (h *Host) Next() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.state.Phase != domain.PhaseQuestionRevealed {
		return false
	}
	next := h.state.QuestionIndex + 1
	if next < len(h.questions) {
		h.beginQuestionLocked(next)
		return true
	}

	h.timer.cancel()
	h.state.Phase = domain.PhaseSessionComplete
	h.state.TimerEnabled = false
	h.state.TimeRemainingSeconds = 0
	h.log.Info().Int("participants", h.roster.Len()).Msg("session complete")
	h.publishLocked(h.snapshotLocked())
	h.notifyLocked()
	return true
}

// SetLeaderboardVisible toggles the leaderboard overlay. It never touches
// phase, index or timer.
func (h *Host) SetLeaderboardVisible(visible bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.state.LeaderboardVisible == visible {
		return false
	}
	h.state.LeaderboardVisible = visible
	h.publishLocked(h.snapshotLocked())
	h.notifyLocked()
	return true
}

// State returns the current session state.
func (h *Host) State() domain.SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Snapshot returns the message students would receive right now.
func (h *Host) Snapshot() domain.StateSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// View returns the presenter view.
func (h *Host) View() HostView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewLocked()
}

// Participants returns roster copies in join order.
func (h *Host) Participants() []domain.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roster.Participants()
}

// Ranking returns roster copies sorted by score.
func (h *Host) Ranking() []domain.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roster.Ranking()
}

// Watch returns a channel of presenter views, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Host) Watch() (<-chan HostView, func()) {
	ch := make(chan HostView, 8)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.watchers[ch] = struct{}{}
	ch <- h.viewLocked()
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.watchers[ch]; ok {
			delete(h.watchers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the timer, tells participants the session ended, releases
// watchers and closes the channel.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.timer.cancel()
	h.publishLocked(domain.SessionEnded{SessionID: h.id})
	for ch := range h.watchers {
		delete(h.watchers, ch)
		close(ch)
	}
	h.mu.Unlock()
	return h.ch.Close()
}

func (h *Host) handle(msg domain.Message) {
	if msg == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	switch m := msg.(type) {
	case domain.Join:
		h.joinLocked(m)
	case domain.SubmitAnswer:
		h.submitLocked(m)
	case domain.RequestState:
		h.resyncLocked()
	case domain.StateSnapshot, domain.RevealAnswer, domain.SessionEnded:
		h.log.Warn().Str("type", string(msg.Type())).Msg("ignoring host message from another publisher")
	default:
		h.log.Debug().Str("type", string(msg.Type())).Msg("ignoring unsupported message")
	}
}

func (h *Host) joinLocked(m domain.Join) {
	if h.state.Phase == domain.PhaseSessionComplete {
		h.log.Debug().Str("participant_id", m.ParticipantID).Msg("join after completion ignored")
		return
	}
	p, added := h.roster.Join(m.ParticipantID, m.DisplayName)
	if !added {
		return
	}
	h.log.Info().Str("participant_id", p.ID).Str("name", p.DisplayName).Msg("participant joined")
	h.notifyLocked()
}

func (h *Host) submitLocked(m domain.SubmitAnswer) {
	if h.state.Phase != domain.PhaseQuestionActive {
		h.log.Debug().Str("participant_id", m.ParticipantID).Str("phase", string(h.state.Phase)).Msg("submission outside answering window")
		return
	}
	q := h.questions[h.state.QuestionIndex]
	if m.QuestionID != q.ID {
		h.log.Debug().Str("participant_id", m.ParticipantID).Str("question_id", m.QuestionID).Msg("submission for a different question")
		return
	}
	rec, err := h.roster.Record(m.ParticipantID, q, m.Value, m.ClientElapsedSeconds)
	if err != nil {
		h.log.Debug().Err(err).Str("participant_id", m.ParticipantID).Msg("submission ignored")
		return
	}
	h.log.Debug().
		Str("participant_id", m.ParticipantID).
		Int("question_index", h.state.QuestionIndex).
		Bool("correct", rec.Correct).
		Int("points", rec.Points).
		Msg("answer recorded")
	h.notifyLocked()
}

// resyncLocked answers a late joiner with the current snapshot and, once the
// question is revealed, its answer.
func (h *Host) resyncLocked() {
	h.publishLocked(h.snapshotLocked())
	switch h.state.Phase {
	case domain.PhaseQuestionRevealed, domain.PhaseSessionComplete:
		h.publishLocked(h.revealMessageLocked())
	}
}

func (h *Host) tick(token uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || !h.timer.current(token) || h.state.Phase != domain.PhaseQuestionActive {
		return
	}
	h.timer.pending = nil

	h.state.TimeRemainingSeconds--
	if h.state.TimeRemainingSeconds <= 0 {
		h.state.TimeRemainingSeconds = 0
		h.log.Info().Int("question_index", h.state.QuestionIndex).Msg("time is up")
		h.revealLocked()
		return
	}
	h.timer.schedule(token, h.tick)
	h.publishLocked(h.snapshotLocked())
	h.notifyLocked()
}

func (h *Host) beginQuestionLocked(index int) {
	q := h.questions[index]
	h.state.Phase = domain.PhaseQuestionActive
	h.state.QuestionIndex = index
	h.state.QuestionStartedAt = h.now()
	h.state.TimerEnabled = true
	h.state.TimeRemainingSeconds = q.TimeLimitSeconds
	h.state.LeaderboardVisible = false
	h.distribution = nil
	h.timer.arm(h.tick)

	h.publishLocked(h.snapshotLocked())
	h.notifyLocked()
}

func (h *Host) revealLocked() {
	h.timer.cancel()
	h.state.Phase = domain.PhaseQuestionRevealed
	h.state.TimerEnabled = false

	dist := h.roster.Distribution(h.questions[h.state.QuestionIndex])
	h.distribution = &dist

	h.publishLocked(h.snapshotLocked())
	h.publishLocked(h.revealMessageLocked())
	h.notifyLocked()
}

func (h *Host) revealMessageLocked() domain.RevealAnswer {
	q := h.questions[h.state.QuestionIndex]
	return domain.RevealAnswer{
		QuestionID:    q.ID,
		QuestionIndex: h.state.QuestionIndex,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
}

func (h *Host) snapshotLocked() domain.StateSnapshot {
	snap := domain.StateSnapshot{
		SessionID:      h.id,
		State:          h.state,
		TotalQuestions: len(h.questions),
	}
	if h.state.Phase != domain.PhaseLobby {
		view := h.questions[h.state.QuestionIndex].View()
		snap.CurrentQuestion = &view
	}
	return snap
}

func (h *Host) viewLocked() HostView {
	view := HostView{
		SessionID:      h.id,
		State:          h.state,
		TotalQuestions: len(h.questions),
		Participants:   h.roster.Len(),
		Leaderboard:    h.roster.Leaderboard(),
	}
	if h.state.Phase != domain.PhaseLobby {
		q := h.questions[h.state.QuestionIndex]
		view.Question = &q
		view.Answered = h.roster.Answered(q.ID)
	}
	if h.distribution != nil {
		dist := *h.distribution
		view.Distribution = &dist
	}
	return view
}

func (h *Host) publishLocked(msg domain.Message) {
	if err := h.ch.Publish(msg); err != nil {
		h.log.Debug().Err(err).Str("type", string(msg.Type())).Msg("publish failed")
	}
}

func (h *Host) notifyLocked() {
	if len(h.watchers) == 0 {
		return
	}
	view := h.viewLocked()
	for ch := range h.watchers {
		select {
		case ch <- view:
		default:
			// slow watcher: drop its oldest pending view
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
