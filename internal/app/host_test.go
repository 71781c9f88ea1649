package app_test

import (
	"testing"
	"time"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

func newTestHost(t *testing.T, questions []domain.Question) (*app.Host, *recordingChannel, *manualScheduler) {
	t.Helper()
	ch := &recordingChannel{}
	sched := &manualScheduler{}
	host, err := app.NewHost(app.HostOptions{
		SessionID: "s1",
		Questions: questions,
		Channel:   ch,
		Scheduler: sched,
		Clock:     fixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	return host, ch, sched
}

func TestThreeParticipantsFirstQuestion(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())

	ch.deliver(
		domain.Join{ParticipantID: "a", DisplayName: "Alice"},
		domain.Join{ParticipantID: "b", DisplayName: "Bob"},
		domain.Join{ParticipantID: "c", DisplayName: "Cara"},
	)
	if !host.Start() {
		t.Fatalf("expected start from lobby")
	}

	ch.deliver(
		domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "B", ClientElapsedSeconds: 3},
		domain.SubmitAnswer{ParticipantID: "b", QuestionID: "q1", Value: "A", ClientElapsedSeconds: 5},
	)

	scores := map[string]domain.Participant{}
	for _, p := range host.Participants() {
		scores[p.ID] = p
	}
	if got := scores["a"].Score; got != 900 {
		t.Fatalf("expected Alice 900, got %d", got)
	}
	if got := scores["b"].Score; got != 0 {
		t.Fatalf("expected Bob 0, got %d", got)
	}
	if got := scores["c"].Score; got != 0 {
		t.Fatalf("expected Cara 0, got %d", got)
	}
	if _, ok := scores["c"].Answers["q1"]; ok {
		t.Fatalf("expected no answer record for Cara")
	}
	if rec := scores["b"].Answers["q1"]; rec.Correct || rec.Value != "A" {
		t.Fatalf("unexpected record for Bob: %+v", rec)
	}
}

func TestManualRevealStopsTimer(t *testing.T) {
	host, ch, sched := newTestHost(t, sampleQuestions())
	ch.deliver(domain.Join{ParticipantID: "a", DisplayName: "Alice"})
	host.Start()

	sched.advance(10)
	if st := host.State(); st.Phase != domain.PhaseQuestionActive || st.TimeRemainingSeconds != 5 {
		t.Fatalf("expected active with 5s left, got %+v", st)
	}

	if !host.Reveal() {
		t.Fatalf("expected reveal before expiry")
	}
	st := host.State()
	if st.Phase != domain.PhaseQuestionRevealed || st.TimerEnabled {
		t.Fatalf("expected revealed with timer off, got %+v", st)
	}
	if sched.fire() {
		t.Fatalf("expected no live timer after reveal")
	}

	ch.deliver(domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "B", ClientElapsedSeconds: 9})
	p := host.Participants()[0]
	if p.Score != 0 || len(p.Answers) != 0 {
		t.Fatalf("late submission must be rejected, got %+v", p)
	}

	reveals := ch.reveals()
	if len(reveals) != 1 || reveals[0].CorrectAnswer != "B" || reveals[0].QuestionID != "q1" {
		t.Fatalf("expected one reveal of B, got %+v", reveals)
	}
}

func TestTimerExpiryRevealsExactlyOnce(t *testing.T) {
	questions := sampleQuestions()
	questions[0].TimeLimitSeconds = 3
	host, ch, sched := newTestHost(t, questions)
	host.Start()

	sched.advance(2)
	if host.State().Phase != domain.PhaseQuestionActive {
		t.Fatalf("expected still active after 2 ticks")
	}
	sched.advance(1)
	if host.State().Phase != domain.PhaseQuestionRevealed {
		t.Fatalf("expected auto reveal at zero, got %s", host.State().Phase)
	}
	if host.Reveal() {
		t.Fatalf("manual reveal after expiry must be a no-op")
	}
	if n := len(ch.reveals()); n != 1 {
		t.Fatalf("expected exactly one reveal, got %d", n)
	}
}

func TestStaleTickAfterManualReveal(t *testing.T) {
	questions := sampleQuestions()
	questions[0].TimeLimitSeconds = 2
	host, ch, sched := newTestHost(t, questions)
	host.Start()
	sched.advance(1)

	inFlight := sched.lastCallback()
	host.Reveal()
	inFlight()

	if n := len(ch.reveals()); n != 1 {
		t.Fatalf("expected one reveal despite stale tick, got %d", n)
	}
	if st := host.State(); st.Phase != domain.PhaseQuestionRevealed || st.TimeRemainingSeconds != 1 {
		t.Fatalf("stale tick must not touch state, got %+v", st)
	}
}

func TestNextOnLastQuestionCompletes(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	host.Start()
	host.Reveal()
	if !host.Next() {
		t.Fatalf("expected next to second question")
	}
	if st := host.State(); st.Phase != domain.PhaseQuestionActive || st.QuestionIndex != 1 {
		t.Fatalf("expected second question active, got %+v", st)
	}
	host.Reveal()
	if !host.Next() {
		t.Fatalf("expected next to complete the session")
	}
	done := host.State()
	if done.Phase != domain.PhaseSessionComplete || done.QuestionIndex != 1 || done.TimerEnabled {
		t.Fatalf("expected completion frozen at index 1, got %+v", done)
	}

	published := len(ch.messages())
	if host.Next() {
		t.Fatalf("next after completion must be a no-op")
	}
	if host.State() != done {
		t.Fatalf("state changed after no-op next")
	}
	if len(ch.messages()) != published {
		t.Fatalf("no-op next must not publish")
	}
	snap, _ := ch.lastSnapshot()
	if snap.State.Phase != domain.PhaseSessionComplete {
		t.Fatalf("expected final snapshot, got %+v", snap.State)
	}
}

func TestSecondSubmissionIgnored(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	ch.deliver(domain.Join{ParticipantID: "a", DisplayName: "Alice"})
	host.Start()

	ch.deliver(
		domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "A", ClientElapsedSeconds: 1},
		domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "B", ClientElapsedSeconds: 2},
	)
	p := host.Participants()[0]
	if p.Score != 0 || p.Answers["q1"].Value != "A" {
		t.Fatalf("first submission must win, got %+v", p)
	}
}

func TestSubmissionsFromUnknownOrForOtherQuestionIgnored(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	ch.deliver(domain.Join{ParticipantID: "a", DisplayName: "Alice"})

	// Still in the lobby.
	ch.deliver(domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "B"})
	host.Start()
	ch.deliver(
		domain.SubmitAnswer{ParticipantID: "ghost", QuestionID: "q1", Value: "B"},
		domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q2", Value: "photosynthesis"},
	)

	if n := len(host.Participants()); n != 1 {
		t.Fatalf("unknown participant must not be added, got %d", n)
	}
	if p := host.Participants()[0]; p.Score != 0 || len(p.Answers) != 0 {
		t.Fatalf("expected no records, got %+v", p)
	}
}

func TestProgressionNeverRegresses(t *testing.T) {
	host, _, sched := newTestHost(t, sampleQuestions())
	actions := []func() bool{
		host.Next, host.Reveal, host.Start, host.Start, host.Next,
		host.Reveal, host.Reveal, host.Start, host.Next, func() bool { sched.advance(30); return true },
		host.Next, host.Next, host.Reveal, host.Start, host.Next,
	}

	lastIndex := host.State().QuestionIndex
	completed := false
	for i, act := range actions {
		act()
		st := host.State()
		if st.QuestionIndex < lastIndex {
			t.Fatalf("step %d: index went from %d to %d", i, lastIndex, st.QuestionIndex)
		}
		if completed && st.Phase != domain.PhaseSessionComplete {
			t.Fatalf("step %d: left session-complete for %s", i, st.Phase)
		}
		if st.Phase == domain.PhaseSessionComplete {
			completed = true
		}
		lastIndex = st.QuestionIndex
	}
	if !completed {
		t.Fatalf("expected the sequence to complete the session")
	}
}

func TestLeaderboardOverlayKeepsTimer(t *testing.T) {
	host, _, sched := newTestHost(t, sampleQuestions())
	host.Start()
	sched.advance(4)

	before := host.State()
	if !host.SetLeaderboardVisible(true) {
		t.Fatalf("expected overlay toggle")
	}
	after := host.State()
	if !after.LeaderboardVisible {
		t.Fatalf("expected overlay visible")
	}
	if after.Phase != before.Phase || after.QuestionIndex != before.QuestionIndex || after.TimeRemainingSeconds != before.TimeRemainingSeconds {
		t.Fatalf("overlay must not touch phase or timer: before %+v after %+v", before, after)
	}
	sched.advance(1)
	if got := host.State().TimeRemainingSeconds; got != before.TimeRemainingSeconds-1 {
		t.Fatalf("timer should keep running, got %d", got)
	}

	host.Reveal()
	host.Next()
	if host.State().LeaderboardVisible {
		t.Fatalf("next question must clear the overlay")
	}
}

func TestRequestStateResyncsLateJoiner(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	host.Start()
	host.Reveal()

	before := len(ch.messages())
	ch.deliver(domain.RequestState{ParticipantID: "late"})
	msgs := ch.messages()[before:]
	if len(msgs) != 2 {
		t.Fatalf("expected snapshot and reveal, got %d messages", len(msgs))
	}
	snap, ok := msgs[0].(domain.StateSnapshot)
	if !ok || snap.State.Phase != domain.PhaseQuestionRevealed || snap.CurrentQuestion == nil {
		t.Fatalf("expected revealed snapshot, got %+v", msgs[0])
	}
	if reveal, ok := msgs[1].(domain.RevealAnswer); !ok || reveal.CorrectAnswer != "B" {
		t.Fatalf("expected reveal of B, got %+v", msgs[1])
	}
}

func TestSnapshotHidesAnswerKey(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	host.Start()

	snap, ok := ch.lastSnapshot()
	if !ok || snap.CurrentQuestion == nil {
		t.Fatalf("expected snapshot with question")
	}
	if snap.TotalQuestions != 2 || snap.CurrentQuestion.ID != "q1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(ch.reveals()) != 0 {
		t.Fatalf("answer must not be published before reveal")
	}
	if view := host.View(); view.Question == nil || view.Question.CorrectAnswer != "B" {
		t.Fatalf("host view should include the answer key")
	}
}

func TestRevealComputesDistribution(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	ch.deliver(
		domain.Join{ParticipantID: "a", DisplayName: "Alice"},
		domain.Join{ParticipantID: "b", DisplayName: "Bob"},
		domain.Join{ParticipantID: "c", DisplayName: "Cara"},
	)
	host.Start()
	ch.deliver(
		domain.SubmitAnswer{ParticipantID: "a", QuestionID: "q1", Value: "B"},
		domain.SubmitAnswer{ParticipantID: "b", QuestionID: "q1", Value: "B"},
	)
	if host.View().Distribution != nil {
		t.Fatalf("distribution is only shown after reveal")
	}
	host.Reveal()

	dist := host.View().Distribution
	if dist == nil {
		t.Fatalf("expected distribution after reveal")
	}
	if dist.Answered != 2 || dist.Correct != 2 || dist.Participants != 3 {
		t.Fatalf("unexpected totals %+v", dist)
	}
	if dist.Options[1].Option != "B" || dist.Options[1].Count != 2 || !dist.Options[1].Correct {
		t.Fatalf("unexpected B bar %+v", dist.Options[1])
	}
}

func TestForeignHostMessagesIgnored(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	ch.deliver(domain.StateSnapshot{SessionID: "s1", State: domain.SessionState{Phase: domain.PhaseSessionComplete}})
	if host.State().Phase != domain.PhaseLobby {
		t.Fatalf("foreign snapshot must not change host state")
	}
}

func TestNewHostRejectsInvalidQuestions(t *testing.T) {
	bad := sampleQuestions()
	bad[0].CorrectAnswer = "Z"
	_, err := app.NewHost(app.HostOptions{SessionID: "s1", Questions: bad, Channel: &recordingChannel{}, Logger: zerolog.Nop()})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	_, err = app.NewHost(app.HostOptions{SessionID: "s1", Channel: &recordingChannel{}, Logger: zerolog.Nop()})
	if err == nil {
		t.Fatalf("expected error for empty question set")
	}
}

func TestWatchReceivesJoins(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	views, cancel := host.Watch()
	defer cancel()

	initial := <-views
	if initial.Participants != 0 || initial.State.Phase != domain.PhaseLobby {
		t.Fatalf("unexpected initial view %+v", initial)
	}
	ch.deliver(domain.Join{ParticipantID: "a", DisplayName: "Alice"})
	update := <-views
	if update.Participants != 1 || len(update.Leaderboard) != 1 || update.Leaderboard[0].DisplayName != "Alice" {
		t.Fatalf("expected Alice on the leaderboard, got %+v", update)
	}

	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-views; ok {
		t.Fatalf("expected watcher closed with host")
	}
}

func TestCloseAnnouncesSessionEnd(t *testing.T) {
	host, ch, _ := newTestHost(t, sampleQuestions())
	ch.deliver(domain.Join{ParticipantID: "a", DisplayName: "Alice"})
	host.Start()

	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	msgs := ch.messages()
	ended, ok := msgs[len(msgs)-1].(domain.SessionEnded)
	if !ok || ended.SessionID != "s1" {
		t.Fatalf("expected session_ended as the last message, got %+v", msgs[len(msgs)-1])
	}
	if !ch.closed {
		t.Fatalf("expected channel closed after the announcement")
	}
}
