package app_test

import (
	"errors"
	"testing"
	"time"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

var questionStart = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func activeSnapshot(index int, q domain.Question, remaining int) domain.StateSnapshot {
	view := q.View()
	return domain.StateSnapshot{
		SessionID: "s1",
		State: domain.SessionState{
			Phase:                domain.PhaseQuestionActive,
			QuestionIndex:        index,
			QuestionStartedAt:    questionStart,
			TimerEnabled:         true,
			TimeRemainingSeconds: remaining,
		},
		CurrentQuestion: &view,
		TotalQuestions:  2,
	}
}

func TestReduceLastSnapshotWins(t *testing.T) {
	q := sampleQuestions()[0]
	view := app.NewStudentView("a")

	view = app.Reduce(view, activeSnapshot(0, q, 15))
	view = app.Reduce(view, activeSnapshot(0, q, 9))
	if !view.Synced || view.TimeRemainingSeconds != 9 || view.Question.ID != "q1" {
		t.Fatalf("expected latest snapshot applied, got %+v", view)
	}

	lobby := domain.StateSnapshot{SessionID: "s1", State: domain.SessionState{Phase: domain.PhaseLobby}, TotalQuestions: 2}
	fresh := app.Reduce(app.NewStudentView("b"), lobby)
	if fresh.Phase != domain.PhaseLobby || fresh.Question != nil || fresh.TotalQuestions != 2 {
		t.Fatalf("unexpected lobby view %+v", fresh)
	}
}

func TestReduceRevealOnlyForCurrentQuestion(t *testing.T) {
	qs := sampleQuestions()
	view := app.Reduce(app.NewStudentView("a"), activeSnapshot(0, qs[0], 15))
	if view.RevealedCorrectAnswer != "" {
		t.Fatalf("answer must be hidden while active")
	}

	view = app.Reduce(view, domain.RevealAnswer{QuestionID: "q2", QuestionIndex: 1, CorrectAnswer: "photosynthesis"})
	if view.RevealedCorrectAnswer != "" {
		t.Fatalf("reveal for another question must be ignored")
	}
	view = app.Reduce(view, domain.RevealAnswer{QuestionID: "q1", CorrectAnswer: "B", Explanation: "A, then B."})
	if view.RevealedCorrectAnswer != "B" || view.Explanation != "A, then B." {
		t.Fatalf("expected reveal applied, got %+v", view)
	}
}

func TestReduceClearsOnNewQuestion(t *testing.T) {
	qs := sampleQuestions()
	view := app.Reduce(app.NewStudentView("a"), activeSnapshot(0, qs[0], 15))
	view.MyAnswer = "B"
	view = app.Reduce(view, domain.RevealAnswer{QuestionID: "q1", CorrectAnswer: "B"})

	revealed := activeSnapshot(0, qs[0], 4)
	revealed.State.Phase = domain.PhaseQuestionRevealed
	view = app.Reduce(view, revealed)
	if view.MyAnswer != "B" || view.RevealedCorrectAnswer != "B" {
		t.Fatalf("same index must keep answer and reveal, got %+v", view)
	}

	view = app.Reduce(view, activeSnapshot(1, qs[1], 20))
	if view.MyAnswer != "" || view.RevealedCorrectAnswer != "" || view.Explanation != "" {
		t.Fatalf("new index must clear local answer state, got %+v", view)
	}
}

func newTestStudent(t *testing.T, now time.Time) (*app.StudentClient, *recordingChannel) {
	t.Helper()
	ch := &recordingChannel{}
	client := app.NewStudentClient(ch, app.StudentOptions{
		ParticipantID: "a",
		Clock:         fixedClock(now),
		Logger:        zerolog.Nop(),
	})
	return client, ch
}

func TestStudentJoinPublishesJoinAndResync(t *testing.T) {
	client, ch := newTestStudent(t, questionStart)

	if err := client.Join("  "); !errors.Is(err, domain.ErrDisplayNameRequired) {
		t.Fatalf("expected name required, got %v", err)
	}
	if err := client.Join("Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	msgs := ch.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected join and request_state, got %d", len(msgs))
	}
	if j, ok := msgs[0].(domain.Join); !ok || j.ParticipantID != "a" || j.DisplayName != "Alice" {
		t.Fatalf("unexpected join %+v", msgs[0])
	}
	if _, ok := msgs[1].(domain.RequestState); !ok {
		t.Fatalf("expected request_state, got %+v", msgs[1])
	}
}

func TestStudentSubmitIsOneShot(t *testing.T) {
	client, ch := newTestStudent(t, questionStart.Add(3500*time.Millisecond))
	q := sampleQuestions()[0]

	if client.Submit("B") {
		t.Fatalf("submit before join must fail")
	}
	client.Join("Alice")
	if client.Submit("B") {
		t.Fatalf("submit before any question must fail")
	}

	ch.deliver(activeSnapshot(0, q, 12))
	if client.Submit("Z") {
		t.Fatalf("value outside the options must be rejected")
	}
	if !client.Submit("B") {
		t.Fatalf("expected first submit accepted")
	}
	if client.Submit("A") {
		t.Fatalf("second submit must be rejected")
	}

	var submits []domain.SubmitAnswer
	for _, m := range ch.messages() {
		if s, ok := m.(domain.SubmitAnswer); ok {
			submits = append(submits, s)
		}
	}
	if len(submits) != 1 {
		t.Fatalf("expected one submission, got %d", len(submits))
	}
	if s := submits[0]; s.QuestionID != "q1" || s.Value != "B" || s.ClientElapsedSeconds != 3 {
		t.Fatalf("unexpected submission %+v", s)
	}
	if client.View().MyAnswer != "B" {
		t.Fatalf("expected local answer recorded")
	}
}

func TestStudentCannotSubmitAfterReveal(t *testing.T) {
	client, ch := newTestStudent(t, questionStart)
	client.Join("Alice")
	ch.deliver(activeSnapshot(0, sampleQuestions()[0], 10))
	ch.deliver(domain.RevealAnswer{QuestionID: "q1", CorrectAnswer: "B"})

	if client.Submit("B") {
		t.Fatalf("submit after reveal must be rejected")
	}
}

func TestStudentIgnoresPeerMessages(t *testing.T) {
	client, ch := newTestStudent(t, questionStart)
	before := client.View()
	ch.deliver(domain.Join{ParticipantID: "b", DisplayName: "Bob"})
	ch.deliver(domain.SubmitAnswer{ParticipantID: "b", QuestionID: "q1", Value: "B"})
	if client.View() != before {
		t.Fatalf("peer messages must not change the view")
	}
}

func TestStudentCloseReleasesChannel(t *testing.T) {
	client, ch := newTestStudent(t, questionStart)
	views, cancel := client.Watch()
	defer cancel()
	<-views

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-views; ok {
		t.Fatalf("expected watcher closed")
	}
	if err := client.Join("Alice"); err == nil {
		t.Fatalf("join after close must fail")
	}
	if !ch.closed {
		t.Fatalf("expected channel closed")
	}
}

func TestStudentSessionEndReleasesWatchers(t *testing.T) {
	client, ch := newTestStudent(t, questionStart)
	if err := client.Join("Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	ch.deliver(activeSnapshot(0, sampleQuestions()[0], 10))

	views, cancel := client.Watch()
	defer cancel()
	<-views

	ch.deliver(domain.SessionEnded{SessionID: "s1"})
	last, ok := <-views
	if !ok || !last.Ended {
		t.Fatalf("expected a final ended view, got %+v (open=%v)", last, ok)
	}
	if _, ok := <-views; ok {
		t.Fatalf("expected watcher closed after session end")
	}
	if client.Submit("B") {
		t.Fatalf("submit after session end must be rejected")
	}

	ch.deliver(activeSnapshot(1, sampleQuestions()[1], 10))
	if v := client.View(); v.QuestionIndex != 0 || !v.Ended {
		t.Fatalf("ended view must not change, got %+v", v)
	}

	late, lateCancel := client.Watch()
	defer lateCancel()
	if v, ok := <-late; !ok || !v.Ended {
		t.Fatalf("late watcher should get the ended view")
	}
	if _, ok := <-late; ok {
		t.Fatalf("late watcher should be closed")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.closed {
		t.Fatalf("expected channel closed")
	}
}
