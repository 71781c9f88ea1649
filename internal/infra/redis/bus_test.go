package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func TestBusDeliversAcrossEndpoints(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 16, zerolog.Nop())
	ctx := context.Background()
	name := channel.SessionName("s1")

	host, err := bus.Open(ctx, name)
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	defer host.Close()
	student, err := bus.Open(ctx, name)
	if err != nil {
		t.Fatalf("open student: %v", err)
	}
	defer student.Close()

	hostGot := make(chan domain.Message, 4)
	host.Subscribe(func(m domain.Message) { hostGot <- m })
	studentGot := make(chan domain.Message, 4)
	student.Subscribe(func(m domain.Message) { studentGot <- m })

	if err := student.Publish(domain.Join{ParticipantID: "a", DisplayName: "Alice"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-hostGot:
		join, ok := m.(domain.Join)
		if !ok || join.DisplayName != "Alice" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for join")
	}

	select {
	case m := <-studentGot:
		t.Fatalf("sender must not receive its own message, got %T", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 4, zerolog.Nop())
	ep, err := bus.Open(context.Background(), "session:s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ep.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ep.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := ep.Publish(domain.RequestState{ParticipantID: "a"}); !errors.Is(err, channel.ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestBusCloseFlushesQueuedMessages(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 16, zerolog.Nop())
	ctx := context.Background()
	name := channel.SessionName("s1")

	student, err := bus.Open(ctx, name)
	if err != nil {
		t.Fatalf("open student: %v", err)
	}
	defer student.Close()
	got := make(chan domain.Message, 16)
	student.Subscribe(func(m domain.Message) { got <- m })

	host, err := bus.Open(ctx, name)
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := host.Publish(domain.RevealAnswer{QuestionID: "q1", QuestionIndex: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := host.Publish(domain.SessionEnded{SessionID: "s1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for received := 0; received < 6; received++ {
		select {
		case m := <-got:
			if received == 5 {
				if _, ok := m.(domain.SessionEnded); !ok {
					t.Fatalf("expected session_ended last, got %T", m)
				}
			}
		case <-deadline:
			t.Fatalf("only %d of 6 queued messages arrived after close", received)
		}
	}
}
