package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"aiquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBuffer is the per-endpoint queue length used when none is configured.
const DefaultBuffer = 64

// Hub is an in-process Bus. Each endpoint owns a bounded queue drained by its
// own goroutine, so a slow subscriber never blocks a publisher.
type Hub struct {
	buffer int
	log    zerolog.Logger

	mu     sync.Mutex
	topics map[string]map[*endpoint]struct{}
}

func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		log:    log.With().Str("component", "channel").Logger(),
		topics: make(map[string]map[*endpoint]struct{}),
	}
}

// Open registers a new endpoint on name.
func (h *Hub) Open(_ context.Context, name string) (Channel, error) {
	ep := &endpoint{
		hub:   h,
		name:  name,
		queue: make(chan domain.Message, h.buffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	peers, ok := h.topics[name]
	if !ok {
		peers = make(map[*endpoint]struct{})
		h.topics[name] = peers
	}
	peers[ep] = struct{}{}
	h.mu.Unlock()

	go ep.run()
	return ep, nil
}

// Subscribers reports how many endpoints are open on name.
func (h *Hub) Subscribers(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[name])
}

func (h *Hub) deliver(from *endpoint, msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.topics[from.name] {
		if peer == from {
			continue
		}
		if dropped := peer.enqueue(msg); dropped {
			h.log.Debug().Str("channel", from.name).Str("type", string(msg.Type())).Msg("subscriber queue full, dropped oldest message")
		}
	}
}

func (h *Hub) remove(ep *endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := h.topics[ep.name]
	delete(peers, ep)
	if len(peers) == 0 {
		delete(h.topics, ep.name)
	}
}

type endpoint struct {
	hub   *Hub
	name  string
	queue chan domain.Message
	done  chan struct{}

	mu       sync.RWMutex
	handlers []Handler

	closed    atomic.Bool
	closeOnce sync.Once
}

func (e *endpoint) Name() string { return e.name }

func (e *endpoint) Publish(msg domain.Message) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.hub.deliver(e, msg)
	return nil
}

func (e *endpoint) Subscribe(h Handler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, h)
	e.mu.Unlock()
}

func (e *endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.hub.remove(e)
		close(e.done)
	})
	return nil
}

// enqueue never blocks; when the queue is full the oldest message is dropped.
func (e *endpoint) enqueue(msg domain.Message) bool {
	select {
	case e.queue <- msg:
		return false
	default:
	}
	select {
	case <-e.queue:
	default:
	}
	select {
	case e.queue <- msg:
	default:
	}
	return true
}

func (e *endpoint) run() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.queue:
			e.dispatch(msg)
		}
	}
}

func (e *endpoint) dispatch(msg domain.Message) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		if e.closed.Load() {
			return
		}
		h(msg)
	}
}
