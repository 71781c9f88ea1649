package redis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// drainTimeout bounds how long Close waits for queued messages to reach Redis.
const drainTimeout = 2 * time.Second

// Bus carries session channels over Redis pub/sub so hosts and students can
// sit behind different instances. Every endpoint holds its own subscription
// and tags what it publishes with its id to skip its own echoes.
type Bus struct {
	client *redis.Client
	buffer int
	log    zerolog.Logger
}

func NewBus(client *redis.Client, buffer int, log zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = channel.DefaultBuffer
	}
	return &Bus{
		client: client,
		buffer: buffer,
		log:    log.With().Str("component", "redis_bus").Logger(),
	}
}

func (b *Bus) Open(ctx context.Context, name string) (channel.Channel, error) {
	topic := "quiz:channel:" + name
	ps := b.client.Subscribe(ctx, topic)
	// wait for the subscription so nothing published after Open is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ep := &busEndpoint{
		id:      uuid.NewString(),
		name:    name,
		topic:   topic,
		client:  b.client,
		ps:      ps,
		out:     make(chan []byte, b.buffer),
		cancel:  cancel,
		stop:    make(chan struct{}),
		drained: make(chan struct{}),
		log:     b.log.With().Str("channel", name).Logger(),
	}
	go ep.readLoop(ps.Channel())
	go ep.writeLoop(runCtx)
	return ep, nil
}

type busEndpoint struct {
	id      string
	name    string
	topic   string
	client  *redis.Client
	ps      *redis.PubSub
	out     chan []byte
	cancel  context.CancelFunc
	stop    chan struct{}
	drained chan struct{}
	log     zerolog.Logger

	mu       sync.RWMutex
	handlers []channel.Handler

	closed    atomic.Bool
	closeOnce sync.Once
}

func (e *busEndpoint) Name() string { return e.name }

func (e *busEndpoint) Publish(msg domain.Message) error {
	if e.closed.Load() {
		return channel.ErrClosed
	}
	env, err := domain.EncodeMessage(msg)
	if err != nil {
		return err
	}
	env.Sender = e.id
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case e.out <- raw:
		return nil
	default:
	}
	// full: drop the oldest pending message
	select {
	case <-e.out:
		e.log.Debug().Msg("outbound queue full, dropped oldest message")
	default:
	}
	select {
	case e.out <- raw:
	default:
	}
	return nil
}

func (e *busEndpoint) Subscribe(h channel.Handler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, h)
	e.mu.Unlock()
}

// Close flushes what is still queued, waiting at most drainTimeout, then
// drops the subscription.
func (e *busEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stop)
		select {
		case <-e.drained:
		case <-time.After(drainTimeout):
			e.log.Warn().Int("pending", len(e.out)).Msg("close timed out before queue drained")
		}
		e.cancel()
		err = e.ps.Close()
	})
	return err
}

func (e *busEndpoint) writeLoop(ctx context.Context) {
	defer close(e.drained)
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-e.out:
			e.publish(ctx, raw)
		case <-e.stop:
			for {
				select {
				case raw := <-e.out:
					e.publish(ctx, raw)
				default:
					return
				}
			}
		}
	}
}

func (e *busEndpoint) publish(ctx context.Context, raw []byte) {
	if err := e.client.Publish(ctx, e.topic, raw).Err(); err != nil && ctx.Err() == nil {
		e.log.Warn().Err(err).Msg("publish failed")
	}
}

func (e *busEndpoint) readLoop(msgs <-chan *redis.Message) {
	for m := range msgs {
		if e.closed.Load() {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			e.log.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		if env.Sender == e.id {
			continue
		}
		msg, err := domain.DecodeMessage(env)
		if err != nil {
			e.log.Debug().Err(err).Str("type", string(env.Type)).Msg("dropping undecodable message")
			continue
		}
		e.dispatch(msg)
	}
}

func (e *busEndpoint) dispatch(msg domain.Message) {
	e.mu.RLock()
	handlers := make([]channel.Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
}
