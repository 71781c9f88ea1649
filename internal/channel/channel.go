// Package channel provides the named broadcast bus a host and its students talk over.
package channel

import (
	"context"
	"errors"

	"aiquiz-service/internal/domain"
)

// ErrClosed is returned when publishing on a closed endpoint.
var ErrClosed = errors.New("channel closed")

// Handler is invoked once per message received on an endpoint.
type Handler func(domain.Message)

// Channel is one participant's endpoint on a named bus. Publish reaches every
// other endpoint with the same name, never the sender itself. Delivery is
// best effort and FIFO per sender.
type Channel interface {
	Name() string
	Publish(msg domain.Message) error
	Subscribe(h Handler)
	// Close releases the endpoint; calling it more than once is safe.
	Close() error
}

// Bus opens endpoints on named channels.
type Bus interface {
	Open(ctx context.Context, name string) (Channel, error)
}

// SessionName returns the channel name scoped to one live session.
func SessionName(sessionID string) string {
	return "session:" + sessionID
}
