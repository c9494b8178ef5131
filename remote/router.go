package remote

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Output struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

var ErrUnknownType = errors.New("unknown message type")

// Router dispatches incoming messages by type.
type Router struct {
	routes map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]HandlerFunc)}
}

func (r *Router) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleEmpty registers a handler that ignores the payload.
func (r *Router) HandleEmpty(messageType string, handler func(ctx context.Context) error) {
	r.Handle(messageType, func(ctx context.Context, _ json.RawMessage) error {
		return handler(ctx)
	})
}

func (r *Router) Dispatch(ctx context.Context, msg Message) error {
	handler, ok := r.routes[msg.Type]
	if !ok {
		return errors.Wrapf(ErrUnknownType, "%q", msg.Type)
	}
	return handler(ctx, msg.Payload)
}

// Decode unmarshals an optional payload into v.
func Decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 || string(payload) == "null" {
		return errors.New("payload required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrap(err, "bad payload")
	}
	return nil
}
