package gateway

import (
	"context"
	"encoding/json"
	"errors"

	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

// handlerFunc processes one inbound event for an authenticated client and
// returns the response payload, or an error to be mapped onto the wire.
type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) (any, error)

// Dispatcher routes inbound frames by event name through a single table.
// Fire-and-forget events produce no response and swallow handler errors.
type Dispatcher struct {
	handlers      map[string]handlerFunc
	fireAndForget map[string]struct{}
	log           *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:      make(map[string]handlerFunc),
		fireAndForget: make(map[string]struct{}),
		log:           log,
	}
}

func (d *Dispatcher) Handle(event string, fn handlerFunc) {
	d.handlers[event] = fn
}

func (d *Dispatcher) HandleFireAndForget(event string, fn handlerFunc) {
	d.handlers[event] = fn
	d.fireAndForget[event] = struct{}{}
}

// Dispatch runs the handler for one raw frame and returns the serialized
// response, or nil when no response is owed (fire-and-forget, unparseable
// frame with no correlation id). A panicking handler is logged and answered
// with a generic failure; it never drops the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, raw []byte) []byte {
	var frame requestFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		d.log.Warnf("malformed frame from user %s", c.UserID)
		return nil
	}

	if _, ok := d.fireAndForget[frame.Event]; ok {
		d.run(ctx, c, frame)
		return nil
	}

	payload, err := d.run(ctx, c, frame)
	resp := responseFrame{ID: frame.ID, Event: frame.Event}
	if err != nil {
		resp.Error = failureMessage(err)
	} else {
		resp.Success = true
		resp.Data = payload
	}

	out, err := json.Marshal(resp)
	if err != nil {
		d.log.Errorf("marshal response for %s failed: %v", frame.Event, err)
		out, _ = json.Marshal(responseFrame{ID: frame.ID, Event: frame.Event, Error: genericFailure})
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, c *Client, frame requestFrame) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("handler %s panicked for user %s: %v", frame.Event, c.UserID, r)
			payload, err = nil, errors.New(genericFailure)
		}
	}()

	fn, ok := d.handlers[frame.Event]
	if !ok {
		return nil, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Unknown event: "+frame.Event)
	}
	return fn(ctx, c, frame.Data)
}
