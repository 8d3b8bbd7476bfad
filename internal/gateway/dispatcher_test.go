package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relay_errors "chatrelay/pkg/errors"
)

func dispatchFrame(t *testing.T, d *Dispatcher, c *Client, frame string) *responseFrame {
	t.Helper()
	raw := d.Dispatch(context.Background(), c, []byte(frame))
	if raw == nil {
		return nil
	}
	var resp responseFrame
	require.NoError(t, json.Unmarshal(raw, &resp))
	return &resp
}

func TestDispatcher_RequestResponse(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	d.Handle("echo", func(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
		s, err := decodeString(data)
		if err != nil {
			return nil, err
		}
		return map[string]string{"echo": s}, nil
	})

	resp := dispatchFrame(t, d, c, `{"id": 7, "event": "echo", "data": "hi"}`)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo", resp.Event)
	assert.JSONEq(t, `7`, string(resp.ID))
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	resp := dispatchFrame(t, d, c, `{"id": "abc", "event": "launch_missiles", "data": {}}`)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown event: launch_missiles", resp.Error)
	assert.JSONEq(t, `"abc"`, string(resp.ID))
}

func TestDispatcher_HandlerError(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	d.Handle("fail", func(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
		return nil, relay_errors.WithMessage(relay_errors.ErrForbidden, "Only room admins can delete the room")
	})
	d.Handle("crash", func(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
		return nil, assertError{}
	})

	t.Run("known sentinel message is surfaced", func(t *testing.T) {
		resp := dispatchFrame(t, d, c, `{"id": 1, "event": "fail"}`)
		require.NotNil(t, resp)
		assert.False(t, resp.Success)
		assert.Equal(t, "Only room admins can delete the room", resp.Error)
	})

	t.Run("unknown error stays generic", func(t *testing.T) {
		resp := dispatchFrame(t, d, c, `{"id": 2, "event": "crash"}`)
		require.NotNil(t, resp)
		assert.False(t, resp.Success)
		assert.Equal(t, genericFailure, resp.Error)
	})
}

type assertError struct{}

func (assertError) Error() string { return "pq: column does not exist" }

func TestDispatcher_PanicDoesNotPropagate(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	d.Handle("boom", func(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
		panic("handler bug")
	})

	resp := dispatchFrame(t, d, c, `{"id": 3, "event": "boom"}`)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, genericFailure, resp.Error)
}

func TestDispatcher_FireAndForget(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	called := false
	d.HandleFireAndForget("typing", func(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
		called = true
		return nil, relay_errors.ErrForbidden
	})

	raw := d.Dispatch(context.Background(), c, []byte(`{"event": "typing", "data": {"isTyping": true}}`))
	assert.Nil(t, raw, "fire-and-forget events get no response, even on error")
	assert.True(t, called)
}

func TestDispatcher_MalformedFrame(t *testing.T) {
	d := NewDispatcher(testLogger())
	c := newTestClient("alice")

	assert.Nil(t, d.Dispatch(context.Background(), c, []byte(`not json`)))
	assert.Nil(t, d.Dispatch(context.Background(), c, []byte(`{"id": 1}`)))
}
