package pusher

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the categories described in the error-handling design.
// Wrap with fmt.Errorf("...: %w", ErrX) where more context is useful; callers
// should compare with errors.Is.
var (
	// ErrAuthMissing is returned when a private or presence channel is
	// subscribed with AuthStrategyNone.
	ErrAuthMissing = errors.New("pusher: private/presence subscribe requires an auth strategy")

	// ErrAuthTransport indicates a network-level failure reaching the auth endpoint.
	ErrAuthTransport = errors.New("pusher: auth request failed")

	// ErrAuthResponse indicates the auth endpoint returned a non-2xx status
	// or a body that could not be parsed.
	ErrAuthResponse = errors.New("pusher: auth endpoint returned an invalid response")

	// ErrProtocolDecode indicates an inbound frame was not valid JSON or
	// lacked an "event" field. The frame is dropped.
	ErrProtocolDecode = errors.New("pusher: could not decode inbound frame")

	// ErrInvalidClientEvent indicates a client event was attempted on a
	// public channel or on a channel that is not registered. Client events
	// on a registered private or presence channel that is not yet
	// subscribed are buffered instead.
	ErrInvalidClientEvent = errors.New("pusher: client events require a subscribed private or presence channel")

	// ErrReconnectExhausted indicates the reconnect attempt counter reached
	// MaxReconnectAttempts; the connection is pinned to Disconnected.
	ErrReconnectExhausted = errors.New("pusher: reconnect attempts exhausted")

	// ErrTransportClosed is returned when a frame is written while no
	// socket is open.
	ErrTransportClosed = errors.New("pusher: transport closed unexpectedly")

	// ErrChannelNotFound identifies a channel that was never subscribed
	// (or already unsubscribed). No function in this package returns it;
	// Trigger reports an unknown channel with ErrInvalidClientEvent.
	ErrChannelNotFound = errors.New("pusher: channel not found")

	// ErrNotPresenceChannel identifies a presence-only operation on a
	// public or private channel. No function in this package returns it.
	ErrNotPresenceChannel = errors.New("pusher: not a presence channel")
)

// SubscriptionError carries the full detail of a failed subscription
// authorization, mirroring the (channelName, response, responseBody, error)
// tuple delivered to the subscription-error handler.
type SubscriptionError struct {
	Channel  string
	Response *http.Response
	Body     []byte
	Err      error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("pusher: subscription error for channel %q: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
