package pusher

import (
	"encoding/json"
	"fmt"
)

// Recognized event names, per the wire protocol subset in spec §6.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventError                 = "pusher:error"
	EventSubscribe              = "pusher:subscribe"
	EventUnsubscribe            = "pusher:unsubscribe"
	EventSubscriptionSucceeded  = "pusher_internal:subscription_succeeded"
	EventSubscriptionError      = "pusher:subscription_error"
	EventMemberAdded            = "pusher_internal:member_added"
	EventMemberRemoved          = "pusher_internal:member_removed"

	// ClientEventPrefix is the required prefix for any event a client may
	// publish directly onto a subscribed private or presence channel.
	ClientEventPrefix = "client-"
)

// Event is the decoded form of an inbound or outbound wire frame. Data
// carries the payload exactly as it appeared on the wire: a JSON-encoded
// string (the server's well-known double-encoding quirk), not a decoded
// object. Use decodePayload to get at its contents.
type Event struct {
	Name    string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func decodeFrame(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrProtocolDecode, err)
	}
	if e.Name == "" {
		return Event{}, fmt.Errorf("%w: missing event field", ErrProtocolDecode)
	}
	return e, nil
}

// encodeFrame builds an outbound wire frame. data is marshaled as-is (the
// server accepts a JSON object for outbound data, unlike the double-encoded
// string it sends back).
func encodeFrame(name string, data interface{}, channel string) ([]byte, error) {
	payload := map[string]interface{}{"event": name, "data": data}
	if channel != "" {
		payload["channel"] = channel
	}
	return json.Marshal(payload)
}

// decodePayload returns the dispatched value for an event's Data field.
// When attemptJSONObject is true and Data is a JSON-encoded string, the
// inner string is itself unmarshaled into a generic value (object, array,
// or scalar); when attemptJSONObject is false, or the inner string is not
// valid JSON, the string is returned unchanged. Data that is not a JSON
// string is decoded into a generic value whatever attemptJSONObject says.
// This mirrors the AttemptToReturnJSONObject option.
func decodePayload(raw json.RawMessage, attemptJSONObject bool) interface{} {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		// Not a JSON string (already an object/array/number/bool); return as-is.
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return string(raw)
		}
		return generic
	}

	if !attemptJSONObject {
		return asString
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(asString), &decoded); err != nil {
		// Not valid JSON inside the string; fall back to the raw string.
		return asString
	}
	return decoded
}

type connectionEstablishedPayload struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout,omitempty"`
}

type presencePayload struct {
	IDs   []string                   `json:"ids,omitempty"`
	Hash  map[string]json.RawMessage `json:"hash,omitempty"`
	Count int                        `json:"count,omitempty"`
}

type subscriptionSucceededPayload struct {
	Presence *presencePayload `json:"presence,omitempty"`
}

type pusherErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}
