package pusher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	event, err := decodeFrame([]byte(`{"event":"foo","channel":"bar","data":"{\"x\":1}"}`))
	require.NoError(t, err)
	assert.Equal(t, "foo", event.Name)
	assert.Equal(t, "bar", event.Channel)
}

func TestDecodeFrameErrors(t *testing.T) {
	_, err := decodeFrame([]byte(`not json`))
	assert.ErrorIs(t, err, ErrProtocolDecode)

	_, err = decodeFrame([]byte(`{"channel":"bar"}`))
	assert.ErrorIs(t, err, ErrProtocolDecode)
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw := json.RawMessage(`"{\"x\":1}"`)

	asObject := decodePayload(raw, true)
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, asObject)

	asString := decodePayload(raw, false)
	assert.Equal(t, `{"x":1}`, asString)
}

func TestDecodePayloadEmpty(t *testing.T) {
	assert.Nil(t, decodePayload(nil, true))
}

func TestEncodeFrame(t *testing.T) {
	raw, err := encodeFrame("client-foo", map[string]string{"a": "b"}, "private-x")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "client-foo", decoded["event"])
	assert.Equal(t, "private-x", decoded["channel"])
	assert.Equal(t, map[string]interface{}{"a": "b"}, decoded["data"])
}

func TestDecodeDataInto(t *testing.T) {
	raw := json.RawMessage(`"{\"socket_id\":\"abc\",\"activity_timeout\":120}"`)
	var payload connectionEstablishedPayload
	require.NoError(t, decodeDataInto(raw, &payload))
	assert.Equal(t, "abc", payload.SocketID)
	assert.Equal(t, 120, payload.ActivityTimeout)
}
