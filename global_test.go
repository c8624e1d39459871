package pusher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalChannelDispatch(t *testing.T) {
	g := newGlobalChannel()

	var specific []string
	var wildcard []string
	g.Bind("pusher_internal:subscription_succeeded", func(channel, event string, data interface{}) {
		specific = append(specific, channel)
	})
	g.Bind("", func(channel, event string, data interface{}) {
		wildcard = append(wildcard, event)
	})

	g.fire("chat", "pusher_internal:subscription_succeeded", nil)
	g.fire("chat", "some-other-event", nil)

	require.Len(t, specific, 1)
	assert.Equal(t, "chat", specific[0])
	assert.Equal(t, []string{"pusher_internal:subscription_succeeded", "some-other-event"}, wildcard)
}

func TestGlobalChannelUnbind(t *testing.T) {
	g := newGlobalChannel()
	var calls int
	id := g.Bind("foo", func(string, string, interface{}) { calls++ })

	g.fire("c", "foo", nil)
	g.Unbind(id)
	g.fire("c", "foo", nil)

	assert.Equal(t, 1, calls)
}
