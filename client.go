// Package pusher is a client library for a hosted publish/subscribe
// messaging service reachable over WebSocket. It maintains a long-lived
// connection, subscribes the process to named channels, dispatches inbound
// events to registered handlers, and drives reconnection under partial
// network failure.
package pusher

import "net/http"

// Client is the public façade over the connection state machine, channel
// registry, and global event sink.
type Client struct {
	opts     *Options
	registry *registry
	global   *GlobalChannel
	conn     *connection
}

// New constructs a Client for the given Pusher application key. The
// connection is not established until Connect is called.
func New(appKey string, opts ...Option) *Client {
	options := NewOptions(appKey, opts...)
	return NewWithOptions(options)
}

// NewWithOptions constructs a Client from a fully-built Options value.
func NewWithOptions(options *Options) *Client {
	reg := newRegistry()
	global := newGlobalChannel()
	c := &Client{
		opts:     options,
		registry: reg,
		global:   global,
		conn:     newConnection(options, reg, global),
	}
	if options.Reachability != nil {
		options.Reachability.Start()
	}
	return c
}

// Connect begins connecting to the service. It does not block; observe
// State or OnStateChange for progress.
func (c *Client) Connect() { c.conn.Connect() }

// Disconnect tears down the connection. The channel registry survives;
// a subsequent Connect resubscribes every channel automatically.
func (c *Client) Disconnect() { c.conn.Disconnect() }

// Close permanently stops the client's connection loop and reachability
// monitor. The Client must not be used afterward.
func (c *Client) Close() {
	c.conn.Disconnect()
	c.conn.Stop()
	if c.opts.Reachability != nil {
		c.opts.Reachability.Stop()
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState { return c.conn.State() }

// OnStateChange registers the observer notified with (old, new) on every
// connection state transition.
func (c *Client) OnStateChange(cb func(old, new ConnectionState)) {
	c.conn.onStateChange = cb
}

// OnSubscriptionSucceeded registers the handler invoked with the channel
// name whenever a subscription completes.
func (c *Client) OnSubscriptionSucceeded(cb func(channel string)) {
	c.conn.onSubscriptionSucceeded = cb
}

// OnSubscriptionError registers the handler invoked with
// (channelName, response, responseBody, error) whenever authorization for a
// channel subscription fails.
func (c *Client) OnSubscriptionError(cb func(channel string, resp *http.Response, body []byte, err error)) {
	c.conn.onSubscriptionError = cb
}

// Subscribe subscribes to a public or private channel (determined by
// name's prefix). Repeated calls for the same name return the same Channel
// object and reuse its bindings.
func (c *Client) Subscribe(name string) *Channel {
	ch, _ := c.registry.getOrCreate(name)
	c.conn.Subscribe(ch)
	return ch
}

// SubscribePresence subscribes to a presence-* channel, returning a
// PresenceChannel with membership tracking. onMemberAdded/onMemberRemoved
// may be nil. Subscribing a non-"presence-" name with this method still
// succeeds but will never populate a roster (the channel's derived Type
// controls server-side behavior, not the method used to subscribe).
func (c *Client) SubscribePresence(name string, onMemberAdded, onMemberRemoved func(Member)) *PresenceChannel {
	pc, _ := c.registry.getOrCreatePresence(name, onMemberAdded, onMemberRemoved)
	c.conn.Subscribe(pc.Channel)
	return pc
}

// Unsubscribe unsubscribes from name and removes it from the registry.
func (c *Client) Unsubscribe(name string) { c.conn.Unsubscribe(name) }

// Bind registers a global handler, fired for every inbound event named
// event regardless of channel, and returns a stable binding ID.
func (c *Client) Bind(event string, cb GlobalEventHandler) string {
	return c.global.Bind(event, cb)
}

// BindGlobal registers a handler fired for every inbound event of any name.
func (c *Client) BindGlobal(cb GlobalEventHandler) string {
	return c.global.Bind("", cb)
}

// Unbind removes a global binding previously returned by Bind/BindGlobal.
func (c *Client) Unbind(id string) { c.global.Unbind(id) }

// UnbindAll clears every global binding.
func (c *Client) UnbindAll() { c.global.UnbindAll() }

// Trigger publishes a client event on channel. It returns
// ErrInvalidClientEvent if channel is public or unknown; otherwise the
// event is sent immediately (if the channel is subscribed) or buffered for
// delivery once subscription succeeds.
func (c *Client) Trigger(channel, event string, data interface{}) error {
	done := make(chan error, 1)
	c.conn.Trigger(channel, event, data, done)
	return <-done
}

// Channels returns a snapshot of every currently registered channel.
func (c *Client) Channels() []*Channel { return c.registry.all() }

// Channel returns the registered channel for name, if any.
func (c *Client) Channel(name string) (*Channel, bool) { return c.registry.find(name) }
