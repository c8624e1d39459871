package pusher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionState is the finite set of states the connection state machine
// moves through, per spec §3/§4.1.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateReconnecting
	StateReconnectingWhenNetworkBecomesReachable
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateReconnecting:
		return "reconnecting"
	case StateReconnectingWhenNetworkBecomesReachable:
		return "reconnecting_when_network_becomes_reachable"
	default:
		return "disconnected"
	}
}

// wsConn is the open/send/receive/close abstraction spec §1 assumes of its
// WebSocket library. *websocket.Conn satisfies it directly.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, urlStr string) (wsConn, error)

func defaultDial(ctx context.Context, urlStr string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func buildURL(opts *Options) string {
	scheme := "ws"
	if opts.Encrypted {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%s/app/%s?protocol=%s&client=%s&version=%s",
		scheme, opts.Host, opts.Port, url.QueryEscape(opts.AppKey),
		protocolVersion, url.QueryEscape(opts.ClientName), url.QueryEscape(opts.ClientVersion))
}

// command is one unit of work serialized on the connection's single loop
// goroutine: the "executor" spec §5 requires all Connection/registry/
// binding mutation to run on.
type command func()

// connection drives the protocol state machine: it owns the single
// in-flight WebSocket, dispatches inbound events, and feeds outbound
// control/client messages to the socket.
type connection struct {
	opts     *Options
	registry *registry
	global   *GlobalChannel
	dial     dialFunc

	cmds     chan command
	stopCh   chan struct{}
	stopOnce sync.Once

	mu                 sync.Mutex
	state              ConnectionState
	socketID           string
	attempt            int
	reconnectTimer     *time.Timer
	explicitDisconnect bool

	wsMu sync.Mutex
	ws   wsConn

	onStateChange           func(old, new ConnectionState)
	onSubscriptionSucceeded func(channel string)
	onSubscriptionError     func(channel string, resp *http.Response, body []byte, err error)
}

func newConnection(opts *Options, reg *registry, global *GlobalChannel) *connection {
	c := &connection{
		opts:     opts,
		registry: reg,
		global:   global,
		dial:     defaultDial,
		cmds:     make(chan command, 64),
		stopCh:   make(chan struct{}),
		state:    StateDisconnected,
	}
	go c.loop()
	return c
}

func (c *connection) loop() {
	for {
		select {
		case cmd := <-c.cmds:
			cmd()
		case <-c.stopCh:
			return
		}
	}
}

func (c *connection) post(cmd command) {
	select {
	case c.cmds <- cmd:
	case <-c.stopCh:
	}
}

// State returns the current connection state. Safe from any goroutine.
func (c *connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connection) setState(next ConnectionState) {
	c.mu.Lock()
	old := c.state
	c.state = next
	c.mu.Unlock()
	if old != next && c.onStateChange != nil {
		c.onStateChange(old, next)
	}
}

func (c *connection) socketIDSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// Connect queues a connection attempt. Disconnected -> Connecting.
func (c *connection) Connect() {
	c.post(func() { c.doConnect() })
}

func (c *connection) doConnect() {
	switch c.State() {
	case StateConnecting, StateConnected:
		return
	}
	c.mu.Lock()
	c.explicitDisconnect = false
	c.mu.Unlock()
	c.setState(StateConnecting)
	go c.dialAndListen()
}

func (c *connection) dialAndListen() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ws, err := c.dial(ctx, buildURL(c.opts))
	if err != nil {
		log().Warnw("pusher: dial failed", "error", err)
		c.post(func() { c.handleClose(err, -1) })
		return
	}

	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()

	go c.readLoop(ws)
}

func (c *connection) readLoop(ws wsConn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			code := -1
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
			}
			c.post(func() { c.handleClose(err, code) })
			return
		}
		frame := append([]byte(nil), raw...)
		c.post(func() { c.handleFrame(frame) })
	}
}

// Disconnect explicitly tears down the connection: Connected -> Disconnecting,
// and (once the socket reports closed) Disconnecting -> Disconnected. The
// reconnect timer is cancelled and every channel's subscribed flag cleared,
// but the registry itself is left intact so a later Connect resubscribes.
func (c *connection) Disconnect() {
	c.post(func() { c.doDisconnect() })
}

func (c *connection) doDisconnect() {
	c.mu.Lock()
	c.explicitDisconnect = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	if c.State() == StateDisconnected {
		return
	}

	c.setState(StateDisconnecting)
	for _, ch := range c.registry.all() {
		ch.setSubscribed(false)
	}
	c.closeSocket(websocket.CloseNormalClosure)
}

func (c *connection) closeSocket(code int) {
	c.wsMu.Lock()
	ws := c.ws
	c.ws = nil
	c.wsMu.Unlock()
	if ws == nil {
		// Nothing to close (e.g. disconnect called while still dialing);
		// finish the transition directly.
		c.setState(StateDisconnected)
		return
	}
	if gw, ok := ws.(*websocket.Conn); ok {
		_ = gw.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	}
	_ = ws.Close()
}

// Stop tears the connection down permanently; the connection object must
// not be used afterward.
func (c *connection) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *connection) handleClose(err error, code int) {
	wasExplicit := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.explicitDisconnect
	}()

	for _, ch := range c.registry.all() {
		ch.setSubscribed(false)
	}

	if wasExplicit {
		c.mu.Lock()
		c.explicitDisconnect = false
		c.mu.Unlock()
		c.setState(StateDisconnected)
		return
	}

	if code == websocket.CloseNormalClosure {
		c.setState(StateDisconnected)
		return
	}

	log().Warnw("pusher: transport closed unexpectedly", "error", err, "code", code)

	if !c.opts.AutoReconnect {
		c.setState(StateDisconnected)
		return
	}

	c.mu.Lock()
	attempt := c.attempt
	max := c.opts.MaxReconnectAttempts
	c.mu.Unlock()
	if max != nil && attempt >= *max {
		log().Errorw("pusher: reconnect attempts exhausted", "attempts", attempt)
		c.setState(StateDisconnected)
		return
	}

	if c.opts.Reachability != nil && !c.opts.Reachability.IsReachable() {
		c.setState(StateReconnectingWhenNetworkBecomesReachable)
		c.opts.Reachability.OnReachable(func() {
			c.post(func() {
				if c.State() != StateReconnectingWhenNetworkBecomesReachable {
					return
				}
				c.setState(StateReconnecting)
				c.scheduleReconnect()
			})
		})
		return
	}

	c.setState(StateReconnecting)
	c.scheduleReconnect()
}

// scheduleReconnect arms the single-shot backoff timer for the nth
// consecutive attempt: wait = min(n², cap) seconds, n the zero-based
// counter reset to 0 on the last successful connection_established.
func (c *connection) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.attempt
	wait := reconnectWaitSeconds(n, c.opts.MaxReconnectGapSeconds)
	c.attempt = n + 1

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(time.Duration(wait*float64(time.Second)), func() {
		c.post(func() {
			c.setState(StateConnecting)
			go c.dialAndListen()
		})
	})
}

// reconnectWaitSeconds is the pure n² backoff formula from spec §4.1/§8
// invariant 4: the wait before the nth consecutive attempt (zero-based) is
// n² seconds, capped by capSeconds when set.
func reconnectWaitSeconds(n int, capSeconds *float64) float64 {
	wait := float64(n * n)
	if capSeconds != nil && wait > *capSeconds {
		wait = *capSeconds
	}
	return wait
}

func (c *connection) handleFrame(raw []byte) {
	event, err := decodeFrame(raw)
	if err != nil {
		log().Debugw("pusher: dropping undecodable frame", "error", err)
		return
	}

	switch event.Name {
	case EventConnectionEstablished:
		c.handleConnectionEstablished(event)
	case EventSubscriptionSucceeded:
		c.handleSubscriptionSucceeded(event)
	case EventMemberAdded:
		c.handleMemberAdded(event)
	case EventMemberRemoved:
		c.handleMemberRemoved(event)
	case EventError:
		c.handleProtocolError(event)
	default:
		data := decodePayload(event.Data, c.opts.AttemptToReturnJSONObject)
		c.global.fire(event.Channel, event.Name, data)
		if event.Channel != "" {
			if ch, ok := c.registry.find(event.Channel); ok {
				ch.fire(event.Name, data)
			}
		}
	}
}

// decodeDataInto unwraps the server's double-encoded data string (a JSON
// string containing JSON) into dest. Falls back to decoding raw directly,
// in case a caller ever hands it an already-decoded payload.
func decodeDataInto(raw json.RawMessage, dest interface{}) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return json.Unmarshal(raw, dest)
	}
	return json.Unmarshal([]byte(s), dest)
}

func (c *connection) handleConnectionEstablished(event Event) {
	var payload connectionEstablishedPayload
	if err := decodeDataInto(event.Data, &payload); err != nil {
		// Open question (§9): the attempt counter is deliberately NOT reset
		// here when socket_id parsing fails, preserving the source's
		// ambiguous behavior rather than silently fixing it.
		log().Errorw("pusher: failed to parse connection_established", "error", err)
		return
	}

	c.mu.Lock()
	c.socketID = payload.SocketID
	c.attempt = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	c.setState(StateConnected)
	c.resubscribeAll()
}

func (c *connection) resubscribeAll() {
	for _, ch := range c.registry.all() {
		if !ch.IsSubscribed() {
			c.subscribeChannel(ch)
		}
	}
}

// Subscribe requests that ch be (re)subscribed if the connection is up and
// it is not already subscribed. If the connection is not yet established,
// the channel remains in the registry with subscribed=false and is picked
// up by resubscribeAll on the next connection_established.
func (c *connection) Subscribe(ch *Channel) {
	c.post(func() {
		if c.State() == StateConnected && !ch.IsSubscribed() {
			c.subscribeChannel(ch)
		}
	})
}

func (c *connection) subscribeChannel(ch *Channel) {
	if ch.Type() == ChannelPublic {
		c.sendSubscribe(ch.Name(), "", "")
		return
	}

	socketID := c.socketIDSnapshot()
	req := AuthRequest{
		SocketID:    socketID,
		ChannelName: ch.Name(),
		Presence:    ch.Type() == ChannelPresence,
	}
	if ch.Type() == ChannelPresence {
		req.UserData = c.opts.UserDataProvider
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result, err := c.opts.Auth.Authorize(ctx, req)
		c.post(func() {
			if err != nil {
				c.handleAuthError(ch.Name(), err)
				return
			}
			if ch.Type() == ChannelPresence && result.ChannelData != "" {
				var cd struct {
					UserID string `json:"user_id"`
				}
				if err := json.Unmarshal([]byte(result.ChannelData), &cd); err == nil && cd.UserID != "" {
					(&PresenceChannel{Channel: ch}).setMyID(cd.UserID)
				}
			}
			c.sendSubscribe(ch.Name(), result.Auth, result.ChannelData)
		})
	}()
}

func (c *connection) handleAuthError(channelName string, err error) {
	subErr, ok := err.(*SubscriptionError)
	if !ok {
		subErr = &SubscriptionError{Err: err}
	}
	subErr.Channel = channelName

	if c.onSubscriptionError != nil {
		c.onSubscriptionError(channelName, subErr.Response, subErr.Body, subErr.Err)
	}

	// Synthesized so user code has a single delivery path (§7): both the
	// error handler above and this event fire for the same failure.
	c.global.fire(channelName, EventSubscriptionError, subErr)
	if ch, ok := c.registry.find(channelName); ok {
		ch.fire(EventSubscriptionError, subErr)
	}
}

func (c *connection) sendSubscribe(name, auth, channelData string) {
	data := map[string]string{"channel": name}
	if auth != "" {
		data["auth"] = auth
	}
	if channelData != "" {
		data["channel_data"] = channelData
	}
	frame, err := json.Marshal(map[string]interface{}{"event": EventSubscribe, "data": data})
	if err != nil {
		log().Errorw("pusher: failed to encode subscribe frame", "channel", name, "error", err)
		return
	}
	if err := c.writeRaw(frame); err != nil {
		log().Errorw("pusher: failed to send subscribe frame", "channel", name, "error", err)
	}
}

// Unsubscribe sends pusher:unsubscribe (if connected) and removes the
// channel from the registry.
func (c *connection) Unsubscribe(name string) {
	c.post(func() {
		if _, ok := c.registry.find(name); !ok {
			return
		}
		if c.State() == StateConnected {
			frame, _ := json.Marshal(map[string]interface{}{"event": EventUnsubscribe, "data": map[string]string{"channel": name}})
			_ = c.writeRaw(frame)
		}
		c.registry.remove(name)
	})
}

// Trigger publishes a client event, per §4.1/§4.3: only valid on a
// subscribed private or presence channel; buffered (LIFO) if the channel
// exists but is not yet subscribed.
func (c *connection) Trigger(channelName, event string, data interface{}, done chan<- error) {
	c.post(func() {
		ch, ok := c.registry.find(channelName)
		if !ok || ch.Type() == ChannelPublic {
			log().Errorw("pusher: invalid client event", "channel", channelName, "event", event)
			done <- fmt.Errorf("%w: channel %q", ErrInvalidClientEvent, channelName)
			return
		}
		if !ch.IsSubscribed() {
			ch.queueClientEvent(event, data)
			done <- nil
			return
		}
		c.sendClientEventRaw(channelName, event, data)
		done <- nil
	})
}

func (c *connection) sendClientEventRaw(channel, event string, data interface{}) {
	frame, err := encodeFrame(event, data, channel)
	if err != nil {
		log().Errorw("pusher: failed to encode client event", "channel", channel, "event", event, "error", err)
		return
	}
	if err := c.writeRaw(frame); err != nil {
		log().Errorw("pusher: failed to send client event", "channel", channel, "event", event, "error", err)
	}
}

func (c *connection) writeRaw(frame []byte) error {
	c.wsMu.Lock()
	ws := c.ws
	c.wsMu.Unlock()
	if ws == nil {
		return ErrTransportClosed
	}
	return ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *connection) handleSubscriptionSucceeded(event Event) {
	ch, ok := c.registry.find(event.Channel)
	if !ok {
		return
	}
	ch.setSubscribed(true)

	if ch.Type() == ChannelPresence {
		var payload subscriptionSucceededPayload
		if err := decodeDataInto(event.Data, &payload); err == nil && payload.Presence != nil {
			members, err := membersFromHash(payload.Presence.Hash)
			if err == nil {
				(&PresenceChannel{Channel: ch}).seedRoster(members)
			}
		}
	}

	data := decodePayload(event.Data, c.opts.AttemptToReturnJSONObject)
	c.global.fire(event.Channel, EventSubscriptionSucceeded, data)
	ch.fire(EventSubscriptionSucceeded, data)
	if c.onSubscriptionSucceeded != nil {
		c.onSubscriptionSucceeded(event.Channel)
	}

	for _, ce := range ch.drainClientEvents() {
		c.sendClientEventRaw(event.Channel, ce.name, ce.data)
	}
}

func (c *connection) handleMemberAdded(event Event) {
	ch, ok := c.registry.find(event.Channel)
	if !ok || ch.Type() != ChannelPresence {
		return
	}
	var inner json.RawMessage
	if err := decodeDataInto(event.Data, &inner); err != nil {
		log().Debugw("pusher: dropping undecodable member_added", "channel", event.Channel, "error", err)
		return
	}
	member, err := memberFromPayload(inner)
	if err != nil {
		log().Debugw("pusher: dropping undecodable member_added", "channel", event.Channel, "error", err)
		return
	}
	(&PresenceChannel{Channel: ch}).addMember(member)
}

func (c *connection) handleMemberRemoved(event Event) {
	ch, ok := c.registry.find(event.Channel)
	if !ok || ch.Type() != ChannelPresence {
		return
	}
	var payload memberPayload
	if err := decodeDataInto(event.Data, &payload); err != nil {
		log().Debugw("pusher: dropping undecodable member_removed", "channel", event.Channel, "error", err)
		return
	}
	(&PresenceChannel{Channel: ch}).removeMember(payload.UserID)
}

func (c *connection) handleProtocolError(event Event) {
	var payload pusherErrorPayload
	_ = decodeDataInto(event.Data, &payload)
	log().Errorw("pusher: protocol error", "message", payload.Message, "code", payload.Code)
	c.global.fire(event.Channel, EventError, payload)
}
