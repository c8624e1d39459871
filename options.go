package pusher

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

const (
	defaultHost          = "ws.pusherapp.com"
	defaultPort          = "443"
	defaultClientName    = "pusher-go"
	defaultClientVersion = "1.0.0"
	protocolVersion       = "7"
)

// Options is the immutable connection configuration for a Client. Build one
// with NewOptions and the With* functional options; Options is never
// mutated after the Client is constructed (the auth strategy in particular
// must be safe for concurrent use since it is invoked from goroutines
// spawned per subscribe).
type Options struct {
	AppKey   string
	Host     string
	Port     string
	Encrypted bool

	Auth AuthStrategy

	AutoReconnect             bool
	AttemptToReturnJSONObject bool
	MaxReconnectAttempts      *int
	MaxReconnectGapSeconds    *float64

	ClientName    string
	ClientVersion string

	// UserDataProvider supplies the {user_id, user_info} pair used for
	// presence channel_data. When nil, user_id defaults to the current
	// socket_id, per spec.
	UserDataProvider func() (Member, error)

	Reachability ReachabilityMonitor
}

// Option mutates an Options under construction.
type Option func(*Options)

// NewOptions builds an Options with the package defaults applied, then the
// given Options overrides.
func NewOptions(appKey string, opts ...Option) *Options {
	o := &Options{
		AppKey:                    appKey,
		Host:                      defaultHost,
		Port:                      defaultPort,
		Encrypted:                 true,
		Auth:                      AuthStrategyNone(),
		AutoReconnect:             true,
		AttemptToReturnJSONObject: true,
		ClientName:                defaultClientName,
		ClientVersion:             defaultClientVersion,
		Reachability:              NewReachabilityMonitor(""),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHost overrides the WebSocket host (default "ws.pusherapp.com").
func WithHost(host string) Option { return func(o *Options) { o.Host = host } }

// WithPort overrides the WebSocket port (default "443").
func WithPort(port string) Option { return func(o *Options) { o.Port = port } }

// WithCluster is a convenience for Pusher's clustered hosting: it rewrites
// Host to "ws-<cluster>.pusher.com".
func WithCluster(cluster string) Option {
	return func(o *Options) { o.Host = fmt.Sprintf("ws-%s.pusher.com", cluster) }
}

// WithTLS toggles wss:// (true, the default) vs ws://.
func WithTLS(encrypted bool) Option { return func(o *Options) { o.Encrypted = encrypted } }

// WithAuthStrategy sets the strategy used to authorize private/presence
// channel subscriptions.
func WithAuthStrategy(a AuthStrategy) Option { return func(o *Options) { o.Auth = a } }

// WithAutoReconnect toggles automatic reconnection on unexpected closure.
func WithAutoReconnect(enabled bool) Option { return func(o *Options) { o.AutoReconnect = enabled } }

// WithJSONObjectData toggles whether inbound event data is re-decoded from
// its double-encoded string form into a JSON object before dispatch.
func WithJSONObjectData(enabled bool) Option {
	return func(o *Options) { o.AttemptToReturnJSONObject = enabled }
}

// WithMaxReconnectAttempts caps the reconnect attempt counter; nil (the
// default, via not calling this option) means unlimited attempts.
func WithMaxReconnectAttempts(max int) Option {
	return func(o *Options) { o.MaxReconnectAttempts = &max }
}

// WithMaxReconnectGapSeconds caps the n² backoff wait.
func WithMaxReconnectGapSeconds(capSeconds float64) Option {
	return func(o *Options) { o.MaxReconnectGapSeconds = &capSeconds }
}

// WithUserDataProvider sets the presence user-data callback.
func WithUserDataProvider(f func() (Member, error)) Option {
	return func(o *Options) { o.UserDataProvider = f }
}

// WithReachabilityMonitor overrides the default reachability monitor, e.g.
// to integrate with a platform-specific network-state API.
func WithReachabilityMonitor(m ReachabilityMonitor) Option {
	return func(o *Options) { o.Reachability = m }
}

// WithClientMeta overrides the client/version query-string fields sent at
// connect time.
func WithClientMeta(name, version string) Option {
	return func(o *Options) { o.ClientName, o.ClientVersion = name, version }
}

// envOptions mirrors the subset of Options that makes sense to source from
// the environment (auth strategies, callbacks, and the reachability monitor
// are not expressible this way and must be set with With* options).
type envOptions struct {
	AppKey        string  `env:"PUSHER_APP_KEY"`
	Host          string  `env:"PUSHER_HOST" envDefault:"ws.pusherapp.com"`
	Port          string  `env:"PUSHER_PORT" envDefault:"443"`
	Cluster       string  `env:"PUSHER_CLUSTER"`
	Encrypted     bool    `env:"PUSHER_ENCRYPTED" envDefault:"true"`
	AutoReconnect bool    `env:"PUSHER_AUTO_RECONNECT" envDefault:"true"`
	MaxAttempts   int     `env:"PUSHER_MAX_RECONNECT_ATTEMPTS" envDefault:"0"`
	MaxGapSeconds float64 `env:"PUSHER_MAX_RECONNECT_GAP_SECONDS" envDefault:"0"`
}

// OptionsFromEnv builds an Options by reading PUSHER_* environment
// variables, applying any additional functional options on top (typically
// WithAuthStrategy, since auth strategies cannot be expressed as env vars).
func OptionsFromEnv(opts ...Option) (*Options, error) {
	var e envOptions
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("pusher: parsing environment options: %w", err)
	}
	if e.AppKey == "" {
		return nil, fmt.Errorf("pusher: PUSHER_APP_KEY is required")
	}

	base := []Option{
		WithHost(e.Host),
		WithPort(e.Port),
		WithTLS(e.Encrypted),
		WithAutoReconnect(e.AutoReconnect),
	}
	if e.Cluster != "" {
		base = append(base, WithCluster(e.Cluster))
	}
	if e.MaxAttempts > 0 {
		base = append(base, WithMaxReconnectAttempts(e.MaxAttempts))
	}
	if e.MaxGapSeconds > 0 {
		base = append(base, WithMaxReconnectGapSeconds(e.MaxGapSeconds))
	}

	return NewOptions(e.AppKey, append(base, opts...)...), nil
}
