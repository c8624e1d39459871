package pusher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// AuthRequest describes a pending private/presence subscription awaiting
// authorization.
type AuthRequest struct {
	SocketID    string
	ChannelName string
	Presence    bool
	// UserData supplies the presence member identity; nil for private
	// channels, and optional for presence (a missing provider defaults
	// user_id to SocketID, per spec §4.2).
	UserData func() (Member, error)
}

// AuthResult is the (auth, channel_data) tuple produced by an AuthStrategy.
type AuthResult struct {
	Auth        string
	ChannelData string
}

// AuthStrategy produces the auth token (and, for presence channels, the
// channel_data) needed to subscribe to a restricted channel.
type AuthStrategy interface {
	Authorize(ctx context.Context, req AuthRequest) (AuthResult, error)
}

// authResponseBody is the shape returned by the auth endpoint and by a
// request-builder's HTTP response, per the auth endpoint contract in §6.
type authResponseBody struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// ---- None ----------------------------------------------------------------

type noAuthStrategy struct{}

// AuthStrategyNone is the default strategy: it always fails for private
// and presence channels (public channels never call Authorize).
func AuthStrategyNone() AuthStrategy { return noAuthStrategy{} }

func (noAuthStrategy) Authorize(ctx context.Context, req AuthRequest) (AuthResult, error) {
	return AuthResult{}, ErrAuthMissing
}

// ---- Endpoint --------------------------------------------------------------

type endpointAuthStrategy struct {
	url     string
	headers http.Header
	client  *retryablehttp.Client
}

// AuthStrategyEndpoint POSTs socket_id and channel_name as an
// application/x-www-form-urlencoded body to authURL and parses a JSON
// {"auth": ..., "channel_data": ...} response.
func AuthStrategyEndpoint(authURL string, headers http.Header) AuthStrategy {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &endpointAuthStrategy{url: authURL, headers: headers, client: client}
}

func (s *endpointAuthStrategy) Authorize(ctx context.Context, req AuthRequest) (AuthResult, error) {
	form := url.Values{
		"socket_id":    {req.SocketID},
		"channel_name": {req.ChannelName},
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range s.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return doAuthRequest(s.client, httpReq)
}

// ---- Request builder --------------------------------------------------------

type requestBuilderAuthStrategy struct {
	build  func(ctx context.Context, socketID, channelName string) (*http.Request, error)
	client *retryablehttp.Client
}

// AuthStrategyRequestBuilder delegates construction of the auth HTTP
// request to a user-supplied function, for auth endpoints that need custom
// headers, signing, or a non-form body. Response parsing is identical to
// AuthStrategyEndpoint.
func AuthStrategyRequestBuilder(build func(ctx context.Context, socketID, channelName string) (*http.Request, error)) AuthStrategy {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &requestBuilderAuthStrategy{build: build, client: client}
}

func (s *requestBuilderAuthStrategy) Authorize(ctx context.Context, req AuthRequest) (AuthResult, error) {
	httpReq, err := s.build(ctx, req.SocketID, req.ChannelName)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}
	retryableReq, err := retryablehttp.FromRequest(httpReq)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}
	return doAuthRequest(s.client, retryableReq)
}

func doAuthRequest(client *retryablehttp.Client, req *retryablehttp.Request) (AuthResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthResult{}, &SubscriptionError{Response: resp, Err: fmt.Errorf("%w: reading body: %v", ErrAuthResponse, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AuthResult{}, &SubscriptionError{Response: resp, Body: body, Err: fmt.Errorf("%w: status %d", ErrAuthResponse, resp.StatusCode)}
	}

	var parsed authResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AuthResult{}, &SubscriptionError{Response: resp, Body: body, Err: fmt.Errorf("%w: %v", ErrAuthResponse, err)}
	}
	return AuthResult{Auth: parsed.Auth, ChannelData: parsed.ChannelData}, nil
}

// ---- Inline secret (HMAC) ---------------------------------------------------

type secretAuthStrategy struct {
	appKey string
	secret string
}

// AuthStrategySecret computes the auth token in-process via
// HMAC-SHA256(secret, "<socket_id>:<channel_name>[:<channel_data>]"),
// matching the server-side algorithm so no network round trip is needed.
func AuthStrategySecret(appKey, secret string) AuthStrategy {
	return &secretAuthStrategy{appKey: appKey, secret: secret}
}

func (s *secretAuthStrategy) Authorize(ctx context.Context, req AuthRequest) (AuthResult, error) {
	signParts := []string{req.SocketID, req.ChannelName}

	var channelData string
	if req.Presence {
		member, err := presenceMember(req)
		if err != nil {
			return AuthResult{}, err
		}
		encoded, err := json.Marshal(member)
		if err != nil {
			return AuthResult{}, fmt.Errorf("%w: encoding channel_data: %v", ErrAuthResponse, err)
		}
		channelData = string(encoded)
		signParts = append(signParts, channelData)
	}

	stringToSign := strings.Join(signParts, ":")
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(stringToSign))
	signature := hex.EncodeToString(mac.Sum(nil))

	auth := strings.ToLower(fmt.Sprintf("%s:%s", s.appKey, signature))
	return AuthResult{Auth: auth, ChannelData: channelData}, nil
}

// presenceMember resolves the {user_id, user_info} pair signed into
// presence channel_data, defaulting user_id to the socket_id when no
// UserData provider is configured (spec §4.2).
func presenceMember(req AuthRequest) (Member, error) {
	if req.UserData == nil {
		return Member{UserID: req.SocketID}, nil
	}
	return req.UserData()
}
