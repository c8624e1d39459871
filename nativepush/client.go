// Package nativepush is the external collaborator spec §1/§6 describes: a
// simple retrying HTTP client that registers a device token with the
// hosted service's push gateway and subscribes it to named "interests", so
// the service can deliver notifications while the WebSocket connection
// (package pusher) is not connected. It has no dependency on package
// pusher and is not required to use the real-time client.
package nativepush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// PlatformType identifies the device platform for registration.
type PlatformType string

const (
	PlatformIOS     PlatformType = "apns"
	PlatformAndroid PlatformType = "fcm"
)

const defaultBaseURL = "https://push.pusher.com"

// Client is the HTTP client for the native-push gateway described in
// spec §6: POST /client_api/v1/clients registers a device, and
// POST|DELETE /client_api/v1/clients/<id>/interests/<interest> manages its
// interest subscriptions.
type Client struct {
	AppKey  string
	BaseURL string

	httpClient *retryablehttp.Client
}

// New builds a Client for appKey against the default push gateway.
func New(appKey string) *Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Client{
		AppKey:     appKey,
		BaseURL:    defaultBaseURL,
		httpClient: client,
	}
}

type registerRequest struct {
	AppKey       string `json:"app_key"`
	PlatformType string `json:"platform_type"`
	Token        string `json:"token"`
}

type registerResponse struct {
	ID string `json:"id"`
}

// Register registers token with the gateway for the given platform and
// returns the gateway-assigned client id used for subsequent interest
// requests.
func (c *Client) Register(ctx context.Context, platform PlatformType, token string) (string, error) {
	body, err := json.Marshal(registerRequest{AppKey: c.AppKey, PlatformType: string(platform), Token: token})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, c.BaseURL+"/client_api/v1/clients", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("nativepush: register failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed registerResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("nativepush: decoding register response: %w", err)
	}
	return parsed.ID, nil
}

type interestRequest struct {
	AppKey string `json:"app_key"`
}

// SubscribeInterest subscribes deviceID to interest.
func (c *Client) SubscribeInterest(ctx context.Context, deviceID, interest string) error {
	return c.interestRequest(ctx, http.MethodPost, deviceID, interest)
}

// UnsubscribeInterest unsubscribes deviceID from interest.
func (c *Client) UnsubscribeInterest(ctx context.Context, deviceID, interest string) error {
	return c.interestRequest(ctx, http.MethodDelete, deviceID, interest)
}

func (c *Client) interestRequest(ctx context.Context, method, deviceID, interest string) error {
	body, err := json.Marshal(interestRequest{AppKey: c.AppKey})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/client_api/v1/clients/%s/interests/%s", c.BaseURL, deviceID, interest)

	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("nativepush: %s interest %q failed with status %d: %s", method, interest, resp.StatusCode, respBody)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
