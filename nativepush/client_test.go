package nativepush

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	c := New("app-key")
	c.BaseURL = server.URL
	c.httpClient.RetryMax = 0
	return c, server.Close
}

func TestRegister(t *testing.T) {
	var gotPath string
	var gotBody registerRequest
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"device-1"}`))
	})
	defer closeFn()

	id, err := c.Register(context.Background(), PlatformIOS, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "device-1", id)
	assert.Equal(t, "/client_api/v1/clients", gotPath)
	assert.Equal(t, "app-key", gotBody.AppKey)
	assert.Equal(t, "apns", gotBody.PlatformType)
	assert.Equal(t, "tok-abc", gotBody.Token)
}

func TestRegisterNon2xx(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	})
	defer closeFn()

	_, err := c.Register(context.Background(), PlatformAndroid, "tok")
	assert.Error(t, err)
}

func TestSubscribeInterest(t *testing.T) {
	var gotMethod, gotPath string
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	err := c.SubscribeInterest(context.Background(), "device-1", "news")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/client_api/v1/clients/device-1/interests/news", gotPath)
}

func TestUnsubscribeInterest(t *testing.T) {
	var gotMethod string
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	err := c.UnsubscribeInterest(context.Background(), "device-1", "news")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
}
