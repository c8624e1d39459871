package nativepush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxWaitsForDeviceID(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	o := NewOutbox(c, 0)
	o.Enqueue("news", Subscribe)
	o.Drain(context.Background())
	assert.Equal(t, 1, o.Len(), "nothing should send before a device id is known")

	o.SetDeviceID("device-1")
	o.Drain(context.Background())
	assert.Equal(t, 0, o.Len())
}

func TestOutboxSendsInOrderNoDedup(t *testing.T) {
	var calls []string
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	o := NewOutbox(c, 0)
	o.SetDeviceID("device-1")
	o.Enqueue("news", Subscribe)
	o.Enqueue("news", Unsubscribe)
	o.Drain(context.Background())

	require.Len(t, calls, 2, "no deduplication: both the subscribe and unsubscribe are sent")
	assert.Equal(t, "POST /client_api/v1/clients/device-1/interests/news", calls[0])
	assert.Equal(t, "DELETE /client_api/v1/clients/device-1/interests/news", calls[1])
}

func TestOutboxHeadReinsertionOnFailure(t *testing.T) {
	var attempts int
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.URL.Path == "/client_api/v1/clients/device-1/interests/flaky" && attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	o := NewOutbox(c, 0)
	o.SetDeviceID("device-1")
	o.Enqueue("flaky", Subscribe)
	o.Enqueue("second", Subscribe)

	var failures int
	o.OnFailure(func(interest string, change Change, err error) { failures++ })

	o.Drain(context.Background())

	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, o.Len(), "the retried head item and the second item both eventually drain")
	assert.Equal(t, 3, attempts, "flaky fails once, succeeds on retry, then second sends")
}

func TestOutboxPausesAtFailureCeiling(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	o := NewOutbox(c, 3)
	o.SetDeviceID("device-1")
	o.Enqueue("stuck", Subscribe)

	var lastErr error
	o.OnFailure(func(interest string, change Change, err error) { lastErr = err })

	o.Drain(context.Background())

	assert.True(t, o.Paused())
	assert.Equal(t, 1, o.Len(), "the failed item stays queued at the head, not dropped")
	assert.Error(t, lastErr)

	o.Resume()
	assert.False(t, o.Paused())
}

func TestOutboxSendDispatchesByChange(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	o := NewOutbox(c, 0)
	err := o.send(context.Background(), "device-1", item{interest: "x", change: Subscribe})
	require.NoError(t, err)
	err = o.send(context.Background(), "device-1", item{interest: "x", change: Unsubscribe})
	require.NoError(t, err)
}

func TestOutboxDrainStopsOnContextlessTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // closed immediately: every request now fails at the transport

	c := New("app-key")
	c.BaseURL = server.URL
	c.httpClient.RetryMax = 0

	o := NewOutbox(c, 1)
	o.SetDeviceID("device-1")
	o.Enqueue("x", Subscribe)

	var gotErr error
	o.OnFailure(func(interest string, change Change, err error) { gotErr = err })
	o.Drain(context.Background())

	assert.True(t, o.Paused())
	require.Error(t, gotErr)
}
