package client

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velluxe/storefront-core/types"
)

func TestFastHTTPTransportRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "token u1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"o1"}`))
	}))
	defer server.Close()

	transport := NewFastHTTPTransport(5 * time.Second)

	resp, err := transport.RoundTrip(context.Background(), &TransportRequest{
		Method:  "POST",
		URL:     server.URL + "/orders",
		Headers: map[string]string{"Authorization": "token u1"},
		Body:    []byte(`{}`),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, []byte(`{"_id":"o1"}`), resp.Body)
}

func TestFastHTTPTransportGzipBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`[{"_id":"p1"}]`))
		_ = gz.Close()
	}))
	defer server.Close()

	transport := NewFastHTTPTransport(5 * time.Second)

	resp, err := transport.RoundTrip(context.Background(), &TransportRequest{
		Method:  "GET",
		URL:     server.URL + "/products",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"_id":"p1"}]`), resp.Body)
}

func TestFastHTTPTransportContextExpiry(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	transport := NewFastHTTPTransport(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := transport.RoundTrip(ctx, &TransportRequest{
		Method:  "GET",
		URL:     server.URL + "/products",
		Timeout: 5 * time.Second,
	})
	require.ErrorIs(t, err, types.ErrClientTimeout)
	assert.Less(t, time.Since(start), time.Second)

	// The abandoned call still holds the pooled request and response;
	// give it a moment to settle so the race detector sees the handoff.
	time.Sleep(100 * time.Millisecond)
}
