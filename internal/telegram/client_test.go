package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *Client {
	return NewClient(ClientConfig{
		UserAgent: "tchan-test",
		Timeout:   time.Second,
		Retries:   retries,
		Backoff:   time.Millisecond,
	}, nil)
}

func TestClient_Fetch(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><link rel="prev" href="/s/chan?before=9"></head><body></body></html>`))
	}))
	defer srv.Close()

	doc, err := testClient(0).Fetch(context.Background(), srv.URL+"/s/chan")
	require.NoError(t, err)

	href, ok := doc.Find(`link[rel="prev"]`).Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/s/chan?before=9", href)
	assert.Equal(t, "tchan-test", gotAgent)
}

func TestClient_Fetch_RetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`<html><body><p>ok</p></body></html>`))
		}
	}))
	defer srv.Close()

	doc, err := testClient(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Find("p").Text())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(2).Fetch(context.Background(), srv.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
	assert.Equal(t, srv.URL, netErr.URL)
	// one attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(3).Fetch(context.Background(), srv.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	assert.False(t, netErr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Timeout: 50 * time.Millisecond, Backoff: time.Millisecond}, nil)
	_, err := client.Fetch(context.Background(), srv.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
	assert.True(t, netErr.Temporary())
}

func TestClient_Fetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(5).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, retryAfter("-1"))
}
