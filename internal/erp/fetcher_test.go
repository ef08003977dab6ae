package erp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFetcher records requested sleeps instead of waiting.
func newTestFetcher(creds Credentials) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(&http.Client{Timeout: 2 * time.Second}, creds, FetchOptions{Retries: 4, BaseBackoff: 100 * time.Millisecond})
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return f, &slept
}

// statusSequence replies with the given statuses in order, then 200 "[]".
func statusSequence(calls *int32, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(calls, 1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":"upstream says no"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}
}

// ── Tests: Fetch ──────────────────────────────────────────────────────────────

func TestFetch_SendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sync", user)
		assert.Equal(t, "s3cret", pass)
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "tok-1", r.Header.Get("X-Api-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(Credentials{Username: "sync", Password: "s3cret", APIKey: "key-1", APIToken: "tok-1"})
	resp, err := f.Fetch(context.Background(), srv.URL+"/products/1", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestFetch_RetriesServerErrorsWithLinearBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 503, 500))
	defer srv.Close()

	f, slept := newTestFetcher(Credentials{})
	resp, err := f.Fetch(context.Background(), srv.URL, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestFetch_ClientErrorIsFatal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 400))
	defer srv.Close()

	f, slept := newTestFetcher(Credentials{})
	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 400, fe.Status)
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, OutcomeFatal, fe.Outcome)
	assert.Empty(t, *slept)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetch_NotFoundOnListIsEnd(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 404, 404))
	defer srv.Close()

	f, _ := newTestFetcher(Credentials{})
	resp, err := f.Fetch(context.Background(), srv.URL, FetchOptions{ListEndpoint: true})
	require.NoError(t, err)
	assert.True(t, resp.End)
	assert.Nil(t, resp.Body)

	_, err = f.Fetch(context.Background(), srv.URL, FetchOptions{})
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 502, 502, 502, 502, 502))
	defer srv.Close()

	f, slept := newTestFetcher(Credentials{})
	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{Retries: 3})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, 502, fe.Status)
	assert.Equal(t, OutcomeRetryable, fe.Outcome)
	assert.Len(t, *slept, 2)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetch_GiveUpOnStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 504, 504))
	defer srv.Close()

	f, _ := newTestFetcher(Credentials{})
	_, err := f.Fetch(context.Background(), srv.URL, FetchOptions{GiveUpOn: []int{504}})
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(statusSequence(&calls, 500, 500, 500))
	defer srv.Close()

	f := NewFetcher(nil, Credentials{}, FetchOptions{Retries: 3, BaseBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL, FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

// ── Tests: classification ─────────────────────────────────────────────────────

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, OutcomeRetryable, classifyTransport(ctx, timeoutErr{}))
	assert.Equal(t, OutcomeRetryable, classifyTransport(ctx, fmt.Errorf("read: %w", syscall.ECONNRESET)))
	assert.Equal(t, OutcomeRetryable, classifyTransport(ctx, fmt.Errorf("write: %w", syscall.ECONNABORTED)))
	assert.Equal(t, OutcomeRetryable, classifyTransport(ctx, &net.DNSError{Err: "server misbehaving", IsTemporary: true}))
	assert.Equal(t, OutcomeFatal, classifyTransport(ctx, &net.DNSError{Err: "no such host", IsNotFound: true}))
	assert.Equal(t, OutcomeFatal, classifyTransport(ctx, errors.New("unsupported protocol scheme")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, OutcomeFatal, classifyTransport(cancelled, timeoutErr{}))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, classifyStatus(204, FetchOptions{}))
	assert.Equal(t, OutcomeEnd, classifyStatus(404, FetchOptions{ListEndpoint: true}))
	assert.Equal(t, OutcomeFatal, classifyStatus(404, FetchOptions{}))
	assert.Equal(t, OutcomeFatal, classifyStatus(401, FetchOptions{}))
	assert.Equal(t, OutcomeRetryable, classifyStatus(504, FetchOptions{}))
	assert.Equal(t, OutcomeFatal, classifyStatus(504, FetchOptions{GiveUpOn: []int{504}}))
}

func TestLogPathHidesSecrets(t *testing.T) {
	assert.Equal(t, "/api/products", logPath("https://user:pw@erp.example.com/api/products?apiKey=abc&page=2"))
	assert.Equal(t, "x", truncate([]byte("xyz"), 1))
	assert.Equal(t, "xyz", truncate([]byte("xyz"), 800))
}
