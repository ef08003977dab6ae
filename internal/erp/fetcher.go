// Package erp talks to the upstream ERP: a retrying HTTP fetcher, a thin
// client for the list and detail endpoints and a pager that walks the list.
package erp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultRetries     = 6
	DefaultBaseBackoff = 2 * time.Second

	// maxLoggedBody caps how much of a failed response body reaches the log.
	maxLoggedBody = 800
)

// Outcome classifies a single attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEnd
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEnd:
		return "end"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Credentials are attached to every request. Empty values are not sent.
type Credentials struct {
	Username string
	Password string
	APIKey   string
	APIToken string
}

// FetchOptions tune a single Fetch call. Zero values fall back to the
// fetcher defaults.
type FetchOptions struct {
	// Retries is the maximum number of attempts.
	Retries     int
	BaseBackoff time.Duration
	// ListEndpoint turns a 404 into an end-of-pages marker.
	ListEndpoint bool
	// GiveUpOn lists statuses that are returned at once instead of retried,
	// so the caller can react to them (the pager steps down on 504).
	GiveUpOn []int
}

// Response is a successful fetch, or the end marker of a list endpoint.
type Response struct {
	Status   int
	Body     []byte
	End      bool
	Attempts int
}

// FetchError is returned when an attempt was fatal or retries ran out.
type FetchError struct {
	Path     string
	Attempts int
	Status   int // 0 when no HTTP response was received
	Outcome  Outcome
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("erp: GET %s failed after %d attempt(s): status %d", e.Path, e.Attempts, e.Status)
	}
	return fmt.Sprintf("erp: GET %s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by a *FetchError, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// Fetcher performs GET requests with linear backoff: the wait before attempt
// n+1 is BaseBackoff × n.
type Fetcher struct {
	client    *http.Client
	creds     Credentials
	userAgent string
	defaults  FetchOptions
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewFetcher(client *http.Client, creds Credentials, defaults FetchOptions) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if defaults.Retries <= 0 {
		defaults.Retries = DefaultRetries
	}
	if defaults.BaseBackoff <= 0 {
		defaults.BaseBackoff = DefaultBaseBackoff
	}
	return &Fetcher{
		client:    client,
		creds:     creds,
		userAgent: "catalogsync/1.0",
		defaults:  defaults,
		sleep:     sleepCtx,
	}
}

// Fetch GETs rawURL until it succeeds, hits a fatal outcome or runs out of
// attempts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	if opts.Retries <= 0 {
		opts.Retries = f.defaults.Retries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = f.defaults.BaseBackoff
	}
	path := logPath(rawURL)

	var last *FetchError
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		resp, outcome, err := f.attempt(ctx, rawURL, opts)
		switch outcome {
		case OutcomeSuccess:
			resp.Attempts = attempt
			return resp, nil
		case OutcomeEnd:
			return &Response{Status: resp.Status, End: true, Attempts: attempt}, nil
		}

		last = &FetchError{Path: path, Attempts: attempt, Outcome: outcome, Err: err}
		if resp != nil {
			last.Status = resp.Status
		}
		evt := log.Warn().
			Str("path", path).
			Int("attempt", attempt).
			Int("max_attempts", opts.Retries).
			Str("outcome", outcome.String())
		if resp != nil {
			evt = evt.Int("status", resp.Status).Str("body", truncate(resp.Body, maxLoggedBody))
		}
		if err != nil {
			evt = evt.Err(err)
		}
		evt.Msg("erp: request attempt failed")

		if outcome == OutcomeFatal {
			return nil, last
		}
		if attempt == opts.Retries {
			break
		}
		if err := f.sleep(ctx, opts.BaseBackoff*time.Duration(attempt)); err != nil {
			last.Outcome = OutcomeFatal
			last.Err = err
			return nil, last
		}
	}
	return nil, last
}

// attempt performs one request and classifies it. The response is returned
// for non-2xx statuses too so the caller can log it.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, opts FetchOptions) (*Response, Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, OutcomeFatal, fmt.Errorf("erp: create request: %w", err)
	}
	f.decorate(req)

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err), err
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	resp := &Response{Status: httpResp.StatusCode, Body: body}
	if readErr != nil {
		return resp, classifyTransport(ctx, readErr), readErr
	}
	return resp, classifyStatus(httpResp.StatusCode, opts), nil
}

func (f *Fetcher) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)
	if f.creds.Username != "" || f.creds.Password != "" {
		req.SetBasicAuth(f.creds.Username, f.creds.Password)
	}
	if f.creds.APIKey != "" {
		req.Header.Set("X-Api-Key", f.creds.APIKey)
	}
	if f.creds.APIToken != "" {
		req.Header.Set("X-Api-Token", f.creds.APIToken)
	}
}

func classifyStatus(status int, opts FetchOptions) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusNotFound && opts.ListEndpoint:
		return OutcomeEnd
	}
	for _, s := range opts.GiveUpOn {
		if s == status {
			return OutcomeFatal
		}
	}
	if status >= 500 {
		return OutcomeRetryable
	}
	return OutcomeFatal
}

// classifyTransport sorts connection-level failures. Cancellation by the
// caller is never retried.
func classifyTransport(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		return OutcomeFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeRetryable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return OutcomeRetryable
	}
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return OutcomeRetryable
	}
	return OutcomeFatal
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logPath strips scheme, host, userinfo and query so nothing secret is logged.
func logPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.EscapedPath()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
