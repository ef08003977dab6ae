package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalogsync/internal/extract"
)

// ClientConfig describes where the ERP lives and how to authenticate.
type ClientConfig struct {
	BaseURL     string
	ListPath    string
	DetailPath  string // "{id}" is replaced by the escaped identifier
	Credentials Credentials
	Timeout     time.Duration
	Retries     int
	BaseBackoff time.Duration
}

// Client wraps a Fetcher with the ERP's list and detail endpoints.
type Client struct {
	fetcher    *Fetcher
	baseURL    string
	listPath   string
	detailPath string
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("erp: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("erp: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	listPath := cfg.ListPath
	if listPath == "" {
		listPath = "/products"
	}
	detailPath := cfg.DetailPath
	if detailPath == "" {
		detailPath = "/products/{id}"
	}
	f := NewFetcher(&http.Client{Timeout: timeout}, cfg.Credentials, FetchOptions{
		Retries:     cfg.Retries,
		BaseBackoff: cfg.BaseBackoff,
	})
	return &Client{fetcher: f, baseURL: base, listPath: listPath, detailPath: detailPath}, nil
}

func (c *Client) listURL(page, size int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(size))
	return c.baseURL + c.listPath + "?" + q.Encode()
}

// ListPage fetches one page of brief records. A 504 is handed back without
// retrying so the pager can step down the page size.
func (c *Client) ListPage(ctx context.Context, page, size int) (*Response, error) {
	return c.fetcher.Fetch(ctx, c.listURL(page, size), FetchOptions{
		ListEndpoint: true,
		GiveUpOn:     []int{http.StatusGatewayTimeout},
	})
}

// Detail fetches the full record for one identifier.
func (c *Client) Detail(ctx context.Context, id string) (extract.Record, error) {
	u := c.baseURL + strings.ReplaceAll(c.detailPath, "{id}", url.PathEscape(id))
	resp, err := c.fetcher.Fetch(ctx, u, FetchOptions{})
	if err != nil {
		return nil, err
	}
	rec, err := extract.ParseRecord(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erp: detail %s: %w", id, err)
	}
	// some ERPs wrap the record: {"item": {...}}
	if inner, ok := rec.Object("item"); ok && len(rec) == 1 {
		return inner, nil
	}
	return rec, nil
}

// Ping performs a single unretried request against the first list page.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetcher.Fetch(ctx, c.listURL(1, 1), FetchOptions{Retries: 1, ListEndpoint: true})
	return err
}
