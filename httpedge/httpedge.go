// Package httpedge provides an edge that fetches a URL held by the upstream
// item and forwards the response downstream.
package httpedge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamesturk/databeakers/pipeline"
)

// Response is the beaker item type produced by Fetch.
type Response struct {
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Body        string    `json:"response_body"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// URLItem is implemented by items that know their own URL. Fetch uses it
// when no URL function is configured.
type URLItem interface {
	ItemURL() string
}

type fetcher struct {
	client      *http.Client
	urlOf       func(item any) (string, error)
	maxBody     int64
	noRedirects bool
}

// Option configures Fetch.
type Option func(*fetcher)

// WithClient replaces the default HTTP client.
func WithClient(client *http.Client) Option {
	return func(f *fetcher) { f.client = client }
}

// WithURLFunc sets how the URL is extracted from an item. Without it, items
// must implement URLItem.
func WithURLFunc(fn func(item any) (string, error)) Option {
	return func(f *fetcher) { f.urlOf = fn }
}

// WithoutRedirects disables following redirects; the first response is
// forwarded as-is. Applies to the final client, whatever the option order.
func WithoutRedirects() Option {
	return func(f *fetcher) { f.noRedirects = true }
}

// WithMaxBody caps how many bytes of the response body are kept.
func WithMaxBody(n int64) Option {
	return func(f *fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// Fetch returns an edge function that GETs each item's URL and produces a
// *Response. Network and HTTP errors surface as edge errors, so they can be
// routed to an error beaker.
func Fetch(opts ...Option) pipeline.EdgeFunc {
	f := &fetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxBody: 10 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noRedirects {
		client := *f.client
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		f.client = &client
	}
	if f.urlOf == nil {
		f.urlOf = func(item any) (string, error) {
			u, ok := item.(URLItem)
			if !ok {
				return "", fmt.Errorf("item %T does not implement httpedge.URLItem", item)
			}
			return u.ItemURL(), nil
		}
	}
	return f.fetch
}

func (f *fetcher) fetch(ctx context.Context, item any) (any, error) {
	url, err := f.urlOf(item)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		Body:        string(body),
		RetrievedAt: time.Now(),
	}, nil
}
