package httpstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/docdb/blobstore"
)

var _ blobstore.Store = (*Store)(nil)

// DefaultMaxBodySize bounds the size of a single response body.
const DefaultMaxBodySize int64 = 64 << 20

// ErrBodyTooLarge is returned when a response exceeds the body size limit.
var ErrBodyTooLarge = fmt.Errorf("httpstore: response body too large: %w", blobstore.ErrTooLarge)

// StatusError is returned for non-2xx responses other than 404 and 410.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpstore: GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Options configures a Store.
type Options struct {
	// Client is the HTTP client. Default: http.DefaultClient
	Client *http.Client
	// Header is added to every request.
	Header http.Header
	// MaxBodySize bounds response bodies. Default: DefaultMaxBodySize
	MaxBodySize int64
}

// Option configures a Store.
type Option func(*Options)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(o *Options) {
		o.Client = c
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *Options) {
		o.Header.Add(key, value)
	}
}

// WithMaxBodySize bounds response bodies.
func WithMaxBodySize(n int64) Option {
	return func(o *Options) {
		o.MaxBodySize = n
	}
}

// Store implements blobstore.Store over HTTP.
type Store struct {
	base *url.URL
	opts Options
}

// New creates a Store resolving names against baseURL. An empty baseURL
// accepts absolute URLs only.
func New(baseURL string, optFns ...Option) (*Store, error) {
	opts := Options{
		Client:      http.DefaultClient,
		Header:      make(http.Header),
		MaxBodySize: DefaultMaxBodySize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{opts: opts}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("httpstore: invalid base URL: %w", err)
		}
		// Treat the base as a directory so relative names append to it.
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		s.base = u
	}
	return s, nil
}

func (s *Store) resolve(name string) (string, error) {
	ref, err := url.Parse(name)
	if err != nil {
		return "", fmt.Errorf("httpstore: invalid name %q: %w", name, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if s.base == nil {
		return "", fmt.Errorf("httpstore: relative name %q without base URL", name)
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return s.base.ResolveReference(ref).String(), nil
}

// Get issues a GET request for name and returns the body.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	u, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range s.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("httpstore: GET %s: %w", u, blobstore.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.opts.MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
