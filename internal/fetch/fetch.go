package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultUserAgent presents the fetcher as a desktop browser; several
	// event sites serve an empty shell to unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	DefaultTimeout   = 15 * time.Second

	maxBodySize = 10 << 20
)

// ErrFetch is wrapped by every error returned from a Fetcher.
var ErrFetch = errors.New("fetch failed")

// WithScheme returns rawURL with https:// added when it was given without a
// scheme, as in "lu.ma/build-night" or "//lu.ma/build-night".
func WithScheme(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	switch {
	case s == "", strings.Contains(s, "://"):
		return s
	case strings.HasPrefix(s, "//"):
		return "https:" + s
	}
	return "https://" + s
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrFetch }

// Page is a fetched document decoded to UTF-8.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FromCache   bool
}

// Fetcher retrieves a page by URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Options configures a Session.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Cache     Cache
	// HostHeaders adds headers for hosts containing the key.
	HostHeaders map[string]map[string]string
	Client      *http.Client
}

// DefaultHostHeaders returns the extra headers some hosts require before
// they serve full event pages.
func DefaultHostHeaders() map[string]map[string]string {
	return map[string]map[string]string{
		"lu.ma": {
			"Referer":        "https://lu.ma/",
			"Sec-Fetch-Dest": "document",
			"Sec-Fetch-Mode": "navigate",
			"Sec-Fetch-Site": "same-origin",
		},
		"luma.com": {
			"Referer": "https://luma.com/",
		},
	}
}

// Session is the HTTP identity for one run: a shared client, browser-like
// headers and an optional page cache. Close it when the run ends.
type Session struct {
	client      *http.Client
	userAgent   string
	cache       Cache
	hostHeaders map[string]map[string]string
}

// NewSession creates a Session from opts, filling defaults.
func NewSession(opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HostHeaders == nil {
		opts.HostHeaders = DefaultHostHeaders()
	}
	client := opts.Client
	if client == nil {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        50,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}
	return &Session{
		client:      client,
		userAgent:   opts.UserAgent,
		cache:       opts.Cache,
		hostHeaders: opts.HostHeaders,
	}
}

// Fetch performs a GET for rawURL. Cached bodies are returned without a
// network round trip.
func (s *Session) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	rawURL = WithScheme(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetch, rawURL)
	}

	if s.cache != nil {
		if body, ok := s.cache.Get(ctx, rawURL); ok {
			return &Page{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusOK, Body: body, FromCache: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching page: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrFetch, err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}

	contentType := resp.Header.Get("Content-Type")
	data = decodeUTF8(data, contentType)

	if s.cache != nil {
		s.cache.Set(ctx, rawURL, data)
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

// Probe checks that rawURL answers a HEAD request with 200 and returns its
// media type.
func (s *Session) Probe(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: probing: %v", ErrFetch, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return mediaType, nil
}

// Close releases the session cache and idle connections.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *Session) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	host := strings.ToLower(req.URL.Host)
	for key, headers := range s.hostHeaders {
		if !strings.Contains(host, key) {
			continue
		}
		for name, value := range headers {
			req.Header.Set(name, value)
		}
	}
}

// decodeUTF8 converts a body to UTF-8 using the declared or sniffed charset.
func decodeUTF8(data []byte, contentType string) []byte {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(data)) {
		return data
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return data
		}
		return bytes.ToValidUTF8(data, []byte("�"))
	}
	return decoded
}
