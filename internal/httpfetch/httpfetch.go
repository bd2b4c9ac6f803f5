// Package httpfetch is the one-shot HTTP transport: a GET per page, parsed
// with goquery. It has no rendering, so it only sees server-side markup.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"laborx-notifier/internal/config"
	"laborx-notifier/internal/scraper"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

var ErrStatus = errors.New("unexpected http status")

type Transport struct {
	client    *http.Client
	userAgent string
}

func NewTransport(cfg config.FetchConfig) *Transport {
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	return &Transport{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: agent,
	}
}

// WithClient swaps the HTTP client, mainly for tests.
func (t *Transport) WithClient(c *http.Client) *Transport {
	t.client = c
	return t
}

func (t *Transport) Name() string {
	return config.TransportHTTP
}

// Open returns a session sharing the transport's client; there is nothing to
// set up per cycle.
func (t *Transport) Open(ctx context.Context) (scraper.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{client: t.client, userAgent: t.userAgent}, nil
}

type session struct {
	client    *http.Client
	userAgent string
}

func (s *session) Fetch(ctx context.Context, url string, opts scraper.FetchOptions) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(decodeBody(resp))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	if err := scraper.Wait(ctx, opts.Settle); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *session) Close() error {
	return nil
}

// decodeBody converts a body declared in another charset to UTF-8. A missing,
// unknown or UTF-8 charset leaves the bytes untouched.
func decodeBody(resp *http.Response) io.Reader {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || params["charset"] == "" {
		return resp.Body
	}

	enc, err := htmlindex.Get(params["charset"])
	if err != nil {
		return resp.Body
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return resp.Body
	}
	return transform.NewReader(resp.Body, enc.NewDecoder())
}
