// Shared types for the site scrapers and the page transports
// A transport opens one session per cycle, a session turns a URL into a DOM document

package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// EndDateFallback is used when a posting has no end date.
const EndDateFallback = "Not established"

// Listing is one posting's detail page, extracted.
type Listing struct {
	URL         string
	Title       string
	Description string
	PublishDate string
	EndDate     string
	Price       string
	PosterURL   string
	Skills      []string
}

// Transport opens page-fetching sessions (headless browser or plain HTTP).
type Transport interface {
	Open(ctx context.Context) (Session, error)
	Name() string
}

// FetchOptions tune a single Fetch.
type FetchOptions struct {
	// Settle is waited between navigation and snapshot.
	Settle time.Duration
	// Scroll asks a browser session to scroll like a reader before the
	// snapshot. Sessions without rendering ignore it.
	Scroll bool
}

// Session fetches pages. A browser session is stateful and must be used by one
// goroutine at a time.
type Session interface {
	// Fetch navigates to url, waits opts.Settle, then returns the rendered document.
	Fetch(ctx context.Context, url string, opts FetchOptions) (*goquery.Document, error)

	// Close releases the session's resources.
	Close() error
}

var ErrFieldMissing = errors.New("required field missing")

// ExtractionError reports a required field that could not be read from a detail page.
type ExtractionError struct {
	URL   string
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Field, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
