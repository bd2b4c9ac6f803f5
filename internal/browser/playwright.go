package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"laborx-notifier/internal/config"
	"laborx-notifier/internal/scraper"
)

// Transport starts a fresh playwright browser for every session, so a wedged
// browser never outlives one cycle.
type Transport struct {
	cfg     config.BrowserConfig
	timeout time.Duration
	agent   string
	log     logrus.FieldLogger
}

func NewTransport(cfg config.BrowserConfig, fetch config.FetchConfig, log logrus.FieldLogger) *Transport {
	return &Transport{
		cfg:     cfg,
		timeout: fetch.Timeout,
		agent:   fetch.UserAgent,
		log:     log,
	}
}

func (t *Transport) Name() string {
	return config.TransportBrowser
}

// Open launches playwright, a browser, a context (with cookies if configured)
// and one page.
func (t *Transport) Open(ctx context.Context) (scraper.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	launcher := pw.Firefox
	if t.cfg.Engine == "chromium" {
		launcher = pw.Chromium
	}
	br, err := launcher.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(t.cfg.IsHeadless()),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	s := &Session{pw: pw, browser: br, log: t.log, humanScroll: t.cfg.HumanScroll, timeout: t.timeout}
	if t.cfg.ScreenshotDir != "" {
		s.shots = NewScreenshotDebugger(t.cfg.ScreenshotDir, t.log)
	}

	opts := playwright.BrowserNewContextOptions{}
	if t.agent != "" {
		opts.UserAgent = playwright.String(t.agent)
	}
	bctx, err := br.NewContext(opts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	if t.cfg.CookiesPath != "" {
		cookies, err := LoadCookies(t.cfg.CookiesPath)
		if err != nil {
			t.log.WithError(err).Warn("⚠️ Could not load cookies, continuing without")
		} else if err := bctx.AddCookies(cookies); err != nil {
			t.log.WithError(err).Warn("⚠️ Could not apply cookies, continuing without")
		} else {
			t.log.WithField("count", len(cookies)).Info("🍪 Loaded cookies")
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	s.page = page

	t.log.Info("🌐 Started new browser")
	return s, nil
}

// Session is one browser page reused for every fetch of a cycle.
type Session struct {
	pw          *playwright.Playwright
	browser     playwright.Browser
	page        playwright.Page
	shots       *ScreenshotDebugger
	humanScroll bool
	timeout     time.Duration
	log         logrus.FieldLogger
}

func (s *Session) Fetch(ctx context.Context, url string, opts scraper.FetchOptions) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.timeout.Milliseconds())),
	}); err != nil {
		if s.shots != nil {
			s.shots.CaptureAndLog(s.page, slug(url), "🚨 Navigation failed")
		}
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	if err := scraper.Wait(ctx, opts.Settle); err != nil {
		return nil, err
	}

	if s.humanScroll && opts.Scroll {
		if err := HumanScroll(ctx, s.page); err != nil {
			s.log.WithError(err).Debug("scroll failed")
		}
	}

	content, err := s.page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content of %s: %w", url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// Close tears down the browser and the playwright driver.
func (s *Session) Close() error {
	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}

func slug(url string) string {
	url = strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	return strings.NewReplacer("/", "-", "?", "-", "&", "-", "=", "-", ":", "-").Replace(url)
}
