// Package pipeline drives the scrape-diff-extract-notify loop and its
// start/stop lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"laborx-notifier/internal/dedup"
	"laborx-notifier/internal/scraper"
)

type Discoverer interface {
	Candidates(doc *goquery.Document) []string
}

// CycleReport summarizes one discovery-and-processing pass.
type CycleReport struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Found     int           `json:"found"`
	New       int           `json:"new"`
	Notified  int           `json:"notified"`
	GivenUp   int           `json:"given_up"`
	Error     string        `json:"error,omitempty"`
}

type Pipeline struct {
	transport  scraper.Transport
	indexURL   string
	interval   time.Duration
	discoverer Discoverer
	processor  *Processor
	known      *dedup.KnownSet
	log        logrus.FieldLogger

	mu   sync.RWMutex
	last *CycleReport
}

func New(
	transport scraper.Transport,
	indexURL string,
	interval time.Duration,
	discoverer Discoverer,
	processor *Processor,
	known *dedup.KnownSet,
	log logrus.FieldLogger,
) *Pipeline {
	return &Pipeline{
		transport:  transport,
		indexURL:   indexURL,
		interval:   interval,
		discoverer: discoverer,
		processor:  processor,
		known:      known,
		log:        log,
	}
}

// Run loads the known set and then runs cycles forever, sleeping interval
// after each. Load and cycle failures are logged and retried after interval;
// only ctx cancellation ends the loop, and its error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.loadKnown(ctx); err != nil {
		return err
	}

	for {
		report, err := p.safeCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			report.Error = err.Error()
			p.log.WithField("cycle_id", report.ID).WithError(err).Error("❌ Critical error of work")
		}
		p.setLast(report)

		if err := scraper.Wait(ctx, p.interval); err != nil {
			return err
		}
	}
}

// loadKnown retries KnownSet.Load until it succeeds. No cycle may run before
// the set is loaded, or every known posting would be sent again.
func (p *Pipeline) loadKnown(ctx context.Context) error {
	for {
		err := p.known.Load(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		report := CycleReport{ID: uuid.NewString(), StartedAt: time.Now(), Error: err.Error()}
		p.log.WithField("cycle_id", report.ID).WithError(err).Error("❌ Critical error of work")
		p.setLast(report)

		if err := scraper.Wait(ctx, p.interval); err != nil {
			return err
		}
	}
}

// LastCycle returns the report of the most recent finished cycle.
func (p *Pipeline) LastCycle() (CycleReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return CycleReport{}, false
	}
	return *p.last, true
}

// KnownCount is the size of the known set.
func (p *Pipeline) KnownCount() int {
	return p.known.Len()
}

func (p *Pipeline) setLast(r CycleReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &r
}

// safeCycle turns a panic inside a cycle into an error.
func (p *Pipeline) safeCycle(ctx context.Context) (report CycleReport, err error) {
	report = CycleReport{ID: uuid.NewString(), StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("cycle_id", report.ID).WithField("stack", string(debug.Stack())).Debug("panic stack")
			err = fmt.Errorf("panic in cycle: %v", r)
		}
		report.Duration = time.Since(report.StartedAt)
	}()

	err = p.runCycle(ctx, &report)
	return report, err
}

func (p *Pipeline) runCycle(ctx context.Context, report *CycleReport) error {
	log := p.log.WithField("cycle_id", report.ID)

	sess, err := p.transport.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s session: %w", p.transport.Name(), err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WithError(err).Warn("⚠️ Failed to close session")
		}
	}()

	doc, err := sess.Fetch(ctx, p.indexURL, scraper.FetchOptions{Scroll: true})
	if err != nil {
		return fmt.Errorf("fetch index: %w", err)
	}
	log.WithField("url", p.indexURL).Info("📋 On jobs index")

	candidates := p.discoverer.Candidates(doc)
	fresh := p.known.Unknown(candidates)
	report.Found, report.New = len(candidates), len(fresh)
	for _, url := range fresh {
		log.WithField("url", url).Info("🆕 New link")
	}

	for _, url := range fresh {
		outcome, err := p.processor.Process(ctx, sess, url)
		if err != nil {
			return err
		}
		switch outcome {
		case StateNotified:
			report.Notified++
		case StateGivenUp:
			report.GivenUp++
		}

		// recorded even when given up, so it is never retried on a later cycle
		if err := p.known.Add(ctx, url); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"found":    report.Found,
		"new":      report.New,
		"notified": report.Notified,
		"given_up": report.GivenUp,
		"known":    p.known.Len(),
	}).Info("✅ Cycle finished")
	return nil
}
