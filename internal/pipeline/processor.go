package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"laborx-notifier/internal/scraper"
)

// State is a step of the per-posting fetch/extract/notify machine.
type State int

const (
	StatePending State = iota
	StateFetching
	StateExtracting
	StateNotified
	StateRetryWait
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateNotified:
		return "notified"
	case StateRetryWait:
		return "retry_wait"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

type Extractor interface {
	Extract(url string, doc *goquery.Document) (scraper.Listing, error)
}

type Notifier interface {
	Notify(ctx context.Context, listing scraper.Listing) error
}

// RetryPolicy bounds the attempts for one posting. When WaitAfterNavigate is
// set, attempt n waits BackoffBase * 2^n between navigation and snapshot.
type RetryPolicy struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	WaitAfterNavigate bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BackoffBase: time.Second, WaitAfterNavigate: true}
}

// Settle returns the wait for a 0-based attempt.
func (p RetryPolicy) Settle(attempt int) time.Duration {
	if !p.WaitAfterNavigate {
		return 0
	}
	return p.BackoffBase << attempt
}

// Processor runs the fetch/extract/notify attempts for one new posting.
type Processor struct {
	extractor Extractor
	notifier  Notifier
	policy    RetryPolicy
	log       logrus.FieldLogger
}

func NewProcessor(extractor Extractor, notifier Notifier, policy RetryPolicy, log logrus.FieldLogger) *Processor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Processor{
		extractor: extractor,
		notifier:  notifier,
		policy:    policy,
		log:       log,
	}
}

// Process returns StateNotified once a listing was extracted and handed to
// the notifier, or StateGivenUp after the last failed attempt. The only error
// it returns is the context's.
func (p *Processor) Process(ctx context.Context, sess scraper.Session, url string) (State, error) {
	log := p.log.WithField("url", url)
	state := StatePending

	for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
		alog := log.WithField("attempt", attempt)
		state = p.transition(alog, state, StateFetching)
		alog.Info("🔍 Parsing new link")

		listing, err := p.tryOnce(ctx, sess, url, attempt, alog, &state)
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		if err != nil {
			alog.WithError(err).Warn("⚠️ Error parsing link")
			state = p.transition(alog, state, StateRetryWait)
			continue
		}

		// Delivery is not retried: admins that already got the message would get it twice.
		if err := p.notifier.Notify(ctx, listing); err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			alog.WithError(err).Warn("⚠️ Some notifications failed")
		}
		return p.transition(alog, state, StateNotified), nil
	}

	log.WithField("attempts", p.policy.MaxAttempts).Error("❌ Giving up on link")
	return p.transition(log, state, StateGivenUp), nil
}

// tryOnce fetches and extracts once. A panic in either step counts as a
// failed attempt.
func (p *Processor) tryOnce(ctx context.Context, sess scraper.Session, url string, n int, log logrus.FieldLogger, state *State) (listing scraper.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Debug("panic stack")
			err = fmt.Errorf("panic while reading %s: %v", url, r)
		}
	}()

	doc, err := sess.Fetch(ctx, url, scraper.FetchOptions{Settle: p.policy.Settle(n)})
	if err != nil {
		return scraper.Listing{}, fmt.Errorf("fetch: %w", err)
	}

	*state = p.transition(log, *state, StateExtracting)
	return p.extractor.Extract(url, doc)
}

func (p *Processor) transition(log logrus.FieldLogger, from, to State) State {
	log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("state")
	return to
}
