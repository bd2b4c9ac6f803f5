package laborx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"laborx-notifier/internal/config"
)

// Discoverer lists the posting URLs on the jobs index page.
type Discoverer struct {
	origin string
	sel    config.Selectors
	log    logrus.FieldLogger
}

func NewDiscoverer(origin string, sel config.Selectors, log logrus.FieldLogger) *Discoverer {
	return &Discoverer{
		origin: strings.TrimRight(origin, "/"),
		sel:    sel,
		log:    log,
	}
}

// Candidates returns the absolute URL of every job card, in page order and
// without repeats. Cards without a link are logged and skipped.
func (d *Discoverer) Candidates(doc *goquery.Document) []string {
	var urls []string
	seen := make(map[string]bool)

	doc.Find(d.sel.Card).Each(func(i int, card *goquery.Selection) {
		href, ok := card.Find(d.sel.CardLink).First().Attr("href")
		if !ok {
			d.log.WithField("card", i).Warn("⚠️ Job card without link, skipping")
			return
		}
		url := d.origin + href
		if seen[url] {
			return
		}
		seen[url] = true
		urls = append(urls, url)
	})

	return urls
}
