// Read the detail page of one LaborX posting into a scraper.Listing
// Every field is required except the end date

package laborx

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"laborx-notifier/internal/config"
	"laborx-notifier/internal/scraper"
)

const (
	endDatePrefix = "(till"
	priceSuffix   = " $"
)

type Extractor struct {
	origin string
	sel    config.Selectors
}

func NewExtractor(origin string, sel config.Selectors) *Extractor {
	return &Extractor{
		origin: strings.TrimRight(origin, "/"),
		sel:    sel,
	}
}

// Extract reads a detail document. A missing required node or attribute
// returns an *scraper.ExtractionError wrapping scraper.ErrFieldMissing.
func (e *Extractor) Extract(url string, doc *goquery.Document) (scraper.Listing, error) {
	listing := scraper.Listing{URL: url}
	var err error

	if listing.Title, err = e.text(url, doc.Selection, "title", e.sel.Title); err != nil {
		return scraper.Listing{}, err
	}

	descNode := doc.Find(e.sel.Description).First()
	if descNode.Length() == 0 {
		return scraper.Listing{}, missing(url, "description", e.sel.Description)
	}
	markup, err := descNode.Html()
	if err != nil {
		return scraper.Listing{}, &scraper.ExtractionError{URL: url, Field: "description", Err: err}
	}
	listing.Description = NormalizeDescription(markup)

	if listing.PublishDate, err = e.text(url, doc.Selection, "publish date", e.sel.PublishDate); err != nil {
		return scraper.Listing{}, err
	}

	listing.EndDate = e.endDate(doc)

	price, err := e.text(url, doc.Selection, "price", e.sel.Price)
	if err != nil {
		return scraper.Listing{}, err
	}
	listing.Price = price + priceSuffix

	posterNode := doc.Find(e.sel.Poster).First()
	href, ok := posterNode.Attr("href")
	if !ok {
		return scraper.Listing{}, missing(url, "poster profile", e.sel.Poster+"[href]")
	}
	listing.PosterURL = e.origin + href

	skillsNode := doc.Find(e.sel.SkillsWrapper).First()
	if skillsNode.Length() == 0 {
		return scraper.Listing{}, missing(url, "skills", e.sel.SkillsWrapper)
	}
	listing.Skills = []string{}
	skillsNode.Find(e.sel.SkillTag).Each(func(_ int, s *goquery.Selection) {
		listing.Skills = append(listing.Skills, strings.TrimSpace(s.Text()))
	})

	return listing, nil
}

// endDate never fails, an absent node falls back to scraper.EndDateFallback.
func (e *Extractor) endDate(doc *goquery.Document) string {
	item := doc.Find(e.sel.EndDateItem).First()
	if item.Length() == 0 {
		return scraper.EndDateFallback
	}
	value := item.Find(e.sel.EndDateValue).First()
	if value.Length() == 0 {
		return scraper.EndDateFallback
	}

	text := strings.TrimSpace(value.Text())
	text = strings.TrimPrefix(text, endDatePrefix)
	text = strings.TrimRight(text, ")")
	return strings.TrimSpace(text)
}

func (e *Extractor) text(url string, root *goquery.Selection, field, selector string) (string, error) {
	node := root.Find(selector).First()
	if node.Length() == 0 {
		return "", missing(url, field, selector)
	}
	return strings.TrimSpace(node.Text()), nil
}

func missing(url, field, selector string) error {
	return &scraper.ExtractionError{
		URL:   url,
		Field: field,
		Err:   fmt.Errorf("%w: %s", scraper.ErrFieldMissing, selector),
	}
}
