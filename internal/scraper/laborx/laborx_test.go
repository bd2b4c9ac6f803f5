package laborx

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laborx-notifier/internal/config"
	"laborx-notifier/internal/scraper"
)

const origin = "https://laborx.com"

const detailHTML = `<html><body>
<h1 class="job-name">  Build a Go scraper  </h1>
<div class="publish-date"> 12 Oct 2026 </div>
<div class="info-item day-info"><span class="gray-info"> (till 30 Oct 2026) </span></div>
<div class="info-value"> 1500 </div>
<a class="user-name link" href="/users/42">alice</a>
<div class="description"><p>Hello &amp; welcome</p><p>Line<br/>two<BR>three</p></div>
<div class="skills-container">
  <span class="tag clickable"> Go </span>
  <span class="tag clickable">Playwright</span>
  <span class="tag clickable"> Go </span>
</div>
</body></html>`

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"line breaks", "a<br>b<br/>c<BR />d", "a\nb\nc\nd"},
		{"paragraphs", "<p>one</p><P>two</P>", "one\ntwo"},
		{"strips tags", `<div class="x"><b>bold</b> <a href="#">link</a></div>`, "bold link"},
		{"entities", "Tom &amp; Jerry &lt;3 &quot;hi&quot; &#39;x&#39;", `Tom & Jerry <3 "hi" 'x'`},
		{"escaped tags stay text", "&lt;script&gt;", "<script>"},
		{"trims", "  \n <p> padded </p>\n ", "padded"},
		{"keeps code points as is", "\u212b cafe\u0301 \uf900", "\u212b cafe\u0301 \uf900"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDescription(tt.input))
		})
	}
}

func TestNormalizeDescription_NewlineAndTagCounts(t *testing.T) {
	input := "<div>x<br>y<br/>z</p>w<p>v</p></div>end"
	out := NormalizeDescription(input)

	// 2 line breaks + 2 paragraph closes
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 4)
	assert.NotRegexp(t, `<[^>]+>`, out)
}

func TestExtractor_Extract(t *testing.T) {
	ex := NewExtractor(origin+"/", config.DefaultSelectors())

	listing, err := ex.Extract(origin+"/jobs/7", parse(t, detailHTML))
	require.NoError(t, err)

	assert.Equal(t, scraper.Listing{
		URL:         origin + "/jobs/7",
		Title:       "Build a Go scraper",
		Description: "Hello & welcome\nLine\ntwo\nthree",
		PublishDate: "12 Oct 2026",
		EndDate:     "30 Oct 2026",
		Price:       "1500 $",
		PosterURL:   origin + "/users/42",
		Skills:      []string{"Go", "Playwright", "Go"},
	}, listing)
}

func TestExtractor_EndDateFallback(t *testing.T) {
	ex := NewExtractor(origin, config.DefaultSelectors())

	tests := []struct {
		name   string
		remove string
	}{
		{"no item", `<div class="info-item day-info"><span class="gray-info"> (till 30 Oct 2026) </span></div>`},
		{"no value", `<span class="gray-info"> (till 30 Oct 2026) </span>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := strings.Replace(detailHTML, tt.remove, "", 1)
			listing, err := ex.Extract(origin+"/jobs/7", parse(t, markup))
			require.NoError(t, err)
			assert.Equal(t, scraper.EndDateFallback, listing.EndDate)
		})
	}
}

func TestExtractor_EmptySkills(t *testing.T) {
	ex := NewExtractor(origin, config.DefaultSelectors())
	markup := strings.NewReplacer(
		`<span class="tag clickable"> Go </span>`, "",
		`<span class="tag clickable">Playwright</span>`, "",
	).Replace(detailHTML)

	listing, err := ex.Extract(origin+"/jobs/7", parse(t, markup))
	require.NoError(t, err)
	assert.NotNil(t, listing.Skills)
	assert.Empty(t, listing.Skills)
}

func TestExtractor_RequiredFields(t *testing.T) {
	ex := NewExtractor(origin, config.DefaultSelectors())

	tests := []struct {
		field  string
		remove string
	}{
		{"title", `<h1 class="job-name">  Build a Go scraper  </h1>`},
		{"publish date", `<div class="publish-date"> 12 Oct 2026 </div>`},
		{"price", `<div class="info-value"> 1500 </div>`},
		{"poster profile", `<a class="user-name link" href="/users/42">alice</a>`},
		{"poster profile", `href="/users/42"`},
		{"description", `<div class="description"><p>Hello &amp; welcome</p><p>Line<br/>two<BR>three</p></div>`},
		{"skills", `<div class="skills-container">`},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			markup := strings.Replace(detailHTML, tt.remove, "", 1)
			_, err := ex.Extract(origin+"/jobs/7", parse(t, markup))
			require.Error(t, err)

			var extractErr *scraper.ExtractionError
			require.True(t, errors.As(err, &extractErr))
			assert.Equal(t, tt.field, extractErr.Field)
			assert.Equal(t, origin+"/jobs/7", extractErr.URL)
			assert.ErrorIs(t, err, scraper.ErrFieldMissing)
		})
	}
}

func TestDiscoverer_Candidates(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	d := NewDiscoverer(origin, config.DefaultSelectors(), logger)

	index := `<html><body>
<div class="root job-card child-card"><a class="job-title job-link row" href="/jobs/1">1</a></div>
<div class="root job-card child-card"><a class="job-title job-link row" href="/jobs/2">2</a></div>
<div class="root job-card child-card"><span class="job-title">no link</span></div>
<div class="root job-card child-card"><a class="job-title job-link row" href="/jobs/3">3</a></div>
<div class="root job-card child-card"><a class="job-title job-link row" href="/jobs/4">4</a></div>
<div class="root job-card child-card"><a class="job-title job-link row" href="/jobs/4">dup</a></div>
<div class="job-card"><a class="job-title job-link row" href="/jobs/other">not a card</a></div>
</body></html>`

	urls := d.Candidates(parse(t, index))

	assert.Equal(t, []string{
		origin + "/jobs/1",
		origin + "/jobs/2",
		origin + "/jobs/3",
		origin + "/jobs/4",
	}, urls)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestDiscoverer_EmptyPage(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	d := NewDiscoverer(origin, config.DefaultSelectors(), logger)
	assert.Empty(t, d.Candidates(parse(t, "<html></html>")))
}
