package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// page wraps a fetched document and exposes the structural selections the
// pipeline stages need. All selectors mirror the target site's layout
// conventions; a missing node is "no data", never an error.
type page struct {
	doc *goquery.Document
}

func parsePage(html string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &page{doc: doc}, nil
}

// menuEntry is one raw navigation menu item before category resolution.
type menuEntry struct {
	title string
	link  string
}

// menuEntries selects the primary navigation entries that point at a topic
// path. The menu bar carries the category link in a data-url attribute; the
// display title lives in the child anchor.
func (p *page) menuEntries() []menuEntry {
	var entries []menuEntry
	p.doc.Find(`[role="menubar"] > div[data-url*="./topic"]`).Each(func(_ int, sel *goquery.Selection) {
		link, _ := sel.Attr("data-url")
		entries = append(entries, menuEntry{
			title: strings.TrimSpace(sel.ChildrenFiltered("a").First().Text()),
			link:  strings.TrimSpace(link),
		})
	})
	return entries
}

// storyLink is one story-cluster anchor plus its raw markup for diagnostics.
type storyLink struct {
	href   string
	markup string
}

// storyLinks selects every anchor whose target path contains the stories
// segment.
func (p *page) storyLinks() []storyLink {
	var links []storyLink
	p.doc.Find(`a[href*="./stories"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		markup, _ := goquery.OuterHtml(sel)
		links = append(links, storyLink{
			href:   strings.TrimSpace(href),
			markup: markup,
		})
	})
	return links
}

// coverageArticles walks the heading labels in priority order and returns the
// article nodes of the first heading whose sibling block contains any. The
// block sits next to the heading's enclosing container: heading div's parent,
// then the following sibling divs' article children.
func (p *page) coverageArticles(labels []string) *goquery.Selection {
	for _, label := range labels {
		var block *goquery.Selection
		p.doc.Find("h2").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
			if !strings.Contains(heading.Text(), label) {
				return true
			}
			candidates := heading.Closest("div").
				ParentFiltered("div").
				NextAllFiltered("div").
				ChildrenFiltered("article")
			if candidates.Length() == 0 {
				return true
			}
			block = candidates
			return false
		})
		if block != nil {
			return block
		}
	}
	return nil
}

// articleURL extracts the outbound link of one article node.
func articleURL(art *goquery.Selection) string {
	href, _ := art.ChildrenFiltered("a").First().Attr("href")
	return strings.TrimSpace(href)
}

// articleTitle extracts the display title of one article node.
func articleTitle(art *goquery.Selection) string {
	return strings.TrimSpace(art.Find("h4 a").First().Text())
}

// articleModified extracts the last-modified signal from the article's time
// node. The raw attribute value is returned alongside the parsed time because
// the persisted record carries both.
func articleModified(art *goquery.Selection) (time.Time, string, bool) {
	raw, ok := art.Find("div time").First().Attr("datetime")
	if !ok || raw == "" {
		return time.Time{}, "", false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, raw, false
	}
	return parsed.UTC(), raw, true
}

// articleProvider extracts the provider name: the anchor inside the first
// sibling block after the provider logo image.
func articleProvider(art *goquery.Selection) string {
	logo := art.ChildrenFiltered("div").ChildrenFiltered("img").First()
	return strings.TrimSpace(logo.NextAllFiltered("div").First().Find("a").First().Text())
}

// articleProviderLogo extracts the provider logo URL from the image srcset.
func articleProviderLogo(art *goquery.Selection) string {
	srcset, _ := art.ChildrenFiltered("div").ChildrenFiltered("img").First().Attr("srcset")
	return firstSrcsetURL(srcset)
}

// articleImage extracts the article image URL from the figure's srcset,
// prefixed with the site host the way the records have always stored it.
func articleImage(art *goquery.Selection, base string) string {
	srcset, _ := art.ChildrenFiltered("figure").ChildrenFiltered("img").First().Attr("srcset")
	u := firstSrcsetURL(srcset)
	if u == "" {
		return ""
	}
	return base + u
}

// firstSrcsetURL picks the first candidate URL out of a srcset attribute.
func firstSrcsetURL(srcset string) string {
	if srcset == "" {
		return ""
	}
	first := strings.Split(srcset, ",")[0]
	return strings.TrimSpace(strings.Split(strings.TrimSpace(first), " ")[0])
}

// resolveURL turns the site's relative-path convention into an absolute URL.
func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "./") {
		return base + strings.TrimPrefix(href, ".")
	}
	return href
}
