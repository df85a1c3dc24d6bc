package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const homeFixture = `<html><body>
<div role="menubar">
  <div data-url="./topics/CAAqBusiness"><a>Business</a></div>
  <div data-url="./topics/CAAqTech"><a>Technology</a></div>
  <div data-url="https://elsewhere.example/promo"><a>Promo</a></div>
</div>
</body></html>`

const categoryFixture = `<html><body>
<a href="./stories/story-one">First cluster</a>
<a href="./stories/story-two">Second cluster</a>
<a href="/notastory">Unrelated</a>
</body></html>`

const storyFixture = `<html><body>
<div>
  <div>
    <div><h2>All coverage</h2></div>
  </div>
  <div>
    <article>
      <a href="./articles/first"></a>
      <h4><a>Rates hold steady</a></h4>
      <div><time datetime="2026-08-27T10:00:00Z">yesterday</time></div>
      <div><img srcset="https://logos.example/cbc.png 1x"><div><a>CBC News</a></div></div>
      <figure><img srcset="/api/attachments/img-one 200w,/api/attachments/img-two 400w"></figure>
    </article>
    <article>
      <a href="./articles/second"></a>
      <h4><a>Markets react</a></h4>
      <div><time datetime="bogus">sometime</time></div>
    </article>
    <article>
      <h4><a>No link here</a></h4>
      <div><time datetime="2026-08-27T11:00:00Z">today</time></div>
    </article>
  </div>
</div>
</body></html>`

func TestMenuEntries(t *testing.T) {
	t.Parallel()

	pg, err := parsePage(homeFixture)
	require.NoError(t, err)

	entries := pg.menuEntries()
	require.Len(t, entries, 2)
	require.Equal(t, menuEntry{title: "Business", link: "./topics/CAAqBusiness"}, entries[0])
	require.Equal(t, menuEntry{title: "Technology", link: "./topics/CAAqTech"}, entries[1])
}

func TestMenuEntries_NoMenu(t *testing.T) {
	t.Parallel()

	pg, err := parsePage(`<html><body><p>script shell</p></body></html>`)
	require.NoError(t, err)
	require.Empty(t, pg.menuEntries())
}

func TestStoryLinks(t *testing.T) {
	t.Parallel()

	pg, err := parsePage(categoryFixture)
	require.NoError(t, err)

	links := pg.storyLinks()
	require.Len(t, links, 2)
	require.Equal(t, "./stories/story-one", links[0].href)
	require.Contains(t, links[0].markup, "First cluster")
	require.Equal(t, "./stories/story-two", links[1].href)
}

func TestCoverageArticles_LabelPriority(t *testing.T) {
	t.Parallel()

	// A "Top news" heading with an empty block must lose to an "All coverage"
	// heading whose block has articles.
	html := `<html><body>
<div>
  <div><div><h2>Top news</h2></div></div>
  <div></div>
</div>
<div>
  <div><div><h2>All coverage</h2></div></div>
  <div><article><a href="./articles/x"></a></article></div>
</div>
</body></html>`

	pg, err := parsePage(html)
	require.NoError(t, err)

	arts := pg.coverageArticles(headingLabels)
	require.NotNil(t, arts)
	require.Equal(t, 1, arts.Length())
}

func TestCoverageArticles_IgnoresUnrelatedSiblingBlocks(t *testing.T) {
	t.Parallel()

	// Only blocks following the heading count; articles in a preceding
	// sibling must not.
	html := `<html><body>
<div>
  <div><article><a href="./articles/elsewhere"></a></article></div>
  <div>
    <div><h2>Top news</h2></div>
  </div>
</div>
</body></html>`

	pg, err := parsePage(html)
	require.NoError(t, err)
	require.Nil(t, pg.coverageArticles(headingLabels))
}

func TestArticleExtraction(t *testing.T) {
	t.Parallel()

	pg, err := parsePage(storyFixture)
	require.NoError(t, err)

	arts := pg.coverageArticles(headingLabels)
	require.NotNil(t, arts)
	require.Equal(t, 3, arts.Length())

	first := arts.Eq(0)
	require.Equal(t, "./articles/first", articleURL(first))
	require.Equal(t, "Rates hold steady", articleTitle(first))
	require.Equal(t, "CBC News", articleProvider(first))
	require.Equal(t, "https://logos.example/cbc.png", articleProviderLogo(first))
	require.Equal(t, "https://news.example/api/attachments/img-one", articleImage(first, "https://news.example"))

	modified, raw, ok := articleModified(first)
	require.True(t, ok)
	require.Equal(t, "2026-08-27T10:00:00Z", raw)
	require.Equal(t, time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC), modified)

	// Unparseable datetime keeps the raw value but reports failure.
	_, raw, ok = articleModified(arts.Eq(1))
	require.False(t, ok)
	require.Equal(t, "bogus", raw)

	// Missing link.
	require.Empty(t, articleURL(arts.Eq(2)))
}

func TestFirstSrcsetURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/a.jpg", firstSrcsetURL("/a.jpg 200w, /b.jpg 400w"))
	require.Equal(t, "/a.jpg", firstSrcsetURL("/a.jpg"))
	require.Empty(t, firstSrcsetURL(""))
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://news.example/topics/x", resolveURL("https://news.example", "./topics/x"))
	require.Equal(t, "https://other.example/y", resolveURL("https://news.example", "https://other.example/y"))
}
