package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/japaniel/wordorigin/pkg/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageSet serves canned pages by URL and records the fetch order.
type pageSet struct {
	pages   map[string]*Page
	fetched []string
}

func (s *pageSet) Fetch(ctx context.Context, url string) (*Page, error) {
	s.fetched = append(s.fetched, url)
	p, ok := s.pages[url]
	if !ok {
		return nil, &TransportError{URL: url, Status: 404, Err: errors.New("not found")}
	}
	cp := *p
	return &cp, nil
}

func newTestResolver(t *testing.T, pages map[string]*Page, opts ...Option) (*Resolver, *pageSet) {
	t.Helper()
	set := &pageSet{pages: pages}
	r, err := New(OED(), pattern.MustCompile(pattern.DefaultPatterns()), set, opts...)
	require.NoError(t, err)
	return r, set
}

const gratinSearch = "https://www.oed.com/search?searchType=dictionary&q=gratin&_searchBtn=Search"

func TestSearchURL(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	assert.Equal(t, gratinSearch, r.SearchURL("gratin"))
	assert.Equal(t,
		"https://www.oed.com/search?searchType=dictionary&q=a+b%26c&_searchBtn=Search",
		r.SearchURL("a b&c"))
}

func TestResolveFoundEntry(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{
		gratinSearch: {
			Title:    "gratin, n. : Oxford English Dictionary",
			BodyText: "gratin, n.  Pronunciation:  Origin:   A borrowing from   French.  Etymon: ...",
		},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, Outcome{
		Kind:        KindFound,
		Translation: "gratin, n.",
		OriginNote:  "Origin:A borrowing fromFrench",
	}, out)
}

func TestResolveNotFound(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{
		gratinSearch: {Title: "No Search Results : Oxford English Dictionary"},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, out.Kind)
	assert.Equal(t, NotFoundMarker, out.Translation)
	assert.Equal(t, NotFoundMarker, out.OriginNote)
}

func TestResolveAccessDenied(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{
		gratinSearch: {Title: "Home : Oxford English Dictionary"},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, KindAccessDenied, out.Kind)
}

func TestResolveFollowsFullEntryLink(t *testing.T) {
	r, set := newTestResolver(t, map[string]*Page{
		gratinSearch: {
			URL:   gratinSearch,
			Title: "Quick search results : Oxford English Dictionary",
			RawMarkup: `<ul><li><a href="/view/Entry/80911?rskey=a&amp;result=1">View full entry</a></li>` +
				`<li><a href="/view/Entry/2">View full entry</a></li></ul>`,
		},
		"https://www.oed.com/view/Entry/80911?rskey=a&result=1": {
			Title:    "degree, n. : Oxford English Dictionary",
			BodyText: "Etymology: < Old french degré",
		},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, KindFound, out.Kind)
	assert.Equal(t, "degree, n.", out.Translation)
	assert.Equal(t, "Etymology: < Old french", out.OriginNote)
	assert.Equal(t, []string{gratinSearch, "https://www.oed.com/view/Entry/80911?rskey=a&result=1"}, set.fetched)
}

func TestResolveDisambiguationWithoutLink(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{
		gratinSearch: {
			Title:     "Quick search results : Oxford English Dictionary",
			RawMarkup: `<a href="/somewhere">Something else</a>`,
		},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, KindUnclassified, out.Kind)
}

func TestResolveRedirectLoopIsBounded(t *testing.T) {
	loop := &Page{
		Title:     "Quick search results : Oxford English Dictionary",
		RawMarkup: `<a href="/loop">View full entry</a>`,
	}
	r, set := newTestResolver(t, map[string]*Page{
		gratinSearch:               loop,
		"https://www.oed.com/loop": loop,
	}, WithMaxHops(2))

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, KindUnclassified, out.Kind)
	assert.Len(t, set.fetched, 3)
}

func TestResolveEntryWithoutOrigin(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{
		gratinSearch: {
			Title:    "gratin, n. : Oxford English Dictionary",
			BodyText: "Etymology: < Old English",
		},
	})

	out, err := r.Lookup(context.Background(), "gratin")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: KindUnclassified}, out)
}

func TestResolveTransportError(t *testing.T) {
	r, _ := newTestResolver(t, map[string]*Page{})

	_, err := r.Lookup(context.Background(), "gratin")
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 404, te.Status)
	assert.True(t, IsTransport(err))
}

func TestResolveWrapsPlainFetchErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r, err := New(OED(), pattern.MustCompile(pattern.DefaultPatterns()),
		FetcherFunc(func(ctx context.Context, url string) (*Page, error) { return nil, boom }))
	require.NoError(t, err)

	_, err = r.Lookup(context.Background(), "gratin")
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, boom)
}

func TestResolveNilPageIsTransportError(t *testing.T) {
	r, err := New(OED(), pattern.MustCompile(pattern.DefaultPatterns()),
		FetcherFunc(func(ctx context.Context, url string) (*Page, error) { return nil, nil }))
	require.NoError(t, err)

	_, err = r.Lookup(context.Background(), "gratin")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, gratinSearch, te.URL)
	assert.Contains(t, err.Error(), "empty page")
}

func TestNewValidatesSite(t *testing.T) {
	m := pattern.MustCompile(pattern.DefaultPatterns())
	fetcher := FetcherFunc(func(ctx context.Context, url string) (*Page, error) { return nil, nil })

	site := OED()
	site.FullEntryLink = `View full entry`
	_, err := New(site, m, fetcher)
	assert.Error(t, err)

	_, err = New(OED(), nil, fetcher)
	assert.Error(t, err)

	_, err = New(OED(), m, nil)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindFound:        "found",
		KindNotFound:     "not_found",
		KindRedirect:     "redirect",
		KindAccessDenied: "access_denied",
		KindUnclassified: "unclassified",
	} {
		assert.Equal(t, want, k.String(), fmt.Sprint(int(k)))
	}
}
