// Package resolver looks up the origin of a single word on a dictionary site.
//
// The resolver does no HTTP or HTML work itself: a Fetcher returns the page
// title, visible body text and raw markup, and the resolver classifies the
// page, follows "multiple results" pages to the full entry and extracts the
// origin note with a pattern.Matcher.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/japaniel/wordorigin/pkg/pattern"
	"go.uber.org/zap"
)

// Fetcher retrieves a page. Failures should be returned as *TransportError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Page, error) { return f(ctx, url) }

// Site describes how a dictionary site answers searches.
type Site struct {
	Root       string // e.g. https://www.oed.com
	SearchPath string // appended to Root; {word} is replaced by the escaped word

	// Title prefixes identifying special pages.
	HomeTitle           string
	DisambiguationTitle string
	NoResultsTitle      string

	// TitleSuffix is stripped from entry page titles to form the translation.
	TitleSuffix string
	// FullEntryLink finds the link to the full entry on a disambiguation page.
	// The first capture group is the href.
	FullEntryLink string
}

// OED returns the Oxford English Dictionary profile.
func OED() Site {
	return Site{
		Root:                "https://www.oed.com",
		SearchPath:          "/search?searchType=dictionary&q={word}&_searchBtn=Search",
		HomeTitle:           "Home :",
		DisambiguationTitle: "Quick search results :",
		NoResultsTitle:      "No Search Results :",
		TitleSuffix:         ": Oxford English Dictionary",
		FullEntryLink:       `<a href="([^"]*)">View full entry</a>`,
	}
}

// DefaultMaxHops bounds how many disambiguation pages are followed for one word.
// The OED needs one.
const DefaultMaxHops = 3

// Resolver classifies dictionary pages for a word.
type Resolver struct {
	site      Site
	matcher   *pattern.Matcher
	fetcher   Fetcher
	fullEntry *regexp.Regexp
	maxHops   int
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxHops sets the redirect limit. Values below 1 are ignored.
func WithMaxHops(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHops = n
		}
	}
}

// WithLogger sets the logger used for per-word diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver for site.
func New(site Site, matcher *pattern.Matcher, fetcher Fetcher, opts ...Option) (*Resolver, error) {
	if matcher == nil {
		return nil, fmt.Errorf("resolver: matcher is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("resolver: fetcher is required")
	}
	if site.FullEntryLink == "" {
		site.FullEntryLink = OED().FullEntryLink
	}
	re, err := regexp.Compile(site.FullEntryLink)
	if err != nil {
		return nil, fmt.Errorf("resolver: full entry link pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("resolver: full entry link pattern needs a capture group for the href")
	}
	r := &Resolver{
		site:      site,
		matcher:   matcher,
		fetcher:   fetcher,
		fullEntry: re,
		maxHops:   DefaultMaxHops,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Site returns the site profile in use.
func (r *Resolver) Site() Site { return r.site }

// SearchURL returns the search URL for word.
func (r *Resolver) SearchURL(word string) string {
	root := strings.TrimRight(r.site.Root, "/")
	return root + strings.ReplaceAll(r.site.SearchPath, "{word}", url.QueryEscape(word))
}

// Lookup resolves word starting from its search URL.
func (r *Resolver) Lookup(ctx context.Context, word string) (Outcome, error) {
	return r.Resolve(ctx, r.SearchURL(word), word)
}

// Resolve fetches rootURL and classifies the response, following disambiguation
// pages to the full entry. AccessDenied is returned together with ErrAccessDenied;
// fetch failures are returned as *TransportError.
func (r *Resolver) Resolve(ctx context.Context, rootURL, word string) (Outcome, error) {
	target := rootURL
	for hop := 0; ; hop++ {
		page, err := r.fetcher.Fetch(ctx, target)
		if err != nil {
			if !IsTransport(err) {
				err = &TransportError{URL: target, Err: err}
			}
			return Outcome{}, err
		}
		if page == nil {
			return Outcome{}, &TransportError{URL: target, Err: errors.New("empty page")}
		}
		if page.URL == "" {
			page.URL = target
		}

		out := r.Classify(page)
		switch out.Kind {
		case KindAccessDenied:
			return out, ErrAccessDenied
		case KindRedirect:
			if hop >= r.maxHops {
				r.logger.Warn("too many disambiguation pages",
					zap.String("word", word), zap.Int("hops", hop))
				return Outcome{Kind: KindUnclassified}, nil
			}
			r.logger.Debug("following full entry link",
				zap.String("word", word), zap.String("url", out.TargetURL))
			target = out.TargetURL
			continue
		case KindFound:
			r.logger.Info("origin found", zap.String("word", word))
		}
		return out, nil
	}
}

// Classify maps a fetched page to an outcome without following redirects.
func (r *Resolver) Classify(page *Page) Outcome {
	title := strings.TrimSpace(page.Title)

	switch {
	case hasMarker(title, r.site.HomeTitle):
		return Outcome{Kind: KindAccessDenied}
	case hasMarker(title, r.site.DisambiguationTitle):
		m := r.fullEntry.FindStringSubmatch(page.RawMarkup)
		if m == nil {
			return Outcome{Kind: KindUnclassified}
		}
		target, err := resolveLink(page.URL, r.site.Root, m[1])
		if err != nil {
			r.logger.Warn("bad full entry link", zap.String("href", m[1]), zap.Error(err))
			return Outcome{Kind: KindUnclassified}
		}
		return Outcome{Kind: KindRedirect, TargetURL: target}
	case hasMarker(title, r.site.NoResultsTitle):
		return Outcome{Kind: KindNotFound, Translation: NotFoundMarker, OriginNote: NotFoundMarker}
	}

	note, ok := r.matcher.Match(page.BodyText)
	if !ok {
		return Outcome{Kind: KindUnclassified}
	}
	translation := title
	if r.site.TitleSuffix != "" {
		translation = strings.TrimSuffix(translation, r.site.TitleSuffix)
	}
	return Outcome{
		Kind:        KindFound,
		Translation: strings.TrimSpace(translation),
		OriginNote:  note,
	}
}

func hasMarker(title, marker string) bool {
	return marker != "" && strings.HasPrefix(title, marker)
}

// resolveLink resolves href against the page it was found on, falling back to
// the site root when the page URL is unusable.
func resolveLink(pageURL, root, href string) (string, error) {
	ref, err := url.Parse(html.UnescapeString(strings.TrimSpace(href)))
	if err != nil {
		return "", err
	}
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		base, err = url.Parse(root)
		if err != nil {
			return "", err
		}
	}
	return base.ResolveReference(ref).String(), nil
}
