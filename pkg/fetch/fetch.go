// Package fetch implements resolver.Fetcher over HTTP.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/japaniel/wordorigin/pkg/resolver"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// TextMode selects how the body text of a page is produced.
type TextMode string

const (
	// TextFull concatenates every text node under <body>, like a browser's innerText
	// without layout. Pattern matching on dictionary pages expects this.
	TextFull TextMode = "full"
	// TextReadable keeps only the main article text as extracted by go-readability.
	TextReadable TextMode = "readable"
)

const (
	// DefaultUserAgent identifies the client; the dictionary site rejects requests without one.
	DefaultUserAgent   = "Mozilla/5.0 (compatible; wordorigin/0.1; +https://github.com/japaniel/wordorigin)"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10 MB
)

// Client fetches and parses dictionary pages.
type Client struct {
	HTTP        *http.Client
	UserAgent   string
	MaxBodySize int64
	Mode        TextMode
	Logger      *zap.Logger
}

// NewClient returns a Client with default timeout, body limit and User-Agent.
func NewClient() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: DefaultTimeout},
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Mode:        TextFull,
	}
}

// Fetch downloads rawURL and parses it. All failures are *resolver.TransportError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*resolver.Page, error) {
	fail := func(status int, err error) error {
		return &resolver.TransportError{URL: rawURL, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fail(resp.StatusCode, errors.New(resp.Status))
	}

	limit := c.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	if resp.ContentLength > limit {
		return nil, fail(resp.StatusCode, fmt.Errorf("content length %d exceeds limit of %d bytes", resp.ContentLength, limit))
	}
	// Read one byte past the limit to tell a truncated body from one that fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, fail(resp.StatusCode, fmt.Errorf("response body exceeds limit of %d bytes", limit))
	}

	// The final URL matters for resolving relative links after server redirects.
	pageURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL.String()
	}

	page, err := ParsePage(pageURL, body, c.Mode)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	if c.Logger != nil {
		c.Logger.Debug("page fetched",
			zap.String("url", pageURL), zap.String("title", page.Title), zap.Int("bytes", len(body)))
	}
	return page, nil
}

// ParsePage extracts the title, body text and raw markup from an HTML document.
func ParsePage(pageURL string, markup []byte, mode TextMode) (*resolver.Page, error) {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := &resolver.Page{
		URL:       pageURL,
		RawMarkup: string(markup),
	}
	if title := findElement(doc, "title"); title != nil {
		page.Title = strings.TrimSpace(textOf(title))
	}
	if body := findElement(doc, "body"); body != nil {
		page.BodyText = textOf(body)
	}

	if mode == TextReadable {
		parsed, _ := url.Parse(pageURL)
		article, err := readability.FromReader(bytes.NewReader(markup), parsed)
		// Pages readability cannot make sense of keep the full text.
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			page.BodyText = article.TextContent
		}
	}
	return page, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textOf concatenates the text nodes under n without adding separators, so
// whitespace in the output is exactly the whitespace of the document.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
