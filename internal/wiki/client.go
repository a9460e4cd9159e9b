// Package wiki searches the open.mp documentation.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/version"
)

// MaxResults caps how many articles one search returns.
const MaxResults = 10

// Article is one search hit, with plain-text description and an
// absolute URL.
type Article struct {
	Title       string
	URL         string
	Description string
}

// Searcher looks up articles for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Article, error)
}

// Client calls GET {apiURL}/docs/search?q=.
type Client struct {
	http    *http.Client
	apiURL  string
	siteURL *url.URL
}

// NewClient creates a client. siteURL resolves relative article links.
func NewClient(httpClient *http.Client, apiURL, siteURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	site, err := url.Parse(siteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("invalid wiki site url %q", siteURL)
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid wiki api url %q: %w", apiURL, err)
	}
	return &Client{
		http:    httpClient,
		apiURL:  strings.TrimRight(apiURL, "/"),
		siteURL: site,
	}, nil
}

type searchResponse struct {
	Hits []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Desc  string `json:"desc"`
	} `json:"hits"`
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrUpstreamQueryFailed, fmt.Sprintf(format, args...))
}

// Search returns at most MaxResults articles. No hits is an empty slice.
func (c *Client) Search(ctx context.Context, query string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint := c.apiURL + "/docs/search?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, failed("build request: %v", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, failed("search %q: %v", query, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, failed("search %q: unexpected status %d", query, res.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&body); err != nil {
		return nil, failed("decode search response: %v", err)
	}

	articles := make([]Article, 0, min(len(body.Hits), MaxResults))
	for _, hit := range body.Hits {
		if len(articles) == MaxResults {
			break
		}
		title := plainText(hit.Title)
		if title == "" {
			continue
		}
		articles = append(articles, Article{
			Title:       title,
			URL:         c.resolve(hit.URL),
			Description: plainText(hit.Desc),
		})
	}
	return articles, nil
}

// resolve makes u absolute against the docs site.
func (c *Client) resolve(u string) string {
	ref, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return c.siteURL.String()
	}
	return c.siteURL.ResolveReference(ref).String()
}

// plainText drops highlight markup and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
