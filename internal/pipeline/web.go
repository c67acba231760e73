package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/parleybot/parley/internal/textutil"
)

const (
	fetchTimeout     = 10 * time.Second
	excerptMaxLength = 280
	fetchUserAgent   = "Mozilla/5.0 (compatible; parley/1.0)"
)

// ReadabilityFetcher resolves links by extracting the readable article
// content and rendering a short markdown excerpt.
type ReadabilityFetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewReadabilityFetcher(log *slog.Logger) *ReadabilityFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &ReadabilityFetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: log.With(slog.String("component", "link_fetcher")),
	}
}

func (f *ReadabilityFetcher) Fetch(ctx context.Context, url string) (PageSummary, error) {
	parsed, err := nurl.Parse(url)
	if err != nil {
		return PageSummary{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PageSummary{}, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return PageSummary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PageSummary{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return PageSummary{}, fmt.Errorf("extract article: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = url
	}
	return PageSummary{Title: title, Excerpt: f.excerpt(article.Content)}, nil
}

// excerpt converts article HTML to markdown and truncates it to a short,
// single-line snippet.
func (f *ReadabilityFetcher) excerpt(html string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		f.logger.Debug("markdown conversion failed", slog.Any("error", err))
		return ""
	}
	return textutil.Truncate(textutil.CollapseWhitespace(md), excerptMaxLength, "…")
}
