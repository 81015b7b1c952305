package harvest

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ArticleProcessor crawls and persists a single article.
type ArticleProcessor interface {
	Process(ctx context.Context, articleURL string) (Status, error)
}

// IssueStats summarizes what an IssueCrawler did with one issue page.
type IssueStats struct {
	// Found is the number of article entries listed on the page.
	Found    int
	Skipped  int
	ByStatus map[Status]int
}

// IssueCrawler enumerates the articles of one issue and crawls the ones not
// yet persisted.
type IssueCrawler struct {
	fetcher  Fetcher
	store    RecordStore
	articles ArticleProcessor
	logger   *zap.Logger
}

// NewIssueCrawler constructs an IssueCrawler.
func NewIssueCrawler(fetcher Fetcher, store RecordStore, articles ArticleProcessor, logger *zap.Logger) *IssueCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueCrawler{fetcher: fetcher, store: store, articles: articles, logger: logger}
}

// Process crawls issueURL and returns the per-issue stats. An error means the
// issue page could not be fetched or ctx ended before every entry was handled;
// either way the issue must not be recorded.
func (c *IssueCrawler) Process(ctx context.Context, issueURL string) (IssueStats, error) {
	resp, err := c.fetcher.Fetch(ctx, issueURL)
	if err != nil {
		return IssueStats{}, fmt.Errorf("fetch issue %s: %w", issueURL, err)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return IssueStats{}, fmt.Errorf("issue %s: %w", issueURL, err)
	}

	entries := ListArticles(doc, resp.URL)
	stats := IssueStats{Found: len(entries), ByStatus: map[Status]int{}}
	c.logger.Info("found articles in issue", zap.String("url", issueURL), zap.Int("count", stats.Found))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("issue %s interrupted: %w", issueURL, err)
		}
		if entry.URL == "" {
			c.logger.Warn("article entry without link", zap.String("title", entry.Title))
			continue
		}
		if c.store.HasArticle(entry.URL) {
			stats.Skipped++
			c.logger.Info("article already persisted, skipping",
				zap.String("title", entry.Title),
				zap.String("url", entry.URL),
			)
			continue
		}
		c.logger.Info("scraping article", zap.String("title", entry.Title), zap.String("url", entry.URL))
		status, err := c.articles.Process(ctx, entry.URL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, fmt.Errorf("issue %s interrupted: %w", issueURL, ctxErr)
		}
		if err != nil {
			c.logger.Error("article not persisted", zap.String("url", entry.URL), zap.Error(err))
		}
		stats.ByStatus[status]++
	}
	return stats, nil
}

// ListingEntry is one linked summary on an archive or issue page.
type ListingEntry struct {
	Title string
	URL   string
}

// ListArticles returns the article summaries of an issue page in page order.
func ListArticles(doc *goquery.Document, pageURL string) []ListingEntry {
	var entries []ListingEntry
	doc.Find("div.obj_article_summary").Each(func(_ int, s *goquery.Selection) {
		heading := s.Find("h3.title").First()
		entries = append(entries, ListingEntry{
			Title: textOf(s, "h3.title"),
			URL:   hrefOf(heading, "a", pageURL),
		})
	})
	return entries
}
