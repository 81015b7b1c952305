package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/metrics"
)

// ArticleCrawler fetches one article page, extracts its metadata, resolves its
// artifact and appends exactly one row for it.
type ArticleCrawler struct {
	fetcher  Fetcher
	store    RecordStore
	resolver *Resolver
	logger   *zap.Logger
}

// NewArticleCrawler constructs an ArticleCrawler.
func NewArticleCrawler(fetcher Fetcher, store RecordStore, resolver *Resolver, logger *zap.Logger) *ArticleCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleCrawler{fetcher: fetcher, store: store, resolver: resolver, logger: logger}
}

// Process crawls articleURL and returns the status persisted for it. The
// returned error is non-nil when the row could not be appended or when ctx
// ended during the crawl; an interrupted article is not persisted so that the
// next run picks it up again.
func (c *ArticleCrawler) Process(ctx context.Context, articleURL string) (Status, error) {
	article := c.crawl(ctx, articleURL)
	if err := ctx.Err(); err != nil {
		c.logger.Info("article interrupted, not persisted", zap.String("url", articleURL))
		return "", fmt.Errorf("article %s interrupted: %w", articleURL, err)
	}
	metrics.ObserveArticle(string(article.Status))
	if err := c.store.AppendArticle(ctx, article); err != nil {
		return article.Status, fmt.Errorf("append article %s: %w", articleURL, err)
	}
	return article.Status, nil
}

func (c *ArticleCrawler) crawl(ctx context.Context, articleURL string) Article {
	resp, err := c.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		c.logger.Warn("failed to fetch article", zap.String("url", articleURL), zap.Error(err))
		return FailedArticle(articleURL)
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		c.logger.Warn("failed to parse article", zap.String("url", articleURL), zap.Error(err))
		return FailedArticle(articleURL)
	}

	base := resp.URL
	if base == "" {
		base = articleURL
	}
	article := ExtractArticle(doc, articleURL)
	artifact, err := c.resolver.Resolve(ctx, doc, base, article.DOI, article.Title)
	article.Artifact = artifact
	if err != nil {
		c.logger.Warn("failed to download artifact", zap.String("url", articleURL), zap.Error(err))
		article.Status = StatusPDFDownloadFailed
		return article
	}
	article.Status = StatusSuccess
	return article
}

// ExtractArticle reads the metadata fields of an article page. Missing fields
// are NotAvailable; Artifact and Status are left for the caller.
func ExtractArticle(doc *goquery.Document, articleURL string) Article {
	root := doc.Selection
	article := Article{
		Title:           textOf(root, "h1.page_title"),
		Authors:         extractAuthors(root),
		PublicationDate: textOf(root, "div.item.published span"),
		Abstract:        textOf(root, "div.item.abstract"),
		DOI:             textOf(root, "section.item.doi a"),
		Keywords:        collapseWhitespace(textOf(root, "section.item.keywords span.value")),
		URL:             articleURL,
		Artifact:        NoArtifact{},
	}
	for _, field := range []*string{&article.Title, &article.PublicationDate, &article.Abstract, &article.DOI, &article.Keywords} {
		if strings.TrimSpace(*field) == "" {
			*field = NotAvailable
		}
	}
	return article
}

func extractAuthors(root *goquery.Selection) []Author {
	authors := []Author{}
	root.Find("section.item.authors ul li").Each(func(_ int, li *goquery.Selection) {
		name := textOf(li, "span.name")
		if name == NotAvailable || name == "" {
			return
		}
		authors = append(authors, Author{
			Name:        name,
			Affiliation: textOf(li, "span.affiliation"),
		})
	})
	return authors
}
