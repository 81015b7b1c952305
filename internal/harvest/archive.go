package harvest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/metrics"
)

var (
	volumePattern = regexp.MustCompile(`Volume\s+(\d+)`)
	numberPattern = regexp.MustCompile(`Number\s+(\d+)`)
	// e.g. "2 February 2026"
	datePattern = regexp.MustCompile(`(\d{1,2}\s+\w+\s+\d{4})`)
)

// IssueProcessor crawls one issue page.
type IssueProcessor interface {
	Process(ctx context.Context, issueURL string) (IssueStats, error)
}

// Summary aggregates the outcome of an archive walk.
type Summary struct {
	PagesVisited int
	PagesFailed  int
	Issues       int
	IssuesFailed int
	Articles     int
	Skipped      int
	ByStatus     map[Status]int
}

// ArchiveWalker iterates archive listing pages and records one row per issue.
type ArchiveWalker struct {
	baseURL string
	fetcher Fetcher
	store   RecordStore
	issues  IssueProcessor
	logger  *zap.Logger
}

// NewArchiveWalker constructs an ArchiveWalker rooted at baseURL.
func NewArchiveWalker(baseURL string, fetcher Fetcher, store RecordStore, issues IssueProcessor, logger *zap.Logger) *ArchiveWalker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveWalker{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		store:   store,
		issues:  issues,
		logger:  logger,
	}
}

// PageURL builds the URL of archive page index.
func (w *ArchiveWalker) PageURL(index int) string {
	return fmt.Sprintf("%s/%d", w.baseURL, index)
}

// Run walks archive pages 1..pageCount in order. Only context cancellation
// ends the walk early; its error is returned with the partial summary.
func (w *ArchiveWalker) Run(ctx context.Context, pageCount int) (Summary, error) {
	summary := Summary{ByStatus: map[Status]int{}}
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("archive walk interrupted: %w", err)
		}
		w.walkPage(ctx, page, &summary)
	}
	return summary, nil
}

func (w *ArchiveWalker) walkPage(ctx context.Context, page int, summary *Summary) {
	pageURL := w.PageURL(page)
	logger := w.logger.With(zap.Int("page", page), zap.String("url", pageURL))
	logger.Info("scraping archive page")

	resp, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		summary.PagesFailed++
		metrics.ObserveArchivePage("failed")
		logger.Warn("failed to fetch archive page", zap.Error(err))
		return
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		summary.PagesFailed++
		metrics.ObserveArchivePage("failed")
		logger.Warn("failed to parse archive page", zap.Error(err))
		return
	}
	summary.PagesVisited++
	metrics.ObserveArchivePage("success")

	entries := ListIssues(doc, resp.URL)
	logger.Info("found issues on page", zap.Int("count", len(entries)))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		w.walkIssue(ctx, entry, summary)
	}
}

func (w *ArchiveWalker) walkIssue(ctx context.Context, entry ListingEntry, summary *Summary) {
	issue := ParseIssueTitle(entry.Title)
	issue.URL = entry.URL
	w.logger.Info("scraping issue",
		zap.String("url", issue.URL),
		zap.String("volume", issue.Volume),
		zap.String("number", issue.Number),
		zap.String("date", issue.PublicationDate),
	)
	if issue.URL == "" {
		summary.IssuesFailed++
		w.logger.Warn("issue entry without link", zap.String("title", entry.Title))
		return
	}

	stats, err := w.issues.Process(ctx, issue.URL)
	if err != nil && ctx.Err() != nil {
		w.logger.Info("issue interrupted, not recorded", zap.String("url", issue.URL))
		return
	}
	if err != nil {
		summary.IssuesFailed++
		metrics.ObserveIssue("failed")
		w.logger.Warn("failed to scrape issue", zap.String("url", issue.URL), zap.Error(err))
		return
	}
	summary.Issues++
	summary.Articles += stats.Found
	summary.Skipped += stats.Skipped
	for status, n := range stats.ByStatus {
		summary.ByStatus[status] += n
	}

	issue.Articles = stats.Found
	issue.Status = StatusSuccess
	metrics.ObserveIssue(string(issue.Status))
	if err := w.store.AppendIssue(ctx, issue); err != nil {
		w.logger.Error("issue not persisted", zap.String("url", issue.URL), zap.Error(err))
	}
}

// ListIssues returns the issue summaries of an archive page in page order.
func ListIssues(doc *goquery.Document, pageURL string) []ListingEntry {
	var entries []ListingEntry
	doc.Find("div.obj_issue_summary").Each(func(_ int, s *goquery.Selection) {
		entries = append(entries, ListingEntry{
			Title: textOf(s, "a.title"),
			URL:   hrefOf(s, "a.title", pageURL),
		})
	})
	return entries
}

// ParseIssueTitle extracts volume, number and publication date from an issue
// listing title. Each field is matched independently.
func ParseIssueTitle(title string) Issue {
	return Issue{
		Volume:          firstGroup(volumePattern, title),
		Number:          firstGroup(numberPattern, title),
		PublicationDate: firstGroup(datePattern, title),
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return NotAvailable
	}
	return m[1]
}
