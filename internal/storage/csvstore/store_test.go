package csvstore_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
	"github.com/JakeFAU/journal-harvester/internal/storage/csvstore"
)

func newConfig(t *testing.T) csvstore.Config {
	t.Helper()
	dir := t.TempDir()
	return csvstore.Config{
		ArticlesPath: filepath.Join(dir, "articles.csv"),
		IssuesPath:   filepath.Join(dir, "issues.csv"),
	}
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	_, err := csvstore.Open(cfg)
	require.NoError(t, err)
	_, err = csvstore.Open(cfg)
	require.NoError(t, err)

	articles := readRecords(t, cfg.ArticlesPath)
	require.Len(t, articles, 1)
	assert.Equal(t, harvest.ArticleColumns, articles[0])

	issues := readRecords(t, cfg.IssuesPath)
	require.Len(t, issues, 1)
	assert.Equal(t, harvest.IssueColumns, issues[0])
}

func TestOpenCreatesOnlyMissingTable(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	require.NoError(t, os.WriteFile(cfg.IssuesPath, []byte("volume,number,publication_date,url,articles,status\n\"1\",\"2\",\"N/A\",\"u\",\"3\",\"success\"\n"), 0o600))

	_, err := csvstore.Open(cfg)
	require.NoError(t, err)

	assert.Len(t, readRecords(t, cfg.IssuesPath), 2)
	assert.Len(t, readRecords(t, cfg.ArticlesPath), 1)
}

func TestAppendArticleUpdatesIndex(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	store, err := csvstore.Open(cfg)
	require.NoError(t, err)

	url := "https://journal.test/article/view/1"
	assert.False(t, store.HasArticle(url))

	article := harvest.FailedArticle(url)
	require.NoError(t, store.AppendArticle(context.Background(), article))
	assert.True(t, store.HasArticle(url))

	status, ok := store.ArticleStatus(url)
	require.True(t, ok)
	assert.Equal(t, harvest.StatusFailed, status)

	records := readRecords(t, cfg.ArticlesPath)
	require.Len(t, records, 2)
	assert.Equal(t, article.Record(), records[1])
}

func TestOpenIndexesExistingRows(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	first, err := csvstore.Open(cfg)
	require.NoError(t, err)

	article := harvest.Article{
		Title:    "Title, with \"quotes\"",
		Authors:  []harvest.Author{{Name: "A", Affiliation: "B"}},
		URL:      "https://journal.test/article/view/7",
		Artifact: harvest.PDFArtifact{URL: "https://journal.test/article/download/7/1/2", Filename: "10.5210_fm.v1i1.7.pdf"},
		Status:   harvest.StatusSuccess,
	}
	require.NoError(t, first.AppendArticle(context.Background(), article))
	require.NoError(t, first.Close())

	second, err := csvstore.Open(cfg)
	require.NoError(t, err)
	assert.True(t, second.HasArticle(article.URL))
	// Substrings of persisted fields are not keys.
	assert.False(t, second.HasArticle("https://journal.test/article/view/"))
	assert.False(t, second.HasArticle(article.Artifact.RemoteURL()))
}

func appendRaw(t *testing.T, path, raw string) {
	t.Helper()
	// #nosec G304 -- test writes to the controlled temp directory.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(raw)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func seedOneArticle(t *testing.T, cfg csvstore.Config) string {
	t.Helper()
	store, err := csvstore.Open(cfg)
	require.NoError(t, err)
	url := "https://journal.test/article/view/1"
	require.NoError(t, store.AppendArticle(context.Background(), harvest.Article{Title: "T1", URL: url, Status: harvest.StatusSuccess}))
	return url
}

// A run killed mid-append leaves a cut-off final row; reopening drops it.
func TestOpenDropsPartialFinalRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fragment string
	}{
		{"unclosed quoted field", "T2,[],k,d,\"first line\nsecond"},
		{"short row", "T2,[],k,d"},
		{"full row without newline", "T2,[],k,d,a,https://journal.test/article/view/2,N/A,N/A,N/A,succ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newConfig(t)
			url := seedOneArticle(t, cfg)
			before, err := os.ReadFile(cfg.ArticlesPath)
			require.NoError(t, err)
			appendRaw(t, cfg.ArticlesPath, tt.fragment)

			store, err := csvstore.Open(cfg)
			require.NoError(t, err)
			assert.True(t, store.HasArticle(url))
			assert.False(t, store.HasArticle("https://journal.test/article/view/2"))

			after, err := os.ReadFile(cfg.ArticlesPath)
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))

			next := harvest.Article{Title: "T3", URL: "https://journal.test/article/view/3", Status: harvest.StatusSuccess}
			require.NoError(t, store.AppendArticle(context.Background(), next))
			records := readRecords(t, cfg.ArticlesPath)
			require.Len(t, records, 3)
			assert.Equal(t, next.URL, records[2][5])
		})
	}
}

func TestOpenRejectsCorruptionBeforeFinalRecord(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	seedOneArticle(t, cfg)
	appendRaw(t, cfg.ArticlesPath, "T2,[],k,\"bad\"quote,a,u,N/A,N/A,N/A,failed\nT3,[],k,d,a,u3,N/A,N/A,N/A,success\n")

	_, err := csvstore.Open(cfg)
	require.Error(t, err)
}

func TestAppendIssue(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	store, err := csvstore.Open(cfg)
	require.NoError(t, err)

	issue := harvest.Issue{Volume: "12", Number: "3", PublicationDate: "2 February 2026", URL: "https://journal.test/issue/view/9", Articles: 4, Status: harvest.StatusSuccess}
	require.NoError(t, store.AppendIssue(context.Background(), issue))

	records := readRecords(t, cfg.IssuesPath)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"12", "3", "2 February 2026", "https://journal.test/issue/view/9", "4", "success"}, records[1])
}

func TestOpenRequiresPaths(t *testing.T) {
	t.Parallel()

	_, err := csvstore.Open(csvstore.Config{})
	require.Error(t, err)
}
