// Package csvstore implements harvest.RecordStore on a pair of CSV files.
package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/JakeFAU/journal-harvester/internal/harvest"
)

// Config names the two table files.
type Config struct {
	ArticlesPath string `mapstructure:"articles_file"`
	IssuesPath   string `mapstructure:"issues_file"`
}

// Store appends rows to the issues and articles CSV files. Each append opens
// the file, writes one record and closes it again. The set of persisted
// article URLs is loaded once by Open and kept current by AppendArticle.
type Store struct {
	cfg Config

	mu       sync.Mutex
	articles map[string]harvest.Status
}

// Open creates any missing table with its header row and indexes the article
// URLs already persisted. Opening existing tables leaves them untouched.
func Open(cfg Config) (*Store, error) {
	if cfg.ArticlesPath == "" || cfg.IssuesPath == "" {
		return nil, fmt.Errorf("articles and issues paths are required")
	}
	if err := ensureTable(cfg.ArticlesPath, harvest.ArticleColumns); err != nil {
		return nil, err
	}
	if err := ensureTable(cfg.IssuesPath, harvest.IssueColumns); err != nil {
		return nil, err
	}
	index, err := loadArticleIndex(cfg.ArticlesPath)
	if err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, articles: index}, nil
}

// HasArticle reports whether a row for url has been persisted.
func (s *Store) HasArticle(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.articles[url]
	return ok
}

// ArticleStatus returns the status recorded for url.
func (s *Store) ArticleStatus(url string) (harvest.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.articles[url]
	return status, ok
}

// AppendArticle writes one articles row and records its URL.
func (s *Store) AppendArticle(_ context.Context, article harvest.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := appendRecord(s.cfg.ArticlesPath, article.Record()); err != nil {
		return fmt.Errorf("append article: %w", err)
	}
	s.articles[article.URL] = article.Status
	return nil
}

// AppendIssue writes one issues row.
func (s *Store) AppendIssue(_ context.Context, issue harvest.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := appendRecord(s.cfg.IssuesPath, issue.Record()); err != nil {
		return fmt.Errorf("append issue: %w", err)
	}
	return nil
}

// Close implements harvest.RecordStore; no handles are held between appends.
func (s *Store) Close() error {
	return nil
}

func ensureTable(path string, header []string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	// #nosec G304 -- table paths come from configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return writeAndClose(f, header)
}

func appendRecord(path string, record []string) error {
	// #nosec G304 -- table paths come from configuration.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return writeAndClose(f, record)
}

func writeAndClose(f *os.File, record []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return nil
}

// loadArticleIndex maps every url in the articles table to its status. A
// partial final record, left by a run killed mid-append, is cut off so the
// table ends on a complete row again.
func loadArticleIndex(path string) (map[string]harvest.Status, error) {
	// #nosec G304 -- table paths come from configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	index, complete, err := parseArticleIndex(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if complete < int64(len(data)) {
		if err := os.Truncate(path, complete); err != nil {
			return nil, fmt.Errorf("drop partial record of %s: %w", path, err)
		}
	}
	return index, nil
}

// parseArticleIndex returns the index and the byte length of the data that
// holds only complete records.
func parseArticleIndex(data []byte) (map[string]harvest.Status, int64, error) {
	size := int64(len(data))
	index := map[string]harvest.Status{}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return index, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("header: %w", err)
	}
	urlCol, statusCol := columnIndex(header, "url"), columnIndex(header, "status")
	if urlCol < 0 {
		return nil, 0, fmt.Errorf("no url column")
	}

	complete := r.InputOffset()
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		atEnd := r.InputOffset() >= size
		if err != nil {
			if atEnd {
				break
			}
			return nil, 0, err
		}
		// Every record is written with a trailing newline.
		if atEnd && !bytes.HasSuffix(data, []byte("\n")) {
			break
		}
		if atEnd && len(record) != len(header) {
			break
		}
		complete = r.InputOffset()
		if urlCol >= len(record) {
			continue
		}
		status := harvest.Status("")
		if statusCol >= 0 && statusCol < len(record) {
			status = harvest.Status(record[statusCol])
		}
		index[record[urlCol]] = status
	}
	return index, complete, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.TrimSpace(col) == name {
			return i
		}
	}
	return -1
}
