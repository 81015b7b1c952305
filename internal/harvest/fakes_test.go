package harvest

import (
	"context"
	"fmt"
	"sync"
)

type fakePage struct {
	body string
	err  error
}

// fakeFetcher serves canned pages; unknown URLs fail like an exhausted retry.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	cancels map[string]context.CancelFunc
	calls   map[string]int
	order   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:   map[string]fakePage{},
		cancels: map[string]context.CancelFunc{},
		calls:   map[string]int{},
	}
}

// cancelAt makes a fetch of url cancel the run, as a SIGINT would mid-request.
func (f *fakeFetcher) cancelAt(url string, cancel context.CancelFunc) *fakeFetcher {
	f.cancels[url] = cancel
	return f
}

func (f *fakeFetcher) serve(url, body string) *fakeFetcher {
	f.pages[url] = fakePage{body: body}
	return f
}

func (f *fakeFetcher) fail(url string) *fakeFetcher {
	f.pages[url] = fakePage{err: fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, ErrUnexpectedStatus)}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	f.order = append(f.order, url)
	if cancel, ok := f.cancels[url]; ok {
		cancel()
		return Response{}, ctx.Err()
	}
	page, ok := f.pages[url]
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrFetchFailed, url)
	}
	if page.err != nil {
		return Response{}, page.err
	}
	return Response{URL: url, StatusCode: 200, Body: []byte(page.body)}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	articles []Article
	issues   []Issue
	index    map[string]Status
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{index: map[string]Status{}}
}

func (s *fakeStore) HasArticle(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[url]
	return ok
}

func (s *fakeStore) AppendArticle(_ context.Context, a Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.articles = append(s.articles, a)
	s.index[a.URL] = a.Status
	return nil
}

func (s *fakeStore) AppendIssue(_ context.Context, i Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.issues = append(s.issues, i)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakeArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{files: map[string][]byte{}}
}

func (a *fakeArtifacts) PutObject(_ context.Context, name, _ string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.files[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// recordingArticles stands in for the ArticleCrawler in issue tests.
type recordingArticles struct {
	urls []string
}

func (r *recordingArticles) Process(_ context.Context, url string) (Status, error) {
	r.urls = append(r.urls, url)
	return StatusSuccess, nil
}
