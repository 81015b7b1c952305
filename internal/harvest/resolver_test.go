package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resolve(t *testing.T, fetcher *fakeFetcher, artifacts *fakeArtifacts, page articleFixture, pageURL string) (Artifact, error) {
	t.Helper()
	doc, err := parseDocument([]byte(articlePageHTML(page)))
	require.NoError(t, err)
	r := NewResolver(fetcher, artifacts, zap.NewNop())
	return r.Resolve(context.Background(), doc, pageURL, orNA(page.doi), page.title)
}

func TestResolvePDFThroughViewer(t *testing.T) {
	t.Parallel()

	viewer := site + "/article/view/14442/12149"
	download := site + "/article/download/14442/12149/93487"
	fetcher := newFakeFetcher().
		serve(viewer, viewerPageHTML(download)).
		serve(download, "%PDF-1.7 body")
	artifacts := newFakeArtifacts()

	got, err := resolve(t, fetcher, artifacts, articleFixture{title: "T", doi: "10.5210/fm.v31i2.14442", pdfLink: viewer}, site+"/article/view/14442")
	require.NoError(t, err)
	assert.Equal(t, PDFArtifact{URL: download, Filename: "10.5210_fm.v31i2.14442.pdf"}, got)
	assert.Equal(t, "%PDF-1.7 body", string(artifacts.files["10.5210_fm.v31i2.14442.pdf"]))
	assert.Equal(t, []string{viewer, download}, fetcher.order)
}

func TestResolvePDFPrefersPDFOverHTML(t *testing.T) {
	t.Parallel()

	viewer := site + "/article/view/1/2"
	download := site + "/article/download/1/2/3"
	fetcher := newFakeFetcher().serve(viewer, viewerPageHTML(download)).serve(download, "pdf")

	got, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "Both", pdfLink: viewer, htmlLink: site + "/article/view/1/9"}, site+"/article/view/1")
	require.NoError(t, err)
	assert.IsType(t, PDFArtifact{}, got)
	assert.Zero(t, fetcher.calls[site+"/article/download/1/9?inline=1"])
}

func TestResolvePDFRelativeLinks(t *testing.T) {
	t.Parallel()

	pageURL := site + "/article/view/5"
	fetcher := newFakeFetcher().
		serve(site+"/article/view/5/6", viewerPageHTML("../download/5/6/7")).
		serve(site+"/article/download/5/6/7", "pdf")

	got, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "Relative", pdfLink: "5/6"}, pageURL)
	require.NoError(t, err)
	assert.Equal(t, site+"/article/download/5/6/7", got.RemoteURL())
}

func TestResolveViewerWithoutDownloadAnchor(t *testing.T) {
	t.Parallel()

	viewer := site + "/article/view/2/3"
	fetcher := newFakeFetcher().serve(viewer, viewerPageHTML(""))
	artifacts := newFakeArtifacts()

	got, err := resolve(t, fetcher, artifacts, articleFixture{title: "No anchor", pdfLink: viewer}, site+"/article/view/2")
	require.ErrorIs(t, err, ErrDownloadLinkNotFound)
	assert.Equal(t, NoArtifact{}, got)
	assert.Empty(t, artifacts.files)
}

func TestResolveViewerFetchFailureStopsWithoutFallback(t *testing.T) {
	t.Parallel()

	viewer := site + "/article/view/3/4"
	htmlGalley := site + "/article/view/3/5"
	fetcher := newFakeFetcher().fail(viewer).serve(HTMLDownloadURL(htmlGalley), "<html/>")

	_, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "x", pdfLink: viewer, htmlLink: htmlGalley}, site+"/article/view/3")
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Zero(t, fetcher.calls[HTMLDownloadURL(htmlGalley)])
}

func TestResolveDownloadFetchFailure(t *testing.T) {
	t.Parallel()

	viewer := site + "/article/view/4/5"
	download := site + "/article/download/4/5/6"
	fetcher := newFakeFetcher().serve(viewer, viewerPageHTML(download)).fail(download)

	got, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "x", pdfLink: viewer}, site+"/article/view/4")
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, NoArtifact{}, got)
}

func TestResolveHTMLFallback(t *testing.T) {
	t.Parallel()

	galley := site + "/article/view/10306/9585"
	inline := site + "/article/download/10306/9585?inline=1"
	fetcher := newFakeFetcher().serve(inline, "<html>full text</html>")
	artifacts := newFakeArtifacts()

	got, err := resolve(t, fetcher, artifacts, articleFixture{title: "An HTML only article", htmlLink: galley}, site+"/article/view/10306")
	require.NoError(t, err)
	assert.Equal(t, HTMLArtifact{URL: inline, Filename: "An_HTML_only_article.html"}, got)
	assert.Equal(t, "<html>full text</html>", string(artifacts.files["An_HTML_only_article.html"]))
	assert.Equal(t, 1, len(fetcher.order))
}

func TestResolveHTMLFetchFailure(t *testing.T) {
	t.Parallel()

	galley := site + "/article/view/8/9"
	fetcher := newFakeFetcher().fail(HTMLDownloadURL(galley))

	got, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "x", htmlLink: galley}, site+"/article/view/8")
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, NoArtifact{}, got)
}

func TestResolveNoGalleys(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	got, err := resolve(t, fetcher, newFakeArtifacts(), articleFixture{title: "Nothing"}, site+"/article/view/9")
	require.NoError(t, err)
	assert.Equal(t, NoArtifact{}, got)
	assert.Equal(t, NotAvailable, got.RemoteURL())
	assert.Equal(t, NotAvailable, got.LocalFilename())
	assert.Empty(t, fetcher.order)
}

func TestResolveStoreFailure(t *testing.T) {
	t.Parallel()

	galley := site + "/article/view/8/9"
	fetcher := newFakeFetcher().serve(HTMLDownloadURL(galley), "<html/>")
	artifacts := newFakeArtifacts()
	artifacts.err = errors.New("disk full")

	_, err := resolve(t, fetcher, artifacts, articleFixture{title: "x", htmlLink: galley}, site+"/article/view/8")
	require.Error(t, err)
}

func TestHTMLDownloadURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://firstmonday.org/ojs/index.php/fm/article/download/10306/9585?inline=1",
		HTMLDownloadURL("https://firstmonday.org/ojs/index.php/fm/article/view/10306/9585"),
	)
	assert.Equal(t, "https://j.test/article/download/1/2?lang=en&inline=1", HTMLDownloadURL("https://j.test/article/view/1/2?lang=en"))
}
