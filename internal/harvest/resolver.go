package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Selectors used to locate galley links on article and viewer pages.
const (
	pdfGalleySelector    = "a.obj_galley_link.pdf"
	htmlGalleySelector   = "a.obj_galley_link.file"
	viewerDownloadAnchor = "a.download"
	inlineViewMarker     = "inline=1"

	pdfContentType  = "application/pdf"
	htmlContentType = "text/html; charset=utf-8"
)

// Resolver finds, downloads and stores the artifact linked from an article page.
type Resolver struct {
	fetcher   Fetcher
	artifacts ArtifactStore
	logger    *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(fetcher Fetcher, artifacts ArtifactStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, artifacts: artifacts, logger: logger}
}

// Resolve picks the PDF galley, then the HTML galley, then nothing. A non-nil
// error means an artifact was advertised but could not be downloaded; the
// returned Artifact is NoArtifact in that case.
func (r *Resolver) Resolve(ctx context.Context, page *goquery.Document, pageURL, doi, title string) (Artifact, error) {
	if pdfLink := hrefOf(page.Selection, pdfGalleySelector, pageURL); pdfLink != "" {
		return r.resolvePDF(ctx, pdfLink, doi, title)
	}
	if htmlLink := hrefOf(page.Selection, htmlGalleySelector, pageURL); htmlLink != "" {
		return r.resolveHTML(ctx, htmlLink, doi, title)
	}
	return NoArtifact{}, nil
}

// resolvePDF follows the galley link to the viewer page and downloads the file
// behind its download anchor.
func (r *Resolver) resolvePDF(ctx context.Context, viewerURL, doi, title string) (Artifact, error) {
	viewer, err := r.fetcher.Fetch(ctx, viewerURL)
	if err != nil {
		return NoArtifact{}, fmt.Errorf("fetch viewer page: %w", err)
	}
	doc, err := parseDocument(viewer.Body)
	if err != nil {
		return NoArtifact{}, err
	}
	downloadURL := hrefOf(doc.Selection, viewerDownloadAnchor, viewer.URL)
	if downloadURL == "" {
		return NoArtifact{}, fmt.Errorf("%s: %w", viewerURL, ErrDownloadLinkNotFound)
	}

	file, err := r.fetcher.Fetch(ctx, downloadURL)
	if err != nil {
		return NoArtifact{}, fmt.Errorf("fetch pdf: %w", err)
	}
	name := ArtifactFilename(doi, title, ".pdf")
	if err := r.store(ctx, name, pdfContentType, file.Body); err != nil {
		return NoArtifact{}, err
	}
	r.logger.Info("pdf saved", zap.String("url", downloadURL), zap.String("file", name))
	return PDFArtifact{URL: downloadURL, Filename: name}, nil
}

// resolveHTML downloads the inline rendition of the HTML galley directly.
func (r *Resolver) resolveHTML(ctx context.Context, galleyURL, doi, title string) (Artifact, error) {
	downloadURL := HTMLDownloadURL(galleyURL)
	resp, err := r.fetcher.Fetch(ctx, downloadURL)
	if err != nil {
		return NoArtifact{}, fmt.Errorf("fetch html galley: %w", err)
	}
	name := ArtifactFilename(doi, title, ".html")
	if err := r.store(ctx, name, htmlContentType, resp.Body); err != nil {
		return NoArtifact{}, err
	}
	r.logger.Info("html saved", zap.String("url", downloadURL), zap.String("file", name))
	return HTMLArtifact{URL: downloadURL, Filename: name}, nil
}

func (r *Resolver) store(ctx context.Context, name, contentType string, data []byte) error {
	if _, err := r.artifacts.PutObject(ctx, name, contentType, data); err != nil {
		return fmt.Errorf("store artifact %s: %w", name, err)
	}
	return nil
}

// HTMLDownloadURL turns a galley view link into its inline download link.
func HTMLDownloadURL(galleyURL string) string {
	u := strings.ReplaceAll(galleyURL, "/view/", "/download/")
	if strings.Contains(u, "?") {
		return u + "&" + inlineViewMarker
	}
	return u + "?" + inlineViewMarker
}
