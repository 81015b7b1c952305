package harvest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// textOf returns the trimmed text of the first match, or NotAvailable.
func textOf(s *goquery.Selection, selector string) string {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return NotAvailable
	}
	return strings.TrimSpace(found.Text())
}

// hrefOf returns the href of the first match resolved against base, or "".
func hrefOf(s *goquery.Selection, selector string, base string) string {
	href, ok := s.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(base, strings.TrimSpace(href))
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || refURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func collapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}
