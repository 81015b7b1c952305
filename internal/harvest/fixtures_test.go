package harvest

import (
	"fmt"
	"strings"
)

const site = "https://journal.test/ojs/index.php/fm"

func archivePageHTML(issues ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="issues_archive">`)
	for _, is := range issues {
		fmt.Fprintf(&b, `<li><div class="obj_issue_summary"><h2><a class="title" href="%s">
			%s
		</a></h2></div></li>`, is[0], is[1])
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func issuePageHTML(articles ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="sections">`)
	for _, a := range articles {
		fmt.Fprintf(&b, `<div class="obj_article_summary"><h3 class="title"><a id="article-x" href="%s">%s</a></h3>
			<div class="meta"><div class="authors">Someone</div></div></div>`, a[0], a[1])
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

type articleFixture struct {
	title    string
	doi      string
	pdfLink  string
	htmlLink string
}

func articlePageHTML(f articleFixture) string {
	var b strings.Builder
	b.WriteString(`<html><body><article class="obj_article_details">`)
	fmt.Fprintf(&b, `<h1 class="page_title">
		%s
	</h1>`, f.title)
	b.WriteString(`<section class="item authors"><h2 class="pkp_screen_reader">Authors</h2><ul class="authors">
		<li><span class="name">Ada Lovelace</span><span class="affiliation">Analytical Society</span></li>
		<li><span class="name">Charles Babbage</span></li>
	</ul></section>`)
	if f.doi != "" {
		fmt.Fprintf(&b, `<section class="item doi"><h2 class="label">DOI:</h2><span class="value"><a href="https://doi.org/%s">%s</a></span></section>`, f.doi, f.doi)
	}
	b.WriteString(`<section class="item keywords"><h2 class="label">Keywords:</h2><span class="value">
		web   archives,
		metadata,	crawling
	</span></section>`)
	b.WriteString(`<div class="item abstract">
		A study of harvesting.
	</div>`)
	b.WriteString(`<div class="item published"><section class="sub_item"><h2 class="label">Published</h2><div class="value"><span>2026-02-02</span></div></section></div>`)
	b.WriteString(`<div class="item galleys"><ul class="value galleys_links">`)
	if f.pdfLink != "" {
		fmt.Fprintf(&b, `<li><a class="obj_galley_link pdf" href="%s">PDF</a></li>`, f.pdfLink)
	}
	if f.htmlLink != "" {
		fmt.Fprintf(&b, `<li><a class="obj_galley_link file" href="%s">HTML</a></li>`, f.htmlLink)
	}
	b.WriteString(`</ul></div></article></body></html>`)
	return b.String()
}

func viewerPageHTML(downloadLink string) string {
	anchor := ""
	if downloadLink != "" {
		anchor = fmt.Sprintf(`<a href="%s" class="download" download><span class="label">Download</span></a>`, downloadLink)
	}
	return fmt.Sprintf(`<html><body><header class="header_view"><a href="%s/article/view/1" class="return">Back</a>%s</header>
		<div id="pdfCanvasContainer" class="galley_view"><iframe src="viewer.html"></iframe></div></body></html>`, site, anchor)
}
