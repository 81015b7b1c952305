package harvest

import (
	"encoding/json"
	"strconv"
)

// NotAvailable marks any field that could not be extracted.
const NotAvailable = "N/A"

// Status is the terminal outcome recorded for an issue or article row.
type Status string

// Terminal statuses persisted in the record store.
const (
	StatusSuccess           Status = "success"
	StatusFailed            Status = "failed"
	StatusPDFDownloadFailed Status = "pdf_download_failed"
)

// Author is one name/affiliation pair in an article's byline.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// Issue is one row of the issues table.
type Issue struct {
	Volume          string
	Number          string
	PublicationDate string
	URL             string
	Articles        int
	Status          Status
}

// IssueColumns is the header of the issues table.
var IssueColumns = []string{"volume", "number", "publication_date", "url", "articles", "status"}

// Record flattens the issue into IssueColumns order.
func (i Issue) Record() []string {
	return []string{
		orNA(i.Volume),
		orNA(i.Number),
		orNA(i.PublicationDate),
		i.URL,
		strconv.Itoa(i.Articles),
		string(i.Status),
	}
}

// Article is one row of the articles table.
type Article struct {
	Title           string
	Authors         []Author
	Keywords        string
	PublicationDate string
	Abstract        string
	URL             string
	DOI             string
	Artifact        Artifact
	Status          Status
}

// ArticleColumns is the header of the articles table.
var ArticleColumns = []string{
	"title",
	"authors",
	"keywords",
	"publication_date",
	"abstract",
	"url",
	"artifact_url",
	"doi",
	"local_filename",
	"status",
}

// FailedArticle is the row written when the article page itself could not be fetched.
func FailedArticle(url string) Article {
	return Article{
		Title:           NotAvailable,
		Keywords:        NotAvailable,
		PublicationDate: NotAvailable,
		Abstract:        NotAvailable,
		URL:             url,
		DOI:             NotAvailable,
		Artifact:        NoArtifact{},
		Status:          StatusFailed,
	}
}

// AuthorsJSON encodes the author list as a JSON array; an empty list is "[]".
func (a Article) AuthorsJSON() string {
	authors := a.Authors
	if authors == nil {
		authors = []Author{}
	}
	raw, err := json.Marshal(authors)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// Record flattens the article into ArticleColumns order.
func (a Article) Record() []string {
	artifact := a.Artifact
	if artifact == nil {
		artifact = NoArtifact{}
	}
	return []string{
		orNA(a.Title),
		a.AuthorsJSON(),
		orNA(a.Keywords),
		orNA(a.PublicationDate),
		orNA(a.Abstract),
		a.URL,
		artifact.RemoteURL(),
		orNA(a.DOI),
		artifact.LocalFilename(),
		string(a.Status),
	}
}

func orNA(v string) string {
	if v == "" {
		return NotAvailable
	}
	return v
}
