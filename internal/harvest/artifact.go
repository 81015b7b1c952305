package harvest

// Artifact is the resolved downloadable rendition of an article. It is one of
// NoArtifact, PDFArtifact or HTMLArtifact.
type Artifact interface {
	RemoteURL() string
	LocalFilename() string
	artifact()
}

// NoArtifact records that the article offers nothing to download, or that the
// download could not be completed.
type NoArtifact struct{}

// PDFArtifact is a PDF reached through the galley viewer page.
type PDFArtifact struct {
	URL      string
	Filename string
}

// HTMLArtifact is the inline HTML galley.
type HTMLArtifact struct {
	URL      string
	Filename string
}

// RemoteURL implements Artifact.
func (NoArtifact) RemoteURL() string { return NotAvailable }

// LocalFilename implements Artifact.
func (NoArtifact) LocalFilename() string { return NotAvailable }

func (NoArtifact) artifact() {}

// RemoteURL implements Artifact.
func (p PDFArtifact) RemoteURL() string { return p.URL }

// LocalFilename implements Artifact.
func (p PDFArtifact) LocalFilename() string { return p.Filename }

func (PDFArtifact) artifact() {}

// RemoteURL implements Artifact.
func (h HTMLArtifact) RemoteURL() string { return h.URL }

// LocalFilename implements Artifact.
func (h HTMLArtifact) LocalFilename() string { return h.Filename }

func (HTMLArtifact) artifact() {}
