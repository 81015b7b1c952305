package harvest

import (
	"regexp"
	"strings"
)

const titleStemRunes = 50

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeFilename strips characters that are not allowed in file names.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

// ArtifactFilename derives the local file name for an article's artifact.
// The DOI is preferred; without one the first 50 characters of the title are
// used. ext includes the leading dot.
func ArtifactFilename(doi, title, ext string) string {
	var stem string
	if doi != "" && doi != NotAvailable {
		stem = strings.ReplaceAll(doi, "/", "_")
	} else {
		runes := []rune(title)
		if len(runes) > titleStemRunes {
			runes = runes[:titleStemRunes]
		}
		stem = strings.ReplaceAll(string(runes), " ", "_")
	}
	stem = SanitizeFilename(stem)
	if strings.Trim(stem, "._") == "" {
		stem = "article"
	}
	return stem + SanitizeFilename(ext)
}
