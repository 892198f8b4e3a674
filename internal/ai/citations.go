package ai

import (
	"regexp"

	"github.com/ashureev/belai/internal/domain"
)

var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^\s)]+)\)`)

// ExtractCitations returns the distinct markdown links in text, in order of
// first appearance. Link text becomes the title, falling back to the URI.
func ExtractCitations(text string) []domain.Citation {
	matches := markdownLink.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	citations := make([]domain.Citation, 0, len(matches))
	for _, m := range matches {
		uri := m[2]
		if seen[uri] {
			continue
		}
		seen[uri] = true
		citations = append(citations, domain.NewCitation(uri, m[1]))
	}
	return citations
}
