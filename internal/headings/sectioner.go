package headings

import (
	"regexp"
	"strings"

	"hsindex/internal/domain"
)

// LineSectioner starts a new section at every line beginning with a one- or
// two-digit number followed by a dot ("35.02 Albumins ...", "1. Note").
// Following non-blank lines belong to the current section; lines before the
// first heading are ignored.
type LineSectioner struct {
	heading *regexp.Regexp
}

func NewLineSectioner() *LineSectioner {
	return &LineSectioner{heading: regexp.MustCompile(`^(?:[1-9]|[1-9]\d)\.`)}
}

func (s *LineSectioner) Sections(document domain.Document) ([]domain.Section, error) {
	var sections []domain.Section
	current := -1
	for _, line := range strings.Split(document.Content, "\n") {
		line = strings.TrimRight(line, "\r")
		if s.heading.MatchString(line) {
			sections = append(sections, domain.Section{Heading: strings.TrimSpace(line)})
			current = len(sections) - 1
			continue
		}
		if current < 0 {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		sections[current].Lines = append(sections[current].Lines, trimmed)
	}
	return sections, nil
}
