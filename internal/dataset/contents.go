package dataset

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Contents maps a source document file name to its full text.
// Keys are matched case-insensitively.
type Contents map[string]string

// Get returns the content of the named document.
func (c Contents) Get(name string) (string, bool) {
	v, ok := c[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// ReadContents parses a (filename, content) CSV table.
func ReadContents(r io.Reader, name string) (Contents, error) {
	records, positions, err := readCSV(r, ContentSchema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c := make(Contents, len(records))
	for _, rec := range records {
		key := strings.ToLower(strings.TrimSpace(field(rec, positions, ColFile)))
		if key == "" {
			continue
		}
		if _, ok := c[key]; ok {
			continue
		}
		c[key] = field(rec, positions, ColContent)
	}
	return c, nil
}

// LoadContents reads the content table at path.
func LoadContents(path string) (Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadContents(f, path)
}
