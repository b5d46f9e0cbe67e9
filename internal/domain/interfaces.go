package domain

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Section is a heading label and the nomenclature lines listed under it,
// in document order.
type Section struct {
	Heading string   `json:"heading"`
	Lines   []string `json:"related_hs_codes"`
}

// Category classifies the source document behind a search record.
type Category string

const (
	CategoryNone            Category = ""
	CategoryExplanatoryNote Category = "explanatory note"
	CategoryRuling          Category = "ruling"
	CategoryCourtCase       Category = "court case"
)

// Sectioner splits documents into heading sections.
type Sectioner interface {
	Sections(document Document) ([]Section, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
