// Package hscode holds helpers for Harmonized System code strings.
//
// Codes are compared as digit strings without separators. The canonical
// lengths are 2 (chapter), 4 (heading), 6 (code) and 8 (sub-code); a code's
// leading characters always equal its ancestors.
package hscode

import (
	"regexp"
	"strings"
)

// Level is the depth of a code in the hierarchy.
type Level int

const (
	LevelUnknown Level = iota
	LevelChapter
	LevelHeading
	LevelCode
	LevelSubCode
)

func (l Level) String() string {
	switch l {
	case LevelChapter:
		return "chapter"
	case LevelHeading:
		return "heading"
	case LevelCode:
		return "code"
	case LevelSubCode:
		return "sub-code"
	default:
		return "unknown"
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// LevelOf maps a normalized code to its level by length.
func LevelOf(code string) Level {
	switch len(code) {
	case 2:
		return LevelChapter
	case 4:
		return LevelHeading
	case 6:
		return LevelCode
	case 8:
		return LevelSubCode
	default:
		return LevelUnknown
	}
}

var (
	separators  = strings.NewReplacer(" ", "", ".", "", "\t", "", "\u00a0", "")
	digitsRe    = regexp.MustCompile(`^\d+$`)
	lineCodeRe  = regexp.MustCompile(`^\d+(\.\d+)?(-\d+)?$`)
	dottedCodes = regexp.MustCompile(`^(\d{2}\.\d{2}|\d{4}\.\d{2,4})$`)
)

// Normalize strips whitespace and dot separators.
func Normalize(s string) string {
	return separators.Replace(strings.TrimSpace(s))
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool { return digitsRe.MatchString(s) }

// IsLineCode reports whether s looks like the code token of a nomenclature
// line ("3502", "3502.11", "3502.11-00").
func IsLineCode(s string) bool { return lineCodeRe.MatchString(strings.TrimSpace(s)) }

// LineCode turns a nomenclature line token into a plain digit code.
func LineCode(s string) string {
	return strings.ReplaceAll(Normalize(s), "-", "")
}

// IsDotted reports whether s is written in the conventional dotted form
// ("35.02", "3502.11", "3502.1100").
func IsDotted(s string) bool { return dottedCodes.MatchString(s) }

// Chapter returns the 2-digit chapter prefix, or "" when code is shorter.
func Chapter(code string) string { return prefix(code, 2) }

// Heading returns the 4-digit heading prefix, or "".
func Heading(code string) string { return prefix(code, 4) }

// Parent returns the 6-digit parent prefix, or "".
func Parent(code string) string { return prefix(code, 6) }

// Suffix returns the trailing two digits of a code.
func Suffix(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[len(code)-2:]
}

func prefix(code string, n int) string {
	if len(code) < n {
		return ""
	}
	return code[:n]
}
