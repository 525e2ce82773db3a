// Package importer turns broker CSV exports into journal trades.
//
// The pipeline is: raw text -> Tokenize -> Profile column mapping ->
// coercers -> ParsedTrade candidates -> derived metrics -> Reconcile against
// the existing trades in the store.
package importer

import (
	"fmt"
	"strings"

	apperrors "trade-journal/internal/errors"
)

// TokenizeLine splits a single CSV line on delim. A double quote toggles
// quoted mode, inside which the delimiter is literal. Doubled quotes are not
// treated as an escape. Every field is trimmed.
func TokenizeLine(line string, delim rune) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}

// utf8BOM is written at the start of CSV files saved by Excel.
const utf8BOM = "\ufeff"

// SplitLines splits text on CRLF or LF, trims each line and drops blank ones.
// A leading byte order mark is removed.
func SplitLines(text string) []string {
	text = strings.TrimPrefix(text, utf8BOM)
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Tokenize splits a whole file into rows of fields. The first row is the
// header row.
func Tokenize(text string, delim rune) [][]string {
	lines := SplitLines(text)
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, TokenizeLine(l, delim))
	}
	return rows
}

// DetectHeaders returns the column headers of the first non-empty line.
func DetectHeaders(text string, delim rune) []string {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return nil
	}
	return TokenizeLine(lines[0], delim)
}

// ParseDelimiter accepts ",", ";" and a tab (literal, "\t" or "tab").
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDelimiter, s)
}

// DelimiterName is the inverse of ParseDelimiter, used for config files.
func DelimiterName(r rune) string {
	if r == '\t' {
		return "tab"
	}
	return string(r)
}
