// Package pattern is the single regex catalogue shared by the chunker
// (C6), context extraction (C8) and classification/metadata/parts (C9),
// so an error-code or figure-reference format only needs to change in one
// place, per SPEC_FULL.md §4.8's design note.
package pattern

import (
	"regexp"
	"strings"
)

// ErrorCode matches the three error-code shapes spec.md §4.6 names:
// "NN.NN.NN" (dotted numeric), "E123" style letter-prefixed codes, and
// "C-1234" dash-separated codes.
var ErrorCode = regexp.MustCompile(`\b(?:\d{2}\.\d{2}\.\d{2}|[A-Z]\d{2,4}|[A-Z]-\d{3,4})\b`)

// FigureReference matches "Figure N", the German "Abb. N" and the
// sub-numbered "Fig. N.N".
var FigureReference = regexp.MustCompile(`(?i)\b(?:Figure|Fig\.?|Abb\.?)\s*(\d+(?:\.\d+)?)\b`)

// ProductModel matches alphanumeric model numbers such as "C4080" or
// "MX-5070", the shape manufacturer part catalogues use for product
// families; callers further validate against known manufacturer prefixes.
var ProductModel = regexp.MustCompile(`\b[A-Z]{1,4}-?\d{3,5}[A-Za-z]{0,3}\b`)

// NumberedHeader matches "1.", "1.2", "1.2.3 Title" style outline headers,
// used by the chunker's section-detection heuristic.
var NumberedHeader = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)

// AllCapsHeader matches a short all-caps line (a heading convention common
// in service manuals), excluding lines that are just an error code.
var AllCapsHeader = regexp.MustCompile(`^[A-Z][A-Z0-9 /\-]{3,60}$`)

// URL matches a bare http(s) URL embedded in extracted page text, the
// fallback the link-extraction stage (C7) runs alongside PDF annotation
// links, spec.md §4.7.
var URL = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// FindErrorCodes returns every distinct error code occurring in text, in
// order of first appearance.
func FindErrorCodes(text string) []string {
	matches := ErrorCode.FindAllString(text, -1)
	if matches == nil {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// LeadingErrorCode reports whether text begins (after optional leading
// whitespace) with an error code, and returns it — used by the chunker to
// decide chunk_type = error_code_section.
func LeadingErrorCode(text string) (string, bool) {
	loc := ErrorCode.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	prefix := text[:loc[0]]
	for _, r := range prefix {
		if r != ' ' && r != '\t' && r != '\n' {
			return "", false
		}
	}
	return text[loc[0]:loc[1]], true
}

// FindFigureReferences returns every figure reference in text.
func FindFigureReferences(text string) []string {
	matches := FigureReference.FindAllString(text, -1)
	if matches == nil {
		return nil
	}
	return matches
}

// FindProductModels returns every candidate product model token in text.
func FindProductModels(text string) []string {
	matches := ProductModel.FindAllString(text, -1)
	if matches == nil {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// FindURLs returns every distinct URL occurring in text, with its byte
// offset, in order of first appearance.
func FindURLs(text string) []URLMatch {
	locs := URL.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil
	}
	seen := make(map[string]bool, len(locs))
	out := make([]URLMatch, 0, len(locs))
	for _, loc := range locs {
		u := text[loc[0]:loc[1]]
		u = strings.TrimRight(u, ".,;:")
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, URLMatch{URL: u, Offset: loc[0]})
	}
	return out
}

// URLMatch is one URL found by FindURLs, with the byte offset it occurred
// at so callers can derive surrounding context.
type URLMatch struct {
	URL    string
	Offset int
}

// HeaderLevel reports whether line looks like a section header and, if so,
// its nesting level (1-based, by dotted-segment count for numbered
// headers; always 1 for all-caps headers).
func HeaderLevel(line string) (level int, title string, ok bool) {
	if m := NumberedHeader.FindStringSubmatch(line); m != nil {
		segs := 1
		for _, c := range m[1] {
			if c == '.' {
				segs++
			}
		}
		return segs, m[2], true
	}
	trimmed := line
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	if AllCapsHeader.MatchString(trimmed) && !ErrorCode.MatchString(trimmed) {
		return 1, trimmed, true
	}
	return 0, "", false
}
