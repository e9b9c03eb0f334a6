// Package contextextract implements Context Extraction (C8): a pure,
// stateless service that derives the MediaContext surrounding any media
// element on a page, exactly as spec.md §4.8. Called by the image, link,
// video and table stages; it reads nothing and writes nothing, so it is a
// plain function set rather than a struct with dependencies.
package contextextract

import (
	"strings"
	"unicode"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pattern"
)

// contextRadius is the ±200 chars around the element spec.md §4.8 names
// for context_caption.
const contextRadius = 200

// topBandPt is the top-of-page band searched for a page_header when no
// better candidate line is found, spec.md §4.8's "top 50pt band".
const topBandPt = 50

// Extract derives {context_caption, figure_reference, page_header,
// related_error_codes, related_products, surrounding_paragraphs} for one
// media element, located at byte offset elementOffset within pageText.
func Extract(pageText string, elementOffset int) engine.MediaContext {
	if elementOffset < 0 {
		elementOffset = 0
	}
	if elementOffset > len(pageText) {
		elementOffset = len(pageText)
	}

	caption := captionWindow(pageText, elementOffset, contextRadius)

	return engine.MediaContext{
		ContextCaption:        caption,
		FigureReference:       firstFigureReference(caption, pageText),
		PageHeader:            pageHeader(pageText),
		RelatedErrorCodes:     pattern.FindErrorCodes(caption),
		RelatedProducts:       pattern.FindProductModels(caption),
		SurroundingParagraphs: surroundingParagraphs(pageText, elementOffset),
	}
}

// captionWindow returns up to radius characters on either side of offset,
// trimmed to whitespace-safe rune boundaries.
func captionWindow(text string, offset, radius int) string {
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

// firstFigureReference prefers a reference inside the caption window,
// falling back to the first one anywhere on the page, per spec.md §4.8.
func firstFigureReference(caption, pageText string) string {
	if refs := pattern.FindFigureReferences(caption); len(refs) > 0 {
		return refs[0]
	}
	if refs := pattern.FindFigureReferences(pageText); len(refs) > 0 {
		return refs[0]
	}
	return ""
}

// pageHeader returns the first non-trivial line of the page — a line with
// at least one letter, not just punctuation/whitespace/page-number
// filler — preferring one found within the first topBandPt-worth of
// lines, approximated here as the first handful of lines since no PDF
// coordinate stream is available at this layer.
func pageHeader(pageText string) string {
	lines := strings.Split(pageText, "\n")
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for _, line := range lines[:limit] {
		if trimmed := strings.TrimSpace(line); isNonTrivialLine(trimmed) {
			return trimmed
		}
	}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); isNonTrivialLine(trimmed) {
			return trimmed
		}
	}
	return ""
}

func isNonTrivialLine(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// surroundingParagraphs splits the page into blank-line-delimited
// paragraphs and returns the one containing offset plus its immediate
// neighbors.
func surroundingParagraphs(pageText string, offset int) []string {
	paragraphs := splitParagraphs(pageText)
	if len(paragraphs) == 0 {
		return nil
	}

	running := 0
	containing := 0
	for i, p := range paragraphs {
		running += len(p)
		if offset <= running {
			containing = i
			break
		}
		running++ // account for the blank-line separator
	}

	start := containing - 1
	if start < 0 {
		start = 0
	}
	end := containing + 1
	if end >= len(paragraphs) {
		end = len(paragraphs) - 1
	}
	return paragraphs[start : end+1]
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
