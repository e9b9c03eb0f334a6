// Package chunker implements the Smart Chunker (C6): section-aware,
// error-code-aware, greedy sentence-packing chunking with overlap,
// reimplemented against the KRAI engine.Chunk type (spec.md §9's design
// note).
package chunker

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/idempotency"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pattern"
)

// Chunker turns a document's page_texts into an ordered sequence of
// Chunks, per spec.md §4.6.
type Chunker struct {
	tok Tokenizer
}

func New(tok Tokenizer) *Chunker {
	if tok == nil {
		tok = NewTiktoken("cl100k_base")
	}
	return &Chunker{tok: tok}
}

type unit struct {
	sentence
	hierarchy []string
	level     int
}

// Chunk implements the algorithm of spec.md §4.6: concatenate pages with
// markers, detect sections, greedy-pack within sections up to
// cfg.ChunkSize tokens keeping cfg.ChunkOverlap tokens of trailing
// overlap, assign dense chunk_index and fingerprint, and link
// previous/next chunk ids when cfg.LinkChunks is set.
func (c *Chunker) Chunk(documentID uuid.UUID, pageTexts map[int]string, cfg engine.ProcessingConfig) []*engine.Chunk {
	units := c.buildUnits(pageTexts, cfg.Hierarchical, cfg.DetectErrorCodeSections)
	if len(units) == 0 {
		return nil
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}
	overlap := cfg.ChunkOverlap

	var chunks []*engine.Chunk
	var current []unit
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(documentID, current, cfg))
	}

	for _, u := range units {
		uTokens := c.tok.Estimate(u.text)
		// A section change closes the current chunk; no overlap is carried
		// across a section boundary.
		if len(current) > 0 && cfg.Hierarchical {
			last := current[len(current)-1]
			if last.level != u.level || strings.Join(last.hierarchy, "\n") != strings.Join(u.hierarchy, "\n") {
				flush()
				current, currentTokens = nil, 0
			}
		}
		// A single sentence larger than chunk_size is never split
		// mid-sentence: it goes whole into one chunk, after any overlap
		// prefix.
		if len(current) > 0 && currentTokens+uTokens > chunkSize {
			flush()
			current = overlapTail(current, overlap, c.tok)
			currentTokens = sumTokens(current, c.tok)
		}
		current = append(current, u)
		currentTokens += uTokens
	}
	flush()

	assignIndexesAndFingerprints(chunks)
	if cfg.LinkChunks {
		linkChunks(chunks)
	}
	return chunks
}

// buildUnits concatenates page texts in page order and, when hierarchical
// is set, tracks the running header stack so each unit records the
// section_hierarchy/section_level in effect at that point.
func (c *Chunker) buildUnits(pageTexts map[int]string, hierarchical, detectErrorCodes bool) []unit {
	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var stack []string
	level := 0
	var units []unit
	for _, p := range pages {
		for _, line := range strings.Split(pageTexts[p], "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			// An error-code-shaped line (e.g. "10.20.30 ...") can also match
			// the numbered-header regex; when error-code sectioning is on,
			// it always wins so the code stays attached to its chunk
			// instead of being consumed as a section header.
			_, looksLikeErrorCode := pattern.LeadingErrorCode(line)
			if hierarchical && !(detectErrorCodes && looksLikeErrorCode) {
				if lvl, title, ok := pattern.HeaderLevel(line); ok {
					for len(stack) < lvl-1 {
						stack = append(stack, "")
					}
					stack = append(stack[:lvl-1], title)
					level = lvl
					continue
				}
			}
			for _, s := range splitLineSentences(line, p) {
				units = append(units, unit{
					sentence:  s,
					hierarchy: append([]string(nil), stack...),
					level:     level,
				})
			}
		}
	}
	return units
}

func (c *Chunker) buildChunk(documentID uuid.UUID, units []unit, cfg engine.ProcessingConfig) *engine.Chunk {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.text
	}
	text := strings.Join(texts, " ")

	first, last := units[0], units[len(units)-1]
	chunkType := engine.ChunkTypeText
	meta := engine.ChunkMetadata{}
	if cfg.Hierarchical {
		meta.SectionHierarchy = first.hierarchy
		meta.SectionLevel = first.level
	}
	if cfg.DetectErrorCodeSections {
		if code, ok := pattern.LeadingErrorCode(first.text); ok {
			chunkType = engine.ChunkTypeErrorCodeSection
			meta.ErrorCode = code
		}
	}

	return &engine.Chunk{
		ID:         uuid.New(),
		DocumentID: documentID,
		Text:       text,
		PageStart:  first.page,
		PageEnd:    last.page,
		ChunkType:  chunkType,
		Metadata:   meta,
	}
}

// overlapTail keeps trailing units from the just-flushed chunk, up to
// overlap tokens, as the prefix of the next chunk — the "keep the last
// overlap characters/sentences as prefix" rule of spec.md §4.6.
func overlapTail(units []unit, overlap int, tok Tokenizer) []unit {
	if overlap <= 0 {
		return nil
	}
	total := 0
	start := len(units)
	for start > 0 {
		t := tok.Estimate(units[start-1].text)
		if total+t > overlap {
			break
		}
		total += t
		start--
	}
	if start == len(units) {
		return nil
	}
	return append([]unit(nil), units[start:]...)
}

func sumTokens(units []unit, tok Tokenizer) int {
	total := 0
	for _, u := range units {
		total += tok.Estimate(u.text)
	}
	return total
}

func assignIndexesAndFingerprints(chunks []*engine.Chunk) {
	for i, ch := range chunks {
		ch.ChunkIndex = i
		ch.Fingerprint = idempotency.NormalizeAndFingerprint(ch.Text)
	}
}

func linkChunks(chunks []*engine.Chunk) {
	for i, ch := range chunks {
		if i > 0 {
			prev := chunks[i-1].ID
			ch.Metadata.PreviousChunkID = &prev
		}
		if i < len(chunks)-1 {
			next := chunks[i+1].ID
			ch.Metadata.NextChunkID = &next
		}
	}
}
