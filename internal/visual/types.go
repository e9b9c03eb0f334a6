// Package visual implements the Image / SVG / Table stages (C7): three-tier
// vector-graphic extraction, SVG→PNG conversion, raster image extraction
// with per-page dedup, and table extraction with markdown rendering,
// exactly as spec.md §4.7.
package visual

import (
	"context"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// ExtractionMethod records which of the three decreasing-specificity SVG
// extraction tiers produced a RawVector, spec.md §4.7.
type ExtractionMethod string

const (
	MethodPerDrawing ExtractionMethod = "per_drawing_bbox"
	MethodXObject    ExtractionMethod = "embedded_xobject"
	MethodFullPage   ExtractionMethod = "full_page_fallback"
)

// RawVector is one vector-graphic artifact recovered from a page by the
// extraction Backend, before conversion/upload.
type RawVector struct {
	PageNumber int
	SVG        []byte
	BBox       *engine.BBox
	Method     ExtractionMethod
}

// RawImage is one raster artifact recovered from a page by the extraction
// Backend, before upload.
type RawImage struct {
	PageNumber int
	Content    []byte
	BBox       *engine.BBox
	Format     string
}

// RawTable is one table recovered from a page, already in cell-matrix form.
type RawTable struct {
	PageNumber int
	Rows       [][]string
	BBox       *engine.BBox
}

// RawLink is one hyperlink annotation recovered from a page's PDF
// structure (not the page text stream), before platform classification.
type RawLink struct {
	PageNumber int
	URL        string
}

// Backend extracts the raw visual artifacts of a page range from a PDF.
// Mirrors internal/pdftext.Backend's single-purpose interface shape so
// every subprocess-backed extraction in this engine shares one calling
// convention.
type Backend interface {
	Name() string
	ExtractVectors(ctx context.Context, path string) (map[int][]RawVector, error)
	ExtractImages(ctx context.Context, path string) (map[int][]RawImage, error)
	ExtractTables(ctx context.Context, path string) (map[int][]RawTable, error)
	ExtractLinks(ctx context.Context, path string) (map[int][]RawLink, error)
}
