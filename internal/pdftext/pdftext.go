// Package pdftext implements the PDF Text Extractor (C5): a stable
// {page_texts, metadata, structured_texts} shape in front of a swappable
// backend, per spec.md §4.5 and SPEC_FULL.md §4.5's resolution of the
// Open Question on the extractor's return shape.
package pdftext

import "context"

// DocumentMetadata is the document-level metadata the backend reports
// alongside page_texts, spec.md §4.5.
type DocumentMetadata struct {
	PageCount int
	Title     string
	Language  string
	Creator   string
}

// PageSet is the stable return shape every backend produces, spec.md §4.5:
// page_texts, document metadata, and optional structured texts (tables or
// layout-aware text a backend may additionally surface).
type PageSet struct {
	PageTexts       map[int]string
	Metadata        DocumentMetadata
	StructuredTexts map[int]string
}

// Backend is a narrow model.Model[Req,Res]-shaped contract for PDF text
// extraction: one Call-equivalent method, no shared base class. Detailed
// PDF parsing is explicitly a backend concern (spec.md §4.5); this
// interface boundary is the deliverable.
type Backend interface {
	Name() string
	ExtractPages(ctx context.Context, path string) (*PageSet, error)
}

// OCRBackend is invoked per-page, only for pages a Backend returned empty
// text for, never for pages that already have extractable text.
type OCRBackend interface {
	OCRPage(ctx context.Context, path string, page int) (string, error)
}
