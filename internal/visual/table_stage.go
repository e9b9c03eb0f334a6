package visual

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// TableStage extracts tables with PyMuPDF-equivalent routines, renders
// each as both a cell matrix and markdown, and stores rows in
// structured_tables — spec.md §4.7's table stage. An embedding for each
// table (source_type=table) is produced later by the Embedding stage.
type TableStage struct {
	Backend Backend
	Content store.ContentStore
}

func NewTableStage(backend Backend, content store.ContentStore) *TableStage {
	return &TableStage{Backend: backend, Content: content}
}

func (s *TableStage) Name() string             { return "table_stage" }
func (s *TableStage) Stage() engine.Stage       { return engine.StageTableExtraction }
func (s *TableStage) RequiredInputs() []string { return []string{"file_path"} }
func (s *TableStage) Outputs() []string        { return []string{"table_count"} }

func (s *TableStage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()
	if !pc.Config.EnableTableExtraction {
		return engine.Completed(s.Name(), map[string]any{"table_count": 0, "skipped": "disabled"}, time.Since(start)), nil
	}

	byPage, err := s.Backend.ExtractTables(ctx, pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("extract tables: %w", err))
	}

	count := 0
	for page, tables := range byPage {
		for _, t := range tables {
			table := &engine.StructuredTable{
				ID:         uuid.New(),
				DocumentID: pc.DocumentID,
				PageNumber: page,
				Rows:       t.Rows,
				Cols:       maxCols(t.Rows),
				BBox:       t.BBox,
				Markdown:   renderMarkdown(t.Rows),
			}
			if err := s.Content.InsertTable(ctx, table); err != nil {
				return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("insert table: %w", err))
			}
			count++
		}
	}

	return engine.Completed(s.Name(), map[string]any{"table_count": count}, time.Since(start)), nil
}

func maxCols(rows [][]string) int {
	max := 0
	for _, r := range rows {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// renderMarkdown turns a cell matrix into a GitHub-flavored markdown
// table, treating the first row as the header.
func renderMarkdown(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	b.WriteString("|")
	for range rows[0] {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return b.String()
}
