package processor

import (
	"fmt"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// ValidateInputs checks that every name in p.RequiredInputs() is present on
// the context, grounded on the original implementation's
// validate_inputs/get_required_inputs pair (original_source/backend/core/base_processor.py):
// there, a missing input raises a ProcessingError with code MISSING_INPUT;
// here it returns engine.ErrMissingInput wrapped with the input's name.
func ValidateInputs(p engine.Processor, pc *engine.ProcessingContext) error {
	for _, input := range p.RequiredInputs() {
		if !hasInput(pc, input) {
			return fmt.Errorf("%w: %s", engine.ErrMissingInput, input)
		}
	}
	return nil
}

func hasInput(pc *engine.ProcessingContext, name string) bool {
	switch name {
	case "file_path":
		return pc.FilePath != ""
	case "file_hash":
		return pc.FileHash != ""
	case "page_texts":
		return len(pc.PageTexts) > 0
	case "chunks":
		return len(pc.Chunks) > 0
	default:
		_, ok := pc.Extra[name]
		return ok
	}
}
