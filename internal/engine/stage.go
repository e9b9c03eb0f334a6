// Package engine defines the types shared by every stage: the fixed Stage
// enumeration, the per-invocation ProcessingContext/ProcessingResult
// carriers, and the ErrorKind taxonomy by which the retry engine classifies
// failures.
package engine

import "fmt"

// Stage identifies one of the 15 fixed pipeline steps. The engine keys all
// durable state by Name, never by Number; Number exists only for the CLI
// boundary (spec.md §6).
type Stage struct {
	number int
	name   string
}

func (s Stage) Number() int    { return s.number }
func (s Stage) Name() string   { return s.name }
func (s Stage) String() string { return s.name }

var (
	StageUpload              = Stage{1, "upload"}
	StageTextExtraction       = Stage{2, "text_extraction"}
	StageTableExtraction      = Stage{3, "table_extraction"}
	StageSVGProcessing        = Stage{4, "svg_processing"}
	StageImageProcessing      = Stage{5, "image_processing"}
	StageVisualEmbedding      = Stage{6, "visual_embedding"}
	StageLinkExtraction       = Stage{7, "link_extraction"}
	StageChunkPreprocessing   = Stage{8, "chunk_preprocessing"}
	StageClassification       = Stage{9, "classification"}
	StageMetadataExtraction   = Stage{10, "metadata_extraction"}
	StagePartsExtraction      = Stage{11, "parts_extraction"}
	StageSeriesDetection      = Stage{12, "series_detection"}
	StageStorage              = Stage{13, "storage"}
	StageEmbedding            = Stage{14, "embedding"}
	StageSearchIndexing       = Stage{15, "search_indexing"}
)

// AllStages returns the 15 stages in declared order, used by --list-stages,
// GET /stages, and as the default ordering for run_stages/smart-resume.
func AllStages() []Stage {
	return []Stage{
		StageUpload, StageTextExtraction, StageTableExtraction, StageSVGProcessing,
		StageImageProcessing, StageVisualEmbedding, StageLinkExtraction,
		StageChunkPreprocessing, StageClassification, StageMetadataExtraction,
		StagePartsExtraction, StageSeriesDetection, StageStorage, StageEmbedding,
		StageSearchIndexing,
	}
}

// StageByName resolves a stage by its string name or its 1-based number
// rendered as a string, as accepted by the CLI and HTTP surfaces.
func StageByName(s string) (Stage, error) {
	for _, st := range AllStages() {
		if st.name == s {
			return st, nil
		}
	}
	for _, st := range AllStages() {
		if fmt.Sprintf("%d", st.number) == s {
			return st, nil
		}
	}
	return Stage{}, fmt.Errorf("unknown stage %q", s)
}

// StageDependencies declares the stages that must already be completed for
// the given stage to run, per spec.md §4.13 ("series_detection requires
// classification and metadata_extraction").
func StageDependencies(s Stage) []Stage {
	switch s.name {
	case StageSeriesDetection.name:
		return []Stage{StageClassification, StageMetadataExtraction}
	case StagePartsExtraction.name:
		return []Stage{StageChunkPreprocessing, StageMetadataExtraction}
	case StageChunkPreprocessing.name:
		return []Stage{StageTextExtraction}
	case StageClassification.name:
		return []Stage{StageTextExtraction}
	case StageMetadataExtraction.name:
		return []Stage{StageTextExtraction}
	case StageEmbedding.name:
		return []Stage{StageChunkPreprocessing}
	case StageSearchIndexing.name:
		return []Stage{StageEmbedding, StageStorage}
	default:
		return nil
	}
}
