package visual

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/contextextract"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pattern"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/videoenrich"
)

// LinkStage extracts hyperlinks two ways — PDF annotation URIs from the
// Backend, and bare URLs found in the page text — classifies each as a
// known video platform or an ordinary link, and queues it for the Storage
// stage, exactly as spec.md §4.7's link-extraction step (stage 7).
type LinkStage struct {
	Backend Backend
	Queue   store.QueueStore
}

func NewLinkStage(backend Backend, queue store.QueueStore) *LinkStage {
	return &LinkStage{Backend: backend, Queue: queue}
}

func (s *LinkStage) Name() string             { return "link_stage" }
func (s *LinkStage) Stage() engine.Stage      { return engine.StageLinkExtraction }
func (s *LinkStage) RequiredInputs() []string { return []string{"file_path", "page_texts"} }
func (s *LinkStage) Outputs() []string        { return []string{"link_count", "video_count"} }

func (s *LinkStage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	annotated, err := s.Backend.ExtractLinks(ctx, pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("extract links: %w", err))
	}

	seen := make(map[string]struct{})
	linkCount, videoCount := 0, 0

	for _, page := range sortedPages(pc.PageTexts) {
		text := pc.PageTexts[page]
		for _, m := range pattern.FindURLs(text) {
			if _, dup := seen[m.URL]; dup {
				continue
			}
			seen[m.URL] = struct{}{}
			mctx := contextextract.Extract(text, m.Offset)
			if err := s.enqueue(ctx, pc.DocumentID, page, m.URL, mctx); err != nil {
				return nil, engine.NewStageError(engine.ErrorKindPermanent, err)
			}
			if _, _, isVideo := videoenrich.DetectPlatform(m.URL); isVideo {
				videoCount++
			} else {
				linkCount++
			}
		}
	}

	for page, links := range annotated {
		text := pc.PageTexts[page]
		for _, l := range links {
			if _, dup := seen[l.URL]; dup {
				continue
			}
			seen[l.URL] = struct{}{}
			mctx := contextextract.Extract(text, 0)
			if err := s.enqueue(ctx, pc.DocumentID, page, l.URL, mctx); err != nil {
				return nil, engine.NewStageError(engine.ErrorKindPermanent, err)
			}
			if _, _, isVideo := videoenrich.DetectPlatform(l.URL); isVideo {
				videoCount++
			} else {
				linkCount++
			}
		}
	}

	return engine.Completed(s.Name(), map[string]any{
		"link_count":  linkCount,
		"video_count": videoCount,
	}, time.Since(start)), nil
}

func (s *LinkStage) enqueue(ctx context.Context, documentID uuid.UUID, page int, rawURL string, mctx engine.MediaContext) error {
	platform, _, isVideo := videoenrich.DetectPlatform(rawURL)

	item := &engine.ProcessingQueueItem{
		ID:         uuid.New(),
		DocumentID: documentID,
		Stage:      engine.StageStorage.Name(),
		Status:     engine.StatusPending,
	}
	if isVideo {
		item.ArtifactType = engine.ArtifactVideo
		item.Payload = engine.QueuePayload{Video: &engine.VideoPayload{
			URL:        rawURL,
			PageNumber: page,
			Platform:   platform,
			Context:    mctx,
		}}
	} else {
		item.ArtifactType = engine.ArtifactLink
		item.Payload = engine.QueuePayload{Link: &engine.LinkPayload{
			URL:        rawURL,
			PageNumber: page,
			Context:    mctx,
		}}
	}
	return s.Queue.Enqueue(ctx, item)
}

func sortedPages(pageTexts map[int]string) []int {
	pages := make([]int, 0, len(pageTexts))
	for p := range pageTexts {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
