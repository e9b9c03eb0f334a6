package visual

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

func TestVisualEmbeddingStageAttachesContextAndSkipsNonImages(t *testing.T) {
	docID := uuid.New()
	imgItem := &engine.ProcessingQueueItem{
		ID: uuid.New(), DocumentID: docID, Stage: engine.StageStorage.Name(), ArtifactType: engine.ArtifactImage,
		Payload: engine.QueuePayload{Image: &engine.ImagePayload{PageNumber: 1}},
	}
	linkItem := &engine.ProcessingQueueItem{
		ID: uuid.New(), DocumentID: docID, Stage: engine.StageStorage.Name(), ArtifactType: engine.ArtifactLink,
		Payload: engine.QueuePayload{Link: &engine.LinkPayload{URL: "https://example.com"}},
	}
	queue := &fakeQueue{items: []*engine.ProcessingQueueItem{imgItem, linkItem}}
	stage := NewVisualEmbeddingStage(queue)

	pc := engine.NewProcessingContext(docID)
	pc.PageTexts = map[int]string{1: "Error E045 fuser assembly. See figure 3."}

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Data["contextualized_count"])
	assert.NotEmpty(t, imgItem.Payload.Image.Context.ContextCaption)
	assert.Nil(t, linkItem.Payload.Image)
}

func TestVisualEmbeddingStageSkipsAlreadyContextualizedItems(t *testing.T) {
	docID := uuid.New()
	item := &engine.ProcessingQueueItem{
		ID: uuid.New(), DocumentID: docID, Stage: engine.StageStorage.Name(), ArtifactType: engine.ArtifactImage,
		Payload: engine.QueuePayload{Image: &engine.ImagePayload{PageNumber: 1, Context: engine.MediaContext{ContextCaption: "already set"}}},
	}
	queue := &fakeQueue{items: []*engine.ProcessingQueueItem{item}}
	stage := NewVisualEmbeddingStage(queue)

	pc := engine.NewProcessingContext(docID)
	pc.PageTexts = map[int]string{1: "ignored"}

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["contextualized_count"])
	assert.Equal(t, "already set", item.Payload.Image.Context.ContextCaption)
}
