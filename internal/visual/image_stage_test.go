package visual

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

func TestImageStageDedupsIdenticalBytesWithinPage(t *testing.T) {
	backend := &fakeBackend{images: map[int][]RawImage{
		1: {
			{PageNumber: 1, Content: []byte("same-bytes"), Format: "png"},
			{PageNumber: 1, Content: []byte("same-bytes"), Format: "png"},
			{PageNumber: 1, Content: []byte("different"), Format: "jpeg"},
		},
	}}
	queue := &fakeQueue{}
	stage := NewImageStage(backend, queue)

	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "doc.pdf"

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Data["image_count"])
	assert.Len(t, queue.items, 2)
}

func TestImageStageInfersPhotoFromJPEG(t *testing.T) {
	assert.Equal(t, engine.ImageTypePhoto, inferImageType("jpeg", nil))
}

func TestImageStageInfersScreenshotFromWideAspect(t *testing.T) {
	bbox := &engine.BBox{X0: 0, Y0: 0, X1: 400, Y1: 50}
	assert.Equal(t, engine.ImageTypeScreenshot, inferImageType("png", bbox))
}

func TestImageStageDefaultsToDiagram(t *testing.T) {
	assert.Equal(t, engine.ImageTypeDiagram, inferImageType("png", nil))
}
