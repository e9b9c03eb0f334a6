package visual

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

func TestLinkStageFindsBareURLInPageText(t *testing.T) {
	queue := &fakeQueue{}
	stage := NewLinkStage(&fakeBackend{}, queue)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "doc.pdf"
	pc.PageTexts = map[int]string{1: "See the firmware update at https://support.example.com/fw.bin for details."}

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["link_count"])
	assert.Equal(t, 0, result.Data["video_count"])
	require.Len(t, queue.items, 1)
	assert.Equal(t, engine.ArtifactLink, queue.items[0].ArtifactType)
	assert.Equal(t, "https://support.example.com/fw.bin", queue.items[0].Payload.Link.URL)
}

func TestLinkStageClassifiesYouTubeURLAsVideo(t *testing.T) {
	queue := &fakeQueue{}
	stage := NewLinkStage(&fakeBackend{}, queue)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "doc.pdf"
	pc.PageTexts = map[int]string{1: "Watch the repair walkthrough: https://youtu.be/dQw4w9WgXcQ"}

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["link_count"])
	assert.Equal(t, 1, result.Data["video_count"])
	require.Len(t, queue.items, 1)
	assert.Equal(t, engine.ArtifactVideo, queue.items[0].ArtifactType)
	assert.Equal(t, "youtube", queue.items[0].Payload.Video.Platform)
}

func TestLinkStageDedupsAnnotationAndTextURL(t *testing.T) {
	queue := &fakeQueue{}
	backend := &fakeBackend{links: map[int][]RawLink{
		1: {{PageNumber: 1, URL: "https://support.example.com/fw.bin"}},
	}}
	stage := NewLinkStage(backend, queue)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "doc.pdf"
	pc.PageTexts = map[int]string{1: "See https://support.example.com/fw.bin"}

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["link_count"])
	assert.Len(t, queue.items, 1)
}
