package videoenrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatformYouTubeWatch(t *testing.T) {
	platform, id, ok := DetectPlatform("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s")
	assert.True(t, ok)
	assert.Equal(t, PlatformYouTube, platform)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestDetectPlatformYouTubeShort(t *testing.T) {
	platform, id, ok := DetectPlatform("https://youtu.be/dQw4w9WgXcQ")
	assert.True(t, ok)
	assert.Equal(t, PlatformYouTube, platform)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestDetectPlatformVimeo(t *testing.T) {
	platform, id, ok := DetectPlatform("https://vimeo.com/76979871")
	assert.True(t, ok)
	assert.Equal(t, PlatformVimeo, platform)
	assert.Equal(t, "76979871", id)
}

func TestDetectPlatformBrightcove(t *testing.T) {
	platform, id, ok := DetectPlatform("https://players.brightcove.net/123456/default_default/index.html?videoId=654321")
	assert.True(t, ok)
	assert.Equal(t, PlatformBrightcove, platform)
	assert.Equal(t, "654321", id)
}

func TestDetectPlatformOrdinaryLink(t *testing.T) {
	_, _, ok := DetectPlatform("https://support.example.com/manuals/c4080.pdf")
	assert.False(t, ok)
}

func TestEnrichRejectsUnsupportedPlatform(t *testing.T) {
	c := New("acct", "key", 0)
	_, err := c.Enrich(context.Background(), PlatformYouTube, "abc")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
