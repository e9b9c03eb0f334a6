package chunker

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

func baseConfig() engine.ProcessingConfig {
	return engine.ProcessingConfig{
		ChunkSize:               50,
		ChunkOverlap:            10,
		Hierarchical:            true,
		DetectErrorCodeSections: true,
		LinkChunks:              true,
	}
}

func TestChunkAssignsDenseIndexesAndFingerprints(t *testing.T) {
	c := New(nil)
	pages := map[int]string{
		1: "Introduction to the device. This manual covers setup and maintenance. Read all safety notes first.",
		2: "Continue reading here for troubleshooting steps and detailed procedures for common issues.",
	}

	chunks := c.Chunk(uuid.New(), pages, baseConfig())

	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.NotEmpty(t, ch.Fingerprint)
		assert.GreaterOrEqual(t, ch.PageEnd, ch.PageStart)
	}
}

func TestChunkLinksPreviousAndNext(t *testing.T) {
	c := New(nil)
	pages := map[int]string{
		1: strings.Repeat("This is a sentence about the printer. ", 30),
	}

	chunks := c.Chunk(uuid.New(), pages, baseConfig())

	require.Greater(t, len(chunks), 1, "test text must be long enough to force multiple chunks")
	assert.Nil(t, chunks[0].Metadata.PreviousChunkID)
	require.NotNil(t, chunks[0].Metadata.NextChunkID)
	assert.Equal(t, chunks[1].ID, *chunks[0].Metadata.NextChunkID)
	assert.Nil(t, chunks[len(chunks)-1].Metadata.NextChunkID)
}

func TestChunkDetectsErrorCodeSection(t *testing.T) {
	c := New(nil)
	pages := map[int]string{
		1: "10.20.30 Paper jam detected in the duplex unit. Remove the jammed sheet and close the cover.",
	}

	chunks := c.Chunk(uuid.New(), pages, baseConfig())

	require.NotEmpty(t, chunks)
	assert.Equal(t, engine.ChunkTypeErrorCodeSection, chunks[0].ChunkType)
	assert.Equal(t, "10.20.30", chunks[0].Metadata.ErrorCode)
}

func TestChunkRecordsSectionHierarchy(t *testing.T) {
	c := New(nil)
	pages := map[int]string{
		1: "1. Getting Started\nUnpack the device and place it on a flat surface before connecting any cables.\n1.1 Power Connection\nConnect the power cable to a grounded outlet rated for the device.",
	}

	chunks := c.Chunk(uuid.New(), pages, baseConfig())

	require.NotEmpty(t, chunks)
	foundNested := false
	for _, ch := range chunks {
		if ch.Metadata.SectionLevel == 2 {
			foundNested = true
			assert.Contains(t, ch.Metadata.SectionHierarchy, "Power Connection")
		}
	}
	assert.True(t, foundNested, "expected at least one chunk under the 1.1 subsection")
}

func TestChunkEmptyInputReturnsNoChunks(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.Chunk(uuid.New(), map[int]string{}, baseConfig()))
}
