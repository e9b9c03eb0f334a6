package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

type fakeWriter struct {
	codes []*engine.ErrorCode
	err   error
}

func (f *fakeWriter) InsertErrorCode(ctx context.Context, ec *engine.ErrorCode) error {
	if f.err != nil {
		return f.err
	}
	f.codes = append(f.codes, ec)
	return nil
}

type fakeTableInserter struct {
	rows []map[string]any
}

func (f *fakeTableInserter) InsertRow(ctx context.Context, table string, row map[string]any) error {
	f.rows = append(f.rows, row)
	return nil
}

func TestMetadataExtractsErrorCodesAndVersion(t *testing.T) {
	writer := &fakeWriter{}
	stage := NewStage(writer, nil, 5, nil)
	pc := engine.NewProcessingContext(newDocID())
	pc.PageTexts = map[int]string{
		1: "Firmware Version: 4.12.2. Error 10.20.30 indicates a critical safety fault requiring a technician to replace the fuser unit.",
	}

	result, err := stage.Process(t.Context(), pc)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["error_code_count"])
	assert.Equal(t, "4.12.2", result.Data["version"])
	require.Len(t, writer.codes, 1)
	assert.Equal(t, engine.SeverityCritical, writer.codes[0].Severity)
	assert.True(t, writer.codes[0].RequiresTechnician)
	assert.True(t, writer.codes[0].RequiresParts)
}

func TestMetadataUsesFallbackWhenPrimaryAbsent(t *testing.T) {
	fallback := &fakeTableInserter{}
	stage := NewStage(nil, fallback, 5, nil)
	pc := engine.NewProcessingContext(newDocID())
	pc.PageTexts = map[int]string{1: "Jam at 10.10.10 in tray 2."}

	result, err := stage.Process(t.Context(), pc)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["error_code_count"])
	assert.Len(t, fallback.rows, 1)
}

func TestMetadataReturnsZeroWrittenWithoutFailingWhenNoPathWired(t *testing.T) {
	stage := NewStage(nil, nil, 5, nil)
	pc := engine.NewProcessingContext(newDocID())
	pc.PageTexts = map[int]string{1: "Error 10.10.10 occurred."}

	result, err := stage.Process(t.Context(), pc)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["error_code_count"])
}

func TestMetadataLogsAndContinuesOnWriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("db down")}
	stage := NewStage(writer, nil, 5, nil)
	pc := engine.NewProcessingContext(newDocID())
	pc.PageTexts = map[int]string{1: "Error 10.10.10 occurred on page one."}

	result, err := stage.Process(t.Context(), pc)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["error_code_count"])
}

func newDocID() uuid.UUID { return uuid.New() }
