package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/processor"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/telemetry"
)

func TestSetupRoutesServesHealth(t *testing.T) {
	st := newFakeStore()
	logger := testLogger()
	coordinator := processor.NewCoordinator(st, nil, telemetry.NewSlogRecorder(logger), retry.Policy{MaxRetries: 0}, nil, logger)
	pl := pipeline.New(coordinator, st, nil)

	srv := NewServer(&config.EngineConfig{}, st, pl, &fakeBucket{}, &fakeRenderer{}, nil, logger)
	router := srv.SetupRoutes()

	rec := performRequest(router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"status\":\"ok\"")
}
