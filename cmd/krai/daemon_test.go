package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/broker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
)

func TestNewBackgroundJobsOmitsSupervisorWithoutBroker(t *testing.T) {
	d := &deps{cfg: &config.EngineConfig{}}
	jobs := newBackgroundJobs(d, &http.Server{})
	assert.Len(t, jobs, 1)
}

func TestNewBackgroundJobsIncludesSupervisorWithBroker(t *testing.T) {
	d := &deps{cfg: &config.EngineConfig{BackgroundRetryWorkers: 2, ReconcileIntervalS: 60, ReconcileStaleAfterS: 600}, retryBroker: &broker.MockBroker{}}
	jobs := newBackgroundJobs(d, &http.Server{})
	assert.Len(t, jobs, 3)
}

func TestRerunFromPipelineRejectsInvalidDocumentID(t *testing.T) {
	rerun := rerunFromPipeline(nil)
	err := rerun(nil, "not-a-uuid", "upload", 1, "corr-1")
	require.Error(t, err)
}
