package classify

import (
	"context"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/modelserver"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/webverify"
)

// ModelServerAnalyzer adapts internal/modelserver.Client to the Analyzer
// port this package depends on.
type ModelServerAnalyzer struct {
	Client *modelserver.Client
}

func (a ModelServerAnalyzer) Analyze(ctx context.Context, pages []string) (*AnalyzeResponse, error) {
	resp, err := a.Client.Analyze(ctx, pages)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResponse{
		DocumentType: resp.DocumentType,
		Manufacturer: resp.Manufacturer,
		Series:       resp.Series,
		Models:       resp.Models,
		Options:      resp.Options,
		Version:      resp.Version,
		Confidence:   resp.Confidence,
		Language:     resp.Language,
	}, nil
}

// WebVerifier adapts internal/webverify.Client to the Verifier port this
// package depends on.
type WebVerifier struct {
	Client *webverify.Client
}

func (v WebVerifier) Verify(ctx context.Context, manufacturer string, hints []string) (*VerifyResult, error) {
	result, err := v.Client.Verify(ctx, manufacturer, hints)
	if err != nil {
		return nil, err
	}
	out := &VerifyResult{Manufacturer: result.Manufacturer}
	for _, dm := range result.DiscoveredModels {
		out.DiscoveredModels = append(out.DiscoveredModels, DiscoveredModel{Model: dm.Model, Series: dm.Series})
	}
	return out, nil
}
