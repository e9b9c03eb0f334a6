package api

import (
	"context"
	"errors"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/visual"
)

type fakeRenderer struct {
	png []byte
	err error
}

func (f *fakeRenderer) RenderRegion(context.Context, string, int, *visual.BBoxPx, int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.png, nil
}

var errRenderFailed = errors.New("render failed")
