package visual

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	pkgsync "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/sync"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/safe"
)

// PNGConverter renders one SVG document to a PNG at the configured DPI.
// The preferred path of spec.md §4.7; on error the caller falls back to
// rendering the bbox region directly from the PDF.
type PNGConverter interface {
	ConvertSVG(ctx context.Context, svg []byte, dpi int) ([]byte, error)
}

// PDFRegionRenderer renders a bbox region of one PDF page to PNG, the
// fallback path when PNGConverter fails, spec.md §4.7.
type PDFRegionRenderer interface {
	RenderRegion(ctx context.Context, pdfPath string, page int, bbox *BBoxPx, dpi int) ([]byte, error)
}

// BBoxPx is a pixel-space bbox, distinct from engine.BBox's normalized
// [0,1] coordinates, since region rendering needs actual page pixels.
type BBoxPx struct {
	X0, Y0, X1, Y1 float64
}

type execPNGConverter struct{ bin string }

func (c *execPNGConverter) ConvertSVG(ctx context.Context, svg []byte, dpi int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, "--dpi-x", itoa(dpi), "--dpi-y", itoa(dpi), "-o", "-")
	cmd.Stdin = bytes.NewReader(svg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("svg2png: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// NewPNGConverter wraps the SVG_TO_PNG_BIN binary (default
// "rsvg-convert"), the library-based SVG→PNG path of spec.md §4.7. No
// pack example ships a native Go SVG rasterizer, so this follows
// internal/pdftext's and internal/visual's execBackend convention of
// shelling out to a well-known converter CLI.
func NewPNGConverter() PNGConverter {
	bin := os.Getenv("SVG_TO_PNG_BIN")
	if bin == "" {
		bin = "rsvg-convert"
	}
	return &execPNGConverter{bin: bin}
}

type execPDFRegionRenderer struct{ bin string }

func (r *execPDFRegionRenderer) RenderRegion(ctx context.Context, pdfPath string, page int, bbox *BBoxPx, dpi int) ([]byte, error) {
	args := []string{"--page", itoa(page), "--dpi", itoa(dpi)}
	if bbox != nil {
		args = append(args, "--bbox",
			fmt.Sprintf("%f,%f,%f,%f", bbox.X0, bbox.Y0, bbox.X1, bbox.Y1))
	}
	args = append(args, pdfPath)
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdf region render: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// NewPDFRegionRenderer wraps the PDF_REGION_RENDERER_BIN binary (default
// "pdf-region-render"), the bbox-from-PDF fallback of spec.md §4.7.
func NewPDFRegionRenderer() PDFRegionRenderer {
	bin := os.Getenv("PDF_REGION_RENDERER_BIN")
	if bin == "" {
		bin = "pdf-region-render"
	}
	return &execPDFRegionRenderer{bin: bin}
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

// ConverterPool bounds concurrent SVG→PNG conversions to
// EngineConfig.SVGConversionWorkers — the "no ad-hoc event-loop
// bridging" design note of spec.md §9, built on pkg/sync.Limiter
// (bounded-concurrency semaphore) and pkg/safe.Go (panic-safe goroutine
// launch). Each conversion runs on its own goroutine; Convert waits for
// that goroutine's result or for ctx to be done, so the calling stage
// blocks for the duration of one conversion.
type ConverterPool struct {
	converter PNGConverter
	fallback  PDFRegionRenderer
	limiter   *pkgsync.Limiter
	dpi       int
}

func NewConverterPool(converter PNGConverter, fallback PDFRegionRenderer, workers, dpi int) *ConverterPool {
	if workers <= 0 {
		workers = 1
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &ConverterPool{
		converter: converter,
		fallback:  fallback,
		limiter:   pkgsync.NewLimiter(workers),
		dpi:       dpi,
	}
}

// ConversionResult is the outcome of converting one vector graphic: PNG
// is nil and Err is set when the SVG converter fails and the PDF-region
// fallback is not configured or also fails, when ctx is done first, or
// when the conversion panics. The caller then preserves the SVG without a
// PNG derivative rather than failing the stage, per spec.md §4.7.
type ConversionResult struct {
	PNG         []byte
	UsedFallback bool
	Err         error
}

// Convert rasterizes one SVG, bounded by the pool's worker limit, trying
// the PNG converter first and the PDF-region renderer on failure.
func (p *ConverterPool) Convert(ctx context.Context, pdfPath string, v RawVector) ConversionResult {
	p.limiter.Acquire()
	defer p.limiter.Release()

	done := make(chan ConversionResult, 1)
	safe.Go(func() {
		if png, err := p.converter.ConvertSVG(ctx, v.SVG, p.dpi); err == nil {
			done <- ConversionResult{PNG: png}
			return
		}
		if p.fallback == nil {
			done <- ConversionResult{Err: fmt.Errorf("svg conversion failed and no pdf-region fallback configured")}
			return
		}
		var bboxPx *BBoxPx
		if v.BBox != nil {
			bboxPx = &BBoxPx{X0: v.BBox.X0, Y0: v.BBox.Y0, X1: v.BBox.X1, Y1: v.BBox.Y1}
		}
		png, err := p.fallback.RenderRegion(ctx, pdfPath, v.PageNumber, bboxPx, p.dpi)
		if err != nil {
			done <- ConversionResult{Err: fmt.Errorf("svg conversion and pdf-region fallback both failed: %w", err)}
			return
		}
		done <- ConversionResult{PNG: png, UsedFallback: true}
	}, func(err error) {
		done <- ConversionResult{Err: err}
	})

	select {
	case <-ctx.Done():
		return ConversionResult{Err: ctx.Err()}
	case res := <-done:
		return res
	}
}
