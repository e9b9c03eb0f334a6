package visual

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	pkgxml "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/xml"
)

// svgViewBox walks an extracted SVG document's raw XML and pulls its
// viewBox (or, failing that, its width/height attributes) into a BBox,
// using pkg/xml's StreamScanner/ElementListener toolkit: the root <svg>
// element is the only one this stage needs, so a single listener on it
// is enough.
func svgViewBox(svg []byte) *engine.BBox {
	var found *engine.BBox
	listener := &pkgxml.ElementListener{
		Name: pkgxml.Name{Local: "svg"},
		OnComplete: func(el pkgxml.Element) error {
			if bbox := bboxFromAttrs(el.Start.Attrs); bbox != nil {
				found = bbox
			}
			return nil
		},
	}
	scanner, err := pkgxml.NewStreamScanner(&pkgxml.StreamScannerConfig{
		Listeners: []*pkgxml.ElementListener{listener},
	})
	if err != nil {
		return nil
	}
	_ = scanner.Scan(bytes.NewReader(svg))
	return found
}

func bboxFromAttrs(attrs []pkgxml.Attr) *engine.BBox {
	for _, a := range attrs {
		if a.Name.Local == "viewBox" {
			if bbox, ok := parseViewBox(a.Value); ok {
				return bbox
			}
		}
	}
	var width, height float64
	var haveWidth, haveHeight bool
	for _, a := range attrs {
		switch a.Name.Local {
		case "width":
			if v, err := strconv.ParseFloat(strings.TrimSuffix(a.Value, "pt"), 64); err == nil {
				width, haveWidth = v, true
			}
		case "height":
			if v, err := strconv.ParseFloat(strings.TrimSuffix(a.Value, "pt"), 64); err == nil {
				height, haveHeight = v, true
			}
		}
	}
	if haveWidth && haveHeight {
		return &engine.BBox{X0: 0, Y0: 0, X1: width, Y1: height}
	}
	return nil
}

// parseViewBox parses "min-x min-y width height" into an (x0,y0,x1,y1) box.
func parseViewBox(v string) (*engine.BBox, bool) {
	fields := strings.Fields(v)
	if len(fields) != 4 {
		return nil, false
	}
	nums := make([]float64, 4)
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		nums[i] = n
	}
	return &engine.BBox{X0: nums[0], Y0: nums[1], X1: nums[0] + nums[2], Y1: nums[1] + nums[3]}, true
}
