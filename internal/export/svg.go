// Package export renders recorded cable frames as SVG.
package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/cablefea/internal/dynamo"
)

type bounds struct{ minX, maxX, minY, maxY float64 }

func frameBounds(frames []*dynamo.Frame) (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	grow := func(x, y float64) {
		b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
		b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
	}
	for _, f := range frames {
		for _, n := range f.Nodes {
			grow(n.Pos.X(), n.Pos.Y())
		}
		for _, body := range f.Bodies {
			grow(body.Pos.X(), body.Pos.Y())
		}
	}
	return b, !math.IsInf(b.minX, 1)
}

// ProfileSVG draws the cable of every frame in the x-y plane, older frames
// fainter, with bodies as small squares. Both axes share one scale.
func ProfileSVG(frames []*dynamo.Frame, width, height int) string {
	b, ok := frameBounds(frames)
	if !ok {
		return ""
	}

	span := math.Max(b.maxX-b.minX, b.maxY-b.minY)
	if span == 0 {
		span = 1
	}
	pad := 0.1 * span
	scale := math.Min(float64(width), float64(height)) / (span + 2*pad)
	project := func(x, y float64) (float64, float64) {
		return (x - b.minX + pad) * scale, float64(height) - (y-b.minY+pad)*scale
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, f := range frames {
		if len(f.Nodes) < 2 {
			continue
		}
		opacity := 1.0
		if len(frames) > 1 {
			opacity = 0.15 + 0.85*float64(i)/float64(len(frames)-1)
		}
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="#c0c8d0" stroke-opacity="%.2f" stroke-width="1.5" d="M`, opacity))
		for j, n := range f.Nodes {
			x, y := project(n.Pos.X(), n.Pos.Y())
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	if last := frames[len(frames)-1]; len(last.Bodies) > 0 {
		for _, body := range last.Bodies {
			x, y := project(body.Pos.X(), body.Pos.Y())
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="6" height="6" fill="#ffaa00"/>
`, x-3, y-3))
		}
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

// WriteProfileSVG writes ProfileSVG to path.
func WriteProfileSVG(path string, frames []*dynamo.Frame, width, height int) error {
	svg := ProfileSVG(frames, width, height)
	if svg == "" {
		return fmt.Errorf("no nodes to draw")
	}
	return os.WriteFile(path, []byte(svg), 0644)
}
