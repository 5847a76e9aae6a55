package diagram

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

var (
	colorBackdrop = color.RGBA{R: 15, G: 23, B: 42, A: 255}
	colorPanel    = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	colorLine     = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	colorText     = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	colorSubtle   = color.RGBA{R: 148, G: 163, B: 184, A: 255}
)

// captionBand is the height reserved under the canvas for the step label and
// caption.
const captionBand = 48

// parseHex converts "#rrggbb" to a color, falling back to the line color.
func parseHex(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return colorLine
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return colorLine
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// tint mixes c with the panel color; used for inactive boxes.
func tint(c color.RGBA, weight float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*weight + float64(b)*(1-weight))
	}
	return color.RGBA{R: mix(c.R, colorPanel.R), G: mix(c.G, colorPanel.G), B: mix(c.B, colorPanel.B), A: 255}
}

// arrowHead returns the triangle at (x2, y2) pointing away from (x1, y1).
func arrowHead(x1, y1, x2, y2 int) (xs, ys []int) {
	dx, dy := float64(x2-x1), float64(y2-y1)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, nil
	}
	ux, uy := dx/length, dy/length
	const size, half = 9.0, 4.5
	bx, by := float64(x2)-ux*size, float64(y2)-uy*size
	return []int{x2, int(bx - uy*half), int(bx + uy*half)},
		[]int{y2, int(by + ux*half), int(by - ux*half)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
