package diagram

import (
	"fmt"
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"
)

// RenderPNG writes a static PNG of the scene. Tokens are drawn at the
// midpoint of their trip.
func RenderPNG(w io.Writer, s *Scene) error {
	if s == nil {
		return fmt.Errorf("diagram: nil scene")
	}
	dc := gg.NewContext(s.Width, s.Height+captionBand)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for _, l := range s.Lines {
		stroke := colorLine
		if l.Active {
			stroke = parseHex(s.Accent)
		}
		dc.SetColor(stroke)
		dc.SetLineWidth(2)
		if l.Dashed {
			dc.SetDash(6, 4)
		}
		dc.DrawLine(float64(l.X1), float64(l.Y1), float64(l.X2), float64(l.Y2))
		dc.Stroke()
		dc.SetDash()
		if l.Arrow {
			xs, ys := arrowHead(l.X1, l.Y1, l.X2, l.Y2)
			dc.NewSubPath()
			dc.MoveTo(float64(xs[0]), float64(ys[0]))
			dc.LineTo(float64(xs[1]), float64(ys[1]))
			dc.LineTo(float64(xs[2]), float64(ys[2]))
			dc.ClosePath()
			dc.Fill()
		}
		if l.Label != "" {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(l.Label, float64(l.X1+l.X2)/2, float64(l.Y1+l.Y2)/2-8, 0.5, 0.5)
		}
	}

	for _, b := range s.Boxes {
		base := parseHex(b.Color)
		fill, stroke := tint(base, 0.25), tint(base, 0.6)
		if b.Active {
			fill, stroke = tint(base, 0.6), base
		}
		x, y, bw, bh := float64(b.X), float64(b.Y), float64(b.W), float64(b.H)
		dc.SetColor(fill)
		dc.DrawRoundedRectangle(x, y, bw, bh, 8)
		dc.Fill()
		dc.SetColor(stroke)
		dc.SetLineWidth(2)
		dc.DrawRoundedRectangle(x, y, bw, bh, 8)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(b.Label, x+bw/2, y+bh/2, 0.5, 0.5)
	}

	for _, t := range s.Tokens {
		dc.SetColor(parseHex(t.Color))
		dc.DrawCircle(float64(t.X1+t.X2)/2, float64(t.Y1+t.Y2)/2, 6)
		dc.Fill()
	}

	for _, n := range s.Notes {
		c := colorSubtle
		if n.Color != "" {
			c = parseHex(n.Color)
		}
		dc.SetColor(c)
		dc.DrawStringAnchored(n.Text, float64(n.X), float64(n.Y), 0, 0.5)
	}

	dc.SetColor(parseHex(s.Accent))
	dc.DrawStringAnchored(s.Label(), 16, float64(s.Height+16), 0, 0.5)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(s.Caption, 16, float64(s.Height+34), 0, 0.5)

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("diagram: encode png: %w", err)
	}
	return nil
}
