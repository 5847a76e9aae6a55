package diagram

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

// tokenTravel is the duration of one token trip in seconds.
const tokenTravel = 1.2

// RenderSVG writes the scene as a standalone SVG document. Tokens are
// animated with SMIL so the document plays without scripts.
func RenderSVG(w io.Writer, s *Scene) error {
	if s == nil {
		return fmt.Errorf("diagram: nil scene")
	}
	ew := &errWriter{w: w}
	height := s.Height + captionBand

	canvas := svg.New(ew)
	canvas.Start(s.Width, height)
	canvas.Title(fmt.Sprintf("%s: %s (%s)", s.Title, s.ModeTitle, s.Label()))
	canvas.Rect(0, 0, s.Width, height, fmt.Sprintf("fill:%s", css(colorBackdrop)))

	for _, l := range s.Lines {
		stroke := colorLine
		if l.Active {
			stroke = parseHex(s.Accent)
		}
		style := fmt.Sprintf("stroke:%s;stroke-width:2", css(stroke))
		if l.Dashed {
			style += ";stroke-dasharray:6,4"
		}
		canvas.Line(l.X1, l.Y1, l.X2, l.Y2, style)
		if l.Arrow {
			xs, ys := arrowHead(l.X1, l.Y1, l.X2, l.Y2)
			canvas.Polygon(xs, ys, fmt.Sprintf("fill:%s", css(stroke)))
		}
		if l.Label != "" {
			canvas.Text((l.X1+l.X2)/2, (l.Y1+l.Y2)/2-6, l.Label,
				fmt.Sprintf("fill:%s;font-size:11px;font-family:sans-serif;text-anchor:middle", css(colorSubtle)))
		}
	}

	for _, b := range s.Boxes {
		base := parseHex(b.Color)
		fill, stroke := tint(base, 0.25), tint(base, 0.6)
		if b.Active {
			fill, stroke = tint(base, 0.6), base
		}
		canvas.Roundrect(b.X, b.Y, b.W, b.H, 8, 8,
			fmt.Sprintf(`id="node-%s"`, b.ID),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:2", css(fill), css(stroke)))
		cx, cy := b.Center()
		canvas.Text(cx, cy+4, b.Label,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:sans-serif;text-anchor:middle", css(colorText)))
	}

	for _, t := range s.Tokens {
		canvas.Circle(0, 0, 6, fmt.Sprintf(`id="%s"`, t.ID), fmt.Sprintf("fill:%s", css(parseHex(t.Color))))
		canvas.AnimateTranslate("#"+t.ID, t.X1, t.Y1, t.X2, t.Y2, tokenTravel, 0,
			fmt.Sprintf(`begin="%.2fs"`, t.Delay))
	}

	for _, n := range s.Notes {
		c := colorSubtle
		if n.Color != "" {
			c = parseHex(n.Color)
		}
		canvas.Text(n.X, n.Y, n.Text, fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif", css(c)))
	}

	canvas.Text(16, s.Height+18, s.Label(),
		fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-weight:bold", css(parseHex(s.Accent))))
	canvas.Text(16, s.Height+36, s.Caption,
		fmt.Sprintf("fill:%s;font-size:13px;font-family:sans-serif", css(colorText)))
	canvas.End()

	if ew.err != nil {
		return fmt.Errorf("diagram: write svg: %w", ew.err)
	}
	return nil
}

// errWriter remembers the first write error; svgo discards them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}
