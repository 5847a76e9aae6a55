package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// PrettyHandler is a development handler writing one colored line per record:
//
//	15:04:05.000 INF view mounted view_id=... topic=fanout
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string

	levels map[slog.Level]*color.Color
	key    *color.Color
	faint  *color.Color
}

// NewPrettyHandler creates a PrettyHandler. noColor forces plain output.
func NewPrettyHandler(w io.Writer, level slog.Leveler, noColor bool) *PrettyHandler {
	h := &PrettyHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		levels: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgCyan),
			slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
		key:   color.New(color.FgBlue),
		faint: color.New(color.Faint),
	}
	if noColor {
		for _, c := range h.levels {
			c.DisableColor()
		}
		h.key.DisableColor()
		h.faint.DisableColor()
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.faint.Sprint(r.Time.Format("15:04:05.000")))
		b.WriteByte(' ')
	}
	b.WriteString(h.levelColor(r.Level).Sprint(levelTag(r.Level)))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	cp.attrs = append(cp.attrs, h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			h.writeAttr(b, p, g)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(h.key.Sprint(prefix + a.Key))
	b.WriteByte('=')
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\"=") {
		v = fmt.Sprintf("%q", v)
	}
	b.WriteString(v)
}

func (h *PrettyHandler) levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return h.levels[slog.LevelError]
	case l >= slog.LevelWarn:
		return h.levels[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return h.levels[slog.LevelInfo]
	}
	return h.levels[slog.LevelDebug]
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERR"
	case l >= slog.LevelWarn:
		return "WRN"
	case l >= slog.LevelInfo:
		return "INF"
	}
	return "DBG"
}
