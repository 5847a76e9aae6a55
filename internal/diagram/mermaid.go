package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders the scene as a Mermaid flowchart. Active boxes get
// the "active" class and the caption is kept as a comment.
func RenderMermaid(s *Scene) string {
	var b strings.Builder

	b.WriteString("flowchart LR\n")
	b.WriteString(fmt.Sprintf("    %%%% %s: %s (%s)\n", s.Title, s.ModeTitle, s.Label()))
	if s.Caption != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", s.Caption))
	}

	var active []string
	for _, box := range s.Boxes {
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidSafeID(box.ID), mermaidEscape(box.Label)))
		if box.Active {
			active = append(active, mermaidSafeID(box.ID))
		}
	}

	for _, l := range s.Lines {
		arrow := "---"
		switch {
		case l.Dashed && l.Arrow:
			arrow = "-.->"
		case l.Dashed:
			arrow = "-.-"
		case l.Arrow:
			arrow = "-->"
		}
		label := ""
		if l.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscape(l.Label))
		}
		b.WriteString(fmt.Sprintf("    %s %s%s %s\n", mermaidSafeID(l.From), arrow, label, mermaidSafeID(l.To)))
	}

	b.WriteString(fmt.Sprintf("    classDef active fill:%s,stroke:%s,color:#fff\n", s.Accent, s.Accent))
	if len(active) > 0 {
		b.WriteString(fmt.Sprintf("    class %s active\n", strings.Join(active, ",")))
	}

	return b.String()
}

// mermaidSafeID replaces characters Mermaid does not accept in node ids.
func mermaidSafeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
