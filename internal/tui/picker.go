package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/pkg/schema"
)

// newForm creates a form, falling back to accessible prompts when stdin
// is not a terminal.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		form = form.WithAccessible(true)
	}
	return form
}

// topicOptions lists the catalog's topics in display order.
func topicOptions(cat *catalog.Catalog) []huh.Option[string] {
	summaries := cat.Summaries()
	opts := make([]huh.Option[string], 0, len(summaries))
	for _, s := range summaries {
		opts = append(opts, huh.NewOption(s.Title, s.ID))
	}
	return opts
}

// modeOptions lists a topic's modes with their step counts.
func modeOptions(t *schema.TopicDefinition) []huh.Option[schema.DiagramMode] {
	opts := make([]huh.Option[schema.DiagramMode], 0, len(t.Modes))
	for _, m := range t.Modes {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%d steps)", m.Label, m.Steps()), m.ID))
	}
	return opts
}

// Pick asks for a topic and then one of its modes.
func Pick(cat *catalog.Catalog) (string, schema.DiagramMode, error) {
	var topicID string
	if err := newForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Pick a pattern").
			Options(topicOptions(cat)...).
			Value(&topicID),
	)).Run(); err != nil {
		return "", "", err
	}

	topic, err := cat.Topic(topicID)
	if err != nil {
		return "", "", err
	}
	mode := topic.DefaultMode()
	if len(topic.Modes) > 1 {
		if err := newForm(huh.NewGroup(
			huh.NewSelect[schema.DiagramMode]().
				Title(topic.Title).
				Description("Pick a mode").
				Options(modeOptions(topic)...).
				Value(&mode),
		)).Run(); err != nil {
			return "", "", err
		}
	}
	return topicID, mode, nil
}
