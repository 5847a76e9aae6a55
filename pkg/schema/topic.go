package schema

// PredicateLanguage selects the expression engine used for a topic's
// `when` and `active` predicates.
type PredicateLanguage string

const (
	PredicateExpr PredicateLanguage = "expr"
	PredicateCEL  PredicateLanguage = "cel"
)

// TopicDefinition is the authored description of one teaching topic and its
// interactive diagram.
type TopicDefinition struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	ShortTitle  string            `json:"short_title" yaml:"short_title"`
	Description string            `json:"description" yaml:"description"`
	Color       string            `json:"color" yaml:"color"`
	Order       int               `json:"order,omitempty" yaml:"order,omitempty"`
	Predicates  PredicateLanguage `json:"predicates,omitempty" yaml:"predicates,omitempty"`
	Summary     string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Canvas      Canvas            `json:"canvas,omitempty" yaml:"canvas,omitempty"`
	Modes       []ModeDefinition  `json:"modes" yaml:"modes"`
}

// Canvas is the drawing area shared by every mode of a topic.
type Canvas struct {
	Width  int `json:"width,omitempty" yaml:"width,omitempty"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`
}

// ModeDefinition describes one variant of the diagram. The number of
// captions is the mode's step count.
type ModeDefinition struct {
	ID       DiagramMode `json:"id" yaml:"id"`
	Label    string      `json:"label" yaml:"label"`
	Title    string      `json:"title" yaml:"title"`
	Color    string      `json:"color,omitempty" yaml:"color,omitempty"`
	Captions []string    `json:"captions" yaml:"captions"`
	Nodes    []NodeDef   `json:"nodes" yaml:"nodes"`
	Links    []LinkDef   `json:"links,omitempty" yaml:"links,omitempty"`
	Tokens   []TokenDef  `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Notes    []NoteDef   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Steps returns the number of animation beats in the mode.
func (m ModeDefinition) Steps() int {
	return len(m.Captions)
}

// NodeDef is a labelled box.
type NodeDef struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
	W      int    `json:"w" yaml:"w"`
	H      int    `json:"h" yaml:"h"`
	Color  string `json:"color,omitempty" yaml:"color,omitempty"`
	When   string `json:"when,omitempty" yaml:"when,omitempty"`
	Active string `json:"active,omitempty" yaml:"active,omitempty"`
}

// LinkDef is a connector between two nodes.
type LinkDef struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Dashed bool   `json:"dashed,omitempty" yaml:"dashed,omitempty"`
	Arrow  bool   `json:"arrow,omitempty" yaml:"arrow,omitempty"`
	When   string `json:"when,omitempty" yaml:"when,omitempty"`
	Active string `json:"active,omitempty" yaml:"active,omitempty"`
}

// TokenDef is a message dot travelling from one node to another while
// its predicate holds.
type TokenDef struct {
	From  string  `json:"from" yaml:"from"`
	To    string  `json:"to" yaml:"to"`
	Color string  `json:"color,omitempty" yaml:"color,omitempty"`
	When  string  `json:"when" yaml:"when"`
	Delay float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// NoteDef is free-standing text.
type NoteDef struct {
	Text  string `json:"text" yaml:"text"`
	X     int    `json:"x" yaml:"x"`
	Y     int    `json:"y" yaml:"y"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
	When  string `json:"when,omitempty" yaml:"when,omitempty"`
}

// Mode returns the mode with the given ID.
func (t *TopicDefinition) Mode(id DiagramMode) (*ModeDefinition, bool) {
	for i := range t.Modes {
		if t.Modes[i].ID == id {
			return &t.Modes[i], true
		}
	}
	return nil, false
}

// DefaultMode returns the first declared mode.
func (t *TopicDefinition) DefaultMode() DiagramMode {
	if len(t.Modes) == 0 {
		return ""
	}
	return t.Modes[0].ID
}

// TopicSummary is the index entry of a topic.
type TopicSummary struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	ShortTitle  string        `json:"short_title"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
	Modes       []ModeSummary `json:"modes"`
}

// ModeSummary is the index entry of a mode.
type ModeSummary struct {
	ID    DiagramMode `json:"id"`
	Label string      `json:"label"`
	Steps int         `json:"steps"`
}

// Summarize builds the index entry for a topic.
func (t *TopicDefinition) Summarize() TopicSummary {
	modes := make([]ModeSummary, 0, len(t.Modes))
	for _, m := range t.Modes {
		modes = append(modes, ModeSummary{ID: m.ID, Label: m.Label, Steps: m.Steps()})
	}
	return TopicSummary{
		ID:          t.ID,
		Title:       t.Title,
		ShortTitle:  t.ShortTitle,
		Description: t.Description,
		Color:       t.Color,
		Modes:       modes,
	}
}
