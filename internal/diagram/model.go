package diagram

import "github.com/rendis/patternlab/pkg/schema"

// Scene is the intermediate representation used by all renderers: one frame
// of a topic's diagram with every predicate already resolved.
type Scene struct {
	Topic     string
	Title     string
	Mode      schema.DiagramMode
	ModeLabel string
	ModeTitle string
	Step      int
	Total     int
	Caption   string
	Accent    string
	Width     int
	Height    int

	Boxes  []Box
	Lines  []Line
	Tokens []Token
	Notes  []Note
}

// Box is a visible node.
type Box struct {
	ID     string
	Label  string
	X, Y   int
	W, H   int
	Color  string
	Active bool
}

// Center returns the box's center point.
func (b Box) Center() (int, int) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Line is a visible connector, clipped to the borders of its boxes.
type Line struct {
	From, To string
	Label    string
	Dashed   bool
	Arrow    bool
	Active   bool
	X1, Y1   int
	X2, Y2   int
}

// Token is a message travelling between box centers.
type Token struct {
	ID       string
	From, To string
	Color    string
	Delay    float64
	X1, Y1   int
	X2, Y2   int
}

// Note is free-standing text.
type Note struct {
	Text  string
	X, Y  int
	Color string
}

// Box returns the visible box with the given ID.
func (s *Scene) Box(id string) (Box, bool) {
	for _, b := range s.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

// Label returns the one-based "Step n / N" label.
func (s *Scene) Label() string {
	return schema.Snapshot{Step: s.Step, TotalSteps: s.Total}.Label()
}
