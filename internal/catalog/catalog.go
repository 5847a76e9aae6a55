// Package catalog loads the topic definitions served by patternlab. The
// built-in topics are embedded; a directory on disk can replace them during
// development.
package catalog

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/expressions"
	"github.com/rendis/patternlab/internal/stepper"
	"github.com/rendis/patternlab/internal/validation"
	"github.com/rendis/patternlab/pkg/schema"
)

//go:embed topics/*.yaml
var embedded embed.FS

// Embedded returns the built-in topic files.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "topics")
	if err != nil {
		panic(err)
	}
	return sub
}

// Option configures Load.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	engines *expressions.Set
}

// WithLogger sets the logger used for validation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngines shares an existing expression engine set.
func WithEngines(s *expressions.Set) Option {
	return func(o *options) { o.engines = s }
}

// Catalog is an immutable set of validated topics. Safe for concurrent use.
type Catalog struct {
	topics  map[string]*schema.TopicDefinition
	order   []string
	engines *expressions.Set
	builder *diagram.Builder
}

// Load reads every *.yaml file at the root of fsys, validates it and
// returns the resulting catalog. Any invalid topic fails the whole load.
func Load(fsys fs.FS, opts ...Option) (*Catalog, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.engines == nil {
		set, err := expressions.NewSet()
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		o.engines = set
	}

	validator, err := validation.NewTopicValidator(o.engines)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: list topics: %w", err)
	}
	if len(names) == 0 {
		return nil, schema.NewError(schema.ErrCodeConfig, "catalog: no topic files found")
	}

	c := &Catalog{
		topics:  make(map[string]*schema.TopicDefinition, len(names)),
		engines: o.engines,
		builder: diagram.NewBuilder(o.engines),
	}
	for _, name := range names {
		def, err := loadFile(fsys, name, validator, o.logger)
		if err != nil {
			return nil, err
		}
		if _, dup := c.topics[def.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "duplicate topic id %q in %s", def.ID, name).
				WithTopic(def.ID)
		}
		c.topics[def.ID] = def
		c.order = append(c.order, def.ID)
	}

	sort.SliceStable(c.order, func(i, j int) bool {
		a, b := c.topics[c.order[i]], c.topics[c.order[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return c, nil
}

func loadFile(fsys fs.FS, name string, v *validation.TopicValidator, logger *slog.Logger) (*schema.TopicDefinition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s: invalid yaml: %s", name, err.Error()).WithCause(err)
	}
	var def schema.TopicDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s: %s", name, err.Error()).WithCause(err)
	}

	result := v.Validate(doc, &def)
	for _, w := range result.Warnings {
		logger.Warn("topic warning", "file", name, "topic", def.ID, "path", w.Path, "message", w.Message)
	}
	if err := result.ToError(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", name, err)
	}

	if want := strings.TrimSuffix(path.Base(name), ".yaml"); want != def.ID {
		logger.Warn("topic id does not match file name", "file", name, "topic", def.ID)
	}
	return &def, nil
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Topics returns the topics in display order.
func (c *Catalog) Topics() []*schema.TopicDefinition {
	out := make([]*schema.TopicDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.topics[id])
	}
	return out
}

// Topic returns the topic with the given id.
func (c *Catalog) Topic(id string) (*schema.TopicDefinition, error) {
	t, ok := c.topics[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "topic %q not found", id).WithTopic(id)
	}
	return t, nil
}

// Summaries returns the topic index in display order.
func (c *Catalog) Summaries() []schema.TopicSummary {
	out := make([]schema.TopicSummary, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.topics[id].Summarize())
	}
	return out
}

// Builder returns the scene builder bound to the catalog's engines.
func (c *Catalog) Builder() *diagram.Builder {
	return c.builder
}

// Scene builds the diagram of topic id at (mode, step).
func (c *Catalog) Scene(ctx context.Context, id string, mode schema.DiagramMode, step int) (*diagram.Scene, error) {
	t, err := c.Topic(id)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = t.DefaultMode()
	}
	return c.builder.Build(ctx, t, mode, step)
}

// Walkthrough returns the captions of a mode in step order.
func (c *Catalog) Walkthrough(id string, mode schema.DiagramMode) ([]string, error) {
	t, err := c.Topic(id)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = t.DefaultMode()
	}
	m, ok := t.Mode(mode)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown mode %q", mode).WithTopic(id)
	}
	return append([]string(nil), m.Captions...), nil
}

// Config builds the engine configuration for topic id. Views mounted from
// it render the current snapshot as SVG.
func (c *Catalog) Config(id string, cadence cron.Schedule) (engine.Config, error) {
	t, err := c.Topic(id)
	if err != nil {
		return engine.Config{}, err
	}
	modes := make([]stepper.ModeSpec, 0, len(t.Modes))
	for _, m := range t.Modes {
		modes = append(modes, stepper.ModeSpec{Mode: m.ID, Steps: m.Steps()})
	}
	return engine.Config{
		Topic:   t.ID,
		Modes:   modes,
		Cadence: cadence,
		Render:  c.svgRenderer(t),
	}, nil
}

func (c *Catalog) svgRenderer(t *schema.TopicDefinition) engine.Renderer {
	return engine.RenderFunc(func(snap schema.Snapshot) (string, error) {
		scene, err := c.builder.Build(context.Background(), t, snap.Mode, snap.Step)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := diagram.RenderSVG(&buf, scene); err != nil {
			return "", schema.NewError(schema.ErrCodeRender, "render svg").WithTopic(t.ID).WithCause(err)
		}
		return buf.String(), nil
	})
}

// Query returns the summaries for which the jq filter yields a truthy
// value. An empty filter matches everything.
func (c *Catalog) Query(ctx context.Context, filter string) ([]schema.TopicSummary, error) {
	all := c.Summaries()
	if strings.TrimSpace(filter) == "" {
		return all, nil
	}
	if err := c.engines.JQ.Check(filter); err != nil {
		return nil, err
	}

	out := make([]schema.TopicSummary, 0, len(all))
	for _, s := range all {
		doc, err := toDocument(s)
		if err != nil {
			return nil, err
		}
		ok, err := c.engines.JQ.Match(ctx, filter, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// toDocument converts a summary into the generic JSON shape jq operates on.
func toDocument(s schema.TopicSummary) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode summary: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode summary: %w", err)
	}
	return doc, nil
}
