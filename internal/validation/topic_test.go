package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rendis/patternlab/internal/expressions"
	"github.com/rendis/patternlab/pkg/schema"
)

const validTopic = `
id: fanout
title: Fanout Pattern
short_title: Fanout
description: One event, many consumers.
color: "#ec4899"
canvas: {width: 400, height: 200}
modes:
  - id: direct
    label: Direct Calls
    title: Direct Service Calls
    captions:
      - Order created
      - Calls email
    nodes:
      - {id: order, label: Order, x: 10, y: 80, w: 80, h: 40}
      - {id: email, label: Email, x: 300, y: 20, w: 80, h: 40, active: "step == 1"}
    links:
      - {from: order, to: email, arrow: true}
    tokens:
      - {from: order, to: email, when: "step == 1"}
`

func decode(t *testing.T, src string) (any, *schema.TopicDefinition) {
	t.Helper()
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	var def schema.TopicDefinition
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))
	return doc, &def
}

func newValidator(t *testing.T) *TopicValidator {
	t.Helper()
	engines, err := expressions.NewSet()
	require.NoError(t, err)
	v, err := NewTopicValidator(engines)
	require.NoError(t, err)
	return v
}

func TestValidate_Valid(t *testing.T) {
	v := newValidator(t)
	doc, def := decode(t, validTopic)

	result := v.Validate(doc, def)
	assert.True(t, result.Valid(), "errors: %+v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, result.ToError())
}

func TestValidate_NilDefinition(t *testing.T) {
	v := newValidator(t)
	result := v.Validate(nil, nil)
	assert.False(t, result.Valid())
}

func TestValidate_Structural(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		message string
	}{
		{"bad color", func(s string) string { return strings.Replace(s, `"#ec4899"`, `pink`, 1) }, "/color"},
		{"unknown field", func(s string) string { return s + "author: me\n" }, "author"},
		{"no captions", func(s string) string {
			return strings.Replace(s, "      - Order created\n      - Calls email\n", "", 1)
		}, "captions"},
		{"bad predicate language", func(s string) string { return s + "predicates: lua\n" }, "/predicates"},
		{"negative coordinate", func(s string) string { return strings.Replace(s, "x: 10", "x: -10", 1) }, "/x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(t)
			doc, def := decode(t, tc.mutate(validTopic))

			result := v.Validate(doc, def)
			require.False(t, result.Valid())
			assert.Equal(t, "fanout", result.Topic)

			var all []string
			for _, e := range result.Errors {
				all = append(all, e.Message)
			}
			assert.Contains(t, strings.Join(all, "\n"), tc.message)
		})
	}
}

func TestValidate_DanglingReferences(t *testing.T) {
	v := newValidator(t)
	src := strings.Replace(validTopic, "{from: order, to: email, when:", "{from: order, to: sms, when:", 1)
	doc, def := decode(t, src)

	result := v.Validate(doc, def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "modes[0].tokens[0].to", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, `"sms"`)

	err := result.ToError()
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "topic fanout")
}

func TestValidate_InvalidPredicate(t *testing.T) {
	v := newValidator(t)
	src := strings.Replace(validTopic, `active: "step == 1"`, `active: "step =="`, 1)
	doc, def := decode(t, src)

	result := v.Validate(doc, def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "modes[0].nodes[1].active", result.Errors[0].Path)
	assert.Equal(t, schema.ErrCodeExpression, result.Errors[0].Code)
}

func TestValidate_CELPredicates(t *testing.T) {
	v := newValidator(t)

	doc, def := decode(t, validTopic+"predicates: cel\n")
	assert.True(t, v.Validate(doc, def).Valid())

	// Valid expr, but CEL rejects an integer-valued predicate.
	src := strings.Replace(validTopic, `active: "step == 1"`, `active: "step + 1"`, 1) + "predicates: cel\n"
	doc, def = decode(t, src)
	result := v.Validate(doc, def)
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "want bool")
}

func TestValidate_DuplicateIDs(t *testing.T) {
	v := newValidator(t)
	src := strings.Replace(validTopic, "{id: email, label: Email", "{id: order, label: Email", 1)
	doc, def := decode(t, src)

	result := v.Validate(doc, def)
	require.False(t, result.Valid())
	assert.Equal(t, "modes[0].nodes[1].id", result.Errors[0].Path)
}

func TestValidate_Warnings(t *testing.T) {
	v := newValidator(t)
	src := strings.Replace(validTopic,
		"      - {from: order, to: email, arrow: true}\n",
		"      - {from: order, to: email, arrow: true}\n      - {from: order, to: email}\n", 1)
	src = strings.Replace(src, "nodes:\n", "nodes:\n      - {id: audit, label: Audit, x: 350, y: 150, w: 80, h: 40}\n", 1)
	doc, def := decode(t, src)

	result := v.Validate(doc, def)
	require.True(t, result.Valid(), "errors: %+v", result.Errors)

	var msgs []string
	for _, w := range result.Warnings {
		msgs = append(msgs, w.Message)
	}
	joined := strings.Join(msgs, "\n")
	assert.Contains(t, joined, "declared twice")
	assert.Contains(t, joined, `node "audit" has no links`)
	assert.Contains(t, joined, "past the canvas width")
}

func TestSchemaJSON(t *testing.T) {
	assert.Contains(t, SchemaJSON(), `"$id": "https://patternlab.dev/schemas/topic.json"`)
}
