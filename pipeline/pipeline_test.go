package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) *Pipeline {
	t.Helper()
	p, err := Decode([]byte(doc))
	require.NoError(t, err)
	return p
}

func TestDecodeValidPipeline(t *testing.T) {
	p := decode(t, `{
		"name": "photo-summary",
		"processors": [
			{"name": "a", "type": "sql", "result": "item",
			 "sql": "select id, url from photo where id = {{id}}"},
			{"name": "b", "type": "static", "body": {"tag": "x"}}
		],
		"connections": [
			{"from": "_in.id", "to": "a.id"},
			{"from": "a.id", "to": "b.ref"},
			{"from": "b.ref", "to": "_out.ref"}
		]
	}`)

	assert.Equal(t, "photo-summary", p.Name)
	assert.Len(t, p.Processors, 2)
	assert.Equal(t, []string{"a", "b"}, p.Order())
}

func TestDecodeRejects(t *testing.T) {
	for _, tt := range []struct {
		msg string
		doc string
	}{{
		"duplicate processor",
		`{"processors": [
			{"name": "a", "type": "static"},
			{"name": "a", "type": "static"}
		]}`,
	}, {
		"unknown type",
		`{"processors": [{"name": "a", "type": "lua"}]}`,
	}, {
		"reserved name",
		`{"processors": [{"name": "_in", "type": "static"}]}`,
	}, {
		"dotted name",
		`{"processors": [{"name": "a.b", "type": "static"}]}`,
	}, {
		"unknown source",
		`{"processors": [{"name": "a", "type": "static"}],
		  "connections": [{"from": "ghost.x", "to": "a.x"}]}`,
	}, {
		"unknown target",
		`{"processors": [{"name": "a", "type": "static"}],
		  "connections": [{"from": "a.x", "to": "ghost.x"}]}`,
	}, {
		"target without field",
		`{"processors": [{"name": "a", "type": "static"}],
		  "connections": [{"from": "_in.x", "to": "a"}]}`,
	}, {
		"self loop",
		`{"processors": [{"name": "a", "type": "static"}],
		  "connections": [{"from": "a.x", "to": "a.y"}]}`,
	}, {
		"sql without result mode",
		`{"processors": [{"name": "a", "type": "sql", "sql": "select 1"}]}`,
	}, {
		"missing pipeline reference",
		`{"processors": [{"name": "a", "type": "pipeline"}]}`,
	}} {
		_, err := Decode([]byte(tt.doc))
		assert.Error(t, err, tt.msg)
	}
}

func TestDecodeRejectsCycle(t *testing.T) {
	_, err := Decode([]byte(`{
		"processors": [
			{"name": "a", "type": "static"},
			{"name": "b", "type": "static"},
			{"name": "c", "type": "static"}
		],
		"connections": [
			{"from": "a.x", "to": "b.x"},
			{"from": "b.x", "to": "c.x"},
			{"from": "c.x", "to": "a.x"}
		]
	}`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
}

// ties in the topological order resolve by name, so the order is the same
// however the document lists the processors
func TestOrderDeterministic(t *testing.T) {
	forward := decode(t, `{
		"processors": [
			{"name": "a", "type": "static"},
			{"name": "b", "type": "static"},
			{"name": "c", "type": "static"}
		],
		"connections": [{"from": "a.x", "to": "c.x"}]
	}`)

	backward := decode(t, `{
		"processors": [
			{"name": "c", "type": "static"},
			{"name": "b", "type": "static"},
			{"name": "a", "type": "static"}
		],
		"connections": [{"from": "a.x", "to": "c.x"}]
	}`)

	assert.Equal(t, []string{"a", "b", "c"}, forward.Order())
	assert.Equal(t, forward.Order(), backward.Order())
}

func TestDecodeInfersSqlColumns(t *testing.T) {
	p := decode(t, `{"processors": [
		{"name": "a", "type": "sql", "result": "collection",
		 "sql": "select id, url from photo"}
	]}`)

	assert.Equal(t, []string{"id", "url"}, p.Processors["a"].Query.Result.Columns)
}

func TestDecodeNestedInline(t *testing.T) {
	p := decode(t, `{"processors": [
		{"name": "outer", "type": "pipeline", "inline": {
			"processors": [{"name": "inner", "type": "static", "body": {}}]
		}}
	]}`)

	require.NotNil(t, p.Processors["outer"].Inline)
	assert.Contains(t, p.Processors["outer"].Inline.Processors, "inner")
}

func TestLoadMesh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "summary.json", `{"processors": [
		{"name": "a", "type": "static", "body": {}}
	]}`)

	m, err := LoadMesh(dir)
	require.NoError(t, err)

	p, ok := m.Lookup("summary")
	require.True(t, ok)
	assert.Equal(t, "summary", p.Name)

	_, ok = m.Lookup("ghost")
	assert.False(t, ok)
}
