package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/johanneshilden/trombone/pgquery"
)

type processorDoc struct {
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Sql      string                 `json:"sql"`
	Result   string                 `json:"result"`
	Columns  []string               `json:"columns"`
	Table    string                 `json:"table"`
	Sequence string                 `json:"sequence"`
	Body     map[string]interface{} `json:"body"`
	Pipeline string                 `json:"pipeline"`
	Inline   *pipelineDoc           `json:"inline"`
	Script   string                 `json:"script"`
}

type connectionDoc struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type pipelineDoc struct {
	Name        string          `json:"name"`
	Processors  []processorDoc  `json:"processors"`
	Connections []connectionDoc `json:"connections"`
}

var resultKinds = map[string]pgquery.ResultKind{
	"none":        pgquery.ResultNone,
	"item":        pgquery.ResultItem,
	"item-ok":     pgquery.ResultItemOk,
	"collection":  pgquery.ResultCollection,
	"last-insert": pgquery.ResultLastInsert,
	"count":       pgquery.ResultCount,
}

// Decode parses and validates a pipeline document:
//
//	{
//	  "processors": [
//	    {"name": "a", "type": "sql", "result": "item",
//	     "sql": "select * from photo where id = {{id}}"},
//	    {"name": "b", "type": "static", "body": {"tag": "photo"}}
//	  ],
//	  "connections": [
//	    {"from": "_in.id",  "to": "a.id"},
//	    {"from": "a.id",    "to": "_out.photo"},
//	    {"from": "b.tag",   "to": "_out.tag"}
//	  ]
//	}
//
// Connection endpoints are written "processor.field"; the source side may
// name a nested field path, or omit the field to pass the whole output
// document.
func Decode(doc []byte) (*Pipeline, error) {
	var d pipelineDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	return build(&d)
}

func build(d *pipelineDoc) (*Pipeline, error) {
	p := &Pipeline{
		Name:       d.Name,
		Processors: make(map[string]*Processor, len(d.Processors)),
	}

	for _, pd := range d.Processors {
		proc, err := buildProcessor(d.Name, pd)
		if err != nil {
			return nil, err
		}

		if _, dup := p.Processors[proc.Name]; dup {
			return nil, configError(d.Name, "duplicate processor %q", proc.Name)
		}

		p.Processors[proc.Name] = proc
	}

	for _, cd := range d.Connections {
		c, err := buildConnection(d.Name, cd)
		if err != nil {
			return nil, err
		}

		p.Connections = append(p.Connections, c)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func buildProcessor(pipelineName string, pd processorDoc) (*Processor, error) {
	if pd.Name == "" {
		return nil, configError(pipelineName, "processor without a name")
	}

	proc := &Processor{Name: pd.Name, Type: pd.Type, Body: pd.Body}
	switch pd.Type {
	case TypeSql:
		q, err := buildQuery(pd)
		if err != nil {
			return nil, configError(pipelineName, "processor %q: %v", pd.Name, err)
		}

		proc.Query = q

	case TypeStatic:
		if proc.Body == nil {
			proc.Body = map[string]interface{}{}
		}

	case TypePipeline:
		switch {
		case pd.Pipeline != "":
			proc.Ref = pd.Pipeline
		case pd.Inline != nil:
			inline, err := build(pd.Inline)
			if err != nil {
				return nil, err
			}

			proc.Inline = inline
		default:
			return nil, configError(pipelineName, "processor %q: missing pipeline reference", pd.Name)
		}

	case TypeNodeJs:
		if pd.Script == "" {
			return nil, configError(pipelineName, "processor %q: missing script", pd.Name)
		}

		proc.Script = pd.Script

	default:
		return nil, configError(pipelineName, "processor %q: unknown type %q", pd.Name, pd.Type)
	}

	return proc, nil
}

func buildQuery(pd processorDoc) (*pgquery.Query, error) {
	kind, ok := resultKinds[pd.Result]
	if !ok {
		return nil, configError("", "unknown result mode %q", pd.Result)
	}

	tpl, err := pgquery.Parse(pd.Sql)
	if err != nil {
		return nil, err
	}

	result := pgquery.Result{Kind: kind, Columns: pd.Columns, Table: pd.Table, Sequence: pd.Sequence}
	switch kind {
	case pgquery.ResultItem, pgquery.ResultItemOk, pgquery.ResultCollection:
		if len(result.Columns) == 0 {
			result.Columns = tpl.Probe().Columns
		}

		if len(result.Columns) == 0 {
			return nil, configError("", "cannot infer result columns for %q", pd.Sql)
		}

	case pgquery.ResultLastInsert:
		if result.Table == "" {
			result.Table = tpl.Probe().Table
		}

		if result.Table == "" {
			return nil, configError("", "cannot infer target table for %q", pd.Sql)
		}

		if result.Sequence == "" {
			result.Sequence = "id"
		}
	}

	return &pgquery.Query{Result: result, Template: tpl}, nil
}

func buildConnection(pipelineName string, cd connectionDoc) (Connection, error) {
	src, srcField := splitEndpoint(cd.From)
	dst, dstField := splitEndpoint(cd.To)
	if src == "" {
		return Connection{}, configError(pipelineName, "connection %q -> %q: missing source", cd.From, cd.To)
	}

	if dst == "" || dstField == "" {
		return Connection{}, configError(pipelineName, "connection %q -> %q: target must be processor.field", cd.From, cd.To)
	}

	return Connection{Source: src, SourceField: srcField, Target: dst, TargetField: dstField}, nil
}

func splitEndpoint(s string) (proc, field string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}

	return s, ""
}

// Mesh is the named table of externally defined pipelines, loaded once at
// startup and read-only afterwards.
type Mesh struct {
	pipelines map[string]*Pipeline
}

// NewMesh builds a mesh from already decoded pipelines.
func NewMesh(pipelines ...*Pipeline) *Mesh {
	m := &Mesh{pipelines: make(map[string]*Pipeline, len(pipelines))}
	for _, p := range pipelines {
		m.pipelines[p.Name] = p
	}

	return m
}

// LoadMesh reads every *.json document in dir. A pipeline is registered
// under its "name" field, or the file name without extension when the field
// is absent.
func LoadMesh(dir string) (*Mesh, error) {
	m := &Mesh{pipelines: make(map[string]*Pipeline)}
	if dir == "" {
		return m, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		doc, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		p, err := Decode(doc)
		if err != nil {
			return nil, &ConfigError{Pipeline: file, Reason: err.Error()}
		}

		if p.Name == "" {
			p.Name = strings.TrimSuffix(filepath.Base(file), ".json")
		}

		if _, dup := m.pipelines[p.Name]; dup {
			return nil, configError(p.Name, "registered twice")
		}

		m.pipelines[p.Name] = p
	}

	return m, nil
}

// Lookup returns the named pipeline.
func (m *Mesh) Lookup(name string) (*Pipeline, bool) {
	p, ok := m.pipelines[name]
	return p, ok
}

// Names returns the registered pipeline names.
func (m *Mesh) Names() []string {
	var names []string
	for name := range m.pipelines {
		names = append(names, name)
	}

	return names
}
