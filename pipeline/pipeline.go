// Package pipeline implements the processor-graph execution model. A
// pipeline is a set of named processors connected by field edges; the graph
// must be acyclic. Two processors are implicit in every pipeline: "_in"
// exposes the request parameter bag, and "_out" aggregates the response
// body.
package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/johanneshilden/trombone/pgquery"
)

// Names of the implicit boundary processors.
const (
	InputProcessor  = "_in"
	OutputProcessor = "_out"
)

// Processor types.
const (
	TypeSql      = "sql"
	TypeStatic   = "static"
	TypePipeline = "pipeline"
	TypeNodeJs   = "nodejs"
)

// Processor is one node of a pipeline. Exactly the fields matching Type are
// set: Query for sql, Body for static, Ref or Inline for pipeline, Script
// for nodejs. Body doubles as the default input object for every type.
type Processor struct {
	Name   string
	Type   string
	Query  *pgquery.Query
	Body   map[string]interface{}
	Ref    string
	Inline *Pipeline
	Script string
}

// Connection routes one output field of a source processor into one input
// field of a target processor. SourceField is a path expression evaluated
// against the source output document, so nested fields can be addressed.
type Connection struct {
	Source      string
	SourceField string
	Target      string
	TargetField string
}

func (c Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.Source, c.SourceField, c.Target, c.TargetField)
}

// Pipeline is an immutable processor graph, validated at decode time.
type Pipeline struct {
	Name        string
	Processors  map[string]*Processor
	Connections []Connection
	order       []string
}

// ConfigError reports an invalid pipeline document.
type ConfigError struct {
	Pipeline string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Pipeline == "" {
		return "pipeline: " + e.Reason
	}

	return "pipeline " + e.Pipeline + ": " + e.Reason
}

func configError(name, format string, args ...interface{}) error {
	return &ConfigError{Pipeline: name, Reason: fmt.Sprintf(format, args...)}
}

// ErrCycle marks a connection graph that is not acyclic.
var ErrCycle = errors.New("pipeline graph contains a cycle")

// validate checks connection endpoints and computes the topological order
// of the processors. Ready processors are taken in name order, so the order
// is stable across runs regardless of topological ties.
func (p *Pipeline) validate() error {
	for name := range p.Processors {
		if name == InputProcessor || name == OutputProcessor {
			return configError(p.Name, "processor name %q is reserved", name)
		}

		if strings.Contains(name, ".") {
			return configError(p.Name, "processor name %q contains a dot", name)
		}
	}

	exists := func(name string) bool {
		if name == InputProcessor || name == OutputProcessor {
			return true
		}

		_, ok := p.Processors[name]
		return ok
	}

	indegree := make(map[string]int, len(p.Processors))
	successors := make(map[string][]string, len(p.Processors))
	for name := range p.Processors {
		indegree[name] = 0
	}

	for _, c := range p.Connections {
		if !exists(c.Source) {
			return configError(p.Name, "connection %v: unknown processor %q", c, c.Source)
		}

		if !exists(c.Target) {
			return configError(p.Name, "connection %v: unknown processor %q", c, c.Target)
		}

		if c.Source == c.Target {
			return configError(p.Name, "connection %v: self loop", c)
		}

		// the boundary processors cannot take part in a cycle
		if c.Source == InputProcessor || c.Target == OutputProcessor {
			continue
		}

		if c.Target == InputProcessor || c.Source == OutputProcessor {
			return configError(p.Name, "connection %v: reversed boundary", c)
		}

		successors[c.Source] = append(successors[c.Source], c.Target)
		indegree[c.Target]++
	}

	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	order := make([]string, 0, len(p.Processors))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		released := false
		for _, succ := range successors[name] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
				released = true
			}
		}

		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(p.Processors) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}

		sort.Strings(stuck)
		return fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}

	p.order = order
	return nil
}

// Order returns the processor execution order.
func (p *Pipeline) Order() []string { return p.order }
