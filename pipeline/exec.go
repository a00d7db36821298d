package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/johanneshilden/trombone/nodejs"
	"github.com/johanneshilden/trombone/pg"
)

// Runtime executes pipelines. One runtime is shared by all requests; per
// execution state lives on the stack of Execute.
type Runtime struct {

	// DB provides the transaction every execution runs in.
	DB pg.DB

	// Mesh resolves pipeline processors referencing by name. May be nil
	// when no external pipelines are configured.
	Mesh *Mesh

	// NodeJs runs nodejs processors.
	NodeJs *nodejs.Runner
}

// NodeError tags a processor failure with the processor's name. The
// remaining processors of the pipeline do not run.
type NodeError struct {
	Pipeline string
	Node     string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("pipeline %s: processor %s: %v", e.Pipeline, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Execute runs the pipeline over the request bag. All processors share one
// transaction; it is committed when the aggregator has been assembled and
// rolled back on any processor failure. The returned object is the
// aggregator's input.
func (rt *Runtime) Execute(ctx context.Context, p *Pipeline, bag map[string]interface{}) (map[string]interface{}, error) {
	tx, err := rt.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}

	result, err := rt.run(ctx, tx, p, bag)
	if err != nil {
		tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

// run executes p inside an existing transaction. Nested pipeline processors
// re-enter here so that one request never holds more than one connection.
func (rt *Runtime) run(ctx context.Context, tx pg.Tx, p *Pipeline, bag map[string]interface{}) (map[string]interface{}, error) {
	outputs := make(map[string][]byte, len(p.Processors)+1)

	doc, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}

	outputs[InputProcessor] = doc

	for _, name := range p.order {
		proc := p.Processors[name]
		input := assembleInput(p, name, proc.Body, outputs)
		output, err := rt.invoke(ctx, tx, proc, input)
		if err != nil {
			return nil, &NodeError{Pipeline: p.Name, Node: name, Err: err}
		}

		doc, err := json.Marshal(output)
		if err != nil {
			return nil, &NodeError{Pipeline: p.Name, Node: name, Err: err}
		}

		outputs[name] = doc
	}

	return assembleInput(p, OutputProcessor, nil, outputs), nil
}

// assembleInput builds a processor's input object: the processor's default
// body first, then one field per incoming connection, in declaration order.
// A connection whose source field does not exist contributes nothing.
func assembleInput(p *Pipeline, target string, defaults map[string]interface{}, outputs map[string][]byte) map[string]interface{} {
	input := make(map[string]interface{}, len(defaults))
	for k, v := range defaults {
		input[k] = v
	}

	for _, c := range p.Connections {
		if c.Target != target {
			continue
		}

		doc, ok := outputs[c.Source]
		if !ok {
			continue
		}

		if c.SourceField == "" {
			var whole interface{}
			if json.Unmarshal(doc, &whole) == nil {
				input[c.TargetField] = whole
			}

			continue
		}

		if v := gjson.GetBytes(doc, c.SourceField); v.Exists() {
			input[c.TargetField] = v.Value()
		}
	}

	return input
}

func (rt *Runtime) invoke(ctx context.Context, tx pg.Tx, proc *Processor, input map[string]interface{}) (interface{}, error) {
	switch proc.Type {
	case TypeSql:
		out, err := pg.Run(ctx, tx, *proc.Query, input)
		if err != nil {
			return nil, err
		}

		return out.Body, nil

	case TypeStatic:
		return input, nil

	case TypePipeline:
		nested := proc.Inline
		if nested == nil {
			if rt.Mesh == nil {
				return nil, configError(proc.Ref, "no pipelines registered")
			}

			var ok bool
			nested, ok = rt.Mesh.Lookup(proc.Ref)
			if !ok {
				return nil, configError(proc.Ref, "unknown pipeline")
			}
		}

		return rt.run(ctx, tx, nested, input)

	case TypeNodeJs:
		body, err := json.Marshal(input)
		if err != nil {
			return nil, err
		}

		env, err := rt.NodeJs.Run(ctx, proc.Script, body)
		if err != nil {
			return nil, err
		}

		if env.Status >= 300 {
			return nil, fmt.Errorf("script signalled status %d", env.Status)
		}

		var out interface{}
		if err := json.Unmarshal(env.Body, &out); err != nil {
			return nil, err
		}

		return out, nil
	}

	return nil, configError(proc.Name, "unknown processor type %q", proc.Type)
}
