package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/johanneshilden/trombone/pg"
	"github.com/johanneshilden/trombone/pipeline"
	"github.com/johanneshilden/trombone/routeconf"
)

// AllowKey is the static response key promoted to the Allow header.
const AllowKey = "<Allow>"

// execute runs one resolved action. Every failure is returned as an error
// value; the caller maps it to HTTP.
func (h *Handler) execute(ctx context.Context, rc *Context, action routeconf.Action) (*RouteResponse, error) {
	switch a := action.(type) {
	case routeconf.SqlAction:
		return h.executeSql(ctx, rc, a)

	case routeconf.PipelineAction:
		p, ok := h.mesh.Lookup(a.Name)
		if !ok {
			return nil, kindError(KindServerConfiguration, fmt.Sprintf("unknown pipeline %q", a.Name))
		}

		return h.executePipeline(ctx, rc, p)

	case routeconf.InlinePipelineAction:
		return h.executePipeline(ctx, rc, a.Pipeline)

	case routeconf.NodeJsAction:
		return h.executeNodeJs(ctx, rc, a.Script)

	case routeconf.StaticAction:
		return executeStatic(a.Body), nil
	}

	return nil, kindError(KindServerConfiguration, "route without a usable action")
}

// executeSql runs the statement in its own transaction. One connection per
// action keeps the generated-id lookup of the last-insert mode on the
// session that ran the insert.
func (h *Handler) executeSql(ctx context.Context, rc *Context, a routeconf.SqlAction) (*RouteResponse, error) {
	tx, err := h.db.Begin(ctx)
	if err != nil {
		return nil, classify(err, KindDbError)
	}

	out, err := pg.Run(ctx, tx, a.Query, rc.Bag)
	if err != nil {
		tx.Rollback(ctx)
		return nil, classify(err, KindDbError)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, KindDbError)
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}

	return &RouteResponse{Status: status, Body: out.Body}, nil
}

func (h *Handler) executePipeline(ctx context.Context, rc *Context, p *pipeline.Pipeline) (*RouteResponse, error) {
	result, err := h.pipelines.Execute(ctx, p, rc.Bag)
	if err != nil {
		return nil, classify(err, KindPipelineError)
	}

	return okResponse(result), nil
}

func (h *Handler) executeNodeJs(ctx context.Context, rc *Context, script string) (*RouteResponse, error) {
	env, err := h.nodejs.Run(ctx, script, rc.Body)
	if err != nil {
		return nil, classify(err, KindNodeJsError)
	}

	resp := &RouteResponse{Status: env.Status, Body: json.RawMessage(env.Body)}
	for _, header := range env.Headers {
		resp.SetHeader(header[0], header[1])
	}

	return resp, nil
}

// executeStatic returns the configured body, lifting the Allow marker key
// into a response header.
func executeStatic(body map[string]interface{}) *RouteResponse {
	resp := okResponse(nil)
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k == AllowKey {
			if s, ok := v.(string); ok {
				resp.SetHeader("Allow", s)
			}

			continue
		}

		out[k] = v
	}

	resp.Body = out
	return resp
}
