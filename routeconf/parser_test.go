package routeconf

import (
	"errors"
	"testing"

	"github.com/johanneshilden/trombone/pgquery"
)

func single(t *testing.T, text string) *Route {
	t.Helper()
	routes, err := ParseString(text)
	if err != nil {
		t.Fatal(err)
	}

	if len(routes) != 1 {
		t.Fatal("expected a single route, got", len(routes))
	}

	return routes[0]
}

func failing(t *testing.T, text string) *Error {
	t.Helper()
	_, err := ParseString(text)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected parse error for %q, got %v", text, err)
	}

	return e
}

func TestParseEmptyDocument(t *testing.T) {
	for _, text := range []string{"", "\n\n", "# only comments\n  # more\n"} {
		routes, err := ParseString(text)
		if err != nil {
			t.Fatal(err)
		}

		if len(routes) != 0 {
			t.Error("expected no routes for", text)
		}
	}
}

func TestParseSqlSymbols(t *testing.T) {
	for _, tt := range []struct {
		line string
		kind pgquery.ResultKind
	}{
		{"DELETE photo -- delete from photo where id = {{:id}}", pgquery.ResultNone},
		{"GET photo/:id ~> select * from photo where id = {{:id}}", pgquery.ResultItem},
		{"GET photo/:id -> select * from photo where id = {{:id}}", pgquery.ResultItemOk},
		{"GET photo >> select * from photo", pgquery.ResultCollection},
		{"POST photo <> insert into photo (url) values ({{url}})", pgquery.ResultLastInsert},
		{"PUT photo >< update photo set url = {{url}}", pgquery.ResultCount},
	} {
		r := single(t, tt.line)
		sql, ok := r.Action.(SqlAction)
		if !ok {
			t.Error(tt.line, "expected sql action")
			continue
		}

		if sql.Query.Result.Kind != tt.kind {
			t.Error(tt.line, "kind", sql.Query.Result.Kind, tt.kind)
		}
	}
}

func TestParsePatternSegments(t *testing.T) {
	r := single(t, "GET /photo/:id/comments ~> (id) select id from comment where photo_id = {{:id}}")
	p := r.Pattern
	if len(p) != 3 {
		t.Fatal("expected 3 segments, got", len(p))
	}

	if p[0].Var || p[0].Name != "photo" {
		t.Error("segment 0", p[0])
	}

	if !p[1].Var || p[1].Name != "id" {
		t.Error("segment 1", p[1])
	}

	if p[2].Var || p[2].Name != "comments" {
		t.Error("segment 2", p[2])
	}
}

func TestParseColumnHints(t *testing.T) {
	r := single(t, "GET photo >> (id, url) select * from photo")
	sql := r.Action.(SqlAction)
	cols := sql.Query.Result.Columns
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "url" {
		t.Error("unexpected columns", cols)
	}
}

func TestParseColumnsInferred(t *testing.T) {
	r := single(t, "GET photo >> select id, url from photo")
	sql := r.Action.(SqlAction)
	cols := sql.Query.Result.Columns
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "url" {
		t.Error("unexpected columns", cols)
	}
}

func TestParseColumnsStarAllowed(t *testing.T) {
	r := single(t, "GET photo/:id ~> select * from photo where id = {{:id}}")
	sql := r.Action.(SqlAction)
	if len(sql.Query.Result.Columns) != 1 || sql.Query.Result.Columns[0] != "*" {
		t.Error("unexpected columns", sql.Query.Result.Columns)
	}
}

func TestParseColumnsUninferable(t *testing.T) {
	e := failing(t, "GET report ~> with c as (select 1 as n) select n from c")
	if e.Line != 1 {
		t.Error("expected line 1, got", e.Line)
	}
}

func TestParseLastInsertHints(t *testing.T) {
	for _, tt := range []struct {
		line     string
		table    string
		sequence string
	}{
		{"POST photo <> insert into photo (url) values ({{url}})", "photo", "id"},
		{"POST photo <> (album) insert into photo (url) values ({{url}})", "album", "id"},
		{"POST photo <> (photo, photo_id) insert into photo (url) values ({{url}})", "photo", "photo_id"},
	} {
		r := single(t, tt.line)
		sql := r.Action.(SqlAction)
		if sql.Query.Result.Table != tt.table {
			t.Error(tt.line, "table", sql.Query.Result.Table, tt.table)
		}

		if sql.Query.Result.Sequence != tt.sequence {
			t.Error(tt.line, "sequence", sql.Query.Result.Sequence, tt.sequence)
		}
	}
}

func TestParsePipelineReference(t *testing.T) {
	r := single(t, "POST summary || photo-summary")
	p, ok := r.Action.(PipelineAction)
	if !ok || p.Name != "photo-summary" {
		t.Error("unexpected action", r.Action)
	}
}

func TestParseInlinePipeline(t *testing.T) {
	r := single(t, `POST echo |> {
		"processors": [{"name": "a", "type": "static", "body": {"x": 1}}],
		"connections": [{"from": "a.x", "to": "_out.x"}]
	}`)

	p, ok := r.Action.(InlinePipelineAction)
	if !ok {
		t.Fatal("expected inline pipeline action")
	}

	if len(p.Pipeline.Processors) != 1 {
		t.Error("unexpected processors", p.Pipeline.Processors)
	}
}

func TestParseStatic(t *testing.T) {
	r := single(t, `OPTIONS /photo {..} {"<Allow>":"GET,POST","GET":{}}`)
	s, ok := r.Action.(StaticAction)
	if !ok {
		t.Fatal("expected static action")
	}

	if s.Body["<Allow>"] != "GET,POST" {
		t.Error("unexpected body", s.Body)
	}
}

func TestParseNodeJs(t *testing.T) {
	r := single(t, "POST resize <js> scripts/resize.js")
	n, ok := r.Action.(NodeJsAction)
	if !ok || n.Script != "scripts/resize.js" {
		t.Error("unexpected action", r.Action)
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"FETCH photo >> select * from photo",
		"GET",
		"GET photo",
		"GET photo ?? select * from photo",
		"GET pho^to >> select * from photo",
		"GET photo |> {\"processors\": [{\"name\": \"\"}]}",
		"GET photo {..} [1, 2]",
		"POST resize <js>",
		"POST summary ||",
		"GET photo >>",
	} {
		failing(t, text)
	}
}

func TestParseErrorNamesLaterLine(t *testing.T) {
	e := failing(t, "GET photo >> select * from photo\nPOST photo <* nonsense\n")
	if e.Line != 2 {
		t.Error("expected line 2, got", e.Line)
	}
}

func TestParseDeclarationOrder(t *testing.T) {
	routes, err := ParseString(
		"GET photo/:id ~> select * from photo where id = {{:id}}\n" +
			"GET photo/latest ~> select * from photo order by id desc limit 1\n")
	if err != nil {
		t.Fatal(err)
	}

	if len(routes) != 2 {
		t.Fatal("expected 2 routes")
	}

	if !routes[0].Pattern[1].Var {
		t.Error("first declared route must come first")
	}
}
