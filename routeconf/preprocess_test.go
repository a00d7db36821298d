package routeconf

import "testing"

func logicalLines(t *testing.T, text string) []logicalLine {
	t.Helper()
	return preprocess(text)
}

func TestPreprocessComments(t *testing.T) {
	for _, tt := range []struct {
		msg   string
		text  string
		lines []string
	}{{
		"empty document",
		"",
		nil,
	}, {
		"comments only",
		"# a comment\n   # another\n",
		nil,
	}, {
		"comment tail stripped",
		"GET photo >> select * from photo # list them\n",
		[]string{"GET photo >> select * from photo"},
	}, {
		"hash inside json string survives",
		`GET tags {..} {"color": "#fff"} # trailing`,
		[]string{`GET tags {..} {"color": "#fff"}`},
	}, {
		"escaped quote inside string",
		`GET x {..} {"a": "say \"#\" loud"}`,
		[]string{`GET x {..} {"a": "say \"#\" loud"}`},
	}} {
		got := logicalLines(t, tt.text)
		if len(got) != len(tt.lines) {
			t.Error(tt.msg, "count", len(got), len(tt.lines))
			continue
		}

		for i, l := range got {
			if l.text != tt.lines[i] {
				t.Error(tt.msg, "line", l.text, tt.lines[i])
			}
		}
	}
}

func TestPreprocessLineSeparators(t *testing.T) {
	for _, text := range []string{
		"DELETE photo -- delete from photo\nGET photo >> select * from photo\n",
		"DELETE photo -- delete from photo\r\nGET photo >> select * from photo\r\n",
		"DELETE photo -- delete from photo\rGET photo >> select * from photo\r",
	} {
		if got := logicalLines(t, text); len(got) != 2 {
			t.Error("expected 2 logical lines, got", len(got))
		}
	}
}

func TestPreprocessMergesInlineBlocks(t *testing.T) {
	text := `
POST summary |> {
    "processors": [        # sql step
        {"name": "a", "type": "static", "body": {}}
    ],
    "connections": []
}
GET photo >> select * from photo
`

	got := logicalLines(t, text)
	if len(got) != 2 {
		t.Fatal("expected 2 logical lines, got", len(got))
	}

	if got[0].line != 2 {
		t.Error("merged block should start on line 2, got", got[0].line)
	}

	if got[1].line != 8 {
		t.Error("trailing route should be on line 8, got", got[1].line)
	}
}
