// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchemaJSON = `{
  "apis": {
    "expect": {
      "category": "assertion",
      "parse_mode": "options",
      "parameters": {
        "-e": {"alias": "pattern", "type": "string", "required": true},
        "-for": {"alias": "qaid", "type": "string", "required": true},
        "-t": {"alias": "timeout", "type": "int", "default": "30"}
      }
    },
    "setvar": {
      "category": "variable",
      "parse_mode": "positional",
      "parameters": [
        {"name": "name", "type": "identifier", "position": 0, "required": true},
        {"name": "value", "type": "string", "position": 1, "required": true}
      ]
    }
  },
  "keywords": {
    "if": {"type": "control_block", "flow": ["expression", "script", ["elseif", "else", "fi"]]},
    "elseif": {"type": "control_block", "flow": ["expression", "script", ["elseif", "else", "fi"]]},
    "else": {"type": "control_block", "flow": ["script", ["fi"]]},
    "fi": {"type": "parse"}
  },
  "tokens": {
    "variable": "\\$[A-Za-z_][A-Za-z0-9_]*"
  }
}`

func testDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse([]byte(testSchemaJSON))
	require.NoError(t, err)
	return doc
}

func TestParse_NamesPopulatedFromKeys(t *testing.T) {
	doc := testDoc(t)
	assert.Equal(t, "expect", doc.APIs["expect"].Name)
	assert.Equal(t, "if", doc.Keywords["if"].Name)
}

func TestAPI_OptionsOrderPreserved(t *testing.T) {
	doc := testDoc(t)
	expect := doc.APIs["expect"]
	require.Len(t, expect.Options, 3)
	assert.Equal(t, "-e", expect.Options[0].Flag)
	assert.Equal(t, "-for", expect.Options[1].Flag)
	assert.Equal(t, "-t", expect.Options[2].Flag)
}

func TestAPI_ParamIndex(t *testing.T) {
	doc := testDoc(t)
	idx, ok := doc.APIs["setvar"].ParamIndex("value")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = doc.APIs["expect"].ParamIndex("-t")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = doc.APIs["expect"].ParamIndex("-nope")
	assert.False(t, ok)
}

func TestCompile_MatchKind(t *testing.T) {
	doc := testDoc(t)
	patterns, err := Compile(doc)
	require.NoError(t, err)

	cases := []struct {
		line     string
		wantKind string
		wantBody string
	}{
		{"[FGT1]", "section", "FGT1"},
		{"#[disabled block]", "commented_section", "disabled block"},
		{"# just a comment", "commented_line", " just a comment"},
		{"Comment: this is documentation", "comment", "this is documentation"},
		{"include common/login.fos", "include", "common/login.fos"},
		{`<expect -e "login:" -for QA001 -t 10>`, "api", "expect"},
		{"<if $x == 1>", "statement", "if"},
		{"show system status", "command", "show system status"},
	}
	for _, c := range cases {
		kind, body, _, ok := patterns.MatchKind(c.line)
		require.Truef(t, ok, "line %q did not match", c.line)
		assert.Equalf(t, c.wantKind, kind, "line %q", c.line)
		assert.Equalf(t, c.wantBody, body, "line %q", c.line)
	}
}

func TestCompile_LongerAPINameWinsOverPrefix(t *testing.T) {
	doc, err := Parse([]byte(`{
		"apis": {
			"setvar": {"category":"variable","parse_mode":"options","parameters":{}},
			"setvariable": {"category":"variable","parse_mode":"options","parameters":{}}
		},
		"keywords": {},
		"tokens": {}
	}`))
	require.NoError(t, err)
	patterns, err := Compile(doc)
	require.NoError(t, err)

	kind, body, _, ok := patterns.MatchKind("<setvariable -name foo>")
	require.True(t, ok)
	assert.Equal(t, "api", kind)
	assert.Equal(t, "setvariable", body)
}

type fakeDiscoverer struct {
	apis []DiscoveredAPI
	err  error
	n    int
}

func (f *fakeDiscoverer) Discover(ctx context.Context) ([]DiscoveredAPI, error) {
	f.n++
	return f.apis, f.err
}

func TestRuntime_EnsureDiscovered_ExactlyOnce(t *testing.T) {
	doc := testDoc(t)
	rt, err := NewRuntime(doc)
	require.NoError(t, err)

	disc := &fakeDiscoverer{apis: []DiscoveredAPI{{Name: "extract_hostname"}}}

	// Unknown before discovery.
	_, ok := rt.Doc().APIs["extract_hostname"]
	assert.False(t, ok)

	var wg wgCounter
	for i := 0; i < 8; i++ {
		wg.add(1)
		go func() {
			defer wg.done()
			_ = rt.EnsureDiscovered(context.Background(), disc)
		}()
	}
	wg.wait()

	assert.Equal(t, 1, disc.n, "discovery must run exactly once")
	api, ok := rt.Doc().APIs["extract_hostname"]
	require.True(t, ok)
	assert.Equal(t, ParseOptions, api.ParseMode)
	assert.True(t, rt.Initialized())
}

func TestRuntime_EnsureDiscovered_BuiltinWins(t *testing.T) {
	doc := testDoc(t)
	rt, err := NewRuntime(doc)
	require.NoError(t, err)

	disc := &fakeDiscoverer{apis: []DiscoveredAPI{{Name: "setvar", Spec: &API{ParseMode: ParseOptions}}}}
	require.NoError(t, rt.EnsureDiscovered(context.Background(), disc))

	assert.Equal(t, ParsePositional, rt.Doc().APIs["setvar"].ParseMode)
}

func TestRuntime_EnsureDiscovered_FailureIsNonFatal(t *testing.T) {
	doc := testDoc(t)
	rt, err := NewRuntime(doc)
	require.NoError(t, err)

	disc := &fakeDiscoverer{err: assertError("boom")}
	err = rt.EnsureDiscovered(context.Background(), disc)
	assert.NoError(t, err)
	assert.True(t, rt.Initialized())
}

type assertError string

func (e assertError) Error() string { return string(e) }

// wgCounter is a tiny WaitGroup substitute so this file has no extra
// import beyond testify/stdlib context.
type wgCounter struct {
	ch chan struct{}
	n  int
}

func (w *wgCounter) add(n int) {
	if w.ch == nil {
		w.ch = make(chan struct{}, 64)
	}
	w.n += n
}

func (w *wgCounter) done() { w.ch <- struct{}{} }

func (w *wgCounter) wait() {
	for i := 0; i < w.n; i++ {
		<-w.ch
	}
}
