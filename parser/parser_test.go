// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/lexer"
	"github.com/fos-lang/fos-engine/schema"
)

const testSchemaJSON = `{
  "apis": {
    "expect": {
      "category": "assertion",
      "parse_mode": "options",
      "parameters": {
        "-e": {"type": "string", "required": true},
        "-for": {"type": "string", "required": true},
        "-t": {"type": "int", "default": "30"}
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
    "elseif": {"type": "control_block"},
    "else": {"type": "control_block"},
    "fi": {"type": "parse"},
    "loop": {"type": "control_block"},
    "until": {"type": "parse"}
  },
  "tokens": {}
}`

func testDoc(t *testing.T) *schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(testSchemaJSON))
	require.NoError(t, err)
	return doc
}

func lexString(t *testing.T, doc *schema.Document, src string) []lexer.Token {
	t.Helper()
	patterns, err := schema.Compile(doc)
	require.NoError(t, err)
	toks, _, err := lexer.Lex(patterns, src, "t.fos")
	require.NoError(t, err)
	return toks
}

func TestParse_SectionCommandComment(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "[FGT1]\nshow version\n# note\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	require.Len(t, res.Ops, 3)
	assert.Equal(t, ir.OpSwitchDevice, res.Ops[0].Name)
	assert.Equal(t, "FGT1", res.Ops[0].Param(0))
	assert.Equal(t, ir.OpCommand, res.Ops[1].Name)
	assert.Equal(t, ir.OpComment, res.Ops[2].Name)
	assert.Equal(t, []string{"FGT1"}, res.Devices)
}

func TestParse_OptionsAPI(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, `<expect -e "login:" -for QA001>`)
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	op := res.Ops[0]
	assert.Equal(t, "expect", op.Name)
	v, ok := op.Named("-e")
	require.True(t, ok)
	assert.Equal(t, "login:", v)
	v, ok = op.Named("-for")
	require.True(t, ok)
	assert.Equal(t, "QA001", v)
	v, ok = op.Named("-t")
	require.True(t, ok)
	assert.Equal(t, "30", v) // default applied
}

func TestParse_PositionalAPI(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, `<setvar hostname "FGT1-edge">`)
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, "setvar", res.Ops[0].Name)
	assert.Equal(t, "hostname", res.Ops[0].Param(0))
	assert.Equal(t, "FGT1-edge", res.Ops[0].Param(1))
}

func TestParse_IfFiNoElse(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "<if $count == 3>\nshow version\n<fi>\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	// [0] if_not_goto, [1] command, [2] endif
	require.Len(t, res.Ops, 3)
	assert.Equal(t, ir.OpIfNotGoto, res.Ops[0].Name)
	assert.Equal(t, 3, res.Ops[0].Target) // falls straight past endif
	assert.Equal(t, ir.OpEndIf, res.Ops[2].Name)
}

func TestParse_IfElseFi(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "<if $count == 3>\nshow a\n<else>\nshow b\n<fi>\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	// [0] if_not_goto -> 3 (else body start)
	// [1] command "show a"
	// [2] else -> 5 (after endif)
	// [3] command "show b"
	// [4] endif
	require.Len(t, res.Ops, 5)
	assert.Equal(t, ir.OpIfNotGoto, res.Ops[0].Name)
	assert.Equal(t, 3, res.Ops[0].Target)
	assert.Equal(t, ir.OpElse, res.Ops[2].Name)
	assert.Equal(t, 5, res.Ops[2].Target)
	assert.Equal(t, ir.OpEndIf, res.Ops[4].Name)
}

func TestParse_IfElseifElseFi(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "<if $a == 1>\nshow a\n<elseif $a == 2>\nshow b\n<else>\nshow c\n<fi>\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	// [0] if_not_goto($a==1) -> 2   (elseif test)
	// [1] command "show a"
	// [2] if_not_goto($a==2) -> 5   (else body)
	// [3] command "show b"
	// [4] else -> 7 (after endif)
	// [5] command "show c"
	// [6] endif
	require.Len(t, res.Ops, 7)
	assert.Equal(t, ir.OpIfNotGoto, res.Ops[0].Name)
	assert.Equal(t, 2, res.Ops[0].Target)
	assert.Equal(t, ir.OpIfNotGoto, res.Ops[2].Name)
	assert.Equal(t, 5, res.Ops[2].Target)
	assert.Equal(t, ir.OpElse, res.Ops[4].Name)
	assert.Equal(t, 7, res.Ops[4].Target)
}

func TestParse_LoopUntil(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "<loop>\nshow version\n<until $done == 1>\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	require.Len(t, res.Ops, 3)
	assert.Equal(t, ir.OpLoop, res.Ops[0].Name)
	assert.Equal(t, ir.OpUntil, res.Ops[2].Name)
	assert.Equal(t, 0, res.Ops[2].LoopStart)
}

func TestParse_Include(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, "include common/login.fos\n")
	res, err := Parse(doc, toks)
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, ir.OpInclude, res.Ops[0].Name)
	assert.Equal(t, []string{"common/login.fos"}, res.Includes)
}

func TestParse_UnknownAPIErrors(t *testing.T) {
	// Constructed directly: the schema's own LinePattern can never emit an
	// `api` token for a name outside its alternation, so this guards the
	// case where the bound schema narrows between lex and parse.
	doc := testDoc(t)
	toks := []lexer.Token{{Kind: lexer.KindAPI, Text: "bogus", Line: 1}}
	_, err := Parse(doc, toks)
	assert.Error(t, err)
}

func TestParse_MissingRequiredFlagErrors(t *testing.T) {
	doc := testDoc(t)
	toks := lexString(t, doc, `<expect -e "login:">`)
	_, err := Parse(doc, toks)
	assert.Error(t, err)
}
