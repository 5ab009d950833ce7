// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package parser validates a lexer token stream against the schema-derived
// grammar and emits a linear ir.OpList (spec §4.3).
package parser

import (
	"fmt"
	"strings"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/lexer"
	"github.com/fos-lang/fos-engine/schema"
)

// Result is the parser's output: the compiled program plus the device and
// include names it observed, used by the executor/compiler for device
// binding and cycle detection.
type Result struct {
	Ops      ir.OpList
	Devices  []string
	Includes []string
}

type parser struct {
	doc    *schema.Document
	tokens []lexer.Token
	pos    int

	ops         ir.OpList
	devices     []string
	devicesSeen map[string]bool
	includes    []string
	includeSeen map[string]bool
}

// Parse runs the top-level loop described in spec §4.3.
func Parse(doc *schema.Document, tokens []lexer.Token) (*Result, error) {
	p := &parser{
		doc:         doc,
		tokens:      tokens,
		devicesSeen: map[string]bool{},
		includeSeen: map[string]bool{},
	}
	for p.pos < len(p.tokens) {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	return &Result{Ops: p.ops, Devices: p.devices, Includes: p.includes}, nil
}

func (p *parser) statement() error {
	tok := p.cur()
	switch tok.Kind {
	case lexer.KindAPI:
		api, ok := p.doc.APIs[tok.Text]
		if !ok {
			return p.errf(tok, "unknown api %q", tok.Text)
		}
		p.advance()
		var (
			values []string
			err    error
		)
		switch api.ParseMode {
		case schema.ParsePositional:
			values, err = p.parsePositional(tok.Line, api.Positional)
		case schema.ParseOptions:
			values, err = p.parseOptions(tok.Line, api.Options)
		default:
			return p.errf(tok, "api %q has unknown parse_mode", tok.Text)
		}
		if err != nil {
			return err
		}
		op := ir.NewOp(tok.Line, api.Name, values...)
		op.Schema = api
		p.emit(op)
		return nil

	case lexer.KindKeyword:
		kw, ok := p.doc.Keywords[tok.Text]
		if !ok {
			return p.errf(tok, "unknown keyword %q", tok.Text)
		}
		switch kw.Type {
		case schema.KeywordControlBlock:
			return p.parseControlBlock(kw)
		case schema.KeywordParse:
			p.advance()
			values, err := p.parsePositional(tok.Line, kw.Rules)
			if err != nil {
				return err
			}
			p.emit(ir.NewOp(tok.Line, kw.Name, values...))
			return nil
		default:
			return p.errf(tok, "keyword %q has unknown type", tok.Text)
		}

	case lexer.KindSection:
		p.advance()
		if !p.devicesSeen[tok.Text] {
			p.devicesSeen[tok.Text] = true
			p.devices = append(p.devices, tok.Text)
		}
		p.emit(ir.NewOp(tok.Line, ir.OpSwitchDevice, tok.Text))
		return nil

	case lexer.KindCommand:
		p.advance()
		p.emit(ir.NewOp(tok.Line, ir.OpCommand, tok.Text))
		return nil

	case lexer.KindComment:
		p.advance()
		p.emit(ir.NewOp(tok.Line, ir.OpComment, tok.Text))
		return nil

	case lexer.KindInclude:
		p.advance()
		if !p.includeSeen[tok.Text] {
			p.includeSeen[tok.Text] = true
			p.includes = append(p.includes, tok.Text)
		}
		p.emit(ir.NewOp(tok.Line, ir.OpInclude, tok.Text))
		return nil

	default:
		return p.errf(tok, "unexpected token %q", tok.Text)
	}
}

// parsePositional consumes len(params) tokens, all on line, validating each
// against its declared kind (spec §4.3: "crossing a line boundary is an
// error").
func (p *parser) parsePositional(line int, params []schema.Parameter) ([]string, error) {
	values := make([]string, 0, len(params))
	for _, param := range params {
		tok, ok := p.peekOnLine(line)
		if !ok {
			if param.Required {
				return nil, &fos.ParseError{Line: line, Message: "missing required parameter " + param.Name, Expected: param.Type, Got: "end of line"}
			}
			values = append(values, param.Default)
			continue
		}
		if !kindAllowed(param.Type, tok.Kind) {
			return nil, &fos.ParseError{Line: line, Message: "parameter " + param.Name + " has wrong kind", Expected: param.Type, Got: string(tok.Kind)}
		}
		p.advance()
		values = append(values, tokenValue(tok))
	}
	return values, nil
}

// parseOptions consumes `-flag value` pairs on line, last-write-wins, and
// emits the values in declared order (spec §4.3).
func (p *parser) parseOptions(line int, params []schema.Parameter) ([]string, error) {
	values := make([]string, len(params))
	set := make([]bool, len(params))
	for i, param := range params {
		values[i] = param.Default
	}
	indexOf := func(flag string) int {
		for i, param := range params {
			if param.Flag == flag {
				return i
			}
		}
		return -1
	}

	for {
		tok, ok := p.peekOnLine(line)
		if !ok || tok.Kind != lexer.KindIdentifier || !strings.HasPrefix(tok.Text, "-") {
			break
		}
		idx := indexOf(tok.Text)
		if idx < 0 {
			return nil, &fos.ParseError{Line: line, Message: "unknown flag " + tok.Text}
		}
		p.advance()

		valTok, ok := p.peekOnLine(line)
		if !ok {
			return nil, &fos.ParseError{Line: line, Message: "flag " + tok.Text + " missing value"}
		}
		param := params[idx]
		if !kindAllowed(param.Type, valTok.Kind) {
			return nil, &fos.ParseError{Line: line, Message: "flag " + tok.Text + " has wrong value kind", Expected: param.Type, Got: string(valTok.Kind)}
		}
		p.advance()
		values[idx] = tokenValue(valTok)
		set[idx] = true
	}

	for i, param := range params {
		if param.Required && !set[i] {
			return nil, &fos.ParseError{Line: line, Message: "missing required flag " + param.Flag}
		}
	}
	return values, nil
}

// consumeExprText collects the remaining tokens on line and renders them
// back to surface syntax, for storage as a single Op parameter that the
// executor's expression evaluator re-tokenizes independently (spec §4.3:
// "attach as part of the current Op's parameters").
func (p *parser) consumeExprText(line int) string {
	var b strings.Builder
	first := true
	for {
		tok, ok := p.peekOnLine(line)
		if !ok {
			break
		}
		p.advance()
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(exprTokenText(tok))
	}
	return b.String()
}

// exprTokenText renders a token back to surface syntax for expression
// storage, re-quoting strings so a later whitespace-based re-tokenization
// (vm/expr.go) doesn't split a multi-word string literal apart.
func exprTokenText(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.KindVariable:
		return "$" + tok.Text
	case lexer.KindString:
		return `"` + tok.Text + `"`
	default:
		return tok.Text
	}
}

func kindAllowed(paramType string, k lexer.Kind) bool {
	if k == lexer.KindVariable {
		return true
	}
	switch paramType {
	case "string":
		return k == lexer.KindString || k == lexer.KindIdentifier
	case "number", "int":
		return k == lexer.KindNumber || k == lexer.KindIdentifier
	case "identifier":
		return k == lexer.KindIdentifier || k == lexer.KindString
	default:
		return true
	}
}

func tokenValue(tok lexer.Token) string {
	if tok.Kind == lexer.KindVariable {
		return "$" + tok.Text
	}
	return tok.Text
}

func (p *parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() {
	p.pos++
}

// peekOnLine returns the current token if it exists and is on line.
func (p *parser) peekOnLine(line int) (lexer.Token, bool) {
	if p.pos >= len(p.tokens) {
		return lexer.Token{}, false
	}
	tok := p.tokens[p.pos]
	if tok.Line != line {
		return lexer.Token{}, false
	}
	return tok, true
}

func (p *parser) emit(op *ir.Op) {
	p.ops = append(p.ops, op)
}

func (p *parser) errf(tok lexer.Token, format string, args ...interface{}) error {
	return &fos.ParseError{Line: tok.Line, Message: fmt.Sprintf(format, args...)}
}
