// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package parser

import (
	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/lexer"
	"github.com/fos-lang/fos-engine/schema"
)

// parseControlBlock dispatches the two control-block shapes the schema
// declares: the if/elseif/else/fi conditional chain and the loop/until
// post-condition loop (spec §4.3).
func (p *parser) parseControlBlock(kw *schema.Keyword) error {
	switch kw.Name {
	case "if":
		return p.parseIf()
	case "loop":
		return p.parseLoop()
	default:
		return p.errf(p.cur(), "keyword %q is not a recognized control block", kw.Name)
	}
}

// parseIf implements the if/elseif/else/fi chain. Every if_not_goto/else op
// along the chain is patched, as the next boundary keyword is found, to
// land one instruction past whatever comes next; `fi` always does the
// final patch (of whichever op is still pending) to just past its own
// endif op, so a bare if/fi with no else behaves the same as one that ends
// in an else clause.
func (p *parser) parseIf() error {
	ifTok := p.cur()
	p.advance()
	expr := p.consumeExprText(ifTok.Line)
	pending := ir.NewOp(ifTok.Line, ir.OpIfNotGoto, expr)
	p.emit(pending)

	for {
		if err := p.parseUntilKeyword(map[string]bool{"elseif": true, "else": true, "fi": true}); err != nil {
			return err
		}
		tok := p.cur()
		switch tok.Text {
		case "elseif":
			p.advance()
			expr := p.consumeExprText(tok.Line)
			pending.Target = len(p.ops)
			next := ir.NewOp(tok.Line, ir.OpIfNotGoto, expr)
			p.emit(next)
			pending = next

		case "else":
			p.advance()
			pending.Target = len(p.ops) + 1
			elseOp := ir.NewOp(tok.Line, ir.OpElse)
			p.emit(elseOp)
			pending = elseOp

			if err := p.parseUntilKeyword(map[string]bool{"fi": true}); err != nil {
				return err
			}
			fiTok := p.cur()
			p.advance()
			endif := ir.NewOp(fiTok.Line, ir.OpEndIf)
			p.emit(endif)
			pending.Target = len(p.ops)
			return nil

		case "fi":
			p.advance()
			endif := ir.NewOp(tok.Line, ir.OpEndIf)
			p.emit(endif)
			pending.Target = len(p.ops)
			return nil
		}
	}
}

// parseLoop implements `loop ... until <expr>`: a post-condition loop whose
// back edge jumps to the loop() op when the until expression is false, and
// falls through when it is true (spec §4.3, §4.5).
func (p *parser) parseLoop() error {
	loopTok := p.cur()
	p.advance()
	loopIdx := len(p.ops)
	p.emit(ir.NewOp(loopTok.Line, ir.OpLoop))

	if err := p.parseUntilKeyword(map[string]bool{"until": true}); err != nil {
		return err
	}
	untilTok := p.cur()
	p.advance()
	expr := p.consumeExprText(untilTok.Line)
	untilOp := ir.NewOp(untilTok.Line, ir.OpUntil, expr)
	untilOp.LoopStart = loopIdx
	p.emit(untilOp)
	return nil
}

// parseUntilKeyword runs ordinary statements until the current token is a
// keyword whose text is in stop, or the token stream is exhausted (an
// error: every control block must close).
func (p *parser) parseUntilKeyword(stop map[string]bool) error {
	for {
		if p.pos >= len(p.tokens) {
			return &fos.ParseError{Message: "unterminated control block", Expected: keys(stop)}
		}
		tok := p.cur()
		if tok.Kind == lexer.KindKeyword && stop[tok.Text] {
			return nil
		}
		if err := p.statement(); err != nil {
			return err
		}
	}
}

func keys(m map[string]bool) string {
	s := ""
	for k := range m {
		if s != "" {
			s += "|"
		}
		s += k
	}
	return s
}
