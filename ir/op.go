// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package ir defines the intermediate representation the parser emits and
// the executor runs: a linear list of typed, schema-bound instructions
// with resolved control-flow jump targets (spec §3, §4.4).
package ir

import "github.com/fos-lang/fos-engine/schema"

// Control-flow mnemonics. Any other Op.Name is either a built-in or a
// discovered API name, validated against the merged registry at parse time.
const (
	OpSwitchDevice = "switch_device"
	OpCommand      = "command"
	OpComment      = "comment"
	OpInclude      = "include"
	OpIfNotGoto    = "if_not_goto"
	OpElseIf       = "elseif"
	OpElse         = "else"
	OpEndIf        = "endif"
	OpLoop         = "loop"
	OpUntil        = "until"
)

// Op is one IR instruction. Params is an ordered positional tuple even for
// option-based APIs; Schema, if present, lets the executor wrap Params in a
// typed view for by-name, type-coerced access (§4.4).
type Op struct {
	Line   int
	Name   string
	Params []string
	Schema *schema.API

	// Target is the jump target used by if_not_goto/elseif/else/until.
	// It indexes an instruction within the same OpList. -1 means unset.
	Target int

	// LoopStart is the instruction index an `until` jumps back to. Only
	// meaningful on OpUntil ops.
	LoopStart int

	// IncludeOrigin tags the file an instruction was expanded from, once
	// an `include` is expanded. Empty for ops from the top-level script.
	IncludeOrigin string
}

// OpList is the linear IR the executor runs.
type OpList []*Op

// NewOp builds an Op with no jump target set.
func NewOp(line int, name string, params ...string) *Op {
	return &Op{Line: line, Name: name, Params: params, Target: -1, LoopStart: -1}
}

// Param returns params[i], or "" if i is out of range. Convenience for
// handlers that know the positional shape of their own schema.
func (o *Op) Param(i int) string {
	if i < 0 || i >= len(o.Params) {
		return ""
	}
	return o.Params[i]
}

// Named returns the value bound to a declared parameter name, honoring the
// schema's parse_mode ordering and defaults (§4.4). ok is false if the
// parameter is not declared in the bound schema.
func (o *Op) Named(name string) (value string, ok bool) {
	if o.Schema == nil {
		return "", false
	}
	idx, declared := o.Schema.ParamIndex(name)
	if !declared {
		return "", false
	}
	if idx >= len(o.Params) {
		return o.Schema.ParamDefault(name), true
	}
	return o.Params[idx], true
}

// Int parses a named parameter as a decimal integer, per the schema's
// "int" type coercion rule (§4.4). Returns ok=false if unparsable or
// undeclared; the caller is expected to turn that into a RuntimeError.
func (o *Op) Int(name string) (value int, ok bool) {
	raw, declared := o.Named(name)
	if !declared {
		return 0, false
	}
	n, err := atoiStrict(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func atoiStrict(s string) (int, error) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if len(s) == 0 {
		return 0, errEmptyInt
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errEmptyInt
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

var errEmptyInt = intParseError("not an integer")

type intParseError string

func (e intParseError) Error() string { return string(e) }
