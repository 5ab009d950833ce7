// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package builtin holds the compiled-in API handlers registered with
// apiregistry.Registry before Phase-2 plugin discovery runs (spec §4.6).
// Each handler has the vm.Handler signature and is registered under the
// name it implements.
package builtin

import (
	"context"
	"strconv"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

// SetVar implements `setvar name value` (spec §4.7: "strset, intset
// (positional)" share the same shape; SetVar is the generic, untyped
// form, StrSet/IntSet add type validation).
func SetVar(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	name, value := op.Param(0), op.Param(1)
	if name == "" {
		return &fos.ParseError{Line: op.Line, Message: "setvar requires a variable name"}
	}
	ex.Variables().Set(trimVar(name), ex.Variables().Expand(value))
	return nil
}

// StrSet implements `strset name value`: identical to SetVar, but the name
// documents the author's intent that value stays a string (no numeric
// validation is meaningful here).
func StrSet(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	return SetVar(ctx, ex, op)
}

// IntSet implements `intset name value`, rejecting a non-integer value at
// runtime (spec §4.7).
func IntSet(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	name, value := op.Param(0), op.Param(1)
	if name == "" {
		return &fos.ParseError{Line: op.Line, Message: "intset requires a variable name"}
	}
	expanded := ex.Variables().Expand(value)
	if _, err := strconv.Atoi(expanded); err != nil {
		return &fos.VariableError{Line: op.Line, Name: name}
	}
	ex.Variables().Set(trimVar(name), expanded)
	return nil
}

// IntChange implements `intchange name op value`: an integer arithmetic
// update applied to an existing variable (spec §4.7).
func IntChange(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	name, operator, operand := op.Param(0), op.Param(1), op.Param(2)
	if name == "" {
		return &fos.ParseError{Line: op.Line, Message: "intchange requires a variable name"}
	}
	key := trimVar(name)
	current, _ := ex.Variables().Get(key)
	base, err := strconv.Atoi(current)
	if err != nil {
		base = 0
	}
	delta, err := strconv.Atoi(ex.Variables().Expand(operand))
	if err != nil {
		return &fos.VariableError{Line: op.Line, Name: operand}
	}

	var result int
	switch operator {
	case "+":
		result = base + delta
	case "-":
		result = base - delta
	case "*":
		result = base * delta
	case "/":
		if delta == 0 {
			return &fos.ParseError{Line: op.Line, Message: "intchange: division by zero"}
		}
		result = base / delta
	default:
		return &fos.ParseError{Line: op.Line, Message: "intchange: unknown operator " + operator}
	}
	ex.Variables().Set(key, strconv.Itoa(result))
	return nil
}

func trimVar(name string) string {
	if len(name) > 0 && name[0] == '$' {
		return name[1:]
	}
	return name
}
