// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"regexp"
	"strings"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

// CheckVar implements `check_var -var name -value V / -pattern P / -contains
// S -for qaid` (spec §4.7, §8 boundary note): the first declared predicate
// present wins; later ones are ignored, resolving the spec's own noted
// ambiguity.
func CheckVar(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	name, _ := op.Named("var")
	if name == "" {
		return &fos.ParseError{Line: op.Line, Message: "check_var requires -var"}
	}
	qaid, _ := op.Named("for")

	actual, _ := ex.Variables().Get(strings.TrimPrefix(name, "$"))

	var (
		passed  bool
		message string
		err     error
	)
	switch {
	case hasDeclared(op, "value"):
		want, _ := op.Named("value")
		want = ex.Variables().Expand(want)
		passed = actual == want
		message = "value == " + want

	case hasDeclared(op, "pattern"):
		pattern, _ := op.Named("pattern")
		var re *regexp.Regexp
		re, err = regexp.Compile(pattern)
		if err == nil {
			passed = re.MatchString(actual)
		}
		message = "pattern =~ " + pattern

	case hasDeclared(op, "contains"):
		substr, _ := op.Named("contains")
		substr = ex.Variables().Expand(substr)
		passed = strings.Contains(actual, substr)
		message = "contains " + substr

	default:
		return &fos.ParseError{Line: op.Line, Message: "check_var requires one of -value/-pattern/-contains"}
	}
	if err != nil {
		return &fos.ParseError{Line: op.Line, Message: "check_var: " + err.Error()}
	}

	device := ""
	if dev := ex.CurrentDevice(); dev != nil {
		device = dev.Name()
	}
	if qaid == "" {
		return nil
	}
	return ex.Results().AddCheckVar(qaid, passed, message, op.Line, device)
}

// hasDeclared reports whether flag was actually supplied on the line
// (rather than merely defaulted to ""), so an empty -value "" and an
// absent -value are distinguishable.
func hasDeclared(op *ir.Op, name string) bool {
	v, ok := op.Named(name)
	return ok && v != ""
}
