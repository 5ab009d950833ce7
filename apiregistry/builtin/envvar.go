// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"os"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

// SetEnv implements `setenv key value`, bridging a script variable into
// the process's real environment so a later Bash exec_code call can see it
// without an explicit context parameter (spec §4.7).
func SetEnv(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	key, value := op.Param(0), op.Param(1)
	if key == "" {
		return &fos.ParseError{Line: op.Line, Message: "setenv requires a key"}
	}
	value = ex.Variables().Expand(value)
	if err := os.Setenv(key, value); err != nil {
		return &fos.ConfigError{Key: key, Message: err.Error()}
	}
	ex.Variables().Set(trimVar(key), value)
	return nil
}

// GetEnv implements `getenv key var`: reads a real environment variable
// into a script variable (spec §4.7).
func GetEnv(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	key, dest := op.Param(0), op.Param(1)
	if key == "" || dest == "" {
		return &fos.ParseError{Line: op.Line, Message: "getenv requires a key and a destination variable"}
	}
	ex.Variables().Set(trimVar(dest), os.Getenv(key))
	return nil
}
