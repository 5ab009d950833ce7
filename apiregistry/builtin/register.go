// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import "github.com/fos-lang/fos-engine/apiregistry"

// Register wires every compiled-in handler into reg (spec §4.6: built-ins
// registered before Phase-2 plugin discovery runs). runner supplies
// exec_code's out-of-process execution.
func Register(reg *apiregistry.Registry, runner CodeRunner) {
	reg.RegisterBuiltin("setvar", SetVar)
	reg.RegisterBuiltin("strset", StrSet)
	reg.RegisterBuiltin("intset", IntSet)
	reg.RegisterBuiltin("intchange", IntChange)
	reg.RegisterBuiltin("setenv", SetEnv)
	reg.RegisterBuiltin("getenv", GetEnv)
	reg.RegisterBuiltin("expect", Expect)
	reg.RegisterBuiltin("check_var", CheckVar)
	reg.RegisterBuiltin("report", Report)
	reg.RegisterBuiltin("sleep", Sleep)
	reg.RegisterBuiltin("exec_code", NewExecCode(runner))
}
