// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"strconv"
	"strings"
	"time"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/envfile"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/sandbox"
	"github.com/fos-lang/fos-engine/vm"
)

// CodeRunner is the subset of sandbox.Runner exec_code needs, declared
// locally so builtin doesn't force every caller to depend on sandbox's
// process-management internals, only its public contract.
type CodeRunner interface {
	RunPython(ctx context.Context, file, fn string, args []string, guestCtx *sandbox.Context, timeout time.Duration) (string, error)
	RunBash(ctx context.Context, file string, extraEnv map[string]string, timeout time.Duration) (string, error)
}

// NewExecCode binds a CodeRunner into the `exec_code` handler (spec §4.9).
func NewExecCode(runner CodeRunner) vm.Handler {
	return func(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
		lang, _ := op.Named("lang")
		destVar, _ := op.Named("var")
		file, _ := op.Named("file")
		fn, _ := op.Named("func")
		argsRaw, _ := op.Named("args")
		timeoutRaw, _ := op.Named("timeout")

		if lang == "" || destVar == "" || file == "" {
			return &fos.ParseError{Line: op.Line, Message: "exec_code requires -lang, -var and -file"}
		}

		timeout := 30 * time.Second
		if timeoutRaw != "" {
			if secs, err := strconv.Atoi(timeoutRaw); err == nil {
				timeout = time.Duration(secs) * time.Second
			}
		}

		var args []string
		for _, a := range strings.Split(argsRaw, ",") {
			a = strings.TrimSpace(a)
			if a != "" {
				args = append(args, ex.Variables().Expand(a))
			}
		}

		var (
			result string
			err    error
		)
		switch lang {
		case "python":
			result, err = runner.RunPython(ctx, file, fn, args, pythonContext(ex), timeout)
		case "bash":
			result, err = runner.RunBash(ctx, file, bashEnv(ex), timeout)
		default:
			// javascript/ruby are accepted by the schema's -lang enum but
			// have no subprocess runner; §9's "subprocess-only, whitelisted
			// languages" note makes the gap defensible, not a bug to silently
			// paper over.
			err = &fos.GuestCodeError{Lang: lang, Message: "unsupported exec_code language (supported: python, bash)"}
		}

		if err != nil {
			dev := ex.CurrentDevice()
			deviceName := ""
			if dev != nil {
				deviceName = dev.Name()
			}
			// GuestCodeError is recorded as an assertion failure with the
			// destination variable cleared, not a fatal abort; the script
			// continues unless the current device's keep_running flag says
			// otherwise.
			_ = ex.Results().AddCommandError("", op.Line, "exec_code -lang "+lang+" -file "+file, err.Error(), deviceName)
			ex.Variables().Set(trimVar(destVar), "")
			if dev != nil && !dev.KeepRunning() {
				return err
			}
			return nil
		}

		ex.Variables().Set(trimVar(destVar), result)
		return nil
	}
}

func pythonContext(ex *vm.Executor) *sandbox.Context {
	deviceNames := make([]string, 0, len(ex.Devices()))
	for name := range ex.Devices() {
		deviceNames = append(deviceNames, name)
	}
	current := ""
	if dev := ex.CurrentDevice(); dev != nil {
		current = dev.Name()
	}
	lastOutput := ""
	if dev := ex.CurrentDevice(); dev != nil {
		lastOutput = dev.Buffer()
	}
	return &sandbox.Context{
		LastOutput:    lastOutput,
		CurrentDevice: current,
		Devices:       deviceNames,
		Variables:     ex.Variables().Snapshot(),
		Config:        flattenConfig(ex),
		Workspace:     ex.Workspace(),
	}
}

func bashEnv(ex *vm.Executor) map[string]string {
	env := map[string]string{}
	for name, value := range ex.Variables().Snapshot() {
		env[strings.ToUpper(name)] = value
	}
	for k, v := range flattenConfig(ex) {
		env[k] = v
	}
	env["LAST_OUTPUT"] = ""
	if dev := ex.CurrentDevice(); dev != nil {
		env["LAST_OUTPUT"] = dev.Buffer()
		env["CURRENT_DEVICE_NAME"] = dev.Name()
	}
	env["WORKSPACE"] = ex.Workspace()

	names := make([]string, 0, len(ex.Devices()))
	for name := range ex.Devices() {
		names = append(names, name)
	}
	env["DEVICE_NAMES"] = strings.Join(names, ",")
	return env
}

func flattenConfig(ex *vm.Executor) map[string]string {
	return (&envfile.File{Sections: ex.Config()}).Flatten()
}
