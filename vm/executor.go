// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package vm is the stack-machine-style IR interpreter (spec §4.5): it
// dispatches ops to a registered API table, tracks the current device, and
// evaluates control flow via resolved jump targets.
package vm

import (
	"context"

	"github.com/sirupsen/logrus"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/device"
	"github.com/fos-lang/fos-engine/ir"
)

// Handler is the signature every built-in or discovered API is registered
// under (spec §4.6: "handler(executor, params) -> Any").
type Handler func(ctx context.Context, ex *Executor, op *ir.Op) error

// Registry exposes the merged (built-in + discovered) API table to the
// executor. apiregistry.Registry implements this; vm depends only on the
// interface to avoid importing apiregistry.
type Registry interface {
	Lookup(name string) (Handler, bool)
}

// ResultManager is the subset of resultmgr.Manager the executor needs
// (spec §4.8). Defined here, implemented there, to avoid an import cycle.
// Every record carries op_line and device, per the spec's record shape
// {passed, message, op_line, device, output_excerpt}; builtin handlers have
// both readily at hand (op.Line, ex.CurrentDevice().Name()).
type ResultManager interface {
	AddExpect(qaid string, passed bool, rule, output string, line int, device string) error
	AddCheckVar(qaid string, passed bool, message string, line int, device string) error
	AddCommandError(qaid string, line int, cmd, output string, device string) error

	// Finalize computes and freezes a QAID's pass/fail outcome, triggered by
	// the `report` API (spec §4.8).
	Finalize(qaid string) (passed bool)
}

// Compiler compiles an include target into an OpList, memoizing by file
// path (spec §4.5: "compile file if not already compiled").
type Compiler interface {
	Compile(ctx context.Context, file string) (ir.OpList, error)
}

// frame is one entry of the include call stack (spec §3: "call_stack:
// stack of (OpList, return_pc) frames for include").
type frame struct {
	ops  ir.OpList
	pc   int
	file string
}

// Executor holds all per-run state (spec §3 "Per-run state").
type Executor struct {
	devices   map[string]device.Device
	curDevice device.Device

	variables *VariableStore
	registry  Registry
	results   ResultManager
	compiler  Compiler
	sink      device.ResultSink

	workspace string
	config    map[string]map[string]string

	frames        []frame
	includeActive map[string]bool
	includeChain  []string

	logger *logrus.Entry
}

// New builds an Executor ready to Run an OpList. compiler may be nil if the
// script is known to contain no includes.
func New(devices map[string]device.Device, variables *VariableStore, registry Registry, results ResultManager, compiler Compiler, workspace string, config map[string]map[string]string) *Executor {
	return &Executor{
		devices:       devices,
		variables:     variables,
		registry:      registry,
		results:       results,
		compiler:      compiler,
		sink:          device.NopResultSink{},
		workspace:     workspace,
		config:        config,
		includeActive: map[string]bool{},
		logger:        logrus.WithField("component", "vm"),
	}
}

// SetResultSink installs a ResultSink that mirrors result-manager activity
// (spec §6: "implementations persist to logs, dashboards...").
func (ex *Executor) SetResultSink(sink device.ResultSink) { ex.sink = sink }

func (ex *Executor) Variables() *VariableStore   { return ex.variables }
func (ex *Executor) Results() ResultManager      { return ex.results }
func (ex *Executor) Workspace() string           { return ex.workspace }
func (ex *Executor) Config() map[string]map[string]string { return ex.config }
func (ex *Executor) CurrentDevice() device.Device { return ex.curDevice }
func (ex *Executor) Device(name string) (device.Device, bool) {
	d, ok := ex.devices[name]
	return d, ok
}
func (ex *Executor) Devices() map[string]device.Device { return ex.devices }

// Run executes ops to completion, or until ctx is cancelled (spec §5:
// "every suspension point must honor a run-level deadline/cancel signal").
func (ex *Executor) Run(ctx context.Context, ops ir.OpList, file string) error {
	ex.frames = []frame{{ops: ops, file: file}}
	if file != "" {
		ex.includeActive[file] = true
		ex.includeChain = append(ex.includeChain, file)
	}

	for len(ex.frames) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		top := &ex.frames[len(ex.frames)-1]
		if top.pc >= len(top.ops) {
			if top.file != "" {
				ex.popInclude(top.file)
			}
			ex.frames = ex.frames[:len(ex.frames)-1]
			continue
		}

		op := top.ops[top.pc]
		top.pc++
		if err := ex.dispatch(ctx, top, op); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) dispatch(ctx context.Context, fr *frame, op *ir.Op) error {
	switch op.Name {
	case ir.OpSwitchDevice:
		name := op.Param(0)
		dev, ok := ex.devices[name]
		if !ok {
			return &fos.DeviceError{Device: name, Line: op.Line, Message: "unknown device"}
		}
		ex.curDevice = dev
		return nil

	case ir.OpCommand:
		return ex.execCommand(op)

	case ir.OpComment:
		ex.logger.WithField("line", op.Line).Debug(op.Param(0))
		return nil

	case ir.OpInclude:
		return ex.execInclude(ctx, fr, op)

	case ir.OpIfNotGoto:
		ok, err := evalExpr(ex.variables, op.Param(0))
		if err != nil {
			return err
		}
		if !ok {
			fr.pc = op.Target
		}
		return nil

	case ir.OpElseIf, ir.OpElse:
		fr.pc = op.Target
		return nil

	case ir.OpEndIf, ir.OpLoop:
		return nil

	case ir.OpUntil:
		ok, err := evalExpr(ex.variables, op.Param(0))
		if err != nil {
			return err
		}
		if !ok {
			fr.pc = op.LoopStart
		}
		return nil

	default:
		handler, ok := ex.registry.Lookup(op.Name)
		if !ok {
			return &fos.ParseError{Line: op.Line, Message: "no handler registered for api " + op.Name}
		}
		return handler(ctx, ex, op)
	}
}

func (ex *Executor) execCommand(op *ir.Op) error {
	if ex.curDevice == nil {
		return &fos.DeviceError{Line: op.Line, Message: "command issued with no device selected"}
	}
	text := ex.variables.Expand(op.Param(0))
	if err := ex.curDevice.Send(text); err != nil {
		devErr := &fos.DeviceError{Device: ex.curDevice.Name(), Line: op.Line, Message: err.Error()}
		_ = ex.results.AddCommandError("", op.Line, text, ex.curDevice.Buffer(), ex.curDevice.Name())
		if !ex.curDevice.KeepRunning() {
			return devErr
		}
		ex.logger.WithError(devErr).Warn("command error; continuing (keep_running)")
		return nil
	}
	ex.variables.Set("last_output", ex.curDevice.Buffer())
	return nil
}

func (ex *Executor) execInclude(ctx context.Context, fr *frame, op *ir.Op) error {
	file := op.Param(0)
	if ex.includeActive[file] {
		return &fos.CycleError{File: file, Chain: append(append([]string(nil), ex.includeChain...), file)}
	}
	if ex.compiler == nil {
		return &fos.ConfigError{Key: "include", Message: "include used but no compiler configured for " + file}
	}
	ops, err := ex.compiler.Compile(ctx, file)
	if err != nil {
		return err
	}
	ex.includeActive[file] = true
	ex.includeChain = append(ex.includeChain, file)
	ex.frames = append(ex.frames, frame{ops: ops, file: file})
	_ = fr // current frame's pc already advanced past the include op
	return nil
}

func (ex *Executor) popInclude(file string) {
	delete(ex.includeActive, file)
	if n := len(ex.includeChain); n > 0 && ex.includeChain[n-1] == file {
		ex.includeChain = ex.includeChain[:n-1]
	}
}
