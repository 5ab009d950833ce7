// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/device"
	"github.com/fos-lang/fos-engine/ir"
)

type fakeResults struct {
	expects  []string
	checks   []string
	cmdErrs  []string
}

func (f *fakeResults) AddExpect(qaid string, passed bool, rule, output string, line int, device string) error {
	f.expects = append(f.expects, qaid)
	return nil
}
func (f *fakeResults) AddCheckVar(qaid string, passed bool, message string, line int, device string) error {
	f.checks = append(f.checks, qaid)
	return nil
}
func (f *fakeResults) AddCommandError(qaid string, line int, cmd, output string, device string) error {
	f.cmdErrs = append(f.cmdErrs, cmd)
	return nil
}
func (f *fakeResults) Finalize(qaid string) bool { return true }

type fakeRegistry struct {
	handlers map[string]Handler
}

func (r *fakeRegistry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func newTestExecutor(devs map[string]device.Device) (*Executor, *fakeResults) {
	results := &fakeResults{}
	ex := New(devs, NewVariableStore(nil), &fakeRegistry{handlers: map[string]Handler{}}, results, nil, "/tmp/ws", nil)
	return ex, results
}

func TestExecutor_SwitchDeviceAndCommand(t *testing.T) {
	mock := device.NewMock("FGT1", "")
	mock.Feed("Welcome\n")
	ex, _ := newTestExecutor(map[string]device.Device{"FGT1": mock})

	ops := ir.OpList{
		ir.NewOp(1, ir.OpSwitchDevice, "FGT1"),
		ir.NewOp(2, ir.OpCommand, "show version"),
	}
	require.NoError(t, ex.Run(context.Background(), ops, ""))
	assert.Equal(t, []string{"show version"}, mock.Sent())
	v, ok := ex.Variables().Get("last_output")
	require.True(t, ok)
	assert.Contains(t, v, "Welcome")
}

func TestExecutor_CommandInterpolatesVariables(t *testing.T) {
	mock := device.NewMock("FGT1", "")
	ex, _ := newTestExecutor(map[string]device.Device{"FGT1": mock})
	ex.Variables().Set("ip", "10.0.0.1")

	ops := ir.OpList{
		ir.NewOp(1, ir.OpSwitchDevice, "FGT1"),
		ir.NewOp(2, ir.OpCommand, "ping $ip"),
	}
	require.NoError(t, ex.Run(context.Background(), ops, ""))
	assert.Equal(t, []string{"ping 10.0.0.1"}, mock.Sent())
}

func TestExecutor_UnknownDeviceErrors(t *testing.T) {
	ex, _ := newTestExecutor(map[string]device.Device{})
	ops := ir.OpList{ir.NewOp(1, ir.OpSwitchDevice, "NOPE")}
	err := ex.Run(context.Background(), ops, "")
	assert.Error(t, err)
}

func TestExecutor_IfNotGotoSkipsBranch(t *testing.T) {
	mock := device.NewMock("FGT1", "")
	ex, _ := newTestExecutor(map[string]device.Device{"FGT1": mock})
	ex.Variables().Set("count", "1")

	ifOp := ir.NewOp(1, ir.OpIfNotGoto, "$count == 3")
	ifOp.Target = 3
	ops := ir.OpList{
		ir.NewOp(0, ir.OpSwitchDevice, "FGT1"),
		ifOp,
		ir.NewOp(2, ir.OpCommand, "show a"),
		ir.NewOp(3, ir.OpEndIf),
	}
	require.NoError(t, ex.Run(context.Background(), ops, ""))
	assert.Empty(t, mock.Sent())
}

func TestExecutor_IfNotGotoTakesBranchWhenTrue(t *testing.T) {
	mock := device.NewMock("FGT1", "")
	ex, _ := newTestExecutor(map[string]device.Device{"FGT1": mock})
	ex.Variables().Set("count", "3")

	ifOp := ir.NewOp(1, ir.OpIfNotGoto, "$count == 3")
	ifOp.Target = 3
	ops := ir.OpList{
		ir.NewOp(0, ir.OpSwitchDevice, "FGT1"),
		ifOp,
		ir.NewOp(2, ir.OpCommand, "show a"),
		ir.NewOp(3, ir.OpEndIf),
	}
	require.NoError(t, ex.Run(context.Background(), ops, ""))
	assert.Equal(t, []string{"show a"}, mock.Sent())
}

func TestExecutor_LoopUntilRepeatsThenStops(t *testing.T) {
	mock := device.NewMock("FGT1", "")
	ex, _ := newTestExecutor(map[string]device.Device{"FGT1": mock})
	ex.Variables().Set("n", "0")

	// loop(); command "bump"; until($n == 3) with LoopStart=0.
	// Each pass through "bump" increments n via a fake handler.
	reg := ex.registry.(*fakeRegistry)
	reg.handlers["bump"] = func(ctx context.Context, ex *Executor, op *ir.Op) error {
		v, _ := ex.Variables().Get("n")
		n := map[string]string{"0": "1", "1": "2", "2": "3"}[v]
		ex.Variables().Set("n", n)
		return nil
	}

	untilOp := ir.NewOp(3, ir.OpUntil, "$n == 3")
	untilOp.LoopStart = 0
	ops := ir.OpList{
		ir.NewOp(0, ir.OpLoop),
		ir.NewOp(1, "bump"),
		untilOp,
	}
	require.NoError(t, ex.Run(context.Background(), ops, ""))
	v, _ := ex.Variables().Get("n")
	assert.Equal(t, "3", v)
}

func TestExecutor_IncludeCycleDetected(t *testing.T) {
	ex, _ := newTestExecutor(map[string]device.Device{})
	ex.compiler = cycleCompiler{}

	ops := ir.OpList{ir.NewOp(1, ir.OpInclude, "a.fos")}
	err := ex.Run(context.Background(), ops, "")
	assert.Error(t, err)
}

// cycleCompiler simulates a.fos including itself: every Compile call
// returns an OpList whose single op re-includes the same file, which the
// executor's includeActive set must catch on the second encounter.
type cycleCompiler struct{}

func (cycleCompiler) Compile(ctx context.Context, file string) (ir.OpList, error) {
	return ir.OpList{ir.NewOp(1, ir.OpInclude, file)}, nil
}

func TestExecutor_UnknownAPIErrors(t *testing.T) {
	ex, _ := newTestExecutor(map[string]device.Device{})
	ops := ir.OpList{ir.NewOp(1, "not_registered")}
	err := ex.Run(context.Background(), ops, "")
	assert.Error(t, err)
}
