// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

// fakeResults is a no-op vm.ResultManager stub shared by this package's
// handler tests that don't care about result-ledger side effects.
type fakeResults struct {
	finalizeResult bool
}

func (f *fakeResults) AddExpect(qaid string, passed bool, rule, output string, line int, device string) error {
	return nil
}

func (f *fakeResults) AddCheckVar(qaid string, passed bool, message string, line int, device string) error {
	return nil
}

func (f *fakeResults) AddCommandError(qaid string, line int, cmd, output string, device string) error {
	return nil
}

func (f *fakeResults) Finalize(qaid string) bool { return f.finalizeResult }
