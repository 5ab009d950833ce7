// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

// Report implements `report -qaid QAID -result pass|fail` (spec §4.5
// scenario 2): it records the author-declared outcome as the QAID's final
// (and, if no other assertion reached it, only) record, then finalizes.
func Report(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	qaid, _ := op.Named("qaid")
	result, _ := op.Named("result")
	if qaid == "" {
		return &fos.ParseError{Line: op.Line, Message: "report requires -qaid"}
	}

	device := ""
	if dev := ex.CurrentDevice(); dev != nil {
		device = dev.Name()
	}

	if result != "" {
		if err := ex.Results().AddCheckVar(qaid, result == "pass", "report -result "+result, op.Line, device); err != nil {
			return err
		}
	}
	ex.Results().Finalize(qaid)
	return nil
}
