// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"strconv"
	"time"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

// Expect implements the `expect` API: `-e pattern -for qaid -t timeout
// [-fail match|unmatch]` (spec §4.5 scenario 1, §4.9 boundary note, §9
// open question on `-fail`). A successful match sets `$?` to "0" so an
// immediately following `if $? == 0` (spec scenario 2) reads naturally.
func Expect(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	dev := ex.CurrentDevice()
	if dev == nil {
		return &fos.DeviceError{Line: op.Line, Message: "expect issued with no device selected"}
	}

	pattern, _ := op.Named("e")
	qaid, _ := op.Named("for")
	timeoutRaw, _ := op.Named("t")
	failMode, _ := op.Named("fail")

	pattern = ex.Variables().Expand(pattern)

	timeout := 10 * time.Second
	if timeoutRaw != "" {
		if secs, err := strconv.Atoi(timeoutRaw); err == nil {
			timeout = time.Duration(secs) * time.Second
		}
	}

	matched, output, err := dev.Expect(pattern, timeout)
	if err != nil {
		return &fos.DeviceError{Device: dev.Name(), Line: op.Line, Message: err.Error()}
	}

	passed := matched
	if failMode == "unmatch" {
		passed = !matched
	}

	if matched {
		ex.Variables().Set("?", "0")
	} else {
		ex.Variables().Set("?", "1")
	}

	if qaid != "" {
		return ex.Results().AddExpect(qaid, passed, pattern, output, op.Line, dev.Name())
	}
	return nil
}
