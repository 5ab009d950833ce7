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

// Sleep implements `sleep seconds`, a suspension point that honors a
// run-level cancel/deadline (spec §5) rather than blocking unconditionally.
func Sleep(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
	raw := op.Param(0)
	secs, err := strconv.ParseFloat(ex.Variables().Expand(raw), 64)
	if err != nil {
		return &fos.ParseError{Line: op.Line, Message: "sleep requires a numeric seconds argument"}
	}

	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
