// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package main

import (
	"github.com/fos-lang/fos-engine/cli"
)

func main() {
	cli.Command()
}
