// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package cli

import (
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fos-lang/fos-engine/cli/run"
	"github.com/fos-lang/fos-engine/cli/serve"
	"github.com/fos-lang/fos-engine/version"
)

// Command parses the command line arguments and then executes a
// subcommand program.
func Command() {
	app := kingpin.New("fos", "schema-driven DSL engine for network-device regression testing")
	app.HelpFlag.Short('h')
	app.Version(version.Version)
	app.VersionFlag.Short('v')

	serve.Register(app)
	run.Register(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
