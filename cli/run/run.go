// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package run implements the `fos run` subcommand: compile one script from
// disk and execute it to completion, printing the QAID report (spec §4.5's
// "public contract: run(op_list) returns after final instruction").
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	easyFormatter "github.com/t-tomalak/logrus-easy-formatter"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fos-lang/fos-engine/apiregistry"
	"github.com/fos-lang/fos-engine/apiregistry/builtin"
	"github.com/fos-lang/fos-engine/compiler"
	"github.com/fos-lang/fos-engine/config"
	"github.com/fos-lang/fos-engine/device"
	"github.com/fos-lang/fos-engine/envfile"
	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/resultmgr"
	"github.com/fos-lang/fos-engine/sandbox"
	"github.com/fos-lang/fos-engine/schema"
	"github.com/fos-lang/fos-engine/vm"
)

type runCommand struct {
	file       string
	devices    map[string]string
	variables  map[string]string
	configFile string
	secrets    []string
}

func (c *runCommand) run(*kingpin.ParseContext) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	fs := filesystem.New()

	schemaBytes, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	doc, err := schema.Parse(schemaBytes)
	if err != nil {
		return fmt.Errorf("parsing schema: %w", err)
	}
	runtime, err := schema.NewRuntime(doc)
	if err != nil {
		return fmt.Errorf("building schema runtime: %w", err)
	}

	sb := sandbox.NewRunner(cfg.Sandbox.PythonBin, cfg.Sandbox.BashBin, cfg.Sandbox.WorkspaceDir, cfg.Sandbox.Timeout)
	apis := apiregistry.NewRegistry(cfg.PluginDir, cfg.DiscoveryMaxDepth, cfg.DiscoveryTimeout, sb)
	builtin.Register(apis, sb)

	ctx := context.Background()
	if err := runtime.EnsureDiscovered(ctx, apis); err != nil {
		logrus.WithError(err).Warnln("plugin discovery did not complete")
	}

	comp := compiler.New(fs, runtime, apis, filepath.Dir(c.file))
	ops, err := comp.Compile(ctx, filepath.Base(c.file))
	if err != nil {
		return fmt.Errorf("compiling %s: %w", c.file, err)
	}

	devices, err := c.buildDevices()
	if err != nil {
		return err
	}

	deviceConfig, err := c.loadConfig()
	if err != nil {
		return err
	}

	variables := vm.NewVariableStore(c.variables)
	results := resultmgr.New(c.secrets)

	ex := vm.New(devices, variables, apis, results, comp, cfg.Sandbox.WorkspaceDir, deviceConfig)
	ex.SetResultSink(device.NopResultSink{})

	runErr := ex.Run(ctx, ops, c.file)

	// A dedicated bare-message logger for the report, distinct from the
	// structured key=value logging the rest of the command uses.
	report := &logrus.Logger{
		Out:       os.Stdout,
		Formatter: &easyFormatter.Formatter{LogFormat: "%msg%\n"},
		Level:     logrus.InfoLevel,
	}
	for _, entry := range results.GetReport() {
		report.Infof("%-10s %s", entry.QAID, entry.Status)
		for _, d := range entry.Details {
			report.Infof("  line %d [%s]: %s", d.OpLine, d.Device, d.Message)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !results.AllPassed() {
		fmt.Fprintln(os.Stderr, results.Errors())
		os.Exit(1)
	}
	return nil
}

// buildDevices turns --device NAME=FILE flags into seeded mock devices. Real
// SSH/Telnet transports are out of scope (spec Non-goals); a script is
// replayed against canned buffers instead.
func (c *runCommand) buildDevices() (map[string]device.Device, error) {
	devices := map[string]device.Device{}
	for name, path := range c.devices {
		seed, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading seed for device %s: %w", name, err)
		}
		devices[name] = device.NewMock(name, string(seed))
	}
	return devices, nil
}

func (c *runCommand) loadConfig() (map[string]map[string]string, error) {
	if c.configFile == "" {
		return nil, nil
	}
	f, err := os.Open(c.configFile)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	parsed, err := envfile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return parsed.Sections, nil
}

// Register registers the run command.
func Register(app *kingpin.Application) {
	c := &runCommand{
		devices:   map[string]string{},
		variables: map[string]string{},
	}

	cmd := app.Command("run", "compile and execute a script").
		Action(c.run)

	cmd.Arg("file", "script file to execute").Required().StringVar(&c.file)
	cmd.Flag("device", "NAME=SEED_FILE pairs seeding a mock device's buffer").StringMapVar(&c.devices)
	cmd.Flag("var", "NAME=VALUE pairs seeding the variable store").StringMapVar(&c.variables)
	cmd.Flag("config", "INI-style device config file (spec §6)").StringVar(&c.configFile)
	cmd.Flag("secret", "value to mask from recorded output excerpts").StringsVar(&c.secrets)
}
