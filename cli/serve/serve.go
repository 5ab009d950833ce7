// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package serve implements the `fos serve` subcommand: a long-running
// process that compiles the schema once, then accepts scripts for
// execution over HTTP (spec §4.1/§4.5, run-registry supplement).
package serve

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fos-lang/fos-engine/apiregistry"
	"github.com/fos-lang/fos-engine/apiregistry/builtin"
	"github.com/fos-lang/fos-engine/config"
	"github.com/fos-lang/fos-engine/handler"
	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/livelog"
	"github.com/fos-lang/fos-engine/logger"
	"github.com/fos-lang/fos-engine/logstream"
	"github.com/fos-lang/fos-engine/logstream/filestore"
	"github.com/fos-lang/fos-engine/logstream/remote"
	"github.com/fos-lang/fos-engine/logstream/stdout"
	"github.com/fos-lang/fos-engine/runregistry"
	"github.com/fos-lang/fos-engine/sandbox"
	"github.com/fos-lang/fos-engine/schema"
	"github.com/fos-lang/fos-engine/server"
)

type serveCommand struct {
	envfile string
}

func (c *serveCommand) run(*kingpin.ParseContext) error {
	godotenv.Load(c.envfile) //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Errorln("cannot load the service configuration")
		return err
	}
	initLogging(cfg)

	doc, err := loadSchema(cfg.SchemaPath)
	if err != nil {
		logrus.WithError(err).Errorln("cannot load the schema document")
		return err
	}
	runtime, err := schema.NewRuntime(doc)
	if err != nil {
		logrus.WithError(err).Errorln("cannot build the schema runtime")
		return err
	}

	sb := sandbox.NewRunner(cfg.Sandbox.PythonBin, cfg.Sandbox.BashBin, cfg.Sandbox.WorkspaceDir, cfg.Sandbox.Timeout)
	apis := apiregistry.NewRegistry(cfg.PluginDir, cfg.DiscoveryMaxDepth, cfg.DiscoveryTimeout, sb)
	builtin.Register(apis, sb)

	logClient, err := newLogClient(cfg)
	if err != nil {
		logrus.WithError(err).Errorln("cannot set up the log client")
		return err
	}
	reg := runregistry.New(filesystem.New(), runtime, apis, apis, cfg.ScriptsDir, cfg.Sandbox.WorkspaceDir, logClient, nil)

	// Stream the process's own logrus output (not just per-run output)
	// through the same log client, independent of any one run.
	engineLog := livelog.New(logClient, "engine", "fos-engine", nil, false)
	if err := engineLog.Open(); err != nil {
		logrus.WithError(err).Warnln("could not open engine log stream")
	} else {
		logrus.AddHook(logger.NewStreamHook(engineLog))
	}

	srv := server.Server{
		Addr:     cfg.Server.Bind,
		Handler:  handler.Handler(&cfg, reg),
		CAFile:   cfg.Server.CACertFile,
		CertFile: cfg.Server.CertFile,
		KeyFile:  cfg.Server.KeyFile,
		Insecure: cfg.Server.Insecure,
	}

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt)
	defer func() {
		signal.Stop(s)
		cancel()
	}()
	go func() {
		select {
		case val := <-s:
			logrus.Infof("received OS signal to exit server: %s", val)
			cancel()
		case <-ctx.Done():
			logrus.Infoln("received a done signal to exit server")
		}
	}()

	logrus.Infof("server listening at %s", cfg.Server.Bind)

	err = srv.Start(ctx)
	if err == context.Canceled {
		logrus.Infoln("program gracefully terminated")
		return nil
	}
	if err != nil {
		logrus.Errorf("program terminated with error: %s", err)
	}
	return err
}

// newLogClient picks the log backend: a remote log service when
// cfg.LogService.Endpoint is set, else a directory of newline-delimited
// JSON files when cfg.LogDir is set, else stdout.
func newLogClient(cfg config.Config) (logstream.Client, error) {
	if cfg.LogService.Endpoint != "" {
		return remote.NewHTTPClient(cfg.LogService.Endpoint, cfg.LogService.AccountID, cfg.LogService.Token, false, false, "", ""), nil
	}
	if cfg.LogDir == "" {
		return stdout.New(), nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, err
	}
	return filestore.New(cfg.LogDir), nil
}

func loadSchema(path string) (*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return schema.Parse(buf.Bytes())
}

// Register registers the serve command.
func Register(app *kingpin.Application) {
	c := new(serveCommand)

	cmd := app.Command("serve", "start the run-submission server").
		Action(c.run)

	cmd.Flag("env-file", "environment file").
		Default(".env").
		StringVar(&c.envfile)
}

// OutputSplitter routes error-level log lines to stderr and everything else
// to stdout, so log collectors that key off stream can tell them apart.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

func initLogging(c config.Config) {
	logrus.SetOutput(&OutputSplitter{})
	l := logrus.StandardLogger()
	logger.L = logrus.NewEntry(l)
	if c.Debug {
		l.SetLevel(logrus.DebugLevel)
	}
	if c.Trace {
		l.SetLevel(logrus.TraceLevel)
	}
}
