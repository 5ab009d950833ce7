// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package runregistry decouples HTTP run submission from execution,
// adapting the teacher's executor.Executor run-ID registry (start step /
// poll step / stream output) to whole scripts instead of CI steps. One
// process still runs one script to completion; submission and polling are
// just split across two HTTP calls on top of that.
package runregistry

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	fos "github.com/fos-lang/fos-engine/errors"

	"github.com/fos-lang/fos-engine/api"
	"github.com/fos-lang/fos-engine/compiler"
	"github.com/fos-lang/fos-engine/device"
	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/internal/safego"
	"github.com/fos-lang/fos-engine/lexer"
	"github.com/fos-lang/fos-engine/livelog"
	"github.com/fos-lang/fos-engine/logstream"
	"github.com/fos-lang/fos-engine/parser"
	"github.com/fos-lang/fos-engine/resultmgr"
	"github.com/fos-lang/fos-engine/schema"
	"github.com/fos-lang/fos-engine/vm"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusAborted Status = "aborted"
)

// Run is one submitted script's execution state.
type Run struct {
	ID   string
	File string

	mu         sync.Mutex
	status     Status
	err        error
	results    *resultmgr.Manager
	startedAt  time.Time
	finishedAt time.Time
	log        *livelog.Writer
	lines      []api.LogLine
	cancel     context.CancelFunc
}

// appendLine records one line both in the run's local buffer (served by
// Lines) and through the livelog.Writer (so a configured logstream.Client
// receives it too).
func (r *Run) appendLine(level, message string) {
	r.mu.Lock()
	line := api.LogLine{Level: level, Message: message, Number: len(r.lines), Timestamp: time.Now()}
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	r.log.Write([]byte(message + "\n")) //nolint:errcheck
}

// Lines returns every line recorded for this run so far.
func (r *Run) Lines() []api.LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.LogLine(nil), r.lines...)
}

func (r *Run) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Run) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Snapshot returns the run's current state as a PollResponse.
func (r *Run) Snapshot() api.PollResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp := api.PollResponse{
		ID:     r.ID,
		Status: string(r.status),
	}
	if r.err != nil {
		resp.Error = r.err.Error()
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		resp.StartedAt = &t
	}
	if !r.finishedAt.IsZero() {
		t := r.finishedAt
		resp.FinishedAt = &t
	}
	if r.results != nil {
		resp.Report = convertReport(r.results.GetReport())
		resp.Passed = r.results.AllPassed()
	}
	return resp
}

func convertReport(entries []resultmgr.ReportEntry) []api.ReportEntry {
	out := make([]api.ReportEntry, 0, len(entries))
	for _, e := range entries {
		details := make([]api.Record, 0, len(e.Details))
		for _, d := range e.Details {
			details = append(details, api.Record{
				Passed:        d.Passed,
				Message:       d.Message,
				Line:          d.OpLine,
				Device:        d.Device,
				OutputExcerpt: d.OutputExcerpt,
			})
		}
		out = append(out, api.ReportEntry{
			QAID:    e.QAID,
			Status:  string(e.Status),
			Details: details,
		})
	}
	return out
}

// Registry holds in-flight and completed runs, keyed by run ID.
type Registry struct {
	fs         filesystem.FileSystem
	runtime    *schema.Runtime
	discover   schema.Discoverer
	apis       vm.Registry
	includes   *compiler.Compiler
	workspace  string
	logClient  logstream.Client
	secrets    []string

	mu   sync.Mutex
	runs map[string]*Run
}

// New builds a Registry. includeDir is the directory `include` statements
// inside submitted scripts are resolved against; logClient delivers
// streamed run output (stdout.New() is a reasonable default).
func New(fs filesystem.FileSystem, runtime *schema.Runtime, discover schema.Discoverer, apis vm.Registry, includeDir, workspace string, logClient logstream.Client, secrets []string) *Registry {
	return &Registry{
		fs:        fs,
		runtime:   runtime,
		discover:  discover,
		apis:      apis,
		includes:  compiler.New(fs, runtime, discover, includeDir),
		workspace: workspace,
		logClient: logClient,
		secrets:   secrets,
		runs:      map[string]*Run{},
	}
}

// Submit compiles req.Script and starts executing it in a background
// goroutine, returning immediately with a queued Run.
func (reg *Registry) Submit(ctx context.Context, req api.RunRequest) (*Run, error) {
	if reg.discover != nil {
		if err := reg.runtime.EnsureDiscovered(ctx, reg.discover); err != nil {
			return nil, err
		}
	}

	file := req.File
	if file == "" {
		file = "submitted.fos"
	}

	tokens, _, err := lexer.Lex(reg.runtime.Patterns(), req.Script, file)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(reg.runtime.Doc(), tokens)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, &fos.InternalServerError{Msg: "generating run id: " + err.Error()}
	}

	devices := map[string]device.Device{}
	for _, seed := range req.Devices {
		devices[seed.Name] = device.NewMock(seed.Name, seed.Seed)
	}

	results := resultmgr.New(append(append([]string(nil), reg.secrets...), req.Secrets...))
	variables := vm.NewVariableStore(req.Variables)
	logWriter := livelog.New(reg.logClient, id.String(), file, nil, false)

	runCtx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:      id.String(),
		File:    file,
		status:  StatusQueued,
		results: results,
		log:     logWriter,
		cancel:  cancel,
	}

	reg.mu.Lock()
	reg.runs[run.ID] = run
	reg.mu.Unlock()

	safego.SafeGoWithContext("runregistry.execute:"+run.ID, runCtx, func(ctx context.Context) {
		reg.execute(ctx, run, result, devices, variables, req.Config)
	})

	return run, nil
}

func (reg *Registry) execute(ctx context.Context, run *Run, result *parser.Result, devices map[string]device.Device, variables *vm.VariableStore, cfg map[string]map[string]string) {
	if err := run.log.Open(); err != nil {
		logrus.WithError(err).WithField("run", run.ID).Warnln("runregistry: opening log stream")
	}

	run.mu.Lock()
	run.startedAt = time.Now()
	run.mu.Unlock()
	run.setStatus(StatusRunning)
	run.appendLine("info", "run "+run.ID+" started: "+run.File)

	defer func() {
		run.mu.Lock()
		run.finishedAt = time.Now()
		run.mu.Unlock()
		if err := run.log.Close(); err != nil {
			logrus.WithError(err).WithField("run", run.ID).Warnln("runregistry: closing log writer")
		}
	}()

	ex := vm.New(devices, variables, reg.apis, run.results, reg.includes, reg.workspace, cfg)
	ex.SetResultSink(device.NopResultSink{})

	err := ex.Run(ctx, result.Ops, run.File)
	if err != nil {
		run.setErr(err)
		run.appendLine("error", err.Error())
		if ctx.Err() != nil {
			run.results.AbortInFlight()
			run.setStatus(StatusAborted)
			return
		}
		run.setStatus(StatusErrored)
		return
	}

	for _, entry := range run.results.GetReport() {
		run.appendLine("info", entry.QAID+": "+string(entry.Status))
	}

	if run.results.AllPassed() {
		run.setStatus(StatusPassed)
	} else {
		run.setStatus(StatusFailed)
	}
}

// Get returns the run for id, if known.
func (reg *Registry) Get(id string) (*Run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runs[id]
	return r, ok
}

// Cancel aborts a running run's execution context. Already-finished runs
// are left untouched.
func (reg *Registry) Cancel(id string) bool {
	reg.mu.Lock()
	r, ok := reg.runs[id]
	reg.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	return true
}
