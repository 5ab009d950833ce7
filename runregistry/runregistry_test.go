// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package runregistry

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/api"
	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/logstream"
	"github.com/fos-lang/fos-engine/schema"
	"github.com/fos-lang/fos-engine/vm"
)

// memClient is an in-memory logstream.Client fake; Submit's livelog.Writer
// talks to it directly, so a real log service isn't needed to exercise it.
type memClient struct {
	mu    sync.Mutex
	lines map[string][]*logstream.Line
}

func newMemClient() *memClient { return &memClient{lines: map[string][]*logstream.Line{}} }

func (c *memClient) Upload(_ context.Context, key string, lines []*logstream.Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[key] = append(c.lines[key], lines...)
	return nil
}
func (c *memClient) Open(_ context.Context, key string) error  { return nil }
func (c *memClient) Close(_ context.Context, key string) error { return nil }
func (c *memClient) Write(_ context.Context, key string, lines []*logstream.Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[key] = append(c.lines[key], lines...)
	return nil
}

// noopFS is never touched by these tests: submitted scripts are lexed
// straight from req.Script, and none of them use `include`.
type noopFS struct{}

func (noopFS) Open(name string) (filesystem.File, error) { return nil, errors.New("unused") }
func (noopFS) Stat(name string) (os.FileInfo, error)      { return nil, errors.New("unused") }
func (noopFS) Remove(name string) error                   { return errors.New("unused") }
func (noopFS) MkdirAll(path string, perm os.FileMode) error { return nil }
func (noopFS) Create(name string) (*os.File, error)         { return nil, errors.New("unused") }
func (noopFS) ReadFile(filename string, op func(io.Reader) error) error {
	return errors.New("unused")
}

func testRuntime(t *testing.T) *schema.Runtime {
	t.Helper()
	doc, err := schema.Parse([]byte(`{"apis": {}, "keywords": {}, "tokens": {}}`))
	require.NoError(t, err)
	rt, err := schema.NewRuntime(doc)
	require.NoError(t, err)
	return rt
}

func waitForTerminal(t *testing.T, reg *Registry, id string) api.PollResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		run, ok := reg.Get(id)
		require.True(t, ok)
		snap := run.Snapshot()
		switch Status(snap.Status) {
		case StatusPassed, StatusFailed, StatusErrored, StatusAborted:
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s did not finish in time, last status %s", id, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmit_CommandAgainstSeededDeviceRunsToCompletion(t *testing.T) {
	client := newMemClient()
	reg := New(noopFS{}, testRuntime(t), nil, stubRegistry{}, "/scripts", "/tmp/ws", client, nil)

	run, err := reg.Submit(context.Background(), api.RunRequest{
		Script:  "[R1]\nshow version\n",
		Devices: []api.DeviceSeed{{Name: "R1", Seed: "R1> "}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	snap := waitForTerminal(t, reg, run.ID)
	assert.Equal(t, string(StatusPassed), snap.Status)
	assert.True(t, snap.Passed)
	assert.NotEmpty(t, run.Lines())
}

func TestSubmit_LexErrorIsReturnedSynchronously(t *testing.T) {
	reg := New(noopFS{}, testRuntime(t), nil, stubRegistry{}, "/scripts", "/tmp/ws", newMemClient(), nil)

	_, err := reg.Submit(context.Background(), api.RunRequest{Script: "<totally_unknown_api foo>\n"})
	assert.Error(t, err)
}

func TestGet_UnknownIDNotFound(t *testing.T) {
	reg := New(noopFS{}, testRuntime(t), nil, stubRegistry{}, "/scripts", "/tmp/ws", newMemClient(), nil)
	_, ok := reg.Get("does-not-exist")
	assert.False(t, ok)
}

func TestCancel_AbortsRunningExecution(t *testing.T) {
	reg := New(noopFS{}, testRuntime(t), nil, stubRegistry{}, "/scripts", "/tmp/ws", newMemClient(), nil)

	run, err := reg.Submit(context.Background(), api.RunRequest{
		Script:  "[R1]\nshow version\n",
		Devices: []api.DeviceSeed{{Name: "R1", Seed: ""}},
	})
	require.NoError(t, err)

	assert.True(t, reg.Cancel(run.ID))
	assert.False(t, reg.Cancel("no-such-run"))
	waitForTerminal(t, reg, run.ID)
}

// stubRegistry has no built-in APIs; the test scripts only use the
// `command` mnemonic, which the executor dispatches without a registry
// lookup.
type stubRegistry struct{}

func (stubRegistry) Lookup(name string) (vm.Handler, bool) { return nil, false }
