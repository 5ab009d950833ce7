// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package sandbox

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execLookPath(name string) (string, error) { return osexec.LookPath(name) }

func writeGuestFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

// These tests spawn a real python3/bash and are skipped when the
// interpreter isn't available on the test host.
func requirePython(t *testing.T) string {
	t.Helper()
	bin, err := execLookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return bin
}

func requireBash(t *testing.T) string {
	t.Helper()
	bin, err := execLookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	return bin
}

func TestRunner_PythonResultVariable(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "set_result.py", "__result__ = 1 + 1\n")

	r := NewRunner(requirePython(t), "/bin/bash", dir, 5*time.Second)
	out, err := r.RunPython(context.Background(), "set_result.py", "", nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestRunner_PythonFuncWithArgs(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "add.py", "def add(a, b):\n    return int(a) + int(b)\n")

	r := NewRunner(requirePython(t), "/bin/bash", dir, 5*time.Second)
	out, err := r.RunPython(context.Background(), "add.py", "add", []string{"2", "3"}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestRunner_PythonBlockedImportFails(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "blocked.py", "import os\n__result__ = 1\n")

	r := NewRunner(requirePython(t), "/bin/bash", dir, 5*time.Second)
	_, err := r.RunPython(context.Background(), "blocked.py", "", nil, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "os")
	assert.Contains(t, err.Error(), "not allowed")
}

func TestRunner_BashEnvIsolation(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "mutate.sh", "export X=modified\necho done\n")
	writeGuestFile(t, dir, "read.sh", "echo \"$X\"\n")

	r := NewRunner("python3", requireBash(t), dir, 5*time.Second)
	_, err := r.RunBash(context.Background(), "mutate.sh", nil, 0)
	require.NoError(t, err)

	out, err := r.RunBash(context.Background(), "read.sh", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, os.Getenv("X"))
}

func TestRunner_BashExtraEnvInjected(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "show.sh", "echo \"$FGT1__IP\"\n")

	r := NewRunner("python3", requireBash(t), dir, 5*time.Second)
	out, err := r.RunBash(context.Background(), "show.sh", map[string]string{"FGT1__IP": "10.0.0.1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", out)
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	dir := t.TempDir()
	writeGuestFile(t, dir, "spin.sh", "sleep 5\necho done\n")

	r := NewRunner("python3", requireBash(t), dir, 5*time.Second)
	_, err := r.RunBash(context.Background(), "spin.sh", nil, 50*time.Millisecond)
	require.Error(t, err)
}
