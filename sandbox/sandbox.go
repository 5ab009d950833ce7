// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package sandbox runs exec_code guest snippets (Python or Bash) as
// isolated subprocesses (spec §4.9). Per the spec's own design note (§9:
// "drop in-process Python sandboxing entirely and only allow
// subprocess-based guest code with whitelisted languages"), restriction is
// enforced by a small Python shim executed inside the subprocess rather
// than by reflecting into the host process.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	fos "github.com/fos-lang/fos-engine/errors"
)

// Context is the JSON-serializable subset of exec_code's Python context
// (spec §4.9) that can cross a process boundary. get_variable/set_variable
// inside the shim operate on this snapshot only: the op's single documented
// side effect is writing its result to `var` (§4.9's public contract), so a
// full bidirectional channel back into the live VariableStore is not worth
// breaking subprocess isolation for.
type Context struct {
	LastOutput     string            `json:"last_output"`
	CurrentDevice  string            `json:"device"`
	Devices        []string          `json:"devices"`
	Variables      map[string]string `json:"variables"`
	Config         map[string]string `json:"config"`
	Workspace      string            `json:"workspace"`
}

// Runner executes guest code for a configured set of binaries and timeout
// defaults (config.Config.Sandbox).
type Runner struct {
	PythonBin    string
	BashBin      string
	WorkspaceDir string
	Timeout      time.Duration
}

// NewRunner builds a Runner from the resolved sandbox config.
func NewRunner(pythonBin, bashBin, workspaceDir string, timeout time.Duration) *Runner {
	return &Runner{PythonBin: pythonBin, BashBin: bashBin, WorkspaceDir: workspaceDir, Timeout: timeout}
}

// guestResult is what the shim (or the bash wrapper) prints to stdout as
// its last line: either a value or an error description.
type guestResult struct {
	OK     bool   `json:"ok"`
	Value  string `json:"value"`
	ErrMsg string `json:"error"`
}

// RunPython executes file (optionally calling fn(*args), else reading
// __result__) inside the restricted shim (spec §4.9).
func (r *Runner) RunPython(ctx context.Context, file, fn string, args []string, guestCtx *Context, timeout time.Duration) (string, error) {
	path := filepath.Join(r.WorkspaceDir, file)
	if _, err := os.Stat(path); err != nil {
		return "", &fos.GuestCodeError{Lang: "python", Message: "reading guest file: " + err.Error()}
	}

	if guestCtx == nil {
		guestCtx = &Context{}
	}
	ctxJSON, err := json.Marshal(guestCtx)
	if err != nil {
		return "", &fos.GuestCodeError{Lang: "python", Message: err.Error()}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", &fos.GuestCodeError{Lang: "python", Message: err.Error()}
	}

	if timeout <= 0 {
		timeout = r.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.PythonBin, "-c", pythonShim)
	cmd.Env = append(os.Environ(),
		"FOS_GUEST_FILE="+path,
		"FOS_GUEST_FUNC="+fn,
		"FOS_GUEST_ARGS="+string(argsJSON),
		"FOS_GUEST_CONTEXT="+string(ctxJSON),
	)
	cmd.Dir = r.WorkspaceDir
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = runWithGracefulAbort(runCtx, cmd)
	if runCtx.Err() != nil {
		return "", &fos.TimeoutError{Op: "exec_code", Timeout: timeout.String()}
	}
	if err != nil {
		return "", &fos.GuestCodeError{Lang: "python", Message: strings.TrimSpace(stderr.String())}
	}

	result, perr := parseGuestResult(stdout.Bytes())
	if perr != nil {
		return "", &fos.GuestCodeError{Lang: "python", Message: perr.Error()}
	}
	if !result.OK {
		return "", &fos.GuestCodeError{Lang: "python", Message: result.ErrMsg}
	}
	return result.Value, nil
}

// RunBash executes file in a fresh copy of the parent environment extended
// with the runtime variables and config, as UPPERCASE_NAME entries (spec
// §4.9). The parent's own os.Environ() is never mutated.
func (r *Runner) RunBash(ctx context.Context, file string, extraEnv map[string]string, timeout time.Duration) (string, error) {
	path := filepath.Join(r.WorkspaceDir, file)
	if _, err := os.Stat(path); err != nil {
		return "", &fos.GuestCodeError{Lang: "bash", Message: "reading guest file: " + err.Error()}
	}

	if timeout <= 0 {
		timeout = r.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.BashBin, path)
	cmd.Env = buildBashEnv(extraEnv)
	cmd.Dir = r.WorkspaceDir
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := runWithGracefulAbort(runCtx, cmd)
	if runCtx.Err() != nil {
		return "", &fos.TimeoutError{Op: "exec_code", Timeout: timeout.String()}
	}
	if err != nil {
		return "", &fos.GuestCodeError{Lang: "bash", Message: strings.TrimSpace(stderr.String())}
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// Invoke implements apiregistry.PluginInvoker: discovered plugin APIs are
// dispatched through the same subprocess isolation as exec_code, without
// the executor-context injection exec_code itself gets (plugins receive
// only their declared positional args, mirroring the source's
// `func(*args)` convention).
func (r *Runner) Invoke(ctx context.Context, lang, file, fn string, args []string) (string, error) {
	switch lang {
	case "python":
		return r.RunPython(ctx, file, fn, args, nil, r.Timeout)
	case "bash":
		return r.RunBash(ctx, file, map[string]string{"FOS_PLUGIN_ARGS": strings.Join(args, " ")}, r.Timeout)
	default:
		return "", &fos.GuestCodeError{Lang: lang, Message: "unsupported plugin language"}
	}
}

func buildBashEnv(extra map[string]string) []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func parseGuestResult(stdout []byte) (guestResult, error) {
	lines := bytes.Split(bytes.TrimRight(stdout, "\n"), []byte("\n"))
	last := lines[len(lines)-1]
	var r guestResult
	if err := json.Unmarshal(last, &r); err != nil {
		return guestResult{}, fmt.Errorf("malformed guest result: %w", err)
	}
	return r, nil
}

// setProcessGroup isolates the guest process in its own process group so a
// timeout can terminate the whole tree, not just the immediate child
// (adapted from the host-runner's SetSysProcAttr for subprocess steps).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// runWithGracefulAbort waits for cmd, escalating from SIGTERM to SIGKILL on
// the whole process group if ctx is cancelled before it exits (adapted from
// the host-runner's AbortProcess escalation).
func runWithGracefulAbort(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		pgid := -cmd.Process.Pid
		_ = syscall.Kill(pgid, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil {
				logrus.WithError(err).Warn("sandbox: failed to SIGKILL guest process group")
			}
			<-done
		}
		return ctx.Err()
	}
}
