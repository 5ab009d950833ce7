// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package apiregistry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/vm"
)

type fakeInvoker struct {
	calls []string
	out   string
	err   error
}

func (f *fakeInvoker) Invoke(ctx context.Context, lang, file, fn string, args []string) (string, error) {
	f.calls = append(f.calls, lang+":"+file+":"+fn)
	return f.out, f.err
}

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRegistry_BuiltinTakesPrecedenceOverPlugin(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "extract_hostname.json", `{
		"name": "extract_hostname",
		"lang": "python",
		"file": "extract_hostname.py",
		"func": "extract_hostname"
	}`)

	reg := NewRegistry(dir, 4, time.Second, &fakeInvoker{})
	called := false
	reg.RegisterBuiltin("extract_hostname", func(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
		called = true
		return nil
	})

	discovered, err := reg.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, discovered)

	h, ok := reg.Lookup("extract_hostname")
	require.True(t, ok)
	require.NoError(t, h(context.Background(), nil, ir.NewOp(1, "extract_hostname")))
	assert.True(t, called)
}

func TestRegistry_DiscoversPluginAndInvokesOnDispatch(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "normalize.json", `{
		"name": "normalize_iface",
		"lang": "python",
		"file": "normalize.py",
		"func": "normalize_iface"
	}`)

	invoker := &fakeInvoker{out: "GigabitEthernet0/1"}
	reg := NewRegistry(dir, 4, time.Second, invoker)

	discovered, err := reg.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, discovered, 1)
	assert.Equal(t, "normalize_iface", discovered[0].Name)
	assert.Equal(t, "options", string(discovered[0].Spec.ParseMode))

	h, ok := reg.Lookup("normalize_iface")
	require.True(t, ok)

	ex := vm.New(nil, vm.NewVariableStore(nil), reg, nil, nil, "", nil)
	op := ir.NewOp(1, "normalize_iface", "Gi0/1")
	require.NoError(t, h(context.Background(), ex, op))
	assert.Equal(t, []string{"python:normalize.py:normalize_iface"}, invoker.calls)

	v, ok := ex.Variables().Get("normalize_iface_result")
	require.True(t, ok)
	assert.Equal(t, "GigabitEthernet0/1", v)
}

func TestRegistry_MissingPluginDirYieldsNoDiscoveries(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "missing"), 4, time.Second, nil)
	discovered, err := reg.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, discovered)
}

func TestRegistry_LookupMissReturnsFalse(t *testing.T) {
	reg := NewRegistry("", 4, time.Second, nil)
	_, ok := reg.Lookup("nope")
	assert.False(t, ok)
}
