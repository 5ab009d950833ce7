// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package compiler

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/schema"
)

// memFS is a minimal in-memory filesystem.FileSystem fake; only ReadFile is
// exercised by Compiler, the rest satisfy the interface unused.
type memFS struct {
	files map[string]string
}

func (m *memFS) ReadFile(filename string, op func(io.Reader) error) error {
	content, ok := m.files[filename]
	if !ok {
		return errors.New("no such file: " + filename)
	}
	return op(strings.NewReader(content))
}
func (m *memFS) Open(name string) (filesystem.File, error) {
	return nil, errors.New("unsupported")
}
func (m *memFS) Stat(name string) (os.FileInfo, error)        { return nil, errors.New("unsupported") }
func (m *memFS) Remove(name string) error                     { return errors.New("unsupported") }
func (m *memFS) MkdirAll(path string, perm os.FileMode) error  { return nil }
func (m *memFS) Create(name string) (*os.File, error)          { return nil, errors.New("unsupported") }

func testDoc() *schema.Document {
	raw := []byte(`{
		"apis": {},
		"keywords": {
			"setvar": {
				"type": "parse",
				"rules": [
					{"name": "name", "type": "variable", "position": 0, "required": true},
					{"name": "value", "type": "string", "position": 1, "required": true}
				]
			}
		},
		"tokens": {}
	}`)
	doc, err := schema.Parse(raw)
	if err != nil {
		panic(err)
	}
	return doc
}

func newTestRuntime(t *testing.T) *schema.Runtime {
	t.Helper()
	rt, err := schema.NewRuntime(testDoc())
	require.NoError(t, err)
	return rt
}

func TestCompiler_CompilesAndCachesByPath(t *testing.T) {
	fs := &memFS{files: map[string]string{
		"/scripts/main.fos": "<setvar name value>\n",
	}}
	rt := newTestRuntime(t)
	c := New(fs, rt, nil, "/scripts")

	ops, err := c.Compile(context.Background(), "main.fos")
	require.NoError(t, err)
	assert.Len(t, ops, 1)
	assert.Equal(t, "setvar", ops[0].Name)

	// Second compile of the same path returns the cached OpList without
	// needing the file to still be present.
	delete(fs.files, "/scripts/main.fos")
	ops2, err := c.Compile(context.Background(), "main.fos")
	require.NoError(t, err)
	assert.Same(t, ops[0], ops2[0])
}

func TestCompiler_MissingFileErrors(t *testing.T) {
	fs := &memFS{files: map[string]string{}}
	rt := newTestRuntime(t)
	c := New(fs, rt, nil, "/scripts")

	_, err := c.Compile(context.Background(), "missing.fos")
	assert.Error(t, err)
}

func TestCompiler_TracksDevicesAndIncludes(t *testing.T) {
	fs := &memFS{files: map[string]string{
		"/scripts/main.fos": "[R1]\ninclude child.fos\n",
		"/scripts/child.fos": "[R2]\n",
	}}
	rt := newTestRuntime(t)
	c := New(fs, rt, nil, "/scripts")

	_, err := c.Compile(context.Background(), "main.fos")
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), "child.fos")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"R1", "R2"}, c.Devices())
	assert.ElementsMatch(t, []string{"child.fos"}, c.Includes())
}
