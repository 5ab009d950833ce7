// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package compiler ties schema loading, lexing, and parsing into the single
// "compile a file to an OpList" operation the executor's `include` handling
// needs (spec §4.5: "compile file if not already compiled"). It implements
// vm.Compiler.
package compiler

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/internal/filesystem"
	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/lexer"
	"github.com/fos-lang/fos-engine/parser"
	"github.com/fos-lang/fos-engine/schema"
)

// Compiler memoizes compiled files by path, so an include target reached
// from two different call sites is only lexed/parsed once (spec §4.5).
type Compiler struct {
	fs       filesystem.FileSystem
	runtime  *schema.Runtime
	discover schema.Discoverer
	baseDir  string

	mu    sync.Mutex
	cache map[string]ir.OpList
	// devices/includes accumulate across every file compiled through this
	// instance, so the top-level caller can read back the full device and
	// include set after compiling a script and all its includes.
	devices     []string
	devicesSeen map[string]bool
	includes    []string
	includeSeen map[string]bool
}

// New builds a Compiler rooted at baseDir (script includes are resolved
// relative to it). discoverer may be nil to skip Phase-2 plugin discovery
// entirely (a deployment with no plugin directory configured).
func New(fs filesystem.FileSystem, runtime *schema.Runtime, discover schema.Discoverer, baseDir string) *Compiler {
	return &Compiler{
		fs:          fs,
		runtime:     runtime,
		discover:    discover,
		baseDir:     baseDir,
		cache:       map[string]ir.OpList{},
		devicesSeen: map[string]bool{},
		includeSeen: map[string]bool{},
	}
}

// Compile implements vm.Compiler. file is resolved relative to baseDir.
func (c *Compiler) Compile(ctx context.Context, file string) (ir.OpList, error) {
	if c.discover != nil {
		if err := c.runtime.EnsureDiscovered(ctx, c.discover); err != nil {
			return nil, err
		}
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.baseDir, file)
	}

	c.mu.Lock()
	if ops, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return ops, nil
	}
	c.mu.Unlock()

	var source string
	if err := c.fs.ReadFile(path, func(r io.Reader) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		source = string(b)
		return nil
	}); err != nil {
		return nil, &fos.ConfigError{Key: "include", Message: "reading " + path + ": " + err.Error()}
	}

	doc := c.runtime.Doc()
	tokens, _, err := lexer.Lex(c.runtime.Patterns(), source, path)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(doc, tokens)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under lock: a concurrent Compile(same path) may have won
	// the race while this one was reading/parsing off the disk.
	if ops, ok := c.cache[path]; ok {
		return ops, nil
	}
	c.cache[path] = result.Ops
	c.mergeLocked(result)
	return result.Ops, nil
}

func (c *Compiler) mergeLocked(result *parser.Result) {
	for _, d := range result.Devices {
		if !c.devicesSeen[d] {
			c.devicesSeen[d] = true
			c.devices = append(c.devices, d)
		}
	}
	for _, inc := range result.Includes {
		if !c.includeSeen[inc] {
			c.includeSeen[inc] = true
			c.includes = append(c.includes, inc)
		}
	}
}

// Devices returns every device name seen across all files compiled so far.
func (c *Compiler) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.devices...)
}

// Includes returns every include path seen across all files compiled so far.
func (c *Compiler) Includes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.includes...)
}
