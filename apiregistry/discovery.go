// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package apiregistry implements the merged built-in + discovered API
// table (spec §4.6) and coordinates Phase-2 plugin discovery with
// schema.Runtime.
package apiregistry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/sirupsen/logrus"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/schema"
)

// manifest is a plugin's declared extension point (spec §9 redesign note:
// "Plugins are compiled-in or loaded via a well-defined extension point at
// build time" rather than reflective introspection of guest source). One
// JSON file per plugin API under the plugin directory.
type manifest struct {
	Name string          `json:"name"`
	Lang string          `json:"lang"` // "python" | "bash"
	File string          `json:"file"` // path relative to the manifest, executed by the plugin invoker
	Func string          `json:"func"` // python only: function to call
	API  json.RawMessage `json:"api"`  // optional nested schema.API document
}

func (m manifest) resolveAPI() *schema.API {
	if len(m.API) == 0 {
		return &schema.API{ParseMode: schema.ParseOptions}
	}
	var api schema.API
	if err := json.Unmarshal(m.API, &api); err != nil {
		logrus.WithError(err).WithField("plugin", m.Name).Warn("malformed plugin api schema; using bare options default")
		return &schema.API{ParseMode: schema.ParseOptions}
	}
	return &api
}

// discoverManifests walks dir (bounded by maxDepth and deadline) for
// "*.json" manifest files, matched with doublestar so glob-style
// exclusions stay cheap to extend later. A pathological plugin tree
// cannot hang the process: every recursive step re-checks the deadline.
func discoverManifests(ctx context.Context, dir string, maxDepth int, deadline time.Duration) ([]manifest, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var out []manifest
	err := walkBounded(ctx, dir, 0, maxDepth, func(path string) error {
		matched, err := doublestar.Match("*.json", filepath.Base(path))
		if err != nil || !matched {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("could not read plugin manifest")
			return nil
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("could not decode plugin manifest")
			return nil
		}
		if m.Name == "" {
			logrus.WithField("path", path).Warn("plugin manifest missing name; skipped")
			return nil
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, &fos.ConfigError{Key: "plugin_dir", Message: err.Error()}
	}
	return out, nil
}

func walkBounded(ctx context.Context, dir string, depth, maxDepth int, visit func(path string) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkBounded(ctx, full, depth+1, maxDepth, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(full); err != nil {
			return err
		}
	}
	return nil
}
