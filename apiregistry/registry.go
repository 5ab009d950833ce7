// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package apiregistry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fos-lang/fos-engine/ir"
	"github.com/fos-lang/fos-engine/schema"
	"github.com/fos-lang/fos-engine/vm"
)

// PluginInvoker executes a discovered plugin's guest code out of process
// (sandbox.Runner implements this). Kept as a local interface for the same
// reason vm.Registry is: discovery must not import sandbox's concrete types.
type PluginInvoker interface {
	Invoke(ctx context.Context, lang, file, fn string, args []string) (string, error)
}

// Registry is the merged built-in + discovered API table (spec §4.6). It
// implements both schema.Discoverer (consumed by schema.Runtime's Phase 2)
// and vm.Registry (consumed by the executor's dispatch loop).
type Registry struct {
	mu sync.RWMutex

	builtins   map[string]vm.Handler
	discovered map[string]vm.Handler

	pluginDir string
	maxDepth  int
	deadline  time.Duration
	invoker   PluginInvoker
}

// NewRegistry builds an empty registry. RegisterBuiltin populates it before
// the first Discover call; pluginDir may be "" to disable discovery
// entirely (a schema with no flow-extension APIs is a valid deployment).
func NewRegistry(pluginDir string, maxDepth int, deadline time.Duration, invoker PluginInvoker) *Registry {
	return &Registry{
		builtins:   map[string]vm.Handler{},
		discovered: map[string]vm.Handler{},
		pluginDir:  pluginDir,
		maxDepth:   maxDepth,
		deadline:   deadline,
		invoker:    invoker,
	}
}

// RegisterBuiltin wires a compiled-in API handler (spec §4.6: built-ins take
// precedence over discovered plugins of the same name).
func (r *Registry) RegisterBuiltin(name string, h vm.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[name] = h
}

// Lookup implements vm.Registry.
func (r *Registry) Lookup(name string) (vm.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.builtins[name]; ok {
		return h, true
	}
	h, ok := r.discovered[name]
	return h, ok
}

// Discover implements schema.Discoverer: it walks the plugin directory,
// merges each manifest's schema into the returned list, and (as a side
// effect) registers a handler that shells out to the plugin invoker for
// every name not already claimed by a built-in.
func (r *Registry) Discover(ctx context.Context) ([]schema.DiscoveredAPI, error) {
	manifests, err := discoverManifests(ctx, r.pluginDir, r.maxDepth, r.deadline)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	discovered := map[string]vm.Handler{}
	var out []schema.DiscoveredAPI
	for _, m := range manifests {
		if _, claimed := r.builtins[m.Name]; claimed {
			logrus.WithField("name", m.Name).Warn("plugin manifest shadows a built-in; built-in wins")
			continue
		}
		out = append(out, schema.DiscoveredAPI{Name: m.Name, Spec: m.resolveAPI()})
		discovered[m.Name] = r.makeHandler(m)
	}
	r.discovered = discovered
	return out, nil
}

// makeHandler closes over one manifest and invokes its guest code whenever
// the executor dispatches to its name, capturing the textual result into
// "<name>_result" (mirrors exec_code's own result-variable convention, §4.9).
func (r *Registry) makeHandler(m manifest) vm.Handler {
	return func(ctx context.Context, ex *vm.Executor, op *ir.Op) error {
		if r.invoker == nil {
			logrus.WithField("name", m.Name).Warn("discovered api has no plugin invoker configured; no-op")
			return nil
		}
		args := make([]string, len(op.Params))
		for i, p := range op.Params {
			args[i] = ex.Variables().Expand(p)
		}
		result, err := r.invoker.Invoke(ctx, m.Lang, m.File, m.Func, args)
		if err != nil {
			return err
		}
		ex.Variables().Set(m.Name+"_result", result)
		return nil
	}
}
