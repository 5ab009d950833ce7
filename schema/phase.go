// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package schema

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DiscoveredAPI is one API found by Phase-2 plugin discovery (§4.6).
// Spec is nil when the plugin ships no schema of its own; Runtime then
// creates the default ("options", no parameters) schema for it.
type DiscoveredAPI struct {
	Name string
	Spec *API
}

// Discoverer performs Phase-2 plugin discovery. apiregistry.Registry
// implements it; schema depends only on this interface to avoid an import
// cycle (apiregistry imports schema, not the reverse).
type Discoverer interface {
	Discover(ctx context.Context) ([]DiscoveredAPI, error)
}

// Runtime is the process-wide schema singleton described in spec §3/§4.1:
// immutable after Phase 2, refreshed from built-ins-only to
// built-ins+plugins exactly once, under double-checked locking.
type Runtime struct {
	mu          sync.Mutex
	initialized atomic.Bool

	doc      *Document
	patterns *Patterns
}

// NewRuntime performs Phase 1: parse is assumed already done by the
// caller (Parse), this just compiles the regex tables over the built-in
// API/keyword set.
func NewRuntime(doc *Document) (*Runtime, error) {
	patterns, err := Compile(doc)
	if err != nil {
		return nil, err
	}
	return &Runtime{doc: doc, patterns: patterns}, nil
}

// Doc returns the current schema document. Safe to call concurrently;
// callers must not mutate the returned value.
func (r *Runtime) Doc() *Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// Patterns returns the current compiled regex tables.
func (r *Runtime) Patterns() *Patterns {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patterns
}

// Initialized reports whether Phase 2 has completed (successfully or by
// falling back to built-ins-only after a discovery failure).
func (r *Runtime) Initialized() bool {
	return r.initialized.Load()
}

// EnsureDiscovered runs Phase 2 exactly once across any number of
// concurrent first-compilations (spec §4.1, §5, §8: "discovery runs
// exactly once"). A discovery failure is logged as a warning and Phase 2
// is still marked complete, proceeding with built-ins only (spec §4.1:
// "Phase-2 errors during discovery do not abort the process").
func (r *Runtime) EnsureDiscovered(ctx context.Context, d Discoverer) error {
	if r.initialized.Load() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized.Load() {
		return nil
	}

	discovered, err := d.Discover(ctx)
	if err != nil {
		logrus.WithError(err).Warn("phase-2 plugin discovery failed; continuing with built-ins only")
		r.initialized.Store(true)
		return nil
	}

	r.mergeLocked(discovered)

	patterns, err := Compile(r.doc)
	if err != nil {
		// A malformed discovered name (e.g. containing regex metacharacters
		// that QuoteMeta can't save us from some other way) must not corrupt
		// the singleton: keep the previous, still-valid patterns.
		logrus.WithError(err).Warn("phase-2 pattern recompile failed; keeping phase-1 patterns")
		r.initialized.Store(true)
		return nil
	}
	r.patterns = patterns
	r.initialized.Store(true)
	return nil
}

func (r *Runtime) mergeLocked(discovered []DiscoveredAPI) {
	for _, d := range discovered {
		if _, exists := r.doc.APIs[d.Name]; exists {
			logrus.WithField("api", d.Name).Warn("discovered plugin API collides with a built-in; built-in wins")
			continue
		}
		spec := d.Spec
		if spec == nil {
			spec = &API{ParseMode: ParseOptions}
		}
		spec.Name = d.Name
		r.doc.APIs[d.Name] = spec
	}
}
