// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package vm

import (
	"regexp"
	"sync"

	"github.com/drone/envsubst"
	"github.com/sirupsen/logrus"
)

// braceVarPattern rewrites FOS's `{$NAME}` form to the `${NAME}` form
// drone/envsubst understands, before handing the text to Eval. `$NAME`
// needs no rewrite; envsubst already recognizes it.
var braceVarPattern = regexp.MustCompile(`\{\$([A-Za-z_][A-Za-z0-9_]*)\}`)

// statusVarPattern matches the special `$?` command-status variable, which
// envsubst's own scanner doesn't recognize (its grammar only covers
// `$[A-Za-z_]...`), so it is substituted directly rather than handed to Eval.
var statusVarPattern = regexp.MustCompile(`\$\?`)

// VariableStore is the explicit, disciplined replacement for the source's
// global mutable variables map (spec §9 redesign note): get/set/expand are
// its only mutation surface.
type VariableStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewVariableStore seeds the store with configuration-derived variables
// (spec §4.5: "seeded with configuration variables").
func NewVariableStore(seed map[string]string) *VariableStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &VariableStore{values: values}
}

func (s *VariableStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

func (s *VariableStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Snapshot returns a copy of the current variable map, e.g. for exec_code's
// context injection (spec §4.9).
func (s *VariableStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Expand substitutes every `$NAME`/`{$NAME}` reference in text with its
// current value. Unresolved references become empty strings with a
// warning (spec §4.7). Expansion is a single pass: the substituted text is
// never re-scanned for further references.
func (s *VariableStore) Expand(text string) string {
	rewritten := braceVarPattern.ReplaceAllString(text, "${$1}")
	rewritten = statusVarPattern.ReplaceAllStringFunc(rewritten, func(string) string {
		v, _ := s.Get("?")
		return v
	})
	out, err := envsubst.Eval(rewritten, func(name string) string {
		v, ok := s.Get(name)
		if !ok {
			logrus.WithField("variable", name).Warn("undefined variable referenced")
			return ""
		}
		return v
	})
	if err != nil {
		// Eval only fails on malformed substitution syntax; fall back to
		// the unexpanded text rather than aborting the command.
		logrus.WithError(err).Warn("variable expansion failed; using literal text")
		return text
	}
	return out
}
