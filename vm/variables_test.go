// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableStore_ExpandDollarAndBraceForms(t *testing.T) {
	store := NewVariableStore(map[string]string{"ip": "10.0.0.1"})
	assert.Equal(t, "ping 10.0.0.1", store.Expand("ping $ip"))
	assert.Equal(t, "ping 10.0.0.1", store.Expand("ping {$ip}"))
}

func TestVariableStore_UndefinedBecomesEmpty(t *testing.T) {
	store := NewVariableStore(nil)
	assert.Equal(t, "ping ", store.Expand("ping $missing"))
}

func TestVariableStore_SetOverridesSeed(t *testing.T) {
	store := NewVariableStore(map[string]string{"x": "1"})
	store.Set("x", "2")
	v, ok := store.Get("x")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestVariableStore_SnapshotIsACopy(t *testing.T) {
	store := NewVariableStore(map[string]string{"x": "1"})
	snap := store.Snapshot()
	snap["x"] = "mutated"
	v, _ := store.Get("x")
	assert.Equal(t, "1", v)
}
