// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVar_ValueTakesPrecedenceOverPattern(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	ex.Variables().Set("status", "up")

	op := optionsOp(1, "check_var", map[string]string{
		"var": "$status", "value": "up", "pattern": "down", "for": "QA001",
	}, []string{"var", "value", "pattern", "contains", "for"})

	err := CheckVar(context.Background(), ex, op)
	require.NoError(t, err)
}

func TestCheckVar_PatternUsedWhenValueNotDeclared(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	ex.Variables().Set("status", "interface up")

	op := optionsOp(2, "check_var", map[string]string{
		"var": "$status", "pattern": "^interface", "for": "QA002",
	}, []string{"var", "value", "pattern", "contains", "for"})

	err := CheckVar(context.Background(), ex, op)
	require.NoError(t, err)
}

func TestCheckVar_MissingVarErrors(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	op := optionsOp(3, "check_var", map[string]string{"value": "x"}, []string{"var", "value", "pattern", "contains", "for"})
	err := CheckVar(context.Background(), ex, op)
	assert.Error(t, err)
}

func TestCheckVar_NoPredicateDeclaredErrors(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	ex.Variables().Set("status", "up")
	op := optionsOp(4, "check_var", map[string]string{"var": "$status"}, []string{"var", "value", "pattern", "contains", "for"})
	err := CheckVar(context.Background(), ex, op)
	assert.Error(t, err)
}
