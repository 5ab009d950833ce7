// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package builtin

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos-lang/fos-engine/ir"
)

func TestSetEnv_SetsRealEnvAndVariable(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	defer os.Unsetenv("FOS_TEST_KEY")

	op := ir.NewOp(1, "setenv", "FOS_TEST_KEY", "hello")
	err := SetEnv(context.Background(), ex, op)
	require.NoError(t, err)

	assert.Equal(t, "hello", os.Getenv("FOS_TEST_KEY"))
	v, _ := ex.Variables().Get("FOS_TEST_KEY")
	assert.Equal(t, "hello", v)
}

func TestGetEnv_ReadsIntoDestinationVariable(t *testing.T) {
	os.Setenv("FOS_TEST_KEY2", "world")
	defer os.Unsetenv("FOS_TEST_KEY2")

	ex := newTestExecutor(&fakeResults{})
	op := ir.NewOp(2, "getenv", "FOS_TEST_KEY2", "$dest")
	err := GetEnv(context.Background(), ex, op)
	require.NoError(t, err)

	v, _ := ex.Variables().Get("dest")
	assert.Equal(t, "world", v)
}

func TestGetEnv_MissingArgsErrors(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	op := ir.NewOp(3, "getenv", "FOS_TEST_KEY2")
	err := GetEnv(context.Background(), ex, op)
	assert.Error(t, err)
}
