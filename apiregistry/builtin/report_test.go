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

type recordingResults struct {
	fakeResults
	checkVarCalls  int
	finalizeCalls  []string
}

func (r *recordingResults) AddCheckVar(qaid string, passed bool, message string, line int, device string) error {
	r.checkVarCalls++
	return nil
}

func (r *recordingResults) Finalize(qaid string) bool {
	r.finalizeCalls = append(r.finalizeCalls, qaid)
	return r.fakeResults.Finalize(qaid)
}

func TestReport_RecordsResultThenFinalizes(t *testing.T) {
	results := &recordingResults{fakeResults: fakeResults{finalizeResult: true}}
	ex := newTestExecutor(results)

	op := optionsOp(1, "report", map[string]string{"qaid": "QA001", "result": "pass"}, []string{"qaid", "result"})
	err := Report(context.Background(), ex, op)
	require.NoError(t, err)

	assert.Equal(t, 1, results.checkVarCalls)
	assert.Equal(t, []string{"QA001"}, results.finalizeCalls)
}

func TestReport_FinalizesEvenWithoutExplicitResult(t *testing.T) {
	results := &recordingResults{fakeResults: fakeResults{finalizeResult: false}}
	ex := newTestExecutor(results)

	op := optionsOp(2, "report", map[string]string{"qaid": "QA002"}, []string{"qaid", "result"})
	err := Report(context.Background(), ex, op)
	require.NoError(t, err)

	assert.Equal(t, 0, results.checkVarCalls)
	assert.Equal(t, []string{"QA002"}, results.finalizeCalls)
}

func TestReport_MissingQaidErrors(t *testing.T) {
	ex := newTestExecutor(&fakeResults{})
	op := optionsOp(3, "report", map[string]string{"result": "pass"}, []string{"qaid", "result"})
	err := Report(context.Background(), ex, op)
	assert.Error(t, err)
}
