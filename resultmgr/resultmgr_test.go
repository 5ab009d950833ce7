// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package resultmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_FinalizeIsAndOfRecords(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.AddExpect("QA001", true, "login:", "Welcome\nlogin: ", 3, "FGT1"))
	require.NoError(t, m.AddCheckVar("QA001", true, "state == up", 4, "FGT1"))
	assert.True(t, m.Finalize("QA001"))
}

func TestManager_FinalizeFailsOnAnyFailure(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.AddExpect("QA001", true, "login:", "", 1, "FGT1"))
	require.NoError(t, m.AddExpect("QA001", false, "logout:", "", 2, "FGT1"))
	assert.False(t, m.Finalize("QA001"))
}

func TestManager_FinalizeIsIdempotent(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.AddExpect("QA001", true, "login:", "", 1, "FGT1"))
	assert.True(t, m.Finalize("QA001"))
	require.NoError(t, m.AddExpect("QA001", false, "oops", "", 2, "FGT1"))
	assert.True(t, m.Finalize("QA001"), "finalize is one-shot; later records don't retroactively change it")
}

func TestManager_UnassertedQAIDFinalizesFail(t *testing.T) {
	m := New(nil)
	assert.False(t, m.Finalize("QA999"))
}

func TestManager_AbortInFlightMarksUnfinalized(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.AddExpect("QA001", true, "login:", "", 1, "FGT1"))
	require.NoError(t, m.AddExpect("QA002", true, "login:", "", 2, "FGT1"))
	m.Finalize("QA001")
	m.AbortInFlight()

	report := m.GetReport()
	statuses := map[string]Status{}
	for _, e := range report {
		statuses[e.QAID] = e.Status
	}
	assert.Equal(t, StatusPass, statuses["QA001"])
	assert.Equal(t, StatusAborted, statuses["QA002"])
}

func TestManager_GetReportIsFirstFinalizedFirst(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.AddExpect("QA002", true, "r", "", 1, "FGT1"))
	require.NoError(t, m.AddExpect("QA001", true, "r", "", 1, "FGT1"))
	m.Finalize("QA002")
	m.Finalize("QA001")

	report := m.GetReport()
	require.Len(t, report, 2)
	assert.Equal(t, "QA002", report[0].QAID)
	assert.Equal(t, "QA001", report[1].QAID)
}

func TestManager_OutputExcerptMasksSecrets(t *testing.T) {
	m := New([]string{"s3cr3t"})
	require.NoError(t, m.AddExpect("QA001", true, "rule", "password is s3cr3t", 1, "FGT1"))
	report := m.GetReport()
	_ = report // GetReport only returns finalized QAIDs; inspect via Finalize first
	m.Finalize("QA001")
	report = m.GetReport()
	require.Len(t, report, 1)
	assert.NotContains(t, report[0].Details[0].OutputExcerpt, "s3cr3t")
}

func TestManager_AllPassed(t *testing.T) {
	m := New(nil)
	assert.True(t, m.AllPassed())

	require.NoError(t, m.AddExpect("QA001", false, "r", "", 1, "FGT1"))
	m.Finalize("QA001")
	assert.False(t, m.AllPassed())
}
