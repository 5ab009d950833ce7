// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package resultmgr implements the per-QAID assertion ledger and summary
// reporting described in spec §4.8.
package resultmgr

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/fos-lang/fos-engine/common/external"
)

// Status is a QAID's finalized outcome.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusAborted Status = "aborted"
)

// Record is one assertion contributing to a QAID's outcome.
type Record struct {
	Passed        bool
	Message       string
	OpLine        int
	Device        string
	OutputExcerpt string
}

// ReportEntry is one line of Manager.GetReport's output.
type ReportEntry struct {
	QAID    string
	Status  Status
	Details []Record
}

const excerptLimit = 2048

// Manager is the process's result ledger for one run. Records for a QAID
// are appended in encounter order (spec §4.8's ordering guarantee); across
// QAIDs, GetReport returns first-finalized-first.
type Manager struct {
	mu sync.Mutex

	records   map[string][]Record
	qaidOrder []string
	seen      map[string]bool

	finalized      map[string]Status
	finalizedOrder []string

	secrets []string
}

// New builds an empty Manager. secrets is the list of values that must
// never appear verbatim in a recorded output excerpt (§4.8 says nothing
// about masking directly, but every excerpt is device/guest output, which
// is exactly the data the teacher's logstream masking exists to protect).
func New(secrets []string) *Manager {
	return &Manager{
		records:   map[string][]Record{},
		seen:      map[string]bool{},
		finalized: map[string]Status{},
		secrets:   secrets,
	}
}

func (m *Manager) append(qaid string, rec Record) {
	if !m.seen[qaid] {
		m.seen[qaid] = true
		m.qaidOrder = append(m.qaidOrder, qaid)
	}
	rec.OutputExcerpt = excerpt(external.MaskString(rec.OutputExcerpt, m.secrets))
	m.records[qaid] = append(m.records[qaid], rec)
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit]
}

// AddExpect implements vm.ResultManager (spec §4.8: "add_expect(qaid,
// passed, rule, output)").
func (m *Manager) AddExpect(qaid string, passed bool, rule, output string, line int, device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(qaid, Record{Passed: passed, Message: rule, OpLine: line, Device: device, OutputExcerpt: output})
	return nil
}

// AddCheckVar implements vm.ResultManager.
func (m *Manager) AddCheckVar(qaid string, passed bool, message string, line int, device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(qaid, Record{Passed: passed, Message: message, OpLine: line, Device: device})
	return nil
}

// AddCommandError implements vm.ResultManager. qaid may be "" (spec:
// "optional QAID attribution"); the record is always kept so get_report can
// surface un-attributed CLI errors alongside whichever QAID's block it fell
// inside, if any.
func (m *Manager) AddCommandError(qaid string, line int, cmd, output string, device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(qaid, Record{Passed: false, Message: "command error: " + cmd, OpLine: line, Device: device, OutputExcerpt: output})
	return nil
}

// Finalize computes a QAID's status as the AND of all its records (spec
// §4.8: "triggered by report... Computes pass/fail as the AND of all
// records"), freezing it against any later record. A QAID with no records
// yet finalizes as failed: `report` naming a QAID that was never asserted
// against is a script bug, not a silent pass. Implements vm.ResultManager,
// which only needs the pass/fail bool; Status (including "aborted") is
// still recorded internally and surfaced by GetReport.
func (m *Manager) Finalize(qaid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.finalized[qaid]; ok {
		return existing == StatusPass
	}
	recs := m.records[qaid]
	status := StatusPass
	if len(recs) == 0 {
		status = StatusFail
	}
	for _, r := range recs {
		if !r.Passed {
			status = StatusFail
			break
		}
	}
	m.finalized[qaid] = status
	m.finalizedOrder = append(m.finalizedOrder, qaid)
	return status == StatusPass
}

// AbortInFlight finalizes every QAID that has records but was never
// explicitly finalized, marking them "aborted" (spec §5: "the result
// manager is finalized with an 'aborted' marker for in-flight QAIDs").
func (m *Manager) AbortInFlight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, qaid := range m.qaidOrder {
		if _, done := m.finalized[qaid]; done {
			continue
		}
		m.finalized[qaid] = StatusAborted
		m.finalizedOrder = append(m.finalizedOrder, qaid)
	}
}

// GetReport returns one entry per finalized QAID, first-finalized-first
// (spec §4.8).
func (m *Manager) GetReport() []ReportEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReportEntry, 0, len(m.finalizedOrder))
	for _, qaid := range m.finalizedOrder {
		out = append(out, ReportEntry{QAID: qaid, Status: m.finalized[qaid], Details: append([]Record(nil), m.records[qaid]...)})
	}
	return out
}

// Errors combines every failing record across every finalized QAID into a
// single error, one line per failure, for callers that want a combined
// non-zero-exit summary rather than walking GetReport themselves. Returns
// nil if nothing failed.
func (m *Manager) Errors() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result *multierror.Error
	for _, qaid := range m.finalizedOrder {
		for _, r := range m.records[qaid] {
			if !r.Passed {
				result = multierror.Append(result, fmt.Errorf("%s line %d [%s]: %s", qaid, r.OpLine, r.Device, r.Message))
			}
		}
	}
	if result == nil {
		return nil
	}
	return result
}

// AllPassed reports whether every finalized QAID passed, for the CLI's
// exit-code decision (spec §6: "0 on all-QAIDs-pass").
func (m *Manager) AllPassed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finalizedOrder) == 0 {
		return true
	}
	for _, status := range m.finalized {
		if status != StatusPass {
			return false
		}
	}
	return true
}
