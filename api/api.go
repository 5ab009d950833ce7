// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package api defines the request/response DTOs for the HTTP run-submission
// surface: submit a script, poll its QAID report, stream its device/guest
// output.
package api

import "time"

type (
	HealthResponse struct {
		Version string `json:"version"`
		OK      bool   `json:"ok"`
	}

	// DeviceSeed seeds an in-memory device for a submitted run. Real
	// SSH/Telnet transports are out of scope; a run exercises the same
	// device.Device contract the VM always dispatches against, fed from a
	// canned buffer instead of a live session.
	DeviceSeed struct {
		Name string `json:"name"`
		Seed string `json:"seed"`
	}

	// RunRequest submits one script for execution.
	RunRequest struct {
		// File names the script for diagnostics and relative `include`
		// resolution. Defaults to "submitted.fos" when empty.
		File      string                       `json:"file,omitempty"`
		Script    string                       `json:"script"`
		Devices   []DeviceSeed                 `json:"devices,omitempty"`
		Variables map[string]string            `json:"variables,omitempty"`
		Config    map[string]map[string]string `json:"config,omitempty"`
		// Secrets are masked out of recorded output excerpts.
		Secrets []string `json:"secrets,omitempty"`
	}

	RunResponse struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	// Record mirrors resultmgr.Record for wire transport.
	Record struct {
		Passed        bool   `json:"passed"`
		Message       string `json:"message"`
		Line          int    `json:"line"`
		Device        string `json:"device,omitempty"`
		OutputExcerpt string `json:"output_excerpt,omitempty"`
	}

	// ReportEntry mirrors resultmgr.ReportEntry for wire transport.
	ReportEntry struct {
		QAID    string   `json:"qaid"`
		Status  string   `json:"status"`
		Details []Record `json:"details,omitempty"`
	}

	PollResponse struct {
		ID         string        `json:"id"`
		Status     string        `json:"status"`
		Passed     bool          `json:"passed"`
		Error      string        `json:"error,omitempty"`
		Report     []ReportEntry `json:"report,omitempty"`
		StartedAt  *time.Time    `json:"started_at,omitempty"`
		FinishedAt *time.Time    `json:"finished_at,omitempty"`
	}

	LogLine struct {
		Level     string    `json:"level"`
		Message   string    `json:"message"`
		Number    int       `json:"number"`
		Timestamp time.Time `json:"timestamp"`
	}

	StreamResponse struct {
		Lines  []LogLine `json:"lines"`
		Closed bool      `json:"closed"`
	}
)
