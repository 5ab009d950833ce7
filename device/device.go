// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package device declares the boundary the executor drives network
// devices and result sinks through (spec §6). Physical transports (SSH,
// Telnet) are out of scope; this package only defines the contract and a
// buffered mock implementation used by tests and dry runs.
package device

import "time"

// Device is the interface the executor requires of every device handle
// (spec §6). Physical transports (SSH/Telnet drivers) are external
// collaborators; the core only consumes this interface.
type Device interface {
	Name() string
	Send(text string) error
	Expect(pattern string, timeout time.Duration) (matched bool, output string, err error)
	Buffer() string

	// ForceLogin re-authenticates a device whose session has dropped.
	// Implementations that never lose session state may no-op.
	ForceLogin() error

	// SetKeepRunning controls whether a DeviceError on this device is
	// fatal (false, the default) or merely recorded (true) (spec §7).
	SetKeepRunning(bool)
	KeepRunning() bool
}

// ResultSink persists result-manager records to logs, dashboards, or
// upstream test systems (spec §6). Implementations must tolerate being
// called from a single executor goroutine only.
type ResultSink interface {
	AddRecord(qaid, status, detail string) error
	Finalize(qaid string) error
}

// NopResultSink discards every record; useful for dry runs and tests that
// only care about the in-process result manager.
type NopResultSink struct{}

func (NopResultSink) AddRecord(qaid, status, detail string) error { return nil }
func (NopResultSink) Finalize(qaid string) error                  { return nil }
