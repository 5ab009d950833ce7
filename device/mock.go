// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package device

import (
	"strings"
	"sync"
	"time"
)

// Mock is an in-memory Device used by tests and dry runs. Sends are
// recorded; Expect polls a scripted or appended buffer for a regex match,
// honoring the timeout the same way a real polling driver would.
type Mock struct {
	mu sync.Mutex

	name        string
	buf         strings.Builder
	sent        []string
	keepRunning bool
	pollEvery   time.Duration

	// matcher defaults to regexp.MatchString against the accumulated
	// buffer; tests can override it to simulate a slow-arriving match.
	matcher func(pattern, buffer string) (bool, error)
}

// NewMock returns a Mock device seeded with an initial buffer (simulating a
// banner the device already printed before any command was sent).
func NewMock(name, seed string) *Mock {
	m := &Mock{name: name, pollEvery: 10 * time.Millisecond, matcher: regexMatch}
	m.buf.WriteString(seed)
	return m
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Send(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

// Sent returns every command sent so far, for test assertions.
func (m *Mock) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Feed appends text to the device's output buffer, simulating output
// arriving asynchronously from the transport.
func (m *Mock) Feed(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf.WriteString(text)
}

func (m *Mock) Buffer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

// Expect polls the buffer every pollEvery until matcher reports a match or
// timeout elapses. A timeout of 0 checks exactly once (spec §8: "expect
// with timeout 0 checks the current buffer exactly once").
func (m *Mock) Expect(pattern string, timeout time.Duration) (bool, string, error) {
	deadline := time.Now().Add(timeout)
	for {
		buf := m.Buffer()
		matched, err := m.matcher(pattern, buf)
		if err != nil {
			return false, buf, err
		}
		if matched {
			return true, buf, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return false, buf, nil
		}
		time.Sleep(m.pollEvery)
	}
}

func (m *Mock) ForceLogin() error { return nil }

func (m *Mock) SetKeepRunning(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keepRunning = v
}

func (m *Mock) KeepRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepRunning
}

func regexMatch(pattern, buffer string) (bool, error) {
	re, err := compileCached(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(buffer), nil
}
