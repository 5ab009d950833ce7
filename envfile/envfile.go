// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package envfile parses the INI-style environment/configuration files
// that seed a run's device config sections (spec §6).
package envfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// File is the parsed `[SECTION]` / `KEY: VALUE` document. Sections is
// exported directly (rather than hidden behind only accessor methods)
// since callers also hand it to exec_code's Bash runtime for
// `SECTION__KEY` env injection (spec §4.9).
type File struct {
	Sections map[string]map[string]string
}

// Parse reads an env file from r. Both `KEY: VALUE` and `KEY = VALUE`
// forms are accepted; blank lines and `#`-prefixed lines are ignored.
// A key declared before any `[SECTION]` header is filed under "".
func Parse(r io.Reader) (*File, error) {
	f := &File{Sections: map[string]map[string]string{}}
	section := ""
	f.Sections[section] = map[string]string{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := f.Sections[section]; !ok {
				f.Sections[section] = map[string]string{}
			}
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			return nil, fmt.Errorf("envfile: line %d: not a KEY: VALUE or KEY = VALUE pair: %q", lineNo, line)
		}
		f.Sections[section][key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

func splitKV(line string) (key, value string, ok bool) {
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

// Lookup resolves a "DEVICE:VARIABLE" reference with three-tier
// case-insensitive matching (exact, lower, upper) against the section named
// by device. If nothing matches, the literal "DEVICE:VARIABLE" form is
// returned unchanged and a warning is logged (spec §6).
func (f *File) Lookup(device, variable string) string {
	section, ok := f.Sections[device]
	if !ok {
		logrus.WithFields(logrus.Fields{"device": device, "variable": variable}).Warn("envfile: no such section; reference left literal")
		return device + ":" + variable
	}
	for _, candidate := range []string{variable, strings.ToLower(variable), strings.ToUpper(variable)} {
		if v, ok := section[candidate]; ok {
			return v
		}
	}
	logrus.WithFields(logrus.Fields{"device": device, "variable": variable}).Warn("envfile: no such key in section; reference left literal")
	return device + ":" + variable
}

// Flatten returns every section's key/value pairs as "SECTION__KEY" ->
// value, both uppercased, for the Bash exec_code runtime (spec §4.9).
func (f *File) Flatten() map[string]string {
	out := map[string]string{}
	for section, kv := range f.Sections {
		if section == "" {
			continue
		}
		for k, v := range kv {
			out[strings.ToUpper(section)+"__"+strings.ToUpper(k)] = v
		}
	}
	return out
}
