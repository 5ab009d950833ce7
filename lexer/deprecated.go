// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package lexer

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Rewrite is one deprecated-command substitution: a line whose trimmed text
// starts with From is rewritten to start with To instead.
type Rewrite struct {
	From string
	To   string
}

// DeprecationTable holds the active set of deprecated-command rewrites. It
// starts empty; no deprecated-prefix table ships with this schema revision
// (spec §9: "the feature is optional and may be omitted if no deprecation
// table is supplied"). Callers running an older script corpus can populate
// it via SetDeprecationTable.
var DeprecationTable []Rewrite

// SetDeprecationTable replaces the active rewrite table.
func SetDeprecationTable(rewrites []Rewrite) {
	DeprecationTable = rewrites
}

// applyDeprecated rewrites line if its trimmed prefix matches a deprecated
// entry, logging a warning. The common case (no deprecated prefixes
// configured, or none matching) short-circuits on length/prefix checks
// alone, without ever falling back to regex.
func applyDeprecated(line string) string {
	if len(DeprecationTable) == 0 {
		return line
	}
	trimmed := strings.TrimLeft(line, " \t")
	for _, r := range DeprecationTable {
		if strings.HasPrefix(trimmed, r.From) {
			rewritten := strings.Replace(line, r.From, r.To, 1)
			logrus.WithFields(logrus.Fields{
				"from": r.From,
				"to":   r.To,
			}).Warn("rewriting deprecated command")
			return rewritten
		}
	}
	return line
}
