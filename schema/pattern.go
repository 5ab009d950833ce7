// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Patterns holds the two compiled regex tables described in spec §4.1/§4.2:
// LinePattern classifies a whole script line, TokenPattern tokenizes the
// leftover payload of an api/statement line.
type Patterns struct {
	LinePattern  *regexp.Regexp
	TokenPattern *regexp.Regexp

	// apiNames/keywordNames are kept (sorted longest-first) so callers can
	// tell which alternative actually matched once MatchLine reports the
	// api/statement submatch text.
	apiNames     []string
	keywordNames []string
}

var defaultTokenFragments = Tokens{
	// `$?` is the special command-status variable expect.go sets; every
	// other name follows the usual identifier shape.
	Variable: `\$(?:[A-Za-z_][A-Za-z0-9_]*|\?)`,
	String:   `"(?:[^"\\]|\\.)*"`,
	Number:   `-?[0-9]+(?:\.[0-9]+)?`,
	Operator: `==|!=|<=|>=|<|>|\+|-|\*|/`,
	Symbol:   `[{}:,]`,
	// A leading '-' is only consumed as part of an identifier when
	// immediately followed by a letter/underscore, so options-API flags
	// like "-e"/"-for" lex as one token while "$a - 3" still leaves the
	// minus sign for Operator.
	Identifier: `-?[A-Za-z_][A-Za-z0-9_./-]*`,
}

// Compile builds the line/token pattern tables from a schema document.
// Longer API/keyword names sort before shorter ones so that, e.g., a
// hypothetical "setvariable" API is tried before "setvar" in the
// alternation (spec §4.1).
func Compile(doc *Document) (*Patterns, error) {
	apiNames := sortedNamesByLenDesc(doc.APIs)
	keywordNames := sortedKeywordNamesByLenDesc(doc.Keywords)

	line, err := compileLinePattern(apiNames, keywordNames)
	if err != nil {
		return nil, fmt.Errorf("compiling line pattern: %w", err)
	}

	tok, err := compileTokenPattern(doc.Tokens)
	if err != nil {
		return nil, fmt.Errorf("compiling token pattern: %w", err)
	}

	return &Patterns{
		LinePattern:  line,
		TokenPattern: tok,
		apiNames:     apiNames,
		keywordNames: keywordNames,
	}, nil
}

func sortedNamesByLenDesc(apis map[string]*API) []string {
	names := make([]string, 0, len(apis))
	for n := range apis {
		names = append(names, n)
	}
	sortByLenDesc(names)
	return names
}

func sortedKeywordNamesByLenDesc(kws map[string]*Keyword) []string {
	names := make([]string, 0, len(kws))
	for n := range kws {
		names = append(names, n)
	}
	sortByLenDesc(names)
	return names
}

func sortByLenDesc(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
}

func compileLinePattern(apiNames, keywordNames []string) (*regexp.Regexp, error) {
	// A bare alternation compiles fine even when empty: it becomes "(?:)"
	// which matches nothing useful but keeps the overall pattern valid
	// during Phase 1, before any APIs/keywords are loaded.
	apiAlt := alternation(apiNames)
	kwAlt := alternation(keywordNames)

	parts := []string{
		`(?:^#\[(?P<commented_section>[^\]]*)\]\s*$)`,
		`(?:^\[(?P<section>[A-Z][A-Z0-9_]*)\]\s*$)`,
		`(?:(?i)^Comment:\s*(?P<comment>.*)$)`,
		`(?:^include\s+(?P<include>\S+.*)$)`,
		`(?:^<\s*(?P<api>` + apiAlt + `)\b(?P<api_rest>[^>]*)>\s*$)`,
		`(?:^<\s*(?P<statement>` + kwAlt + `)\b(?P<statement_rest>[^>]*)>\s*$)`,
		`(?:^#(?P<commented_line>.*)$)`,
		`(?:^(?P<command>.+)$)`,
	}
	return regexp.Compile(strings.Join(parts, "|"))
}

func alternation(names []string) string {
	if len(names) == 0 {
		// A pattern that can never match, but is syntactically valid, so
		// the surrounding alternation still compiles during Phase 1.
		return `\x00NEVER\x00`
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

func compileTokenPattern(t Tokens) (*regexp.Regexp, error) {
	frag := func(given, fallback string) string {
		if given != "" {
			return given
		}
		return fallback
	}
	// identifier is tried before operator/symbol so a hyphen immediately
	// followed by a letter (an options-API flag) binds as one identifier
	// token rather than splitting into a bare '-' operator.
	parts := []string{
		`(?P<variable>` + frag(t.Variable, defaultTokenFragments.Variable) + `)`,
		`(?P<string>` + frag(t.String, defaultTokenFragments.String) + `)`,
		`(?P<number>` + frag(t.Number, defaultTokenFragments.Number) + `)`,
		`(?P<identifier>` + frag(t.Identifier, defaultTokenFragments.Identifier) + `)`,
		`(?P<operator>` + frag(t.Operator, defaultTokenFragments.Operator) + `)`,
		`(?P<symbol>` + frag(t.Symbol, defaultTokenFragments.Symbol) + `)`,
	}
	return regexp.Compile(strings.Join(parts, "|"))
}

// MatchKind classifies a source line using LinePattern, returning the name
// of the first non-empty named group and its captured text.
func (p *Patterns) MatchKind(line string) (kind, body, rest string, ok bool) {
	m := p.LinePattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", "", false
	}
	names := p.LinePattern.SubexpNames()
	for i, name := range names {
		if name == "" || m[i] == "" {
			continue
		}
		switch name {
		case "api_rest", "statement_rest":
			continue
		}
		switch name {
		case "api":
			return name, m[i], restFor(names, m, "api_rest"), true
		case "statement":
			return name, m[i], restFor(names, m, "statement_rest"), true
		default:
			return name, m[i], "", true
		}
	}
	return "", "", "", false
}

func restFor(names []string, m []string, want string) string {
	for i, name := range names {
		if name == want {
			return m[i]
		}
	}
	return ""
}
