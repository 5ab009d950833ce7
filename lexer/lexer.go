// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package lexer

import (
	"strings"

	"github.com/pkg/errors"

	fos "github.com/fos-lang/fos-engine/errors"
	"github.com/fos-lang/fos-engine/schema"
)

// Lex converts source into a token stream and the list of original source
// lines (spec §4.2). patterns must come from an already-compiled
// schema.Runtime (Phase 1 is enough; Phase 2 only widens the api alternation).
func Lex(patterns *schema.Patterns, source, fileName string) ([]Token, []string, error) {
	lines := splitLines(source)

	var tokens []Token
	for i, raw := range lines {
		lineNo := i + 1
		line := applyDeprecated(raw)

		if strings.TrimSpace(line) == "" {
			continue
		}

		kind, body, rest, ok := patterns.MatchKind(line)
		if !ok {
			return nil, lines, errors.WithStack(&fos.LexError{
				Line:    lineNo,
				Message: "line matched no known pattern in " + fileName,
			})
		}

		toks, err := dispatch(patterns, kind, body, rest, lineNo)
		if err != nil {
			return nil, lines, errors.Wrapf(err, "%s:%d", fileName, lineNo)
		}
		tokens = append(tokens, toks...)
	}
	return tokens, lines, nil
}

func dispatch(patterns *schema.Patterns, kind, body, rest string, lineNo int) ([]Token, error) {
	switch kind {
	case "commented_section", "commented_line":
		return []Token{{Kind: KindComment, Text: body, Line: lineNo}}, nil
	case "section":
		return []Token{{Kind: KindSection, Text: body, Line: lineNo}}, nil
	case "include":
		return []Token{{Kind: KindInclude, Text: body, Line: lineNo}}, nil
	case "comment":
		return []Token{{Kind: KindComment, Text: body, Line: lineNo}}, nil
	case "api":
		payload, err := tokenizePayload(patterns, rest, lineNo)
		if err != nil {
			return nil, err
		}
		return append([]Token{{Kind: KindAPI, Text: body, Line: lineNo}}, payload...), nil
	case "statement":
		payload, err := tokenizePayload(patterns, rest, lineNo)
		if err != nil {
			return nil, err
		}
		return append([]Token{{Kind: KindKeyword, Text: body, Line: lineNo}}, payload...), nil
	case "command":
		return []Token{{Kind: KindCommand, Text: body, Line: lineNo}}, nil
	default:
		return nil, &fos.LexError{Line: lineNo, Message: "unhandled line kind " + kind}
	}
}

// tokenizePayload walks rest with TokenPattern, collecting one Token per
// match and erroring on any non-whitespace text left unmatched between or
// after matches.
func tokenizePayload(patterns *schema.Patterns, rest string, lineNo int) ([]Token, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, nil
	}

	var tokens []Token
	pos := 0
	names := patterns.TokenPattern.SubexpNames()

	for pos < len(rest) {
		loc := patterns.TokenPattern.FindStringSubmatchIndex(rest[pos:])
		if loc == nil {
			if strings.TrimSpace(rest[pos:]) != "" {
				return nil, &fos.LexError{Line: lineNo, Message: "unrecognized token in " + rest[pos:]}
			}
			break
		}
		start, end := loc[0], loc[1]
		if gap := strings.TrimSpace(rest[pos : pos+start]); gap != "" {
			return nil, &fos.LexError{Line: lineNo, Message: "unrecognized token near " + gap}
		}

		matchedKind, matchedText := "", ""
		for gi := 1; gi*2 < len(loc); gi++ {
			gs, ge := loc[gi*2], loc[gi*2+1]
			if gs < 0 || names[gi] == "" {
				continue
			}
			matchedKind = names[gi]
			matchedText = rest[pos+gs : pos+ge]
			break
		}
		if matchedKind == "" {
			return nil, &fos.LexError{Line: lineNo, Message: "empty token match"}
		}

		tokens = append(tokens, Token{Kind: kindFromGroup(matchedKind), Text: normalizeText(matchedKind, matchedText), Line: lineNo})
		pos += end
	}
	return tokens, nil
}

func kindFromGroup(group string) Kind {
	switch group {
	case "variable":
		return KindVariable
	case "symbol":
		return KindSymbol
	case "number":
		return KindNumber
	case "operator":
		return KindOperator
	case "string":
		return KindString
	default:
		return KindIdentifier
	}
}

// normalizeText strips the leading `$` off a variable token and the
// surrounding quotes off a string token so downstream consumers get the
// bare name/content (spec §4.2: "$NAME -> kind=variable, text=NAME").
func normalizeText(group, text string) string {
	switch group {
	case "variable":
		return strings.TrimPrefix(text, "$")
	case "string":
		if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
			return text[1 : len(text)-1]
		}
	}
	return text
}

func splitLines(source string) []string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	return strings.Split(source, "\n")
}
