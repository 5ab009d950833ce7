// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package schema loads the single canonical JSON schema document describing
// APIs, keywords, and tokens (spec §3, §4.1) and exposes the typed tables
// the lexer and parser compile regexes from.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseMode selects how an API's arguments are laid out on the line.
type ParseMode string

const (
	ParseOptions    ParseMode = "options"
	ParsePositional ParseMode = "positional"
)

// KeywordType distinguishes a control-block keyword (if/loop/...) from a
// plain parse keyword (setvar/strset/...).
type KeywordType string

const (
	KeywordControlBlock KeywordType = "control_block"
	KeywordParse        KeywordType = "parse"
)

// Parameter describes one positional parameter, or one options flag's
// metadata, depending on which list it appears in.
type Parameter struct {
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	Required bool   `json:"required"`
	Default  string `json:"default"`

	// Flag is only set when this Parameter came from an options map; it
	// carries the JSON key (e.g. "-e") the script author types.
	Flag string `json:"-"`
}

// API is one entry of the schema's `apis` map.
type API struct {
	Name      string    `json:"-"`
	Category  string    `json:"category"`
	ParseMode ParseMode `json:"parse_mode"`

	// Positional, ordered by Parameter.Position, populated when
	// ParseMode == ParsePositional.
	Positional []Parameter `json:"-"`

	// Options, pre-ordered to match the schema's declared flag order,
	// populated when ParseMode == ParseOptions (spec §4.4: "values are
	// pre-ordered to match the declared parameter order").
	Options []Parameter `json:"-"`
}

// UnmarshalJSON decodes an apis[name] entry. `parameters` is polymorphic:
// an ordered array for positional APIs, an object (flag -> meta) for
// options APIs. The object form is decoded with an order-preserving
// walk so flag declaration order survives into Options.
func (a *API) UnmarshalJSON(data []byte) error {
	var raw struct {
		Category    string          `json:"category"`
		ParseMode   ParseMode       `json:"parse_mode"`
		Parameters  json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding api schema: %w", err)
	}
	a.Category = raw.Category
	a.ParseMode = raw.ParseMode

	if len(raw.Parameters) == 0 {
		return nil
	}

	switch raw.ParseMode {
	case ParsePositional:
		var params []Parameter
		if err := json.Unmarshal(raw.Parameters, &params); err != nil {
			return fmt.Errorf("decoding positional parameters: %w", err)
		}
		a.Positional = params
	case ParseOptions:
		keys, objs, err := decodeOrderedObject(raw.Parameters)
		if err != nil {
			return fmt.Errorf("decoding options parameters: %w", err)
		}
		for _, k := range keys {
			var p Parameter
			if err := json.Unmarshal(objs[k], &p); err != nil {
				return fmt.Errorf("decoding option %q: %w", k, err)
			}
			p.Flag = k
			a.Options = append(a.Options, p)
		}
	default:
		return fmt.Errorf("unknown parse_mode %q", raw.ParseMode)
	}
	return nil
}

// ParamIndex returns the zero-based position of a declared parameter (by
// name, or by flag for options APIs) within Op.Params, and whether it is
// declared at all.
func (a *API) ParamIndex(name string) (int, bool) {
	switch a.ParseMode {
	case ParsePositional:
		for _, p := range a.Positional {
			if p.Name == name {
				return p.Position, true
			}
		}
	case ParseOptions:
		for i, p := range a.Options {
			if p.Flag == name || p.Name == name || p.Alias == name {
				return i, true
			}
		}
	}
	return 0, false
}

// ParamDefault returns the declared default for a parameter, or "" if none.
func (a *API) ParamDefault(name string) string {
	switch a.ParseMode {
	case ParsePositional:
		for _, p := range a.Positional {
			if p.Name == name {
				return p.Default
			}
		}
	case ParseOptions:
		for _, p := range a.Options {
			if p.Flag == name || p.Name == name || p.Alias == name {
				return p.Default
			}
		}
	}
	return ""
}

// Params returns the declared parameter list in positional/flag order,
// used by the parser to drive consumption order.
func (a *API) Params() []Parameter {
	if a.ParseMode == ParsePositional {
		return a.Positional
	}
	return a.Options
}

// Keyword is one entry of the schema's `keywords` map.
type Keyword struct {
	Name  string      `json:"-"`
	Type  KeywordType `json:"type"`
	Flow  []FlowPhase `json:"flow,omitempty"`
	Rules []Parameter `json:"rules,omitempty"`
}

// FlowPhase is one step of a control_block keyword's flow: a bare phase
// name ("expression", "script") or a list of alternative following
// keywords ([]string, e.g. ["elseif","else","fi"]).
type FlowPhase struct {
	Phase      string
	Alternates []string
}

func (f *FlowPhase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Phase = s
		return nil
	}
	var alts []string
	if err := json.Unmarshal(data, &alts); err != nil {
		return fmt.Errorf("decoding flow phase: %w", err)
	}
	f.Alternates = alts
	return nil
}

func (f FlowPhase) IsAlternates() bool { return len(f.Alternates) > 0 }

// Tokens holds the raw regex fragments for each token kind (spec §3).
type Tokens struct {
	Variable   string `json:"variable"`
	Symbol     string `json:"symbol"`
	Number     string `json:"number"`
	Operator   string `json:"operator"`
	String     string `json:"string"`
	Identifier string `json:"identifier"`
}

// Document is the top-level shape of the canonical schema JSON file.
type Document struct {
	APIs     map[string]*API     `json:"apis"`
	Keywords map[string]*Keyword `json:"keywords"`
	Tokens   Tokens              `json:"tokens"`
}

// Parse decodes the schema document and fills in each entry's Name field
// from its map key (JSON objects don't carry the key inside the value).
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding schema document: %w", err)
	}
	for name, api := range doc.APIs {
		api.Name = name
	}
	for name, kw := range doc.Keywords {
		kw.Name = name
	}
	return &doc, nil
}

// decodeOrderedObject walks a JSON object token-by-token so the caller can
// recover the original key declaration order, which plain
// map[string]json.RawMessage decoding does not preserve.
func decodeOrderedObject(data []byte) (keys []string, values map[string]json.RawMessage, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	values = make(map[string]json.RawMessage)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("decoding value for %q: %w", key, err)
		}
		keys = append(keys, key)
		values[key] = raw
	}
	return keys, values, nil
}
