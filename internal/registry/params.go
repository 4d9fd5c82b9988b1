// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// ParamType is the JSON type of a parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Param declares one caller-supplied argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Args are bound call arguments.
type Args map[string]any

// String returns the named argument as a string ("" if absent).
func (a Args) String(name string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the named argument as an int (0 if absent).
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bind validates raw against params: unknown names are rejected, missing
// optional parameters take their defaults, required ones must be present,
// and values are coerced to the declared type.
func Bind(params []Param, raw map[string]any) (Args, error) {
	known := make(map[string]Param, len(params))
	for _, p := range params {
		known[p.Name] = p
	}

	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput,
			"unexpected argument(s): %s", strings.Join(unknown, ", "))
	}

	args := make(Args, len(params))
	for _, p := range params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput, "missing required argument %q", p.Name)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		args[p.Name] = cv
	}
	return args, nil
}

func coerce(p Param, v any) (any, error) {
	bad := func() error {
		return quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput,
			"argument %q must be %s, got %T", p.Name, p.Type, v)
	}

	switch p.Type {
	case ParamInteger:
		switch t := v.(type) {
		case int:
			return t, nil
		case int64:
			return int(t), nil
		case float64:
			if t != math.Trunc(t) {
				return nil, bad()
			}
			return int(t), nil
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil, bad()
			}
			return int(n), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(t))
			if err != nil {
				return nil, bad()
			}
			return n, nil
		}
		return nil, bad()
	case ParamNumber:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		case json.Number:
			f, err := t.Float64()
			if err != nil {
				return nil, bad()
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, bad()
			}
			return f, nil
		}
		return nil, bad()
	case ParamBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(t)
			if err != nil {
				return nil, bad()
			}
			return b, nil
		}
		return nil, bad()
	default:
		switch t := v.(type) {
		case string:
			return t, nil
		case float64, int, int64, bool, json.Number:
			return fmt.Sprint(t), nil
		}
		return nil, bad()
	}
}

// InputSchema renders params as a JSON Schema object.
func InputSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
