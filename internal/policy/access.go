// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package policy restricts which operations a deployment exposes and
// screens operation results before they leave the server.
//
// Operation patterns are globs over operation names where "*" matches zero
// or more characters, e.g. "dba_*" or "*Query". No other glob
// metacharacters are supported.
package policy

import (
	"strings"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// maxPatternLength bounds a single pattern.
const maxPatternLength = 256

// Access decides whether an operation may be listed and called. An
// operation is permitted when no deny pattern matches it and either the
// allow list is empty or one of its patterns matches.
type Access struct {
	allow []string
	deny  []string
}

// NewAccess validates the patterns and returns an Access.
func NewAccess(allow, deny []string) (*Access, error) {
	for _, list := range [][]string{allow, deny} {
		for _, p := range list {
			if err := validatePattern(p); err != nil {
				return nil, err
			}
		}
	}
	return &Access{
		allow: append([]string(nil), allow...),
		deny:  append([]string(nil), deny...),
	}, nil
}

// Permits reports whether name may be listed and called. A nil Access
// permits everything.
func (a *Access) Permits(name string) bool {
	if a == nil {
		return true
	}
	for _, p := range a.deny {
		if MatchPattern(p, name) {
			return false
		}
	}
	if len(a.allow) == 0 {
		return true
	}
	for _, p := range a.allow {
		if MatchPattern(p, name) {
			return true
		}
	}
	return false
}

// Check returns a CodePolicyOperationDenied error when name is not permitted.
func (a *Access) Check(name string) error {
	if a.Permits(name) {
		return nil
	}
	return quarryerr.New(quarryerr.CodePolicyOperationDenied,
		"operation "+name+" is disabled on this server", quarryerr.FieldOperation(name))
}

func validatePattern(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return quarryerr.New(quarryerr.CodePolicyPatternInvalid, "operation pattern must not be empty")
	case len(p) > maxPatternLength:
		return quarryerr.Errorf(quarryerr.CodePolicyPatternInvalid,
			"operation pattern exceeds %d characters", maxPatternLength)
	case strings.ContainsAny(p, "?[]\\ \t\n"):
		return quarryerr.Errorf(quarryerr.CodePolicyPatternInvalid,
			"operation pattern %q: only \"*\" wildcards are supported", p)
	}
	return nil
}

// MatchPattern reports whether name matches pattern, where '*' matches zero or
// more characters.
func MatchPattern(pattern, name string) bool {
	if pattern == "" || name == "" {
		return false
	}

	pi, ti := 0, 0
	star := -1
	match := 0

	for ti < len(name) {
		if pi < len(pattern) && pattern[pi] == name[ti] {
			pi++
			ti++
			continue
		}
		if pi < len(pattern) && pattern[pi] == '*' {
			star = pi
			match = ti
			pi++
			continue
		}
		if star != -1 {
			pi = star + 1
			match++
			ti = match
			continue
		}
		return false
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
