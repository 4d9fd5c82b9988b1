// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// DefaultConfigYAML is the commented configuration written by `quarry init`.
//
//go:embed quarry.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/quarry/quarry.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", quarryerr.Wrap(err, quarryerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "quarry", "quarry.yaml"), nil
}

// WriteDefault writes DefaultConfigYAML to path with owner-only permissions.
// An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return quarryerr.Errorf(quarryerr.CodeConfigValidateInvalidValue,
				"config %s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return quarryerr.Wrapf(err, quarryerr.CodeConfigLoadReadFailure, "checking %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeConfigLoadReadFailure, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeConfigLoadReadFailure, "writing %s", path)
	}
	return nil
}
