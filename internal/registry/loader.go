// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Definition is one declarative operation record.
type Definition struct {
	Type        string `yaml:"type" toml:"type"`
	Name        string `yaml:"name" toml:"name"`
	SQL         string `yaml:"sql" toml:"sql"`
	Prompt      string `yaml:"prompt" toml:"prompt"`
	Description string `yaml:"description" toml:"description"`
}

// tomlFile is the layout of a *_tools.toml file.
type tomlFile struct {
	Definitions []Definition `toml:"definitions"`
}

// definitionSuffixes are the recognized definition file name endings.
var definitionSuffixes = []string{"_tools.yaml", "_tools.yml", "_tools.toml"}

// DefinitionFiles returns the recognized definition files in dir, sorted
// lexically. A missing directory yields no files.
func DefinitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, quarryerr.Wrap(err, quarryerr.CodeRegistryLoadFailure, "reading definitions directory",
			quarryerr.FieldFile(dir))
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suffix := range definitionSuffixes {
			if strings.HasSuffix(e.Name(), suffix) {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadDefinitions parses one definition file.
func ReadDefinitions(path string) ([]Definition, error) {
	if strings.HasSuffix(path, ".toml") {
		var f tomlFile
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, quarryerr.Wrap(err, quarryerr.CodeRegistryDefinitionInvalid, "parsing definitions",
				quarryerr.FieldFile(path))
		}
		return f.Definitions, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeRegistryLoadFailure, "reading definitions",
			quarryerr.FieldFile(path))
	}
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeRegistryDefinitionInvalid, "parsing definitions",
			quarryerr.FieldFile(path))
	}
	return defs, nil
}

// Descriptor converts a definition read from source. ok is false for
// records of an unknown type, which callers skip.
func (d Definition) Descriptor(source string) (desc Descriptor, ok bool, err error) {
	invalid := func(msg string) error {
		return quarryerr.New(quarryerr.CodeRegistryDefinitionInvalid, msg,
			quarryerr.FieldFile(source), quarryerr.FieldOperation(d.Name))
	}
	typ := Type(d.Type)
	if typ != TypeTool && typ != TypePrompt {
		return Descriptor{}, false, nil
	}
	if strings.TrimSpace(d.Name) == "" {
		return Descriptor{}, false, invalid("definition in " + source + " has no name")
	}

	switch typ {
	case TypeTool:
		if strings.TrimSpace(d.SQL) == "" {
			return Descriptor{}, false, invalid("tool " + d.Name + " in " + source + " has no sql")
		}
		return Descriptor{
			Name:        d.Name,
			Kind:        KindQuery,
			Type:        TypeTool,
			Description: d.Description,
			Handler:     TemplatedQuery{Name: d.Name, SQL: d.SQL},
			Source:      source,
		}, true, nil
	case TypePrompt:
		if strings.TrimSpace(d.Prompt) == "" {
			return Descriptor{}, false, invalid("prompt " + d.Name + " in " + source + " has no prompt text")
		}
		return Descriptor{
			Name:        d.Name,
			Kind:        KindAction,
			Type:        TypePrompt,
			Description: d.Description,
			Handler:     TemplatedPrompt{Text: d.Prompt},
			Source:      source,
		}, true, nil
	default:
		return Descriptor{}, false, nil
	}
}

// LoadDir registers every definition found in dir, file by file in lexical
// order and record by record in file order. The first invalid record or
// duplicate name aborts loading. It returns the number of operations added.
func LoadDir(reg *Registry, dir string) (int, error) {
	files, err := DefinitionFiles(dir)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, path := range files {
		defs, err := ReadDefinitions(path)
		if err != nil {
			return added, err
		}
		for _, def := range defs {
			desc, ok, err := def.Descriptor(path)
			if err != nil {
				return added, err
			}
			if !ok {
				slog.Warn("skipping definition of unknown type",
					"file", path, "name", def.Name, "type", def.Type)
				continue
			}
			if err := reg.Register(desc); err != nil {
				return added, err
			}
			slog.Info("registered declared operation", "name", desc.Name, "type", desc.Type, "file", path)
			added++
		}
	}
	return added, nil
}
