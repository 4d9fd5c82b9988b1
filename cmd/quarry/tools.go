// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sigil-dev/quarry/internal/registry"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered operations",
		Long:  "List the built-in operations and those declared in the definitions directory.",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	cmd.Flags().String("type", "", "only list operations of this type (tool|prompt)")
	cmd.Flags().String("definitions", "", "override the definitions directory")

	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Definitions.Dir
	if cmd.Flags().Changed("definitions") {
		dir, _ = cmd.Flags().GetString("definitions")
	}

	var types []registry.Type
	switch typ, _ := cmd.Flags().GetString("type"); typ {
	case "":
	case string(registry.TypeTool), string(registry.TypePrompt):
		types = append(types, registry.Type(typ))
	default:
		return quarryerr.Errorf(quarryerr.CodeCLIInputInvalid, "invalid --type %q: expected tool or prompt", typ)
	}

	reg, err := BuildRegistry(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, group := range []registry.Type{registry.TypeTool, registry.TypePrompt} {
		if len(types) > 0 && types[0] != group {
			continue
		}
		descs := reg.List(group)
		_, _ = fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%ss (%d)", strings.ToUpper(string(group[:1]))+string(group[1:]), len(descs))))
		for _, d := range descs {
			_, _ = fmt.Fprintf(out, "  %s %s\n", nameStyle.Render(d.Name), dimStyle.Render("["+string(d.Kind)+", "+d.Source+"]"))
			if d.Description != "" {
				_, _ = fmt.Fprintf(out, "      %s\n", firstLine(d.Description))
			}
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
