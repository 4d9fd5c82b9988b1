// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/quarry/internal/config"
	"github.com/sigil-dev/quarry/internal/dispatch"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Run one operation and print its envelope",
		Long: `Run a single operation against the configured warehouse and vector store
without starting a transport. Arguments are passed as a JSON object.`,
		Example: `  quarry call base_tableList --args '{"db_name":"sales"}'`,
		Args:    cobra.ExactArgs(1),
		RunE:    runCall,
	}

	cmd.Flags().String("args", "{}", "operation arguments as a JSON object")

	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("args")
	var callArgs map[string]any
	if err := json.Unmarshal([]byte(raw), &callArgs); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeCLIInputInvalid, "--args must be a JSON object")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// One-shot calls never listen.
	cfg.Transport.Mode = config.ModeStdio

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := Wire(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	env := app.Dispatcher.Dispatch(dispatch.WithRequestID(ctx, "cli"), args[0], callArgs)

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "encoding envelope")
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if env.IsError() {
		return quarryerr.Errorf(quarryerr.CodeDispatchHandlerFailure, "operation %s failed", args[0])
	}
	return nil
}
