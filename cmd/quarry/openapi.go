// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/quarry/internal/catalog"
	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/rpc"
	"github.com/sigil-dev/quarry/internal/server"
	"github.com/sigil-dev/quarry/internal/warehouse"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

const defaultOpenAPIPath = "api/openapi/spec.json"

func newOpenAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi [output]",
		Short: "Write the HTTP API's OpenAPI document",
		Long:  "Generate the OpenAPI document for the HTTP routes and write it to output (default " + defaultOpenAPIPath + ").",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := defaultOpenAPIPath
			if len(args) > 0 {
				outPath = args[0]
			}

			spec, err := generateSpec()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "creating output dir")
			}
			if err := os.WriteFile(outPath, spec, 0o644); err != nil {
				return quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "writing spec")
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OpenAPI spec written to %s\n", outPath)
			return nil
		},
	}
}

// generateSpec builds a server over the built-in catalog and extracts the
// document huma derives from the route types. Handlers are never invoked,
// so the warehouse handle is never connected.
func generateSpec() ([]byte, error) {
	reg := registry.New()
	if err := catalog.Register(reg); err != nil {
		return nil, err
	}
	reg.Freeze()

	d, err := dispatch.New(dispatch.Config{Registry: reg, Warehouse: warehouse.NewHandle(nil)})
	if err != nil {
		return nil, err
	}
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Version:    version,
	}, d, rpc.NewServer(d, "quarry", version), nil)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
