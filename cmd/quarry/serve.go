// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/quarry/internal/config"
	"github.com/sigil-dev/quarry/internal/lifecycle"
	"github.com/sigil-dev/quarry/internal/logging"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operation server",
		Long: `Load configuration, register operations, connect to the warehouse and
vector store, and serve calls over stdio or HTTP until stopped.`,
		RunE: runServe,
	}

	cmd.Flags().String("transport", "", "override transport mode (stdio|http)")
	cmd.Flags().String("listen", "", "override HTTP listen address (host:port)")
	cmd.Flags().String("definitions", "", "override the definitions directory")

	return cmd
}

// applyServeFlags copies explicitly set serve flags onto the global Viper so
// they take precedence over env and file values.
func applyServeFlags(cmd *cobra.Command) error {
	v := viper.GetViper()
	if cmd.Flags().Changed("transport") {
		mode, _ := cmd.Flags().GetString("transport")
		v.Set("transport.mode", mode)
	}
	if cmd.Flags().Changed("definitions") {
		dir, _ := cmd.Flags().GetString("definitions")
		v.Set("definitions.dir", dir)
	}
	if cmd.Flags().Changed("listen") {
		listen, _ := cmd.Flags().GetString("listen")
		host, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			return quarryerr.Wrapf(err, quarryerr.CodeCLIInputInvalid, "invalid --listen %q", listen)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return quarryerr.Errorf(quarryerr.CodeCLIInputInvalid, "invalid --listen port %q", portStr)
		}
		v.Set("transport.host", host)
		v.Set("transport.port", port)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := applyServeFlags(cmd); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Dir:     cfg.Logging.Dir,
		Verbose: viper.GetBool("verbose"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	// The marker advertises a listening server; stdio has nothing to probe.
	marker := ""
	if cfg.Transport.Mode == config.ModeHTTP {
		marker = cfg.Lifecycle.LivenessMarker
	}
	mgr := lifecycle.New(lifecycle.Config{
		MarkerPath: marker,
		Exit: func(code int) {
			_ = logCloser.Close()
			os.Exit(code)
		},
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := Wire(ctx, cfg, func() string { return mgr.State().String() })
	if err != nil {
		return err
	}
	mgr.OnShutdown("warehouse", app.Warehouse)
	mgr.OnShutdown("vector store", app.Vector)

	var transport lifecycle.Transport
	if app.Server != nil {
		mgr.OnShutdown("http server", app.Server)
		transport = app.Server.Start
		slog.Info("serving over http", "listen", cfg.Transport.ListenAddr(), "path", cfg.Transport.Path)
	} else {
		in, out := cmd.InOrStdin(), cmd.OutOrStdout()
		transport = func(ctx context.Context) error {
			return app.RPC.ServeStdio(ctx, in, out)
		}
		slog.Info("serving over stdio")
	}

	mgr.Run(ctx, transport)
	return nil
}
