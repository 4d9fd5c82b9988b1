// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/quarry/internal/config"
	"github.com/sigil-dev/quarry/internal/secrets"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// secretStoreFactory creates the store used for keyring:// references and
// the secret subcommands. Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyring()
}

// NewRootCmd creates the root quarry command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "quarry: warehouse operations for agents",
		Long:          "quarry exposes a catalog of data-warehouse and vector-search operations to agents over MCP (stdio or HTTP).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newToolsCmd(),
		newCallCmd(),
		newIndexCmd(),
		newSecretCmd(),
		newInitCmd(),
		newOpenAPICmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings and an optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	viper.Reset()
	v := viper.GetViper()

	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return quarryerr.Wrapf(err, quarryerr.CodeConfigLoadReadFailure, "reading config file %s", cfgFile)
		}
	} else {
		v.SetConfigName("quarry")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/quarry")
		v.AddConfigPath("/etc/quarry")
		// No config file is fine; parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return quarryerr.Wrap(err, quarryerr.CodeConfigLoadReadFailure, "reading config")
			}
		}
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "binding verbose flag")
	}
	return nil
}

// loadConfig decodes the global Viper into a validated Config, resolving
// keyring:// references.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper(), secretStoreFactory())
}
