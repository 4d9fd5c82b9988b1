// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/quarry/internal/secrets"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Store, read and delete credentials in the operating system keyring.
Names are "key" (service quarry), "service/key" or a full keyring:// reference.
Config values of the form keyring://service/key are resolved at startup.`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (value from --value or the first line of stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value; read from stdin when omitted")
	return cmd
}

func newSecretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	ref, err := secrets.ParseName(args[0])
	if err != nil {
		return err
	}

	value, _ := cmd.Flags().GetString("value")
	if !cmd.Flags().Changed("value") {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if scanner.Scan() {
			value = strings.TrimRight(scanner.Text(), "\r")
		}
		if err := scanner.Err(); err != nil {
			return quarryerr.Wrap(err, quarryerr.CodeCLIInputInvalid, "reading secret from stdin")
		}
	}
	if value == "" {
		return quarryerr.New(quarryerr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(ref.Service, ref.Key, value); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret. Reference it in config as %s\n", ref)
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	ref, err := secrets.ParseName(args[0])
	if err != nil {
		return err
	}
	value, err := secretStoreFactory().Get(ref.Service, ref.Key)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	ref, err := secrets.ParseName(args[0])
	if err != nil {
		return err
	}
	if err := secretStoreFactory().Delete(ref.Service, ref.Key); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", ref)
	return nil
}
