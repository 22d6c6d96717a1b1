// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management command.
//
// Examples:
//   threadline config show                         Print the effective settings
//   threadline config init                         Write a default config file
//   threadline config get api.base_url             Print one setting
//   threadline config set api.base_url https://... Change one setting
//   threadline config keys                         List every setting

package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/threadline/internal/config"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newConfigShowCommand(g),
		newConfigPathCommand(g),
		newConfigInitCommand(g),
		newConfigGetCommand(g),
		newConfigSetCommand(g),
		newConfigKeysCommand(g),
	)
	return cmd
}

// configPath returns the file the global flags select.
func configPath(g *globalOptions) (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPath()
}

func newConfigShowCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (token redacted)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			if g.jsonOut {
				safe := cfg.Clone()
				if safe.Auth.Token != "" {
					safe.Auth.Token = "[REDACTED]"
				}
				return writeJSON(cmd, safe)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigPathCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return writeJSON(cmd, map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(g)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewCommandError("config", "init", path+" already exists (use --force to overwrite)", nil)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(config.Default(), path); err != nil {
				return NewCommandError("config", "init", "could not write "+path, err)
			}
			if g.jsonOut {
				return writeJSON(cmd, map[string]string{"path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Wrote"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return NewUsageError("key", args[0], err.Error())
			}
			if args[0] == "auth.token" && v != "" {
				v = "[REDACTED]"
			}
			if g.jsonOut {
				return writeJSON(cmd, map[string]any{"key": args[0], "value": v})
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(g)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewUsageError("key", args[0], err.Error())
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return NewCommandError("config", "set", "could not write "+path, err)
			}
			if g.jsonOut {
				return writeJSON(cmd, map[string]any{"key": args[0], "path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Set"), args[0])
			return nil
		},
	}
}

func newConfigKeysCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every setting",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := config.Keys()
			sort.Strings(keys)
			if g.jsonOut {
				return writeJSON(cmd, keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
