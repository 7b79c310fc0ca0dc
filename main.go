// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"publicresolvers/config"
	"publicresolvers/logger"
)

// appversion is overridden at build time with -ldflags "-X main.appversion=...".
var appversion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "publicresolvers",
	Short: "Build public DNS resolver lists from the DNS directory API",
	Long: `publicresolvers downloads the online resolvers published by the DNS directory API
and writes plain-text lists, JSON documents and a CSV export grouped by
country, continent and feature.

Configuration is read from a JSON file, then DNS_* environment variables,
then command-line flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "publicresolvers %s\n", appversion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to "+config.FileName+" (or a directory containing it)")
	rootCmd.AddCommand(generateCmd, probeCmd, serveCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the file and environment layers. Command flags are
// applied by the caller so that they take precedence.
func loadConfig() (*config.Config, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Log, os.Stderr).With("version", appversion)
}
