package main

import (
	"github.com/spf13/cobra"

	"publicresolvers/api"
	"publicresolvers/config"
)

var serveFlags struct {
	addr   string
	output string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated lists, documents and a statistics dashboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default "+config.DefaultServeAddress+")")
	f.StringVar(&serveFlags.output, "output", "", "directory holding resolvers/ and data/")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.ServeAddress = serveFlags.addr
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir = serveFlags.output
	}
	log := newLogger(cfg).With("component", "api")
	dir := displayDir(cfg.OutputDir)
	if err := api.Serve(cmd.Context(), cfg.ServeAddress, dir, log); err != nil {
		log.Error("server failed", "error", err)
		return err
	}
	return nil
}
