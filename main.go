package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"remotefs/internal/config"
	"remotefs/internal/logger"
)

type rootOptions struct {
	configPath string
	debugLog   string
	cfg        *config.Config
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "remotefs",
		Short:         "Browse and operate on remote filesystems through ssh and sftp clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to configuration file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&opts.debugLog, "debug", "", "path to debug log file (e.g. debug.log)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return opts.prepare()
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		logger.Log("main", "exited cleanly")
		logger.Close()
	}

	rootCmd.AddCommand(newBrowseCmd(opts))
	rootCmd.AddCommand(newExecCmd(opts))
	rootCmd.AddCommand(newSFTPCmd(opts))
	rootCmd.AddCommand(newCatalogueCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Close()
		os.Exit(1)
	}
}

// prepare opens the debug log and loads the configuration.
func (o *rootOptions) prepare() error {
	if err := logger.Init(o.debugLog); err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	logger.Log("main", "config loaded, %d servers", len(cfg.Servers))
	return nil
}

// server looks up a configured server by name.
func (o *rootOptions) server(name string) (config.ServerConfig, error) {
	srv, ok := o.cfg.Server(name)
	if !ok {
		return config.ServerConfig{}, fmt.Errorf("unknown server %q", name)
	}
	return srv, nil
}
