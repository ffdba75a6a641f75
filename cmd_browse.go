package main

import (
	"context"

	"github.com/spf13/cobra"

	"remotefs/internal/ui"
)

func newBrowseCmd(root *rootOptions) *cobra.Command {
	var (
		metricsAddr string
		tailLines   int
		downloadDir string
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive remote file browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if err := askPasswords(cfg); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if metricsAddr != "" {
				serveMetrics(ctx, metricsAddr)
			}

			e := newEngine(cfg)
			defer e.Close()
			return ui.Run(ui.Options{
				Servers:     cfg.Servers,
				Remote:      e.client,
				Async:       e.d,
				StoreFor:    storeFor,
				TailLines:   tailLines,
				OpTimeout:   cfg.Defaults.Timeout,
				DownloadDir: downloadDir,
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	cmd.Flags().IntVar(&tailLines, "tail-lines", 500, "lines shown when opening a file")
	cmd.Flags().StringVar(&downloadDir, "download-dir", ".", "default local folder for downloads")
	return cmd
}
