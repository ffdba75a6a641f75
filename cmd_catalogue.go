package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"remotefs/internal/catalogue"
	"remotefs/internal/config"
	"remotefs/internal/logger"
)

func newCatalogueCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalogue",
		Aliases: []string{"cat"},
		Short:   "Build and inspect saved directory catalogues",
	}
	cmd.AddCommand(newCatalogueBuildCmd(root))
	cmd.AddCommand(newCatalogueShowCmd(root))
	cmd.AddCommand(newCatalogueRemoveCmd(root))
	return cmd
}

// servers resolves names, or every configured server when names is empty.
func (o *rootOptions) servers(names []string) ([]config.ServerConfig, error) {
	if len(names) == 0 {
		return o.cfg.Servers, nil
	}
	out := make([]config.ServerConfig, 0, len(names))
	for _, n := range names {
		srv, err := o.server(n)
		if err != nil {
			return nil, err
		}
		out = append(out, srv)
	}
	return out, nil
}

func newCatalogueBuildCmd(root *rootOptions) *cobra.Command {
	var every string
	cmd := &cobra.Command{
		Use:   "build [SERVER...]",
		Short: "List servers recursively and save their catalogues",
		Long: "Build lists the root folder of each server recursively and saves the catalogue.\n" +
			"With --every the build repeats on a cron schedule (e.g. \"@every 6h\" or \"0 3 * * *\") until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := askPasswords(root.cfg, args...); err != nil {
				return err
			}
			servers, err := root.servers(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e := newEngine(root.cfg)
			defer e.Close()

			if every == "" {
				return buildAll(ctx, e, servers)
			}

			c := cron.New()
			if _, err := c.AddFunc(every, func() {
				if err := buildAll(ctx, e, servers); err != nil {
					logger.Error("catalogue", "scheduled build: %v", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", every, err)
			}
			logger.Log("catalogue", "building %d servers on schedule %q", len(servers), every)
			fmt.Fprintf(os.Stderr, "Building catalogues on schedule %q, press Ctrl+C to stop\n", every)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&every, "every", "", "rebuild on this cron schedule instead of once")
	return cmd
}

// buildAll builds the catalogue of every server in turn. Failures of one
// server do not stop the others.
func buildAll(ctx context.Context, e *engine, servers []config.ServerConfig) error {
	var errs []error
	for _, srv := range servers {
		if ctx.Err() != nil {
			break
		}
		b := catalogue.Builder{Lister: e.client, Store: storeFor(srv)}
		cat, rep, err := b.Build(ctx, srv)
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(os.Stderr, "%s: %v\n", srv.Name, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: %d folders, %d entries, %d lines skipped\n",
			srv.Name, rep.Sections, cat.Count(), len(rep.Skipped))
	}
	return errors.Join(errs...)
}

func newCatalogueShowCmd(root *rootOptions) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "show SERVER [PATH]",
		Short: "Print a saved catalogue as a tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := root.server(args[0])
			if err != nil {
				return err
			}
			cat, err := storeFor(srv).Load(srv.Identity())
			if err != nil {
				return err
			}
			base := cat.Root
			if len(args) == 2 {
				base = args[1]
			}
			entry, ok := cat.Lookup(base)
			if !ok {
				return fmt.Errorf("%s is not in the catalogue of %s", base, srv.Name)
			}
			printTree(cmd.OutOrStdout(), cat, entry, base, 0, depth)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "levels of folders to print (0 for all)")
	return cmd
}

func printTree(w io.Writer, cat *catalogue.Catalogue, e *catalogue.Entry, name string, level, depth int) {
	indent := strings.Repeat("  ", level)
	suffix := ""
	switch e.Stat.Kind {
	case catalogue.KindFile:
		suffix = "  " + catalogue.FormatSize(e.Stat.Size)
	case catalogue.KindSymlink:
		suffix = " -> " + e.Stat.Target
	}
	fmt.Fprintf(w, "%s%s %-8s %s%s\n", indent, catalogue.ModeString(e.Stat.Mode), cat.UserName(e.Stat), name, suffix)
	if !e.IsDir() || (depth > 0 && level >= depth) {
		return
	}
	for _, child := range e.Sorted() {
		printTree(w, cat, child, child.Name, level+1, depth)
	}
}

func newCatalogueRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SERVER...",
		Short: "Delete saved catalogues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := root.servers(args)
			if err != nil {
				return err
			}
			for _, srv := range servers {
				if err := storeFor(srv).Remove(srv.Identity()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
