package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"remotefs/internal/remote"
	"remotefs/internal/shell"
)

func newExecCmd(root *rootOptions) *cobra.Command {
	return newRemoteCmd(root, shell.FlavorSSH, "exec SERVER COMMAND...",
		"Run a shell command on a server through the ssh client")
}

func newSFTPCmd(root *rootOptions) *cobra.Command {
	return newRemoteCmd(root, shell.FlavorSFTP, "sftp SERVER COMMAND...",
		"Run an sftp client command on a server")
}

func newRemoteCmd(root *rootOptions, flavor shell.Flavor, use, short string) *cobra.Command {
	var acceptHostKey bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd.Context(), root, flavor, args[0], strings.Join(args[1:], " "), acceptHostKey)
		},
	}
	cmd.Flags().BoolVar(&acceptHostKey, "accept-host-key", false, "trust and record an unknown host key")
	return cmd
}

func runRemote(ctx context.Context, root *rootOptions, flavor shell.Flavor, name, command string, acceptHostKey bool) error {
	srv, err := root.server(name)
	if err != nil {
		return err
	}
	if err := askPasswords(root.cfg, srv.Name); err != nil {
		return err
	}
	// Passwords are filled in on the config copy.
	srv, _ = root.server(name)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := newEngine(root.cfg)
	defer e.Close()

	if acceptHostKey {
		if err := e.client.Connect(ctx, srv, true); err != nil {
			return err
		}
	}
	res, err := e.client.Exec(ctx, srv, flavor, command)
	if body := res.Body(); body != "" {
		fmt.Fprintln(os.Stdout, body)
	}
	if res.ErrOut != "" {
		fmt.Fprint(os.Stderr, res.ErrOut)
	}
	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HostKeyUnknown() {
		return fmt.Errorf("host key of %s is not trusted yet, rerun with --accept-host-key", srv.Identity())
	}
	return err
}
