package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"remotefs/internal/catalogue"
	"remotefs/internal/config"
	"remotefs/internal/dispatch"
	"remotefs/internal/logger"
	"remotefs/internal/metrics"
	"remotefs/internal/remote"
	"remotefs/internal/shell"
)

// engine is the dispatcher with its worker pools, sized from the config.
type engine struct {
	d      *dispatch.Dispatcher
	client *remote.Client
}

func newEngine(cfg *config.Config) *engine {
	def := cfg.Defaults
	d := dispatch.New(dispatch.Options{
		Session:        shell.Options{ReconnectBudget: *def.ReconnectBudget},
		ListenAttempts: def.ListenAttempts,
		Timeout:        def.Timeout,
	})
	for i := 0; i < def.SSHWorkers; i++ {
		d.AddWorker(shell.FlavorSSH)
	}
	for i := 0; i < def.SFTPWorkers; i++ {
		d.AddWorker(shell.FlavorSFTP)
	}
	logger.Log("main", "started %d ssh and %d sftp workers", def.SSHWorkers, def.SFTPWorkers)
	return &engine{d: d, client: remote.NewClient(d)}
}

func (e *engine) Close() {
	e.d.Close()
}

// storeFor returns the catalogue store of srv.
func storeFor(srv config.ServerConfig) *catalogue.Store {
	return catalogue.NewStore(srv.CatPath, srv.CatMaxAge())
}

// askPasswords prompts on the terminal for every password-authenticated
// server in servers that has no password configured.
func askPasswords(cfg *config.Config, servers ...string) error {
	want := make(map[string]bool, len(servers))
	for _, s := range servers {
		want[s] = true
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Auth.Method != "password" || s.Auth.Password != "" {
			continue
		}
		if len(want) > 0 && !want[s.Name] {
			continue
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("server %s needs a password and stdin is not a terminal", s.Name)
		}
		fmt.Fprintf(os.Stderr, "Password for %s: ", s.Identity())
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		s.Auth.Password = strings.TrimRight(string(pw), "\r\n")
	}
	return nil
}

// serveMetrics exposes /metrics on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Log("main", "serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("main", "metrics server: %v", err)
		}
	}()
}
