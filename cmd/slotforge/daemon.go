package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotforge/slotforge/internal/httpapi"
	"github.com/slotforge/slotforge/internal/slotlog"
	"github.com/slotforge/slotforge/internal/slotmgr"
)

func newDaemonCmd() *cobra.Command {
	var slotsDir string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the orchestration daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(slotsDir)
		},
	}
	cmd.Flags().StringVar(&slotsDir, "slots-dir", defaultSlotsDir(), "directory to store slot worktrees and state")
	return cmd
}

func defaultSlotsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".slots"
	}
	return filepath.Join(home, ".slotforge", "slots")
}

func runDaemon(slotsDir string) error {
	log := slotlog.For("daemon")

	mgr, err := slotmgr.New(slotmgr.Config{SlotsDir: slotsDir})
	if err != nil {
		return fmt.Errorf("create slot manager: %w", err)
	}

	if err := mgr.LoadState(); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := mgr.ReconcileAgentHosts(); err != nil {
		log.Warn().Err(err).Msg("reconcile agent hosts")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", apiPort()),
		Handler: httpapi.New(mgr),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("slots_dir", slotsDir).Msg("daemon listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
