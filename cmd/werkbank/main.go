// Command werkbank serves sandboxed filesystem and exec operations for a
// single client over a Unix domain socket, scoped to one workspace
// directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/execute"
	"github.com/p-arndt/werkbank/internal/server"
	"github.com/p-arndt/werkbank/internal/workspace"
)

func main() {
	cfgPath := flag.String("config", "", "path to werkbank.yaml")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: werkbank [-config werkbank.yaml] <socket-path> <workspace-dir>\n")
		os.Exit(1)
	}
	socketPath, workspaceDir := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	if err := run(cfg, logger, socketPath, workspaceDir); err != nil {
		logger.Error("werkbank", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, socketPath, workspaceDir string) error {
	ws, err := workspace.New(workspaceDir)
	if err != nil {
		return err
	}
	runner := execute.NewRunner(ws.Root(), cfg.MaxOutputBytes, cfg.GracePeriod())
	srv := server.New(ws, runner, cfg, logger)

	// Clean up any stale socket, and our own again on the way out.
	os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	mode, err := cfg.SocketFileMode()
	if err != nil {
		return err
	}
	if err := os.Chmod(socketPath, mode); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		cancel()
		listener.Close()
	}()

	logger.Info("listening", "socket", socketPath, "workspace", ws.Root())

	// One client for the server's lifetime.
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil // shut down before a client arrived
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()

	// Unblock the serve loop's pending read on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := srv.Serve(ctx, conn); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
