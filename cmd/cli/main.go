package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/merlin/internal/app"
	"github.com/vk/merlin/internal/cli"
)

// main is the entrypoint for the merlin bundler.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	merlin, err := app.New(outW, inv.Config, inv.Options)
	if err != nil {
		if cli.IsConfigError(err) {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
		return fmt.Errorf("application startup failed: %w", err)
	}

	if inv.Command == cli.CommandServe {
		err = merlin.Serve(ctx)
	} else {
		_, err = merlin.Build(ctx)
	}
	if err != nil && cli.IsConfigError(err) {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	return err
}
