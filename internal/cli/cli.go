package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/merlin/internal/app"
	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/config"
	"github.com/vk/merlin/internal/hcl"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command names the lifecycle to run.
type Command string

const (
	CommandBuild Command = "build"
	CommandServe Command = "serve"
)

// Invocation is a fully parsed command line.
type Invocation struct {
	Command Command
	Config  *config.Model
	Options app.Options
}

type flags struct {
	configPath string
	logFormat  string
	logLevel   string
	entry      string
	outDir     string
	workers    int
	workersSet bool
	noMinify   bool
	addr       string
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly (help was shown),
// or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		f   flags
		inv *Invocation
	)

	root := &cobra.Command{
		Use:   "merlin",
		Short: "Bundle JavaScript sources into one content-addressed artifact",
		Long: `merlin bundles a JavaScript entry module and everything it imports into a
single file with a tiny module runtime, then minifies, hashes and
compresses it. 'serve' keeps rebuilding as sources change.

Configuration is read from merlin.hcl in the working directory unless
--config names another file; flags override it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to the configuration file (default ./"+config.DefaultFile+" when present).")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVarP(&f.entry, "entry", "e", "", "Entry module; overrides the configuration.")
	pf.StringVarP(&f.outDir, "out-dir", "o", "", "Output directory; overrides the configuration.")
	pf.IntVarP(&f.workers, "workers", "w", 0, "Number of concurrent transform workers; 0 means one per CPU.")
	pf.BoolVar(&f.noMinify, "no-minify", false, "Skip minification.")

	capture := func(c Command) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			f.workersSet = cmd.Flags().Changed("workers")
			cfg, err := resolveConfig(cmd.Context(), f)
			if err != nil {
				return err
			}
			if c == CommandServe && f.addr != "" {
				cfg.Dev.Address = f.addr
			}
			inv = &Invocation{
				Command: c,
				Config:  cfg,
				Options: app.Options{LogFormat: f.logFormat, LogLevel: f.logLevel},
			}
			return nil
		}
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bundle once and exit",
		Args:  cobra.NoArgs,
		RunE:  capture(CommandBuild),
	}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bundle and rebuild on every source change",
		Args:  cobra.NoArgs,
		RunE:  capture(CommandServe),
	}
	serveCmd.Flags().StringVarP(&f.addr, "addr", "a", "", "Listen address; overrides the configuration.")
	root.AddCommand(buildCmd, serveCmd)

	root.PersistentPreRunE = func(*cobra.Command, []string) error {
		f.logFormat = strings.ToLower(f.logFormat)
		if f.logFormat != "text" && f.logFormat != "json" {
			return errors.New("invalid log-format: must be 'text' or 'json'")
		}
		f.logLevel = strings.ToLower(f.logLevel)
		switch f.logLevel {
		case "debug", "info", "warn", "error":
			// valid
		default:
			return errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
		}
		return nil
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if inv == nil {
		// Help, or no subcommand given.
		slog.Debug("No command selected, exiting.")
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "command", inv.Command, "config", inv.Config)
	return inv, false, nil
}

// resolveConfig loads the configuration file, falls back to defaults when
// the implicit one is absent, and applies flag overrides.
func resolveConfig(ctx context.Context, f flags) (*config.Model, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	path := f.configPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cwd, config.DefaultFile)
	}

	var cfg *config.Model
	if _, statErr := os.Stat(path); !explicit && errors.Is(statErr, fs.ErrNotExist) {
		slog.Debug("No configuration file, using defaults.", "dir", cwd)
		cfg = config.Default(cwd)
	} else {
		cfg, err = hcl.NewLoader().Load(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	if f.entry != "" {
		cfg.Entry = absFrom(cwd, f.entry)
	}
	if f.outDir != "" {
		cfg.Output.Dir = absFrom(cwd, f.outDir)
	}
	if f.workersSet {
		cfg.Workers = f.workers
	}
	if f.noMinify {
		cfg.Transform.Minify = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absFrom(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// IsConfigError reports whether err should be treated as bad user input.
func IsConfigError(err error) bool {
	return errors.Is(err, builderr.ErrConfiguration)
}
