// Command hl7-ls is the HL7 v2 language server. It speaks LSP 3.17 over
// stdio; logs go to stderr by default or to a file via the log-to-file
// subcommand.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hl7tools/hl7ls/internal/logging"
	"github.com/hl7tools/hl7ls/lsp"
)

var version = "dev"

// Exit codes: 0 normal shutdown, 1 transport error, 2 CLI parse error.
const (
	exitOK        = 0
	exitTransport = 1
	exitUsage     = 2
)

// transportError marks a failure of the running server, as opposed to a
// CLI parse error, so main can pick the right exit code.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

// options collects the CLI flags shared by all subcommands.
type options struct {
	colour      string
	verbosity   int
	vscode      bool
	disableStd  bool
	showVersion bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &options{}

	root := &cobra.Command{
		Use:           "hl7-ls",
		Short:         "Language server for HL7 v2 messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts, "")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.colour, "colour", "auto", "colourise log output: auto, always, or never")
	pf.CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVar(&opts.vscode, "vscode", false, "enable VS Code specific behaviour")
	pf.BoolVar(&opts.disableStd, "disable-std-table-validations", false,
		"do not validate values against standard HL7 tables (workspace tables stay validated)")
	pf.BoolVarP(&opts.showVersion, "version", "V", false, "print version and exit")

	logToStderr := &cobra.Command{
		Use:   "log-to-stderr",
		Short: "Run the server logging to stderr (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts, "")
		},
	}
	logToFile := &cobra.Command{
		Use:   "log-to-file <path>",
		Short: "Run the server logging to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts, args[0])
		},
	}
	root.AddCommand(logToStderr, logToFile)

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hl7-ls: %v\n", err)
		var te transportError
		if errors.As(err, &te) {
			return exitTransport
		}
		return exitUsage
	}
	return exitOK
}

// serve runs the language server until the client disconnects or a
// signal arrives.
func serve(cmd *cobra.Command, opts *options, logFile string) error {
	if opts.showVersion {
		fmt.Fprintf(cmd.OutOrStdout(), "hl7-ls %s\n", version)
		return nil
	}

	logger, cleanup, err := setupLogger(opts, logFile)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting hl7-ls",
		slog.String("version", version),
		slog.Bool("vscode", opts.vscode),
	)

	lsp.Version = version
	server := lsp.NewServer(logger, lsp.Config{
		DisableStdTableValidations: opts.disableStd,
		VSCode:                     opts.vscode,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- server.RunStdio() }()

	logger.Info("running on stdio")

	select {
	case err := <-errCh:
		if err != nil && !isCleanShutdown(err) {
			return transportError{fmt.Errorf("run server: %w", err)}
		}
		logger.Info("server shutdown complete")
		return nil

	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		server.Shutdown()
		if err := server.Close(); err != nil {
			logger.Warn("error closing connection", slog.String("error", err.Error()))
		}
		// Close stdin to unblock the transport read when no client is
		// attached.
		_ = os.Stdin.Close()

		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			logger.Warn("shutdown timed out, forcing exit")
		}
		logger.Info("server shutdown complete")
		return nil
	}
}

// setupLogger builds the slog logger per the CLI options: a colored
// console handler on stderr, or JSON when logging to a file.
func setupLogger(opts *options, logFile string) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	switch {
	case opts.verbosity == 1:
		level = slog.LevelInfo
	case opts.verbosity >= 2:
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(f, handlerOpts)), func() { _ = f.Close() }, nil
	}

	mode, err := logging.ParseColourMode(opts.colour)
	if err != nil {
		return nil, nil, err
	}
	colored := mode.Enabled(os.Stderr.Fd())
	if opts.vscode {
		// The VS Code output pane renders ANSI escapes literally.
		colored = false
	}
	if colored {
		color.NoColor = false
	}

	return slog.New(logging.NewConsoleHandler(os.Stderr, colored, handlerOpts)), func() {}, nil
}

// isCleanShutdown reports whether an error is a normal client
// disconnect. LSP clients commonly close stdio on exit.
func isCleanShutdown(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "EPIPE")
}
