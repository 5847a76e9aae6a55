// Command patternlab serves and plays the interactive architecture-pattern
// diagrams.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/logging"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg     Config
	logger  *slog.Logger
	envFile string

	// flag values; only applied when the flag was set.
	logLevel  string
	logFormat string
	topicsDir string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "patternlab",
		Short:         "Interactive diagrams of distributed-systems patterns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load (ignored if missing)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text, json, pretty")
	pf.StringVar(&a.topicsDir, "topics-dir", "", "load topics from this directory instead of the built-in set")

	root.AddCommand(
		serveCmd(a),
		playCmd(a),
		renderCmd(a),
		topicsCmd(a),
		mcpCmd(a),
		reloadCmd(),
		versionCmd(),
	)
	return root
}

// setup resolves configuration and the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("topics-dir") {
		cfg.TopicsDir = a.topicsDir
	}
	a.cfg = cfg

	a.logger, err = newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(cfg Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: os.Stderr,
	})
}

// loadCatalog loads the configured topics directory, or the built-in topics.
func (a *app) loadCatalog() (*catalog.Catalog, error) {
	if a.cfg.TopicsDir == "" {
		return catalog.Load(catalog.Embedded(), catalog.WithLogger(a.logger))
	}
	info, err := os.Stat(a.cfg.TopicsDir)
	if err != nil {
		return nil, fmt.Errorf("topics dir: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.New("topics dir: " + a.cfg.TopicsDir + " is not a directory")
	}
	return catalog.Load(os.DirFS(a.cfg.TopicsDir), catalog.WithLogger(a.logger))
}
