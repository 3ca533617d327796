package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/retrolearn/internal/config"
	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/service"
	"github.com/roach88/retrolearn/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	Database string

	// Now and IDs override the clock and learning id generator (for testing).
	Now func() time.Time
	IDs ids.Generator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the retrolearn CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrolearn",
		Short: "retrolearn - workflows that learn from retrospectives",
		Long: `retrolearn stores learnings captured in retrospectives, ranks them
against the work being planned, and adjusts planned workflows with them
inside strict safety bounds. Outcomes reported after each unit of work
feed back into each learning's confidence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewLearningCommand(opts))
	cmd.AddCommand(NewScoreCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewMaintainCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// session is one opened store with the service wired over it.
type session struct {
	cfg      *config.Config
	store    *store.Store
	svc      *service.Service
	logger   *slog.Logger
	registry *prometheus.Registry
}

func (s *session) Close() error {
	return s.store.Close()
}

// loadConfig reads --config and applies --db and --verbose on top.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

// openSession loads config, opens the store and wires the service. Logs
// go to f's diagnostic writer.
func openSession(opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	logger := observability.NewLogger(cfg.Observability, f.GetErrWriter())
	registry := prometheus.NewRegistry()
	metrics := observability.InitMetrics(registry)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger.Debug("opening database", "path", cfg.Database.Path)
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to create database directory", err)
	}
	st, err := store.Open(cfg.Database.Path, store.WithClock(now))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}

	svcOpts := []service.Option{
		service.WithClock(now),
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	}
	if opts.IDs != nil {
		svcOpts = append(svcOpts, service.WithIDGenerator(opts.IDs))
	}

	return &session{
		cfg:      cfg,
		store:    st,
		svc:      service.New(st, cfg, svcOpts...),
		logger:   logger,
		registry: registry,
	}, nil
}

// closeSession closes s, logging instead of failing the command.
func closeSession(s *session) {
	if err := s.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}
