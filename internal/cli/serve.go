package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/retrolearn/internal/mcpserver"
	"github.com/roach88/retrolearn/internal/observability"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr   string
	NoMaintenance bool

	// Stdin and Stdout override the MCP transport streams (for testing).
	Stdin  io.Reader
	Stdout io.Writer
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server (stdio transport) exposing get_relevant_learnings,
adjust_workflow, record_outcome, run_maintenance and get_adjustment_history.

The periodic maintenance scheduler runs alongside the server unless
--no-maintenance is set. Logs go to stderr; stdout carries the protocol.

MCP client config:

  {
    "mcpServers": {
      "retrolearn": {
        "command": "retrolearn",
        "args": ["serve", "--db", "/path/to/learnings.db"]
      }
    }
  }`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&opts.NoMaintenance, "no-maintenance", false, "do not run the maintenance scheduler")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// stdout is the protocol stream; everything human goes to stderr.
	f := newFormatter(opts.RootOptions, cmd.ErrOrStderr(), cmd.ErrOrStderr())

	sess, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer closeSession(sess)
	logger := sess.logger

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, out := opts.Stdin, opts.Stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = cmd.OutOrStdout()
	}

	g, ctx := errgroup.WithContext(ctx)

	if !opts.NoMaintenance {
		g.Go(func() error {
			return sess.svc.Scheduler().Start(ctx)
		})
	}

	metricsAddr := opts.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = sess.cfg.Observability.MetricsAddr
	}
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           observability.Handler(sess.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	mcp := mcpserver.New(sess.svc, mcpserver.Version)
	g.Go(func() error {
		logger.Info("mcp server started", "transport", "stdio", "db", sess.cfg.Database.Path)
		err := mcpserver.Serve(ctx, mcp, in, out)
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			err = nil
		}
		logger.Info("mcp server stopped")
		// The client closing stdin ends the session; stop the other workers.
		stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "server error", err)
	}
	return nil
}
