package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/site"
	"github.com/rendis/patternlab/internal/streaming"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		listen   string
		tick     string
		maxViews int
		idle     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the website and live view API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listen
			}
			if cmd.Flags().Changed("tick") {
				a.cfg.Tick = tick
			}
			if cmd.Flags().Changed("max-views") {
				a.cfg.MaxViews = maxViews
			}
			if cmd.Flags().Changed("view-idle-timeout") {
				a.cfg.ViewIdleTimeout = idle
			}
			a.cfg.resolveBaseURL()
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :4200)")
	cmd.Flags().StringVar(&tick, "tick", "", "auto-advance cadence: a duration, @every spec or cron expression")
	cmd.Flags().IntVar(&maxViews, "max-views", 0, "maximum concurrently mounted views")
	cmd.Flags().StringVar(&idle, "view-idle-timeout", "", "close views nobody streams or commands for this long, 0 never (default 2m)")
	return cmd
}

// server is everything serve wires together.
type server struct {
	app      *app
	cadence  cron.Schedule
	registry *engine.Registry
	hub      streaming.EventHub
	swapper  *handlerSwapper
	watcher  *catalog.Watcher

	mu   sync.Mutex // guards site and app.cfg/app.logger after startup
	site *site.Server
}

func (a *app) newServer() (*server, error) {
	cadence, err := scheduler.ParseCadence(a.cfg.Tick)
	if err != nil {
		return nil, err
	}
	idle, err := a.cfg.idleTimeout()
	if err != nil {
		return nil, err
	}
	cat, err := a.loadCatalog()
	if err != nil {
		return nil, err
	}

	s := &server{
		app:      a,
		cadence:  cadence,
		registry: engine.NewRegistry(a.cfg.MaxViews, a.logger, engine.WithIdleTimeout(idle)),
		hub:      streaming.NewMemoryHub(),
	}
	s.site, err = s.buildSite(cat, a.logger)
	if err != nil {
		return nil, err
	}
	s.swapper = newHandlerSwapper(s.site.Handler())

	if a.cfg.TopicsDir != "" {
		s.watcher, err = catalog.NewWatcher(a.cfg.TopicsDir, s.setCatalog,
			catalog.WithWatchLogger(a.logger),
			catalog.WithLoadOptions(catalog.WithLogger(a.logger)),
			catalog.WithOnError(func(err error) {
				a.logger.Error("topics reload failed; keeping previous catalog", slog.String("error", err.Error()))
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	a.logger.Info("patternlab ready",
		slog.Int("topics", cat.Len()),
		slog.String("cadence", scheduler.Describe(cadence)),
		slog.Int("max_views", a.cfg.MaxViews),
		slog.Duration("view_idle_timeout", idle),
	)
	return s, nil
}

func (s *server) buildSite(cat *catalog.Catalog, logger *slog.Logger) (*site.Server, error) {
	return site.NewServer(site.Deps{
		Catalog:  cat,
		Registry: s.registry,
		Hub:      s.hub,
		Cadence:  s.cadence,
		Logger:   logger,
	})
}

func (s *server) setCatalog(c *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.site.SetCatalog(c)
	s.app.logger.Info("topics reloaded", slog.Int("topics", c.Len()))
}

func (a *app) serve(ctx context.Context) error {
	s, err := a.newServer()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}
	httpSrv := &http.Server{
		Handler:           s.swapper,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := writePID(); err != nil {
		a.logger.Warn("could not write pid file", slog.String("error", err.Error()))
	}
	defer os.Remove(pidPath())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", slog.String("addr", ln.Addr().String()), slog.String("url", a.cfg.BaseURL))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.watcher != nil {
		g.Go(func() error { return s.watcher.Run(ctx) })
	}
	g.Go(func() error {
		s.handleSignals(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		s.registry.CloseAll()
		a.logger.Info("server stopped")
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleSignals reloads configuration and topics on SIGHUP.
func (s *server) handleSignals(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			s.reload()
		}
	}
}

// reload re-reads configuration. Logging changes rebuild the site handler;
// topics are reloaded from disk; everything else needs a restart.
func (s *server) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.app
	next, err := loadConfig(a.envFile)
	if err != nil {
		a.logger.Error("reload config", slog.String("error", err.Error()))
		return
	}
	// Values given on the command line keep winning.
	next.ListenAddr, next.BaseURL, next.Tick, next.MaxViews = a.cfg.ListenAddr, a.cfg.BaseURL, a.cfg.Tick, a.cfg.MaxViews
	next.ViewIdleTimeout = a.cfg.ViewIdleTimeout

	d := diffConfigs(a.cfg, next)
	if len(d.RestartNeeded) > 0 {
		a.logger.Warn("config changes need a restart", slog.Any("fields", d.RestartNeeded))
	}
	if d.TopicsChanged {
		a.logger.Warn("topics_dir changes need a restart")
		next.TopicsDir = a.cfg.TopicsDir
	}

	if d.LogChanged {
		logger, err := newLogger(next)
		if err != nil {
			a.logger.Error("reload logger", slog.String("error", err.Error()))
			return
		}
		rebuilt, err := s.buildSite(s.site.Catalog(), logger)
		if err != nil {
			a.logger.Error("rebuild site", slog.String("error", err.Error()))
			return
		}
		a.logger, s.site = logger, rebuilt
		slog.SetDefault(logger)
		s.swapper.Swap(rebuilt.Handler())
		logger.Info("logging reconfigured", slog.String("level", next.LogLevel), slog.String("format", next.LogFormat))
	}
	a.cfg = next

	if a.cfg.TopicsDir != "" {
		c, err := a.loadCatalog()
		if err != nil {
			a.logger.Error("reload topics", slog.String("error", err.Error()))
			return
		}
		s.site.SetCatalog(c)
		a.logger.Info("topics reloaded", slog.Int("topics", c.Len()))
	}
}

func writePID() error {
	if err := os.MkdirAll(patternlabDir(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
