package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devricklin/slack-merge-gate/internal/api"
	"github.com/devricklin/slack-merge-gate/internal/biz"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/conf"
	"github.com/devricklin/slack-merge-gate/internal/data"
	"github.com/devricklin/slack-merge-gate/internal/infra/desktop"
	"github.com/devricklin/slack-merge-gate/internal/logging"
	"github.com/devricklin/slack-merge-gate/internal/server"
	"github.com/devricklin/slack-merge-gate/internal/service"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the merge gate daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg := conf.LoadFromEnv()
	if serveListen != "" {
		cfg.ListenAddr = serveListen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.Init(logging.Config{
		LogDir: cfg.Log.Dir,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Debug:  cfg.Debug,
	})
	defer logging.Shutdown()
	log := logging.Logger()

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.StateDBPath, data.SlackOptions{RatePerSecond: cfg.SlackRatePerSecond})
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	if cfg.InMemory() {
		log.Warn("state_in_memory", "detail", "settings and messages are lost on exit")
	} else {
		log.Info("state_db", "path", cfg.StateDBPath)
	}

	// Websocket hub hosts popups, pages and the icon
	hub := server.NewHub()
	defer hub.Close()

	var icons repo.IconSink = hub
	if cfg.DesktopNotify {
		notifier := desktop.NewIconNotifier(hub)
		defer notifier.Wait()
		icons = notifier
		log.Info("desktop_notify_enabled")
	}

	// Initialize usecase layer
	uc := biz.NewUsecases(repos.KV, repos.Slack, biz.Hosts{
		Icons:   icons,
		Popup:   hub,
		Pages:   hub,
		Scripts: hub,
	}, biz.Options{
		MaxMessages: cfg.MaxMessages,
		Countdown:   cfg.ToCountdownConfig(),
	})
	defer uc.Countdown.Cancel()

	feed := server.NewFeedManager(uc, repos.Slack, repos.Dialer, server.FeedConfig{
		ReconnectDelay:     cfg.Feed.ReconnectDelay,
		FastReconnectDelay: cfg.Feed.FastReconnectDelay,
		HealthInterval:     cfg.Feed.HealthInterval,
		MaxConnectionAge:   cfg.Feed.MaxConnectionAge,
	})

	// Initialize service layer
	dispatcher := service.NewDispatcher(uc.Storage, uc.Resolver, uc.Messages, uc.Classifier, uc.Propagator, uc.Countdown, uc.Runtime, feed)
	configSvc := service.NewConfigService(uc.Storage, uc.Propagator, uc.Runtime, feed)
	stateSvc := service.NewStateService(uc.Storage, uc.Countdown, hub, feed)

	apiServer := api.NewServer(dispatcher, configSvc, stateSvc, hub, cfg.ListenAddr)
	hub.SetActionHandler(apiServer.HandleAction)
	hub.SetPageCloseHandler(uc.Runtime.ForgetTab)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup: seed settings, register the page script, resume a pending countdown
	if err := configSvc.Seed(ctx, cfg.Seed); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	uc.Propagator.RegisterContentScript(ctx)
	if err := uc.Countdown.CheckScheduledReactivation(ctx); err != nil {
		log.Warn("countdown_resume_failed", "error", err)
	}

	feed.Start()
	defer feed.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()
	log.Info("mergegate_started", "version", version, "addr", cfg.ListenAddr)

	select {
	case <-ctx.Done():
		log.Info("shutting_down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", "error", err)
	}
	return nil
}
