package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/config"
	"github.com/blakeyoder/alfred/internal/db"
	"github.com/blakeyoder/alfred/internal/notify"
	discordsink "github.com/blakeyoder/alfred/internal/notify/discord"
	slacksink "github.com/blakeyoder/alfred/internal/notify/slack"
	"github.com/blakeyoder/alfred/internal/provider"
	"github.com/blakeyoder/alfred/internal/reconcile"
	"github.com/blakeyoder/alfred/internal/scheduler"
	"github.com/blakeyoder/alfred/internal/webhook"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the call engine",
		Long:  "Starts the webhook receiver, the reconciliation poller, and the notification dispatcher. Runs until SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alfred.yaml", "path to Alfred config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	store := callstore.New(gormDB)
	client := provider.NewHTTPClient(cfg.Provider)

	sink, err := buildSink(cfg.Notify)
	if err != nil {
		return err
	}

	poller, err := reconcile.NewPoller(reconcile.PollerOpts{
		Store:      store,
		Client:     client,
		StaleAfter: cfg.Loops.StaleAfter(),
		Timeout:    cfg.Provider.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sched := scheduler.New()
	if err := sched.Add("reconcile", cfg.Loops.ReconcileInterval(), func() error {
		return poller.RunOnce(ctx)
	}); err != nil {
		return err
	}

	if sink != nil {
		dispatcher, err := notify.NewDispatcher(notify.DispatcherOpts{
			Store:   store,
			Sink:    sink,
			Routing: cfg.Notify,
		})
		if err != nil {
			return err
		}
		if err := sched.Add("notify", cfg.Loops.DispatchInterval(), func() error {
			return dispatcher.RunOnce(ctx)
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "No notify platform configured; completion notifications disabled\n")
	}

	sched.Start()
	defer sched.Stop()

	fmt.Fprintf(out, "Call engine running (reconcile every %s, dispatch every %s)\n",
		cfg.Loops.ReconcileInterval(), cfg.Loops.DispatchInterval())

	return webhook.Start(ctx, webhook.StartOpts{
		Store:  store,
		Secret: cfg.Webhook.Secret,
		Port:   cfg.Webhook.Port,
		Out:    out,
	})
}

// buildSink constructs the configured notification sink, or nil when no
// platform is configured.
func buildSink(cfg config.NotifyConfig) (notify.Sink, error) {
	switch cfg.Platform {
	case "slack":
		return slacksink.New(cfg.SlackToken), nil
	case "discord":
		return discordsink.New(cfg.DiscordToken)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported notify platform %q", cfg.Platform)
	}
}
