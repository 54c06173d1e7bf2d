package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Badsnus/mediashare-bot/cmd/bot"
	"github.com/Badsnus/mediashare-bot/internal/adapters/config"
	"github.com/Badsnus/mediashare-bot/internal/adapters/controller/telegram/scheduler"
	setupBot "github.com/Badsnus/mediashare-bot/internal/adapters/controller/telegram/setup"
	"github.com/Badsnus/mediashare-bot/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "time/tzdata"
)

// Version is set at build time with -ldflags
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "mediashare-bot",
	Short:   "Telegram bot selling access to a shared media library",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the reconciliation scheduler and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single reconciliation cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get(configPath)
		defer cfg.Close(context.Background())

		b, err := bot.New(cfg)
		if err != nil {
			return err
		}

		summary, err := b.Reconciler.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total=%d expired=%d removed=%d warned=%d unprovisioned=%d failures=%d\n",
			summary.Total, summary.Expired, summary.Removed, summary.Warned, summary.Unprovisioned, summary.Failures)
		return nil
	},
}

var reinviteCmd = &cobra.Command{
	Use:   "reinvite",
	Short: "Re-send library invites to every active subscriber",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get(configPath)
		defer cfg.Close(context.Background())

		b, err := bot.New(cfg)
		if err != nil {
			return err
		}

		summary, err := b.Subscriptions.Reinvite(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total=%d invited=%d skipped=%d failed=%d\n",
			summary.Total, summary.Invited, summary.Skipped, summary.Failed)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (default config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reinviteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg := config.Get(configPath)

	b, err := bot.New(cfg)
	if err != nil {
		return err
	}

	setupBot.Setup(b)

	schedulerLogger, err := logger.Named("scheduler")
	if err != nil {
		return err
	}
	opts := scheduler.Options{ReconcileSchedule: viper.GetString("subscription.reconcile-schedule")}
	if viper.GetBool("stats.enabled") {
		opts.StatsSchedule = viper.GetString("stats.schedule")
	}
	sched, err := scheduler.New(b.Reconciler, b.Stats, schedulerLogger, opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if addr := viper.GetString("metrics.addr"); addr != "" {
		b.Metrics.Serve(ctx, addr, b.Logger)
	}
	sched.Start()

	go func() {
		<-ctx.Done()
		logger.Log.Info("Shutting down")
		sched.Stop()
		b.Stop()
	}()

	b.Start()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	cfg.Close(closeCtx)
	return nil
}
