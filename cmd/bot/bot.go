package bot

import (
	"sync"

	"github.com/Badsnus/mediashare-bot/internal/adapters/config"
	"github.com/Badsnus/mediashare-bot/internal/adapters/database/postgres"
	"github.com/Badsnus/mediashare-bot/internal/adapters/database/redis"
	"github.com/Badsnus/mediashare-bot/internal/adapters/metrics"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/pkg/logger"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/Badsnus/mediashare-bot/pkg/smtp"
	"github.com/nlypage/intele"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/layout"
	"gorm.io/gorm"
)

type Bot struct {
	*tele.Bot
	Layout  *layout.Layout
	DB      *gorm.DB
	Redis   *redis.Client
	Journal config.Journal
	Catalog *plans.Catalog
	Logger  *types.Logger
	Input   *intele.InputManager
	Metrics *metrics.Reconciler

	Notify        *service.NotifyService
	Subscriptions *service.SubscriptionService
	Reconciler    *service.ReconcilerService
	Stats         *service.StatsService
}

func New(cfg *config.Config) (*Bot, error) {
	lt, err := layout.New("telegram.yml")
	if err != nil {
		return nil, err
	}

	settings := lt.Settings()
	botLogger, err := logger.Named("bot")
	if err != nil {
		return nil, err
	}
	settings.OnError = func(err error, ctx tele.Context) {
		if ctx.Callback() == nil {
			botLogger.Errorf("(user: %d) | Error: %v", ctx.Sender().ID, err)
		} else {
			botLogger.Errorf("(user: %d) | unique: %s | Error: %v", ctx.Sender().ID, ctx.Callback().Unique, err)
		}
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}

	if cmds := lt.Commands(); cmds != nil {
		if err = b.SetCommands(cmds); err != nil {
			return nil, err
		}
	}

	bot := &Bot{
		Bot:     b,
		Layout:  lt,
		DB:      cfg.Database,
		Redis:   cfg.Redis,
		Journal: cfg.Journal,
		Catalog: cfg.Catalog,
		Logger:  botLogger,
		Input:   intele.NewInputManager(intele.InputOptions{}),
		Metrics: metrics.NewReconciler(),
	}

	if err = bot.initServices(cfg); err != nil {
		return nil, err
	}
	return bot, nil
}

func (b *Bot) initServices(cfg *config.Config) error {
	notifyLogger, err := logger.Named("notify")
	if err != nil {
		return err
	}
	reconcilerLogger, err := logger.Named("reconciler")
	if err != nil {
		return err
	}
	subscriptionLogger, err := logger.Named("subscription")
	if err != nil {
		return err
	}
	statsLogger, err := logger.Named("stats")
	if err != nil {
		return err
	}

	entitlementStorage := postgres.NewEntitlementStorage(cfg.Database)
	paymentStorage := postgres.NewPaymentStorage(cfg.Database)
	locale := viper.GetString("settings.logging.locale")

	b.Notify = service.NewNotifyService(b.Bot, b.Layout, notifyLogger, viper.GetInt64("bot.operator-id"), locale)

	b.Subscriptions = service.NewSubscriptionService(
		entitlementStorage,
		paymentStorage,
		cfg.Payments,
		cfg.Access,
		b.Notify,
		cfg.Catalog,
		subscriptionLogger,
		service.SubscriptionOptions{
			Capacity:  viper.GetInt64("subscription.capacity"),
			GrantDays: viper.GetInt("subscription.grant-days"),
			Journal:   cfg.Journal,
		},
	)

	opts := service.ReconcilerOptions{
		WarnDays: viper.GetIntSlice("subscription.warn-days"),
		Journal:  cfg.Journal,
		Observer: b.Metrics,
	}
	if cfg.SMTPDialer != nil {
		opts.Mailer = smtp.NewClient(cfg.SMTPDialer, viper.GetString("service.smtp.email"), viper.GetString("service.smtp.domain"))
	}
	b.Reconciler = service.NewReconcilerService(entitlementStorage, cfg.Access, b.Notify, cfg.Catalog, reconcilerLogger, opts)

	b.Stats = service.NewStatsService(cfg.Plex, b.Notify, b.Notify, viper.GetInt64("stats.chat-id"), statsLogger)
	return nil
}

func (b *Bot) Start() {
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		logger.Log.Info("Bot starting")

		if viper.GetBool("settings.logging.log-to-channel") {
			logHook, err := b.Notify.LogHook(
				viper.GetInt64("settings.logging.channel-id"),
				viper.GetString("settings.logging.locale"),
				zapcore.Level(viper.GetInt("settings.logging.channel-log-level")),
			)
			if err != nil {
				logger.Log.Errorf("Failed to create notify log hook: %v", err)
			} else {
				logger.SetLogHook(logHook)
			}
		}
		b.Bot.Start()
	}()

	wg.Wait()
}
