package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/adapters/access"
	postgresStorage "github.com/Badsnus/mediashare-bot/internal/adapters/database/postgres"
	"github.com/Badsnus/mediashare-bot/internal/adapters/database/redis"
	mongoJournal "github.com/Badsnus/mediashare-bot/internal/adapters/database/mongo"
	"github.com/Badsnus/mediashare-bot/internal/adapters/payment"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/internal/domain/utils/location"
	"github.com/Badsnus/mediashare-bot/pkg/logger"
	"github.com/Badsnus/mediashare-bot/pkg/plex"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Journal keeps the lifecycle history of entitlements
type Journal interface {
	Record(ctx context.Context, entry entity.JournalEntry) error
	History(ctx context.Context, userID int64, limit int64) ([]entity.JournalEntry, error)
}

type Config struct {
	Database   *gorm.DB
	Redis      *redis.Client
	Journal    Journal
	SMTPDialer *gomail.Dialer
	Catalog    *plans.Catalog
	Payments   *payment.CachedGateway
	Plex       *plex.Client
	Access     *access.Grant
	Location   *time.Location

	closers []func(context.Context) error
}

func setDefaults() {
	viper.SetDefault("settings.logging.locale", "en")
	viper.SetDefault("subscription.capacity", 100)
	viper.SetDefault("subscription.warn-days", []int{5, 3, 1})
	viper.SetDefault("subscription.grant-days", 30)
	viper.SetDefault("subscription.reconcile-schedule", "@every 12h")
	viper.SetDefault("subscription.plans-file", "plans.yml")
	viper.SetDefault("subscription.hd-section-marker", "4K")
	viper.SetDefault("stats.schedule", "@every 12h")
	viper.SetDefault("service.database.port", 5432)
	viper.SetDefault("service.redis.port", "6379")
	viper.SetDefault("service.mongo.database", "mediashare")
}

func initConfig(path string) {
	// .env is optional, real environment variables take precedence
	_ = godotenv.Load()

	setDefaults()
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := os.Setenv("BOT_TOKEN", viper.GetString("bot.token")); err != nil {
		panic(err)
	}
}

// Get reads the configuration file at path (config.yaml in the working directory if empty)
// and connects to every backing service.
func Get(path string) *Config {
	initConfig(path)

	cfg := &Config{}

	var err error
	cfg.Location, err = location.Load(viper.GetString("settings.timezone"))
	if err != nil {
		panic(err)
	}

	err = logger.Init(logger.Config{
		Debug:        viper.GetBool("settings.debug"),
		JSON:         viper.GetBool("settings.logging.json"),
		TimeLocation: cfg.Location,
		LogToFile:    viper.GetBool("settings.logging.log-to-file"),
		LogsDir:      viper.GetString("settings.logging.logs-dir"),
	})
	if err != nil {
		panic(err)
	}

	cfg.Catalog, err = plans.Load(viper.GetString("subscription.plans-file"))
	if err != nil {
		logger.Log.Panicf("Failed to load plans: %v", err)
	}
	logger.Log.Infof("Loaded %d plans", len(cfg.Catalog.All()))

	cfg.Database = openDatabase()

	cfg.Redis, err = redis.New(redis.Options{
		Host:     viper.GetString("service.redis.host"),
		Port:     viper.GetString("service.redis.port"),
		Password: viper.GetString("service.redis.password"),
	})
	if err != nil {
		logger.Log.Panicf("Failed to connect to redis: %v", err)
	}
	logger.Log.Info("Successfully connected to redis")

	cfg.Journal = mongoJournal.NopJournal{}
	if url := viper.GetString("service.mongo.url"); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		journal, disconnect, errConnect := mongoJournal.Connect(ctx, url, viper.GetString("service.mongo.database"))
		cancel()
		if errConnect != nil {
			logger.Log.Panicf("Failed to connect to mongo: %v", errConnect)
		}
		cfg.Journal = journal
		cfg.closers = append(cfg.closers, disconnect)
		logger.Log.Info("Successfully connected to mongo, lifecycle journal enabled")
	}

	if viper.GetBool("service.smtp.enabled") {
		cfg.SMTPDialer = gomail.NewDialer(
			viper.GetString("service.smtp.host"),
			viper.GetInt("service.smtp.port"),
			viper.GetString("service.smtp.username"),
			viper.GetString("service.smtp.password"),
		)
	}

	paymentLogger, err := logger.Named("payment")
	if err != nil {
		panic(err)
	}
	cfg.Payments = payment.NewCachedGateway(
		payment.NewGateway(viper.GetString("service.stripe.api-key"), paymentLogger),
		cfg.Redis.Invoices,
	)

	cfg.Plex = plex.New(plex.Config{
		Token:     viper.GetString("service.plex.token"),
		ServerURL: viper.GetString("service.plex.url"),
		MachineID: viper.GetString("service.plex.server-id"),
	})
	accessLogger, err := logger.Named("access")
	if err != nil {
		panic(err)
	}
	cfg.Access = access.NewGrant(cfg.Plex, viper.GetString("subscription.hd-section-marker"), accessLogger)

	return cfg
}

func openDatabase() *gorm.DB {
	gormConfig := &gorm.Config{}
	if viper.GetBool("settings.debug") {
		gormConfig.Logger = gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold: time.Second,
				LogLevel:      gormLogger.Info,
				Colorful:      true,
			},
		)
	}

	dsn := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%d sslmode=%s TimeZone=UTC",
		viper.GetString("service.database.user"),
		viper.GetString("service.database.password"),
		viper.GetString("service.database.name"),
		viper.GetString("service.database.host"),
		viper.GetInt("service.database.port"),
		sslMode(viper.GetString("service.database.sslmode")),
	)

	database, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		logger.Log.Panicf("Failed to connect to the database: %v", err)
	}
	logger.Log.Info("Successfully connected to the database")

	if err = database.AutoMigrate(postgresStorage.Migrations...); err != nil {
		logger.Log.Panicf("Failed to migrate database: %v", err)
	}
	return database
}

func sslMode(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

// Close releases the connections opened by Get
func (c *Config) Close(ctx context.Context) {
	for _, closer := range c.closers {
		if err := closer(ctx); err != nil {
			logger.Log.Warnf("failed to close connection: %v", err)
		}
	}
	if sqlDB, err := c.Database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
