package redis

import (
	"context"
	"fmt"

	"github.com/Badsnus/mediashare-bot/internal/adapters/database/redis/callbacks"
	"github.com/Badsnus/mediashare-bot/internal/adapters/database/redis/invoices"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	Invoices  *invoices.Storage
	Callbacks *callbacks.Storage
}

type Options struct {
	Host     string
	Port     string
	Password string
}

func New(opts Options) (*Client, error) {
	invoiceStorage := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       0,
	})
	if err := invoiceStorage.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping invoice storage: %w", err)
	}

	callbackStorage := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       1,
	})
	if err := callbackStorage.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping callback storage: %w", err)
	}

	return &Client{
		Invoices:  invoices.NewStorage(invoiceStorage),
		Callbacks: callbacks.NewStorage(callbackStorage),
	}, nil
}
