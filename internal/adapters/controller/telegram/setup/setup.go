package setup

import (
	"github.com/Badsnus/mediashare-bot/cmd/bot"
	"github.com/Badsnus/mediashare-bot/internal/adapters/controller/telegram/handlers/admin"
	"github.com/Badsnus/mediashare-bot/internal/adapters/controller/telegram/handlers/middlewares"
	"github.com/Badsnus/mediashare-bot/internal/adapters/controller/telegram/handlers/subscription"
	"github.com/spf13/viper"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"
)

func Setup(b *bot.Bot) {
	// Pre-setup and global middlewares
	middle := middlewares.New(b)
	subscriptionHandler := subscription.New(b)
	adminHandler := admin.New(b)

	if viper.GetBool("settings.debug") {
		b.Use(middleware.Logger())
	}
	b.Use(middle.Private)
	b.Use(b.Layout.Middleware("en"))
	b.Use(middleware.AutoRespond())
	b.Handle(tele.OnText, b.Input.Handler())
	b.Use(middle.ResetInputOnBack)

	// Setup handlers
	//User:
	subscriptionHandler.SubscriptionSetup(b.Group())

	//Admin:
	admins := viper.GetIntSlice("bot.admin-ids")
	adminsInt64 := make([]int64, len(admins))
	for i, v := range admins {
		adminsInt64[i] = int64(v)
	}
	adminGroup := b.Group()
	adminGroup.Use(middleware.Whitelist(adminsInt64...))
	adminHandler.AdminSetup(adminGroup)
}
