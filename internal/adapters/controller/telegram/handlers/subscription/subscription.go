package subscription

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Badsnus/mediashare-bot/cmd/bot"
	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/internal/domain/utils/validator"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	qr "github.com/Badsnus/mediashare-bot/pkg/qrcode"
	"github.com/nlypage/intele"
	"github.com/nlypage/intele/collector"
	"github.com/spf13/viper"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/layout"
)

const planCallbackTTL = time.Hour

type subscriptionService interface {
	StartPurchase(ctx context.Context, userID int64, email, planName string) (*entity.Payment, error)
	AddTime(ctx context.Context, userID int64) (*entity.Payment, error)
	CompletePayment(ctx context.Context, userID int64) (service.Completion, error)
	CancelPayment(ctx context.Context, userID int64) error
	Status(ctx context.Context, userID int64) (service.Status, error)
	Migrate(ctx context.Context, userID int64) (service.Status, error)
}

type callbackStorage interface {
	Get(ctx context.Context, callbackID string) (string, error)
	Set(ctx context.Context, data string, expiration time.Duration) (string, error)
}

type Handler struct {
	subscriptionService subscriptionService
	callbacks           callbackStorage
	catalog             *plans.Catalog
	qrConfig            qr.Config

	layout *layout.Layout
	logger *types.Logger
	input  *intele.InputManager
}

func New(b *bot.Bot) *Handler {
	qrConfig := qr.Invoice
	qrConfig.LogoPath = viper.GetString("settings.qr-logo-path")

	return &Handler{
		subscriptionService: b.Subscriptions,
		callbacks:           b.Redis.Callbacks,
		catalog:             b.Catalog,
		qrConfig:            qrConfig,
		layout:              b.Layout,
		logger:              b.Logger,
		input:               b.Input,
	}
}

func (h Handler) start(c tele.Context) error {
	h.logger.Infof("(user: %d) press start button", c.Sender().ID)
	return c.Send(
		h.layout.Text(c, "main_menu_text", c.Sender()),
		h.layout.Markup(c, "menu:main"),
	)
}

func (h Handler) backToMenu(c tele.Context) error {
	h.input.Cancel(c.Sender().ID)
	return c.Edit(
		h.layout.Text(c, "main_menu_text", c.Sender()),
		h.layout.Markup(c, "menu:main"),
	)
}

func (h Handler) plansMarkup(c tele.Context) *tele.ReplyMarkup {
	markup := c.Bot().NewMarkup()
	var rows []tele.Row
	for _, plan := range h.catalog.All() {
		rows = append(rows, markup.Row(*h.layout.Button(c, "plans:plan", plan)))
	}
	rows = append(rows, markup.Row(*h.layout.Button(c, "menu:back")))
	markup.Inline(rows...)
	return markup
}

func (h Handler) plans(c tele.Context) error {
	h.logger.Infof("(user: %d) open plans", c.Sender().ID)
	text := h.layout.Text(c, "plans_text", h.catalog.All())
	if c.Callback() != nil {
		return c.Edit(text, h.plansMarkup(c))
	}
	return c.Send(text, h.plansMarkup(c))
}

func (h Handler) choosePlan(c tele.Context) error {
	plan, ok := h.catalog.ByName(c.Callback().Data)
	if !ok {
		return errorz.ErrInvalidCallbackData
	}
	h.logger.Infof("(user: %d) choose plan %s", c.Sender().ID, plan.Name)

	callbackID, err := h.callbacks.Set(context.Background(), plan.Name, planCallbackTTL)
	if err != nil {
		h.logger.Errorf("(user: %d) error while saving plan callback: %v", c.Sender().ID, err)
		return c.Edit(
			h.layout.Text(c, "technical_issues", err.Error()),
			h.layout.Markup(c, "menu:back_only"),
		)
	}

	markup := c.Bot().NewMarkup()
	markup.Inline(
		markup.Row(*h.layout.Button(c, "plan:pay_onetime", struct{ ID string }{ID: callbackID})),
		markup.Row(*h.layout.Button(c, "plan:back")),
	)
	return c.Edit(h.layout.Text(c, "plan_text", plan), markup)
}

func (h Handler) payOnetime(c tele.Context) error {
	planName, err := h.callbacks.Get(context.Background(), c.Callback().Data)
	if err != nil {
		h.logger.Warnf("(user: %d) plan callback expired: %v", c.Sender().ID, err)
		return c.Edit(h.layout.Text(c, "callback_expired"), h.plansMarkup(c))
	}
	h.logger.Infof("(user: %d) pay for plan %s", c.Sender().ID, planName)

	email, ok := h.askEmail(c)
	if !ok {
		return nil
	}

	payment, err := h.subscriptionService.StartPurchase(context.Background(), c.Sender().ID, email, planName)
	if err != nil {
		return h.sendPurchaseError(c, payment, err)
	}
	h.logger.Infof("(user: %d) invoice created (invoice_id=%s)", c.Sender().ID, payment.InvoiceID)
	return h.sendInvoice(c, payment)
}

// askEmail prompts for the contact address until a valid one is entered or the prompt is canceled
func (h Handler) askEmail(c tele.Context) (string, bool) {
	inputCollector := collector.New()
	_ = c.Edit(
		h.layout.Text(c, "email_request"),
		h.layout.Markup(c, "plan:cancel"),
	)
	inputCollector.Collect(c.Message())

	for {
		message, canceled, errGet := h.input.Get(context.Background(), c.Sender().ID, 0)
		if message != nil {
			inputCollector.Collect(message)
		}
		switch {
		case canceled:
			_ = inputCollector.Clear(c, collector.ClearOptions{IgnoreErrors: true, ExcludeLast: true})
			return "", false
		case errGet != nil:
			h.logger.Errorf("(user: %d) error while input email: %v", c.Sender().ID, errGet)
			_ = inputCollector.Send(c,
				h.layout.Text(c, "input_error", h.layout.Text(c, "email_request")),
				h.layout.Markup(c, "plan:cancel"),
			)
		case !validator.Email(strings.TrimSpace(message.Text)):
			_ = inputCollector.Send(c,
				h.layout.Text(c, "invalid_email"),
				h.layout.Markup(c, "plan:cancel"),
			)
		default:
			_ = inputCollector.Clear(c, collector.ClearOptions{IgnoreErrors: true})
			return strings.TrimSpace(message.Text), true
		}
	}
}

func (h Handler) sendPurchaseError(c tele.Context, payment *entity.Payment, err error) error {
	switch {
	case errors.Is(err, errorz.ErrPendingInvoiceExists):
		return c.Send(h.layout.Text(c, "pending_invoice_exists", payment), h.layout.Markup(c, "manage:menu"))
	case errors.Is(err, errorz.ErrAlreadySubscribed):
		return c.Send(h.layout.Text(c, "already_subscribed"), h.layout.Markup(c, "manage:menu"))
	case errors.Is(err, errorz.ErrCapacityReached):
		return c.Send(h.layout.Text(c, "capacity_reached"), h.layout.Markup(c, "core:hide"))
	case errors.Is(err, errorz.ErrNotSubscribed):
		return c.Send(h.layout.Text(c, "not_subscribed"), h.layout.Markup(c, "menu:main"))
	default:
		h.logger.Errorf("(user: %d) error while creating invoice: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
}

func (h Handler) sendInvoice(c tele.Context, payment *entity.Payment) error {
	caption := h.layout.Text(c, "invoice_text", payment)

	image, err := h.qrConfig.Generate(payment.InvoiceURL)
	if err != nil {
		h.logger.Errorf("(user: %d) error while generating invoice qr: %v", c.Sender().ID, err)
		return c.Send(caption, h.layout.Markup(c, "manage:menu"))
	}

	return c.Send(
		&tele.Photo{File: tele.FromReader(bytes.NewReader(image)), Caption: caption},
		h.layout.Markup(c, "manage:menu"),
	)
}

func (h Handler) manage(c tele.Context) error {
	h.logger.Infof("(user: %d) open subscription management", c.Sender().ID)
	status, err := h.subscriptionService.Status(context.Background(), c.Sender().ID)
	if err != nil {
		if errors.Is(err, errorz.ErrNotSubscribed) {
			return c.Send(h.layout.Text(c, "not_subscribed"), h.layout.Markup(c, "menu:main"))
		}
		h.logger.Errorf("(user: %d) error while getting subscription status: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}

	return c.Send(h.layout.Text(c, "manage_text", status), h.layout.Markup(c, "manage:menu"))
}

func (h Handler) addTime(c tele.Context) error {
	h.logger.Infof("(user: %d) add time", c.Sender().ID)
	payment, err := h.subscriptionService.AddTime(context.Background(), c.Sender().ID)
	if err != nil {
		return h.sendPurchaseError(c, payment, err)
	}
	return h.sendInvoice(c, payment)
}

func (h Handler) completePayment(c tele.Context) error {
	h.logger.Infof("(user: %d) complete payment", c.Sender().ID)
	completion, err := h.subscriptionService.CompletePayment(context.Background(), c.Sender().ID)
	switch {
	case errors.Is(err, errorz.ErrNoPendingInvoice):
		return c.Send(h.layout.Text(c, "no_pending_invoice"), h.layout.Markup(c, "core:hide"))
	case errors.Is(err, errorz.ErrInvoiceNotPaid):
		return c.Send(h.layout.Text(c, "invoice_not_paid"), h.layout.Markup(c, "manage:menu"))
	case err != nil:
		h.logger.Errorf("(user: %d) error while completing payment: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "payment_verified_with_error", err.Error()), h.layout.Markup(c, "core:hide"))
	case completion.Renewed:
		return c.Send(h.layout.Text(c, "time_added", completion.Entitlement), h.layout.Markup(c, "core:hide"))
	default:
		return c.Send(h.layout.Text(c, "payment_completed", completion.Entitlement), h.layout.Markup(c, "core:hide"))
	}
}

func (h Handler) cancelPayment(c tele.Context) error {
	h.logger.Infof("(user: %d) cancel payment", c.Sender().ID)
	err := h.subscriptionService.CancelPayment(context.Background(), c.Sender().ID)
	switch {
	case errors.Is(err, errorz.ErrNoPendingInvoice):
		return c.Send(h.layout.Text(c, "no_pending_invoice"), h.layout.Markup(c, "core:hide"))
	case errors.Is(err, errorz.ErrInvoiceAlreadyPaid):
		return c.Send(h.layout.Text(c, "invoice_already_paid"), h.layout.Markup(c, "manage:menu"))
	case err != nil:
		h.logger.Errorf("(user: %d) error while cancelling payment: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	default:
		return c.Send(h.layout.Text(c, "invoice_cancelled"), h.layout.Markup(c, "core:hide"))
	}
}

func (h Handler) migrate(c tele.Context) error {
	h.logger.Infof("(user: %d) migrate account", c.Sender().ID)
	status, err := h.subscriptionService.Migrate(context.Background(), c.Sender().ID)
	switch {
	case errors.Is(err, errorz.ErrNotSubscribed):
		return c.Send(h.layout.Text(c, "not_subscribed"), h.layout.Markup(c, "menu:main"))
	case err != nil:
		h.logger.Errorf("(user: %d) error while migrating account: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "migrate_failed", err.Error()), h.layout.Markup(c, "core:hide"))
	default:
		return c.Send(h.layout.Text(c, "migrated", status), h.layout.Markup(c, "core:hide"))
	}
}

func (h Handler) hide(c tele.Context) error {
	return c.Delete()
}

func (h Handler) SubscriptionSetup(group *tele.Group) {
	group.Handle(h.layout.Callback("core:hide"), h.hide)
	group.Handle("/start", h.start)
	group.Handle("/plans", h.plans)
	group.Handle("/manage", h.manage)
	group.Handle("/migrate", h.migrate)
	group.Handle(h.layout.Callback("menu:plans"), h.plans)
	group.Handle(h.layout.Callback("menu:manage"), h.manage)
	group.Handle(h.layout.Callback("menu:back"), h.backToMenu)
	group.Handle(h.layout.Callback("plans:plan"), h.choosePlan)
	group.Handle(h.layout.Callback("plan:back"), h.plans)
	group.Handle(h.layout.Callback("plan:cancel"), h.plans)
	group.Handle(h.layout.Callback("plan:pay_onetime"), h.payOnetime)
	group.Handle(h.layout.Callback("manage:add_time"), h.addTime)
	group.Handle(h.layout.Callback("manage:complete_payment"), h.completePayment)
	group.Handle(h.layout.Callback("manage:cancel_payment"), h.cancelPayment)
}
