package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Badsnus/mediashare-bot/cmd/bot"
	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/internal/domain/utils/validator"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/layout"
)

const historyLimit = 20

type subscriptionService interface {
	Remove(ctx context.Context, userID int64) error
	CancelPendingInvoice(ctx context.Context, userID int64) (int64, error)
	Reinvite(ctx context.Context) (service.ReinviteSummary, error)
}

type reconciler interface {
	Run(ctx context.Context) (service.Summary, error)
}

type statsService interface {
	Update(ctx context.Context) error
}

type journal interface {
	History(ctx context.Context, userID int64, limit int64) ([]entity.JournalEntry, error)
}

type Handler struct {
	subscriptionService subscriptionService
	reconciler          reconciler
	statsService        statsService
	journal             journal
	catalog             *plans.Catalog

	layout *layout.Layout
	logger *types.Logger
}

func New(b *bot.Bot) *Handler {
	return &Handler{
		subscriptionService: b.Subscriptions,
		reconciler:          b.Reconciler,
		statsService:        b.Stats,
		journal:             b.Journal,
		catalog:             b.Catalog,
		layout:              b.Layout,
		logger:              b.Logger,
	}
}

func (h Handler) adminMenu(c tele.Context) error {
	h.logger.Infof("(user: %d) open admin menu", c.Sender().ID)
	return c.Send(h.layout.Text(c, "admin_menu_text"), h.layout.Markup(c, "admin:menu"))
}

func (h Handler) plansMenu(c tele.Context) error {
	h.logger.Infof("(user: %d) open admin plans menu", c.Sender().ID)
	return c.Send(h.layout.Text(c, "admin_plans_text", h.catalog.All()), h.layout.Markup(c, "core:hide"))
}

// targetUser parses the user id from the command payload, e.g. "/remove 123456"
func (h Handler) targetUser(c tele.Context, usageKey string) (int64, bool) {
	payload := strings.TrimSpace(c.Message().Payload)
	if !validator.UserID(payload) {
		_ = c.Send(h.layout.Text(c, usageKey), h.layout.Markup(c, "core:hide"))
		return 0, false
	}
	userID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = c.Send(h.layout.Text(c, usageKey), h.layout.Markup(c, "core:hide"))
		return 0, false
	}
	return userID, true
}

func (h Handler) remove(c tele.Context) error {
	userID, ok := h.targetUser(c, "admin_remove_usage")
	if !ok {
		return nil
	}
	h.logger.Infof("(user: %d) remove user %d", c.Sender().ID, userID)

	err := h.subscriptionService.Remove(context.Background(), userID)
	switch {
	case errors.Is(err, errorz.ErrNotSubscribed):
		return c.Send(h.layout.Text(c, "admin_user_not_subscribed", userID), h.layout.Markup(c, "core:hide"))
	case err != nil:
		h.logger.Errorf("(user: %d) error while removing user %d: %v", c.Sender().ID, userID, err)
		return c.Send(h.layout.Text(c, "admin_removed_with_errors", struct {
			UserID int64
			Error  string
		}{UserID: userID, Error: err.Error()}), h.layout.Markup(c, "core:hide"))
	default:
		return c.Send(h.layout.Text(c, "admin_user_removed", userID), h.layout.Markup(c, "core:hide"))
	}
}

func (h Handler) cancelInvoice(c tele.Context) error {
	userID, ok := h.targetUser(c, "admin_cancel_invoice_usage")
	if !ok {
		return nil
	}
	h.logger.Infof("(user: %d) cancel pending invoice of user %d", c.Sender().ID, userID)

	count, err := h.subscriptionService.CancelPendingInvoice(context.Background(), userID)
	if err != nil {
		h.logger.Errorf("(user: %d) error while cancelling invoice of user %d: %v", c.Sender().ID, userID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
	if count == 0 {
		return c.Send(h.layout.Text(c, "admin_no_pending_invoice", userID), h.layout.Markup(c, "core:hide"))
	}
	return c.Send(h.layout.Text(c, "admin_invoice_cancelled", userID), h.layout.Markup(c, "core:hide"))
}

func (h Handler) reconcile(c tele.Context) error {
	h.logger.Infof("(user: %d) run reconciliation manually", c.Sender().ID)
	summary, err := h.reconciler.Run(context.Background())
	switch {
	case errors.Is(err, errorz.ErrCycleInProgress):
		return c.Send(h.layout.Text(c, "admin_reconcile_busy"), h.layout.Markup(c, "core:hide"))
	case err != nil:
		h.logger.Errorf("(user: %d) error while reconciling: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
	return c.Send(h.layout.Text(c, "admin_reconcile_done", summary), h.layout.Markup(c, "core:hide"))
}

func (h Handler) reinvite(c tele.Context) error {
	h.logger.Infof("(user: %d) reinvite active users", c.Sender().ID)
	summary, err := h.subscriptionService.Reinvite(context.Background())
	if err != nil {
		h.logger.Errorf("(user: %d) error while reinviting: %v", c.Sender().ID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
	return c.Send(h.layout.Text(c, "admin_reinvite_done", summary), h.layout.Markup(c, "core:hide"))
}

func (h Handler) stats(c tele.Context) error {
	h.logger.Infof("(user: %d) update library stats", c.Sender().ID)
	if err := h.statsService.Update(context.Background()); err != nil {
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
	return c.Send(h.layout.Text(c, "admin_stats_updated"), h.layout.Markup(c, "core:hide"))
}

func (h Handler) history(c tele.Context) error {
	userID, ok := h.targetUser(c, "admin_history_usage")
	if !ok {
		return nil
	}
	h.logger.Infof("(user: %d) get history of user %d", c.Sender().ID, userID)

	entries, err := h.journal.History(context.Background(), userID, historyLimit)
	if err != nil {
		h.logger.Errorf("(user: %d) error while getting history of user %d: %v", c.Sender().ID, userID, err)
		return c.Send(h.layout.Text(c, "technical_issues", err.Error()), h.layout.Markup(c, "core:hide"))
	}
	if len(entries) == 0 {
		return c.Send(h.layout.Text(c, "admin_history_empty", userID), h.layout.Markup(c, "core:hide"))
	}
	return c.Send(h.layout.Text(c, "admin_history", struct {
		UserID  int64
		Entries []entity.JournalEntry
	}{UserID: userID, Entries: entries}), h.layout.Markup(c, "core:hide"))
}

func (h Handler) AdminSetup(group *tele.Group) {
	group.Handle("/admin", h.adminMenu)
	group.Handle("/plans_menu", h.plansMenu)
	group.Handle("/remove", h.remove)
	group.Handle("/cancel_invoice", h.cancelInvoice)
	group.Handle("/reconcile", h.reconcile)
	group.Handle("/reinvite", h.reinvite)
	group.Handle("/stats", h.stats)
	group.Handle("/history", h.history)
	group.Handle(h.layout.Callback("admin:plans"), h.plansMenu)
	group.Handle(h.layout.Callback("admin:reconcile"), h.reconcile)
	group.Handle(h.layout.Callback("admin:reinvite"), h.reinvite)
	group.Handle(h.layout.Callback("admin:stats"), h.stats)
}
