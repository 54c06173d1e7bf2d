package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"go.uber.org/zap/zapcore"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/layout"
)

// RoleInvite is the data of the "role_granted" text
type RoleInvite struct {
	Title string
	Link  string
}

// NotifyService delivers messages to users and to the operator and manages plan chats membership
type NotifyService struct {
	bot        *tele.Bot
	layout     *layout.Layout
	logger     *types.Logger
	operatorID int64
	locale     string
}

func NewNotifyService(bot *tele.Bot, layout *layout.Layout, logger *types.Logger, operatorID int64, locale string) *NotifyService {
	return &NotifyService{
		bot:        bot,
		layout:     layout,
		logger:     logger,
		operatorID: operatorID,
		locale:     locale,
	}
}

// LogHook returns a log hook for the specified channel
//
// Parameters:
//   - channelID is the channel to send the log to
//   - locale is the locale to use for the layout
//   - level is the minimum log level to send
func (s *NotifyService) LogHook(channelID int64, locale string, level zapcore.Level) (types.LogHook, error) {
	chat, err := s.bot.ChatByID(channelID)
	if err != nil {
		return nil, err
	}
	return func(log types.Log) {
		if log.Level >= level {
			_, err = s.bot.Send(chat, s.layout.TextLocale(locale, "log", log))
			if err != nil && !strings.Contains(log.Message, "failed to send log to channel") {
				s.logger.Errorf("failed to send log to channel %d: %v\n", channelID, err)
			}
		}
	}, nil
}

// DirectMessage sends the layout text key rendered with data to the user
func (s *NotifyService) DirectMessage(_ context.Context, userID int64, key string, data interface{}) error {
	_, err := s.bot.Send(&tele.User{ID: userID},
		s.layout.TextLocale(s.locale, key, data),
		s.layout.MarkupLocale(s.locale, "core:hide"),
	)
	return err
}

// NotifyOperator sends the layout text key to the operator. Failures are only logged.
func (s *NotifyService) NotifyOperator(_ context.Context, key string, data interface{}) {
	if s.operatorID == 0 {
		s.logger.Debugf("operator is not configured, skipping %s", key)
		return
	}

	_, err := s.bot.Send(&tele.User{ID: s.operatorID}, s.layout.TextLocale(s.locale, key, data))
	if err != nil {
		s.logger.Errorf("failed to notify operator (%s): %v", key, err)
	}
}

// GrantRole sends the user a single-use invite link into the plan chat
func (s *NotifyService) GrantRole(ctx context.Context, userID int64, roleID int64) error {
	chat, err := s.bot.ChatByID(roleID)
	if err != nil {
		return fmt.Errorf("plan chat %d: %w", roleID, errorz.ErrRoleNotFound)
	}

	link, err := s.bot.CreateInviteLink(chat, &tele.ChatInviteLink{
		Name:        fmt.Sprintf("user %d", userID),
		MemberLimit: 1,
	})
	if err != nil {
		return fmt.Errorf("create invite link for chat %d: %w", roleID, err)
	}

	s.logger.Infof("(user: %d) invite link to plan chat %d created", userID, roleID)
	return s.DirectMessage(ctx, userID, "role_granted", RoleInvite{Title: chat.Title, Link: link.InviteLink})
}

// RevokeRole removes the user from the plan chat. The user is unbanned right away so that
// a renewed subscription can join again.
func (s *NotifyService) RevokeRole(_ context.Context, userID int64, roleID int64) error {
	chat := &tele.Chat{ID: roleID}

	member, err := s.bot.ChatMemberOf(chat, &tele.User{ID: userID})
	if err != nil {
		return fmt.Errorf("chat %d: %w: %v", roleID, errorz.ErrMemberNotFound, err)
	}
	if member.Role == tele.Left || member.Role == tele.Kicked {
		return fmt.Errorf("chat %d: %w", roleID, errorz.ErrMemberNotFound)
	}

	if err = s.bot.Ban(chat, member); err != nil {
		return fmt.Errorf("ban in chat %d: %w", roleID, err)
	}
	if err = s.bot.Unban(chat, member.User); err != nil {
		return fmt.Errorf("unban in chat %d: %w", roleID, err)
	}

	s.logger.Infof("(user: %d) removed from plan chat %d", userID, roleID)
	return nil
}

func (s *NotifyService) SetGroupTitle(chatID int64, title string) error {
	return s.bot.SetGroupTitle(&tele.Chat{ID: chatID}, title)
}
