package service

import (
	"context"
	"fmt"

	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/Badsnus/mediashare-bot/pkg/plex"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type libraryCounter interface {
	Sections(ctx context.Context) ([]plex.Section, error)
	SectionSize(ctx context.Context, key string, libType int) (int, error)
}

type statsPublisher interface {
	SetGroupTitle(chatID int64, title string) error
}

type operatorNotifier interface {
	NotifyOperator(ctx context.Context, key string, data interface{})
}

// LibraryStats is the number of items across all library sections
type LibraryStats struct {
	Movies   int
	Shows    int
	Episodes int
}

// Title formats the stats with thousands separators
func (s LibraryStats) Title() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d Movies | %d Shows | %d Episodes", s.Movies, s.Shows, s.Episodes)
}

// StatsService publishes the library size in the title of the stats chat
type StatsService struct {
	library   libraryCounter
	publisher statsPublisher
	notifier  operatorNotifier
	chatID    int64
	logger    *types.Logger
}

func NewStatsService(library libraryCounter, publisher statsPublisher, notifier operatorNotifier, chatID int64, logger *types.Logger) *StatsService {
	return &StatsService{
		library:   library,
		publisher: publisher,
		notifier:  notifier,
		chatID:    chatID,
		logger:    logger,
	}
}

func (s *StatsService) Collect(ctx context.Context) (LibraryStats, error) {
	sections, err := s.library.Sections(ctx)
	if err != nil {
		return LibraryStats{}, fmt.Errorf("list sections: %w", err)
	}

	var stats LibraryStats
	for _, section := range sections {
		switch section.Type {
		case "movie":
			n, err := s.library.SectionSize(ctx, section.Key, plex.TypeMovie)
			if err != nil {
				return LibraryStats{}, fmt.Errorf("section %s: %w", section.Title, err)
			}
			stats.Movies += n
		case "show":
			n, err := s.library.SectionSize(ctx, section.Key, plex.TypeShow)
			if err != nil {
				return LibraryStats{}, fmt.Errorf("section %s: %w", section.Title, err)
			}
			stats.Shows += n

			n, err = s.library.SectionSize(ctx, section.Key, plex.TypeEpisode)
			if err != nil {
				return LibraryStats{}, fmt.Errorf("section %s: %w", section.Title, err)
			}
			stats.Episodes += n
		}
	}
	return stats, nil
}

// Update collects the stats and writes them into the stats chat title
func (s *StatsService) Update(ctx context.Context) error {
	stats, err := s.Collect(ctx)
	if err == nil {
		err = s.publisher.SetGroupTitle(s.chatID, stats.Title())
	}
	if err != nil {
		s.logger.Errorf("failed to update library stats: %v", err)
		s.notifier.NotifyOperator(ctx, "operator_stats_failed", RecordNotice{Error: err.Error()})
		return err
	}

	s.logger.Infof("Library stats updated (movies=%d, shows=%d, episodes=%d)", stats.Movies, stats.Shows, stats.Episodes)
	s.notifier.NotifyOperator(ctx, "operator_stats_updated", stats)
	return nil
}
