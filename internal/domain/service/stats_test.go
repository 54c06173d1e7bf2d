package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Badsnus/mediashare-bot/pkg/plex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	sections []plex.Section
	sizes    map[string]int
	err      error
}

func (f *fakeLibrary) Sections(context.Context) ([]plex.Section, error) {
	return f.sections, f.err
}

func (f *fakeLibrary) SectionSize(_ context.Context, key string, libType int) (int, error) {
	return f.sizes[fmt.Sprintf("%s/%d", key, libType)], nil
}

type fakePublisher struct {
	titles map[int64]string
}

func (f *fakePublisher) SetGroupTitle(chatID int64, title string) error {
	if f.titles == nil {
		f.titles = map[int64]string{}
	}
	f.titles[chatID] = title
	return nil
}

func TestStatsService_Update(t *testing.T) {
	library := &fakeLibrary{
		sections: []plex.Section{
			{Key: "1", Title: "Movies", Type: "movie"},
			{Key: "2", Title: "Movies 4K", Type: "movie"},
			{Key: "3", Title: "TV", Type: "show"},
			{Key: "4", Title: "Music", Type: "artist"},
		},
		sizes: map[string]int{"1/1": 1200, "2/1": 300, "3/2": 85, "3/4": 4321, "4/1": 99},
	}
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}
	stats := NewStatsService(library, publisher, notifier, -500, testLogger())

	require.NoError(t, stats.Update(context.Background()))
	assert.Equal(t, "1,500 Movies | 85 Shows | 4,321 Episodes", publisher.titles[-500])
	assert.Equal(t, []string{"operator_stats_updated"}, notifier.operatorKeys())
}

func TestStatsService_UpdateFailure(t *testing.T) {
	library := &fakeLibrary{err: errExternal}
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}
	stats := NewStatsService(library, publisher, notifier, -500, testLogger())

	assert.ErrorIs(t, stats.Update(context.Background()), errExternal)
	assert.Empty(t, publisher.titles)
	assert.Equal(t, []string{"operator_stats_failed"}, notifier.operatorKeys())
}
