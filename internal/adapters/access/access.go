package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/Badsnus/mediashare-bot/internal/domain/plans"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/Badsnus/mediashare-bot/pkg/plex"
)

type plexClient interface {
	Sections(ctx context.Context) ([]plex.Section, error)
	InviteFriend(ctx context.Context, email string, allowSync bool, sectionIDs []int64) error
	RemoveFriend(ctx context.Context, email string) error
	CancelInvite(ctx context.Context, email string) error
}

// Grant shares media libraries with users according to their plan
type Grant struct {
	client   plexClient
	hdMarker string
	logger   *types.Logger
}

// NewGrant creates a Grant. Sections whose title contains hdMarker are only shared with 4K plans.
func NewGrant(client plexClient, hdMarker string, logger *types.Logger) *Grant {
	return &Grant{
		client:   client,
		hdMarker: hdMarker,
		logger:   logger,
	}
}

// SectionsFor selects the sections a plan unlocks
func SectionsFor(plan plans.Plan, sections []plex.Section, hdMarker string) []plex.Section {
	if plan.Enabled4K || hdMarker == "" {
		return sections
	}

	selected := make([]plex.Section, 0, len(sections))
	for _, s := range sections {
		if !strings.Contains(s.Title, hdMarker) {
			selected = append(selected, s)
		}
	}
	return selected
}

func (g *Grant) Invite(ctx context.Context, email string, allowSync bool, sections []plex.Section) error {
	ids := make([]int64, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}

	if err := g.client.InviteFriend(ctx, email, allowSync, ids); err != nil {
		return fmt.Errorf("invite %s: %w", email, err)
	}
	g.logger.Infof("invite sent (email=%s, sections=%d, allow_sync=%t)", email, len(ids), allowSync)
	return nil
}

// InvitePlan invites email to the sections unlocked by plan
func (g *Grant) InvitePlan(ctx context.Context, email string, plan plans.Plan) error {
	sections, err := g.client.Sections(ctx)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	return g.Invite(ctx, email, plan.DownloadsEnabled, SectionsFor(plan, sections, g.hdMarker))
}

func (g *Grant) Remove(ctx context.Context, email string) error {
	return g.client.RemoveFriend(ctx, email)
}

func (g *Grant) CancelInvite(ctx context.Context, email string) error {
	return g.client.CancelInvite(ctx, email)
}
