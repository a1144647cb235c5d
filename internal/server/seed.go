package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/tabletop/internal/registry"
	"github.com/playperu/tabletop/internal/tabletop"
)

// SeedDemo gives an empty installation something to look at: a published
// event, an open tournament and a standing challenge, all owned by owner.
// Idempotent: does nothing once owner has any event.
func SeedDemo(ctx context.Context, logger *slog.Logger, s *registry.Services, owner string) error {
	existing, err := s.Events.List(ctx, owner)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Organizer == owner {
			return nil
		}
	}

	if _, err := s.Users.Ensure(ctx, owner); err != nil {
		return fmt.Errorf("seeding user: %w", err)
	}

	e, err := s.Events.Create(ctx, tabletop.NewEvent{
		Organizer:   owner,
		Name:        "Demo meetup",
		Description: "Casual Amazons games, everyone welcome.",
		GameID:      "amazons",
	})
	if err != nil {
		return fmt.Errorf("seeding event: %w", err)
	}
	if _, err := s.Events.Publish(ctx, e.ID, owner); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	if _, err := s.Tournaments.Create(ctx, tabletop.NewTournament{
		CreatedBy: owner,
		GameID:    "amazons",
		Name:      "Demo ladder",
		Clock:     tabletop.Clock{InitialSeconds: 600, IncrementSeconds: 5},
	}); err != nil {
		return fmt.Errorf("seeding tournament: %w", err)
	}

	if _, err := s.Challenges.CreateStanding(ctx, tabletop.NewStandingChallenge{
		Owner:  owner,
		GameID: "entropy",
		Clock:  tabletop.Clock{InitialSeconds: 300},
		Limit:  3,
	}); err != nil {
		return fmt.Errorf("seeding standing challenge: %w", err)
	}

	logger.Info("demo data seeded", "owner", owner)
	return nil
}
