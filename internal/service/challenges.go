package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Challenges creates games through the game service once a challenge is
// fully accepted. The challenge and the game live in different collections:
// the game is created first and removed again if the challenge cannot be
// cleared, so a failed acceptance never leaves both behind.
type Challenges struct {
	base
	challenges store.Collection[tabletop.Challenge]
	standing   store.Collection[tabletop.StandingChallenge]
	games      tabletop.GameService
	catalog    tabletop.CatalogService
	notifier   tabletop.Notifier
	logger     *slog.Logger
}

func NewChallenges(
	challenges store.Collection[tabletop.Challenge],
	standing store.Collection[tabletop.StandingChallenge],
	games tabletop.GameService,
	catalog tabletop.CatalogService,
	notifier tabletop.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Challenges {
	return &Challenges{
		base:       newBase(opts),
		challenges: challenges,
		standing:   standing,
		games:      games,
		catalog:    catalog,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *Challenges) Create(ctx context.Context, in tabletop.NewChallenge) (tabletop.Challenge, error) {
	cg, err := catalogGame(ctx, s.catalog, in.GameID)
	if err != nil {
		return tabletop.Challenge{}, err
	}
	if len(in.Invitees) == 0 {
		return tabletop.Challenge{}, invalid("at least one invitee is required")
	}
	if slices.Contains(in.Invitees, in.Issuer) {
		return tabletop.Challenge{}, invalid("cannot challenge yourself")
	}
	if hasDuplicates(in.Invitees) {
		return tabletop.Challenge{}, invalid("invitees must be distinct")
	}
	if err := checkGame(cg, in.Variants, len(in.Invitees)+1); err != nil {
		return tabletop.Challenge{}, err
	}
	if in.Seating == "" {
		in.Seating = tabletop.SeatingRandom
	}

	c := tabletop.Challenge{
		ID:        newID(),
		GameID:    in.GameID,
		Issuer:    in.Issuer,
		Invitees:  in.Invitees,
		Accepted:  []string{},
		Variants:  nonNil(in.Variants),
		Clock:     in.Clock,
		Seating:   in.Seating,
		Rated:     in.Rated,
		Note:      in.Note,
		Status:    tabletop.ChallengePending,
		CreatedAt: s.timestamp(),
	}
	if err := s.challenges.Put(ctx, c.ID, c); err != nil {
		return c, fmt.Errorf("storing challenge: %w", err)
	}

	for _, u := range c.Invitees {
		s.notify(ctx, u, tabletop.Notification{
			Kind:  tabletop.NotifyChallenge,
			Title: "New challenge",
			Body:  fmt.Sprintf("%s challenged you to %s.", c.Issuer, cg.Name),
			Ref:   c.ID,
		})
	}
	return c, nil
}

func (s *Challenges) Get(ctx context.Context, id string) (tabletop.Challenge, error) {
	c, err := s.challenges.Get(ctx, id)
	if err != nil {
		return c, lookupErr(err, "challenge", id)
	}
	return c, nil
}

func (s *Challenges) ForUser(ctx context.Context, userID string) ([]tabletop.Challenge, []tabletop.Challenge, error) {
	all, err := s.challenges.List(ctx, func(c tabletop.Challenge) bool {
		return c.Issuer == userID || slices.Contains(c.Invitees, userID)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("listing challenges: %w", err)
	}

	issued, received := []tabletop.Challenge{}, []tabletop.Challenge{}
	for _, c := range all {
		if c.Issuer == userID {
			issued = append(issued, c)
		} else {
			received = append(received, c)
		}
	}
	return issued, received, nil
}

func (s *Challenges) Accept(ctx context.Context, id, userID string) (tabletop.Challenge, *tabletop.Instance, error) {
	c, err := s.challenges.Update(ctx, id, func(c *tabletop.Challenge) error {
		if !slices.Contains(c.Invitees, userID) {
			return forbidden("%s was not invited to challenge %s", userID, c.ID)
		}
		if slices.Contains(c.Accepted, userID) {
			return conflict("%s already accepted challenge %s", userID, c.ID)
		}
		c.Accepted = append(c.Accepted, userID)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return c, nil, lookupErr(err, "challenge", id)
	}
	if err != nil {
		return c, nil, err
	}
	if len(c.Accepted) < len(c.Invitees) {
		return c, nil, nil
	}

	g, err := s.games.Create(ctx, tabletop.NewGame{
		GameID:   c.GameID,
		Players:  seat(c),
		Variants: c.Variants,
		Clock:    c.Clock,
		Rated:    c.Rated,
		Origin:   tabletop.Origin{Kind: "challenge", Ref: c.ID},
	})
	if err != nil {
		s.withdrawAcceptance(ctx, c.ID, userID)
		return c, nil, fmt.Errorf("creating game for challenge %s: %w", c.ID, err)
	}
	if err := s.challenges.Delete(ctx, c.ID); err != nil {
		if derr := s.games.Delete(ctx, g.ID); derr != nil {
			s.logger.Error("orphaned game after failed challenge acceptance",
				"challenge", c.ID, "game", g.ID, "error", derr)
		}
		return c, nil, lookupErr(err, "challenge", c.ID)
	}

	c.Status = tabletop.ChallengeAccepted
	s.notify(ctx, c.Issuer, tabletop.Notification{
		Kind:  tabletop.NotifyChallenge,
		Title: "Challenge accepted",
		Body:  "Your challenge was accepted and the game has started.",
		Ref:   g.ID,
	})
	return c, &g, nil
}

// withdrawAcceptance undoes userID's acceptance so the challenge can be
// accepted again once games can be created.
func (s *Challenges) withdrawAcceptance(ctx context.Context, id, userID string) {
	_, err := s.challenges.Update(ctx, id, func(c *tabletop.Challenge) error {
		c.Accepted = slices.DeleteFunc(c.Accepted, func(u string) bool { return u == userID })
		return nil
	})
	if err != nil {
		s.logger.Error("challenge left fully accepted without a game",
			"challenge", id, "user", userID, "error", err)
	}
}

func (s *Challenges) Decline(ctx context.Context, id, userID string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(c.Invitees, userID) {
		return forbidden("%s was not invited to challenge %s", userID, c.ID)
	}
	if err := s.challenges.Delete(ctx, id); err != nil {
		return lookupErr(err, "challenge", id)
	}
	s.notify(ctx, c.Issuer, tabletop.Notification{
		Kind:  tabletop.NotifyChallenge,
		Title: "Challenge declined",
		Body:  fmt.Sprintf("%s declined your challenge.", userID),
		Ref:   c.ID,
	})
	return nil
}

func (s *Challenges) Revoke(ctx context.Context, id, userID string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Issuer != userID {
		return forbidden("only the issuer may revoke challenge %s", c.ID)
	}
	if err := s.challenges.Delete(ctx, id); err != nil {
		return lookupErr(err, "challenge", id)
	}
	return nil
}

func (s *Challenges) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.challenges.List(ctx, func(c tabletop.Challenge) bool {
		return c.Status == tabletop.ChallengePending && c.CreatedAt.Before(cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("listing challenges: %w", err)
	}

	removed := 0
	for _, c := range stale {
		err := s.challenges.Delete(ctx, c.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("expiring challenge %s: %w", c.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Challenges) CreateStanding(ctx context.Context, in tabletop.NewStandingChallenge) (tabletop.StandingChallenge, error) {
	cg, err := catalogGame(ctx, s.catalog, in.GameID)
	if err != nil {
		return tabletop.StandingChallenge{}, err
	}
	if err := checkGame(cg, in.Variants, 2); err != nil {
		return tabletop.StandingChallenge{}, err
	}
	if in.Limit < 0 {
		return tabletop.StandingChallenge{}, invalid("limit must not be negative")
	}

	sc := tabletop.StandingChallenge{
		ID:        newID(),
		Owner:     in.Owner,
		GameID:    in.GameID,
		Variants:  nonNil(in.Variants),
		Clock:     in.Clock,
		Rated:     in.Rated,
		Limit:     in.Limit,
		Games:     []string{},
		CreatedAt: s.timestamp(),
	}
	if err := s.standing.Put(ctx, sc.ID, sc); err != nil {
		return sc, fmt.Errorf("storing standing challenge: %w", err)
	}
	return sc, nil
}

func (s *Challenges) ListStanding(ctx context.Context, gameID string) ([]tabletop.StandingChallenge, error) {
	list, err := s.standing.List(ctx, func(sc tabletop.StandingChallenge) bool {
		return gameID == "" || sc.GameID == gameID
	})
	if err != nil {
		return nil, fmt.Errorf("listing standing challenges: %w", err)
	}
	return list, nil
}

func (s *Challenges) DeleteStanding(ctx context.Context, id, userID string) error {
	sc, err := s.standing.Get(ctx, id)
	if err != nil {
		return lookupErr(err, "standing challenge", id)
	}
	if sc.Owner != userID {
		return forbidden("only the owner may withdraw standing challenge %s", id)
	}
	if err := s.standing.Delete(ctx, id); err != nil {
		return lookupErr(err, "standing challenge", id)
	}
	return nil
}

// AcceptStanding checks the concurrent-game limit before creating the game.
// Two simultaneous acceptances can both pass the check; the limit is a soft
// cap.
func (s *Challenges) AcceptStanding(ctx context.Context, id, userID string) (tabletop.Instance, error) {
	sc, err := s.standing.Get(ctx, id)
	if err != nil {
		return tabletop.Instance{}, lookupErr(err, "standing challenge", id)
	}
	if sc.Owner == userID {
		return tabletop.Instance{}, forbidden("cannot accept your own standing challenge")
	}
	if sc.Limit > 0 {
		active := 0
		for _, gid := range sc.Games {
			g, err := s.games.Get(ctx, gid)
			if err == nil && g.Status == tabletop.GameActive {
				active++
			}
		}
		if active >= sc.Limit {
			return tabletop.Instance{}, conflict("standing challenge %s has %d active games", id, active)
		}
	}

	g, err := s.games.Create(ctx, tabletop.NewGame{
		GameID:   sc.GameID,
		Players:  shuffled([]string{sc.Owner, userID}),
		Variants: sc.Variants,
		Clock:    sc.Clock,
		Rated:    sc.Rated,
		Origin:   tabletop.Origin{Kind: "standing", Ref: sc.ID},
	})
	if err != nil {
		return g, err
	}

	_, err = s.standing.Update(ctx, id, func(sc *tabletop.StandingChallenge) error {
		sc.Games = append(sc.Games, g.ID)
		return nil
	})
	if err != nil {
		if derr := s.games.Delete(ctx, g.ID); derr != nil {
			s.logger.Error("orphaned game after failed standing acceptance",
				"standing", id, "game", g.ID, "error", derr)
		}
		return tabletop.Instance{}, lookupErr(err, "standing challenge", id)
	}
	return g, nil
}

func (s *Challenges) notify(ctx context.Context, userID string, n tabletop.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Warn("notification failed", "user", userID, "ref", n.Ref, "error", err)
	}
}

// seat orders the players of an accepted challenge.
func seat(c tabletop.Challenge) []string {
	switch c.Seating {
	case tabletop.SeatingIssuerFirst:
		return append([]string{c.Issuer}, c.Invitees...)
	case tabletop.SeatingIssuerSecond:
		players := []string{c.Invitees[0], c.Issuer}
		return append(players, c.Invitees[1:]...)
	default:
		return shuffled(append([]string{c.Issuer}, c.Invitees...))
	}
}

func shuffled(players []string) []string {
	rand.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
	return players
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
