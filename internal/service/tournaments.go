package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

type Tournaments struct {
	base
	tournaments  store.Collection[tabletop.Tournament]
	games        tabletop.GameService
	catalog      tabletop.CatalogService
	notifier     tabletop.Notifier
	logger       *slog.Logger
	divisionSize int
}

func NewTournaments(
	tournaments store.Collection[tabletop.Tournament],
	games tabletop.GameService,
	catalog tabletop.CatalogService,
	notifier tabletop.Notifier,
	logger *slog.Logger,
	divisionSize int,
	opts ...Option,
) *Tournaments {
	if divisionSize < 2 {
		divisionSize = 2
	}
	return &Tournaments{
		base:         newBase(opts),
		tournaments:  tournaments,
		games:        games,
		catalog:      catalog,
		notifier:     notifier,
		logger:       logger,
		divisionSize: divisionSize,
	}
}

func (s *Tournaments) Create(ctx context.Context, in tabletop.NewTournament) (tabletop.Tournament, error) {
	cg, err := catalogGame(ctx, s.catalog, in.GameID)
	if err != nil {
		return tabletop.Tournament{}, err
	}
	if err := checkGame(cg, in.Variants, 2); err != nil {
		return tabletop.Tournament{}, err
	}

	t := tabletop.Tournament{
		ID:        newID(),
		GameID:    in.GameID,
		Name:      in.Name,
		Variants:  nonNil(in.Variants),
		Clock:     in.Clock,
		Players:   []tabletop.TournamentPlayer{},
		Games:     []string{},
		CreatedBy: in.CreatedBy,
		CreatedAt: s.timestamp(),
	}
	if err := s.tournaments.Put(ctx, t.ID, t); err != nil {
		return t, fmt.Errorf("storing tournament: %w", err)
	}
	return t, nil
}

func (s *Tournaments) List(ctx context.Context, f tabletop.TournamentFilter) ([]tabletop.Tournament, error) {
	list, err := s.tournaments.List(ctx, func(t tabletop.Tournament) bool {
		if f.GameID != "" && t.GameID != f.GameID {
			return false
		}
		return f.Status == "" || t.Status() == f.Status
	})
	if err != nil {
		return nil, fmt.Errorf("listing tournaments: %w", err)
	}
	return list, nil
}

func (s *Tournaments) Get(ctx context.Context, id string) (tabletop.Tournament, error) {
	t, err := s.tournaments.Get(ctx, id)
	if err != nil {
		return t, lookupErr(err, "tournament", id)
	}
	return t, nil
}

func (s *Tournaments) update(ctx context.Context, id string, fn func(*tabletop.Tournament) error) (tabletop.Tournament, error) {
	t, err := s.tournaments.Update(ctx, id, fn)
	if errors.Is(err, store.ErrNotFound) {
		return t, lookupErr(err, "tournament", id)
	}
	return t, err
}

// Join seats the player in the first division with room. Joining and the
// division assignment are a single record update.
func (s *Tournaments) Join(ctx context.Context, id, userID string) (tabletop.Tournament, error) {
	return s.update(ctx, id, func(t *tabletop.Tournament) error {
		if t.Started || t.Ended {
			return conflict("tournament %s has already started", t.ID)
		}
		if _, ok := t.Player(userID); ok {
			return conflict("%s already joined tournament %s", userID, t.ID)
		}
		t.Players = append(t.Players, tabletop.TournamentPlayer{
			UserID:   userID,
			JoinedAt: s.timestamp(),
		})
		s.balance(t)
		return nil
	})
}

func (s *Tournaments) Withdraw(ctx context.Context, id, userID string) (tabletop.Tournament, error) {
	return s.update(ctx, id, func(t *tabletop.Tournament) error {
		if _, ok := t.Player(userID); !ok {
			return notFound("%s is not in tournament %s", userID, t.ID)
		}
		if t.Started || t.Ended {
			return conflict("tournament %s has already started", t.ID)
		}
		players := t.Players[:0]
		for _, p := range t.Players {
			if p.UserID != userID {
				players = append(players, p)
			}
		}
		t.Players = players
		s.balance(t)
		return nil
	})
}

// balance assigns divisions in join order.
func (s *Tournaments) balance(t *tabletop.Tournament) {
	for i := range t.Players {
		t.Players[i].Division = i / s.divisionSize
	}
	t.Divisions = (len(t.Players) + s.divisionSize - 1) / s.divisionSize
}

// NextRound creates the games first and then records the round. If the
// tournament changed in between, the new games are discarded.
func (s *Tournaments) NextRound(ctx context.Context, id string) (tabletop.Tournament, []tabletop.Instance, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return t, nil, err
	}
	if err := roundReady(&t); err != nil {
		return t, nil, err
	}

	round := t.Round + 1
	created := make([]tabletop.Instance, 0)
	for _, pair := range pairings(t, round) {
		g, err := s.games.Create(ctx, tabletop.NewGame{
			GameID:   t.GameID,
			Players:  pair,
			Variants: t.Variants,
			Clock:    t.Clock,
			Rated:    true,
			Origin:   tabletop.Origin{Kind: "tournament", Ref: t.ID},
		})
		if err != nil {
			s.discard(ctx, created)
			return t, nil, fmt.Errorf("pairing round %d of %s: %w", round, t.ID, err)
		}
		created = append(created, g)
	}

	t, err = s.update(ctx, id, func(t *tabletop.Tournament) error {
		if err := roundReady(t); err != nil {
			return err
		}
		if t.Round != round-1 {
			return conflict("round %d of tournament %s was already started", round, t.ID)
		}
		t.Started = true
		t.Round = round
		for _, g := range created {
			t.Games = append(t.Games, g.ID)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, created)
		return t, nil, err
	}

	for _, p := range t.Players {
		s.notify(ctx, p.UserID, tabletop.Notification{
			Kind:  tabletop.NotifyTournament,
			Title: t.Name,
			Body:  fmt.Sprintf("Round %d has started.", t.Round),
			Ref:   t.ID,
		})
	}
	return t, created, nil
}

func roundReady(t *tabletop.Tournament) error {
	if t.Ended {
		return conflict("tournament %s has ended", t.ID)
	}
	if len(t.Players) < 2 {
		return conflict("tournament %s needs at least two players", t.ID)
	}
	return nil
}

func (s *Tournaments) End(ctx context.Context, id string) (tabletop.Tournament, error) {
	return s.update(ctx, id, func(t *tabletop.Tournament) error {
		if t.Ended {
			return conflict("tournament %s has already ended", t.ID)
		}
		t.Ended = true
		t.Archived = true
		return nil
	})
}

func (s *Tournaments) discard(ctx context.Context, games []tabletop.Instance) {
	for _, g := range games {
		if err := s.games.Delete(ctx, g.ID); err != nil {
			s.logger.Error("discarding unrecorded tournament game", "game", g.ID, "error", err)
		}
	}
}

func (s *Tournaments) notify(ctx context.Context, userID string, n tabletop.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Warn("notification failed", "user", userID, "ref", n.Ref, "error", err)
	}
}

// pairings is a placeholder: within each division the players are rotated
// by the round number and neighbours play each other. An odd player out
// sits the round out.
func pairings(t tabletop.Tournament, round int) [][]string {
	divisions := make([][]string, t.Divisions)
	for _, p := range t.Players {
		if p.Division < len(divisions) {
			divisions[p.Division] = append(divisions[p.Division], p.UserID)
		}
	}

	var pairs [][]string
	for _, players := range divisions {
		n := len(players)
		if n < 2 {
			continue
		}
		shift := (round - 1) % n
		rotated := append(append([]string{}, players[shift:]...), players[:shift]...)
		for i := 0; i+1 < n; i += 2 {
			pairs = append(pairs, []string{rotated[i], rotated[i+1]})
		}
	}
	return pairs
}
