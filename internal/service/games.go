package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

type Games struct {
	base
	games    store.Collection[tabletop.Instance]
	catalog  tabletop.CatalogService
	notifier tabletop.Notifier
	logger   *slog.Logger
}

func NewGames(games store.Collection[tabletop.Instance], catalog tabletop.CatalogService, notifier tabletop.Notifier, logger *slog.Logger, opts ...Option) *Games {
	return &Games{
		base:     newBase(opts),
		games:    games,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *Games) List(ctx context.Context, f tabletop.GameFilter) ([]tabletop.Instance, error) {
	games, err := s.games.List(ctx, func(g tabletop.Instance) bool {
		if f.GameID != "" && g.GameID != f.GameID {
			return false
		}
		if f.Player != "" && !g.HasPlayer(f.Player) {
			return false
		}
		if f.Status != "" && g.Status != f.Status {
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	slices.Reverse(games)
	if f.Limit > 0 && len(games) > f.Limit {
		games = games[:f.Limit]
	}
	return games, nil
}

func (s *Games) Get(ctx context.Context, id string) (tabletop.Instance, error) {
	g, err := s.games.Get(ctx, id)
	if err != nil {
		return g, lookupErr(err, "game", id)
	}
	return g, nil
}

func (s *Games) Create(ctx context.Context, in tabletop.NewGame) (tabletop.Instance, error) {
	cg, err := catalogGame(ctx, s.catalog, in.GameID)
	if err != nil {
		return tabletop.Instance{}, err
	}
	if err := checkGame(cg, in.Variants, len(in.Players)); err != nil {
		return tabletop.Instance{}, err
	}
	if hasDuplicates(in.Players) {
		return tabletop.Instance{}, invalid("a player may only be seated once")
	}

	now := s.timestamp()
	g := tabletop.Instance{
		ID:         newID(),
		GameID:     in.GameID,
		Players:    in.Players,
		Variants:   in.Variants,
		Clock:      in.Clock,
		TimeLeft:   map[string]int64{},
		State:      in.State,
		Moves:      []tabletop.Move{},
		Status:     tabletop.GameActive,
		Rated:      in.Rated,
		Origin:     in.Origin,
		CreatedAt:  now,
		LastMoveAt: now,
	}
	if g.Variants == nil {
		g.Variants = []string{}
	}
	if in.Clock.InitialSeconds > 0 {
		for _, p := range in.Players {
			g.TimeLeft[p] = int64(in.Clock.InitialSeconds) * 1000
		}
	}

	if err := s.games.Put(ctx, g.ID, g); err != nil {
		return g, fmt.Errorf("storing game: %w", err)
	}
	s.notify(ctx, g.PlayerToMove(), tabletop.Notification{
		Kind:  tabletop.NotifyMove,
		Title: "New game",
		Body:  fmt.Sprintf("A game of %s has started and it is your turn.", cg.Name),
		Ref:   g.ID,
	})
	return g, nil
}

func (s *Games) Delete(ctx context.Context, id string) error {
	if err := s.games.Delete(ctx, id); err != nil {
		return lookupErr(err, "game", id)
	}
	return nil
}

func (s *Games) update(ctx context.Context, id string, fn func(*tabletop.Instance) error) (tabletop.Instance, error) {
	g, err := s.games.Update(ctx, id, fn)
	if errors.Is(err, store.ErrNotFound) {
		return g, lookupErr(err, "game", id)
	}
	return g, err
}

func (s *Games) SubmitMove(ctx context.Context, id, player string, m tabletop.MoveInput) (tabletop.Instance, error) {
	g, err := s.update(ctx, id, func(g *tabletop.Instance) error {
		if g.Status != tabletop.GameActive {
			return conflict("game %s is finished", g.ID)
		}
		if !g.HasPlayer(player) {
			return forbidden("%s is not playing in game %s", player, g.ID)
		}
		if g.PlayerToMove() != player {
			return forbidden("it is not %s's turn", player)
		}

		now := s.timestamp()
		if g.Clock.InitialSeconds > 0 {
			left := g.TimeLeft[player] - now.Sub(g.LastMoveAt).Milliseconds()
			if left <= 0 {
				return conflict("%s has run out of time", player)
			}
			g.TimeLeft[player] = left + int64(g.Clock.IncrementSeconds)*1000
		}

		g.Moves = append(g.Moves, tabletop.Move{Player: player, Move: m.Move, At: now})
		if len(m.State) > 0 {
			g.State = m.State
		}
		g.LastMoveAt = now

		switch m.Outcome {
		case "":
			g.ToMove = (g.ToMove + 1) % len(g.Players)
		case tabletop.ResultWin:
			finish(g, tabletop.ResultWin, []string{player})
		case tabletop.ResultDraw:
			finish(g, tabletop.ResultDraw, slices.Clone(g.Players))
		default:
			return invalid("outcome must be win or draw")
		}
		return nil
	})
	if err != nil {
		return g, err
	}

	if g.Status == tabletop.GameFinished {
		s.announceEnd(ctx, g)
	} else {
		s.notify(ctx, g.PlayerToMove(), tabletop.Notification{
			Kind:  tabletop.NotifyMove,
			Title: "Your turn",
			Body:  fmt.Sprintf("%s played %s.", player, m.Move),
			Ref:   g.ID,
		})
	}
	return g, nil
}

func (s *Games) Resign(ctx context.Context, id, player string) (tabletop.Instance, error) {
	g, err := s.update(ctx, id, func(g *tabletop.Instance) error {
		if g.Status != tabletop.GameActive {
			return conflict("game %s is finished", g.ID)
		}
		if !g.HasPlayer(player) {
			return forbidden("%s is not playing in game %s", player, g.ID)
		}
		finish(g, tabletop.ResultResign, others(g.Players, player))
		return nil
	})
	if err != nil {
		return g, err
	}
	s.announceEnd(ctx, g)
	return g, nil
}

func (s *Games) ClaimTimeout(ctx context.Context, id, claimant string) (tabletop.Instance, error) {
	g, err := s.update(ctx, id, func(g *tabletop.Instance) error {
		if g.Status != tabletop.GameActive {
			return conflict("game %s is finished", g.ID)
		}
		if !g.HasPlayer(claimant) {
			return forbidden("%s is not playing in game %s", claimant, g.ID)
		}
		late := g.PlayerToMove()
		if late == claimant {
			return forbidden("cannot claim a timeout against yourself")
		}
		if g.Clock.InitialSeconds == 0 {
			return conflict("game %s is not timed", g.ID)
		}
		if g.TimeLeft[late]-s.timestamp().Sub(g.LastMoveAt).Milliseconds() > 0 {
			return conflict("%s still has time", late)
		}
		g.TimeLeft[late] = 0
		finish(g, tabletop.ResultTimeout, others(g.Players, late))
		return nil
	})
	if err != nil {
		return g, err
	}
	s.announceEnd(ctx, g)
	return g, nil
}

func (s *Games) announceEnd(ctx context.Context, g tabletop.Instance) {
	for _, p := range g.Players {
		s.notify(ctx, p, tabletop.Notification{
			Kind:  tabletop.NotifyMove,
			Title: "Game over",
			Body:  fmt.Sprintf("Game %s ended by %s.", g.ID, g.Outcome.Result),
			Ref:   g.ID,
		})
	}
}

func (s *Games) notify(ctx context.Context, userID string, n tabletop.Notification) {
	if s.notifier == nil || userID == "" {
		return
	}
	if _, err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Warn("notification failed", "user", userID, "ref", n.Ref, "error", err)
	}
}

func finish(g *tabletop.Instance, r tabletop.Result, winners []string) {
	g.Status = tabletop.GameFinished
	g.Outcome = &tabletop.Outcome{Result: r, Winners: winners}
}

func others(players []string, except string) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		if p != except {
			out = append(out, p)
		}
	}
	return out
}
