package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

type Events struct {
	base
	events  store.Collection[tabletop.Event]
	games   tabletop.GameService
	catalog tabletop.CatalogService
}

func NewEvents(events store.Collection[tabletop.Event], games tabletop.GameService, catalog tabletop.CatalogService, opts ...Option) *Events {
	return &Events{base: newBase(opts), events: events, games: games, catalog: catalog}
}

func (s *Events) Create(ctx context.Context, in tabletop.NewEvent) (tabletop.Event, error) {
	if _, err := catalogGame(ctx, s.catalog, in.GameID); err != nil {
		return tabletop.Event{}, err
	}

	e := tabletop.Event{
		ID:          newID(),
		Organizer:   in.Organizer,
		Name:        in.Name,
		Description: in.Description,
		GameID:      in.GameID,
		StartsAt:    in.StartsAt,
		Players:     []string{},
		Games:       []tabletop.EventGame{},
		CreatedAt:   s.timestamp(),
	}
	if err := s.events.Put(ctx, e.ID, e); err != nil {
		return e, fmt.Errorf("storing event: %w", err)
	}
	return e, nil
}

func (s *Events) List(ctx context.Context, viewer string) ([]tabletop.Event, error) {
	list, err := s.events.List(ctx, func(e tabletop.Event) bool {
		return e.Published || (viewer != "" && e.Organizer == viewer)
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return list, nil
}

func (s *Events) Get(ctx context.Context, id, viewer string) (tabletop.Event, error) {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return e, lookupErr(err, "event", id)
	}
	if !e.Published && e.Organizer != viewer {
		return tabletop.Event{}, notFound("event %q", id)
	}
	return e, nil
}

func (s *Events) update(ctx context.Context, id string, fn func(*tabletop.Event) error) (tabletop.Event, error) {
	e, err := s.events.Update(ctx, id, fn)
	if errors.Is(err, store.ErrNotFound) {
		return e, lookupErr(err, "event", id)
	}
	return e, err
}

// organized wraps fn with the organizer check. Drafts stay hidden from
// everyone else.
func organized(organizer string, fn func(*tabletop.Event) error) func(*tabletop.Event) error {
	return func(e *tabletop.Event) error {
		if e.Organizer != organizer {
			if !e.Published {
				return notFound("event %q", e.ID)
			}
			return forbidden("only the organizer may manage event %s", e.ID)
		}
		return fn(e)
	}
}

func (s *Events) Update(ctx context.Context, id, organizer string, u tabletop.EventUpdate) (tabletop.Event, error) {
	return s.update(ctx, id, organized(organizer, func(e *tabletop.Event) error {
		if u.Name != "" {
			e.Name = u.Name
		}
		e.Description = u.Description
		e.StartsAt = u.StartsAt
		return nil
	}))
}

func (s *Events) Publish(ctx context.Context, id, organizer string) (tabletop.Event, error) {
	return s.update(ctx, id, organized(organizer, func(e *tabletop.Event) error {
		if e.Published {
			return conflict("event %s is already published", e.ID)
		}
		e.Published = true
		return nil
	}))
}

func (s *Events) Register(ctx context.Context, id, userID string) (tabletop.Event, error) {
	return s.update(ctx, id, func(e *tabletop.Event) error {
		if !e.Published {
			if e.Organizer != userID {
				return notFound("event %q", e.ID)
			}
			return conflict("event %s is not published", e.ID)
		}
		if e.Registered(userID) {
			return conflict("%s is already registered for event %s", userID, e.ID)
		}
		e.Players = append(e.Players, userID)
		return nil
	})
}

func (s *Events) Withdraw(ctx context.Context, id, userID string) (tabletop.Event, error) {
	return s.update(ctx, id, func(e *tabletop.Event) error {
		if !e.Registered(userID) {
			return notFound("%s is not registered for event %s", userID, e.ID)
		}
		e.Players = slices.DeleteFunc(e.Players, func(p string) bool { return p == userID })
		return nil
	})
}

// AddGame creates the instance before recording it on the event; the
// instance is removed again if the event update fails.
func (s *Events) AddGame(ctx context.Context, id, organizer string, players []string) (tabletop.Event, tabletop.Instance, error) {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return e, tabletop.Instance{}, lookupErr(err, "event", id)
	}
	if err := organized(organizer, registeredPlayers(players))(&e); err != nil {
		return e, tabletop.Instance{}, err
	}

	g, err := s.games.Create(ctx, tabletop.NewGame{
		GameID:  e.GameID,
		Players: players,
		Origin:  tabletop.Origin{Kind: "event", Ref: e.ID},
	})
	if err != nil {
		return e, g, err
	}

	e, err = s.update(ctx, id, organized(organizer, func(e *tabletop.Event) error {
		if err := registeredPlayers(players)(e); err != nil {
			return err
		}
		e.Games = append(e.Games, tabletop.EventGame{InstanceID: g.ID, Players: players})
		return nil
	}))
	if err != nil {
		if derr := s.games.Delete(ctx, g.ID); derr != nil {
			return e, tabletop.Instance{}, errors.Join(err, derr)
		}
		return e, tabletop.Instance{}, err
	}
	return e, g, nil
}

func registeredPlayers(players []string) func(*tabletop.Event) error {
	return func(e *tabletop.Event) error {
		for _, p := range players {
			if !e.Registered(p) {
				return invalid("%s is not registered for event %s", p, e.ID)
			}
		}
		return nil
	}
}

func (s *Events) ReportResult(ctx context.Context, id, organizer, instanceID string, r tabletop.EventResult) (tabletop.Event, error) {
	if r.Draw == (r.Winner != "") {
		return tabletop.Event{}, invalid("report either a winner or a draw")
	}
	return s.update(ctx, id, organized(organizer, func(e *tabletop.Event) error {
		i := slices.IndexFunc(e.Games, func(g tabletop.EventGame) bool { return g.InstanceID == instanceID })
		if i < 0 {
			return notFound("game %q in event %s", instanceID, e.ID)
		}
		if r.Winner != "" && !slices.Contains(e.Games[i].Players, r.Winner) {
			return invalid("%s did not play game %s", r.Winner, instanceID)
		}
		e.Games[i].Result = &r
		return nil
	}))
}
