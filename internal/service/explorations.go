package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Explorations keeps one sandbox and one note per user and game instance.
// Both are keyed by "userID:instanceID".
type Explorations struct {
	base
	explorations store.Collection[tabletop.Exploration]
	notes        store.Collection[tabletop.Note]
	comments     store.Collection[tabletop.Comment]
	games        tabletop.GameService
}

func NewExplorations(
	explorations store.Collection[tabletop.Exploration],
	notes store.Collection[tabletop.Note],
	comments store.Collection[tabletop.Comment],
	games tabletop.GameService,
	opts ...Option,
) *Explorations {
	return &Explorations{
		base:         newBase(opts),
		explorations: explorations,
		notes:        notes,
		comments:     comments,
		games:        games,
	}
}

func ownedKey(userID, instanceID string) string {
	return userID + ":" + instanceID
}

func (s *Explorations) Save(ctx context.Context, userID, instanceID string, state json.RawMessage, public bool) (tabletop.Exploration, error) {
	if _, err := s.games.Get(ctx, instanceID); err != nil {
		return tabletop.Exploration{}, err
	}
	x := tabletop.Exploration{
		ID:         ownedKey(userID, instanceID),
		UserID:     userID,
		InstanceID: instanceID,
		State:      state,
		Public:     public,
		UpdatedAt:  s.timestamp(),
	}
	if err := s.explorations.Put(ctx, x.ID, x); err != nil {
		return x, fmt.Errorf("storing exploration: %w", err)
	}
	return x, nil
}

func (s *Explorations) Get(ctx context.Context, userID, instanceID string) (tabletop.Exploration, error) {
	x, err := s.explorations.Get(ctx, ownedKey(userID, instanceID))
	if err != nil {
		return x, lookupErr(err, "exploration", instanceID)
	}
	return x, nil
}

func (s *Explorations) Public(ctx context.Context, instanceID string) ([]tabletop.Exploration, error) {
	list, err := s.explorations.List(ctx, func(x tabletop.Exploration) bool {
		return x.InstanceID == instanceID && x.Public
	})
	if err != nil {
		return nil, fmt.Errorf("listing explorations: %w", err)
	}
	return list, nil
}

func (s *Explorations) SetNote(ctx context.Context, userID, instanceID, text string) (tabletop.Note, error) {
	if _, err := s.games.Get(ctx, instanceID); err != nil {
		return tabletop.Note{}, err
	}
	n := tabletop.Note{
		ID:         ownedKey(userID, instanceID),
		UserID:     userID,
		InstanceID: instanceID,
		Text:       text,
		UpdatedAt:  s.timestamp(),
	}
	if err := s.notes.Put(ctx, n.ID, n); err != nil {
		return n, fmt.Errorf("storing note: %w", err)
	}
	return n, nil
}

func (s *Explorations) GetNote(ctx context.Context, userID, instanceID string) (tabletop.Note, error) {
	n, err := s.notes.Get(ctx, ownedKey(userID, instanceID))
	if errors.Is(err, store.ErrNotFound) {
		return n, notFound("no note on game %q", instanceID)
	}
	if err != nil {
		return n, fmt.Errorf("loading note: %w", err)
	}
	return n, nil
}

func (s *Explorations) AddComment(ctx context.Context, instanceID, userID, text string) (tabletop.Comment, error) {
	if _, err := s.games.Get(ctx, instanceID); err != nil {
		return tabletop.Comment{}, err
	}
	c := tabletop.Comment{
		ID:         newID(),
		InstanceID: instanceID,
		UserID:     userID,
		Text:       text,
		CreatedAt:  s.timestamp(),
	}
	if err := s.comments.Put(ctx, c.ID, c); err != nil {
		return c, fmt.Errorf("storing comment: %w", err)
	}
	return c, nil
}

func (s *Explorations) Comments(ctx context.Context, instanceID string) ([]tabletop.Comment, error) {
	list, err := s.comments.List(ctx, func(c tabletop.Comment) bool {
		return c.InstanceID == instanceID
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return list, nil
}
