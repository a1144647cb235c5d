package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

type Users struct {
	base
	users   store.Collection[tabletop.User]
	catalog tabletop.CatalogService
}

func NewUsers(users store.Collection[tabletop.User], catalog tabletop.CatalogService, opts ...Option) *Users {
	return &Users{base: newBase(opts), users: users, catalog: catalog}
}

func (s *Users) Get(ctx context.Context, id string) (tabletop.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return u, lookupErr(err, "user", id)
	}
	return u, nil
}

// Ensure creates the user on first reference. Concurrent first references
// create the record once; later callers read what the winner stored.
func (s *Users) Ensure(ctx context.Context, id string) (tabletop.User, error) {
	if err := requireActor(id); err != nil {
		return tabletop.User{}, err
	}
	u, err := s.users.Get(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return u, lookupErr(err, "user", id)
	}

	u = tabletop.User{
		ID:        id,
		Name:      id,
		Ratings:   map[string]float64{},
		Settings:  tabletop.DefaultSettings(),
		Stars:     []string{},
		CreatedAt: s.timestamp(),
	}
	err = s.users.Create(ctx, id, u)
	if errors.Is(err, store.ErrExists) {
		return s.Get(ctx, id)
	}
	if err != nil {
		return u, fmt.Errorf("creating user %s: %w", id, err)
	}
	return u, nil
}

func (s *Users) update(ctx context.Context, id string, fn func(*tabletop.User) error) (tabletop.User, error) {
	if _, err := s.Ensure(ctx, id); err != nil {
		return tabletop.User{}, err
	}
	u, err := s.users.Update(ctx, id, fn)
	if errors.Is(err, store.ErrNotFound) {
		return u, lookupErr(err, "user", id)
	}
	return u, err
}

func (s *Users) UpdateProfile(ctx context.Context, id, name, email string) (tabletop.User, error) {
	return s.update(ctx, id, func(u *tabletop.User) error {
		if name != "" {
			u.Name = name
		}
		u.Email = email
		return nil
	})
}

func (s *Users) UpdateSettings(ctx context.Context, id string, settings tabletop.Settings) (tabletop.User, error) {
	return s.update(ctx, id, func(u *tabletop.User) error {
		u.Settings = settings
		return nil
	})
}

func (s *Users) Star(ctx context.Context, id, gameID string) (tabletop.User, error) {
	if _, err := s.catalog.Get(ctx, gameID); err != nil {
		return tabletop.User{}, err
	}
	return s.update(ctx, id, func(u *tabletop.User) error {
		if !slices.Contains(u.Stars, gameID) {
			u.Stars = append(u.Stars, gameID)
		}
		return nil
	})
}

func (s *Users) Unstar(ctx context.Context, id, gameID string) (tabletop.User, error) {
	return s.update(ctx, id, func(u *tabletop.User) error {
		u.Stars = slices.DeleteFunc(u.Stars, func(g string) bool { return g == gameID })
		return nil
	})
}
