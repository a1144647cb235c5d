// Package service implements the tabletop service interfaces on top of
// store collections. No game rules, pairing logic or AI live here: moves
// are recorded as given, pairings are a placeholder rotation and the bot
// plays the first legal move it is handed.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Option configures a service.
type Option func(*base)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	now func() time.Time
}

func newBase(opts []Option) base {
	b := base{now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) timestamp() time.Time {
	return b.now().UTC()
}

// newID returns a time-ordered UUID so collections list in creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// lookupErr maps a missing record onto tabletop.ErrNotFound.
func lookupErr(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %q: %w", kind, id, tabletop.ErrNotFound)
	}
	return fmt.Errorf("loading %s %q: %w", kind, id, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), tabletop.ErrInvalid)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), tabletop.ErrForbidden)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), tabletop.ErrConflict)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), tabletop.ErrNotFound)
}

// requireActor rejects operations performed on behalf of nobody.
func requireActor(userID string) error {
	if userID == "" {
		return fmt.Errorf("no caller identity: %w", tabletop.ErrUnauthenticated)
	}
	return nil
}

func hasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}

// checkGame validates a catalog id, its variants and a player count.
func checkGame(g tabletop.CatalogGame, variants []string, players int) error {
	for _, v := range variants {
		if !g.HasVariant(v) {
			return invalid("%s has no variant %q", g.ID, v)
		}
	}
	if players < g.MinPlayers || players > g.MaxPlayers {
		return invalid("%s needs %d-%d players, got %d", g.ID, g.MinPlayers, g.MaxPlayers, players)
	}
	return nil
}
