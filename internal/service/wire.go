package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/playperu/tabletop/internal/registry"
	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Collections are the stores behind the services, one per record type.
type Collections struct {
	Users         store.Collection[tabletop.User]
	Games         store.Collection[tabletop.Instance]
	Challenges    store.Collection[tabletop.Challenge]
	Standing      store.Collection[tabletop.StandingChallenge]
	Tournaments   store.Collection[tabletop.Tournament]
	Events        store.Collection[tabletop.Event]
	Explorations  store.Collection[tabletop.Exploration]
	Notes         store.Collection[tabletop.Note]
	Comments      store.Collection[tabletop.Comment]
	Subscriptions store.Collection[tabletop.PushSubscription]
	Federated     store.Collection[tabletop.FederatedGame]
}

func MemoryCollections() Collections {
	return Collections{
		Users:         store.NewMemory[tabletop.User](),
		Games:         store.NewMemory[tabletop.Instance](),
		Challenges:    store.NewMemory[tabletop.Challenge](),
		Standing:      store.NewMemory[tabletop.StandingChallenge](),
		Tournaments:   store.NewMemory[tabletop.Tournament](),
		Events:        store.NewMemory[tabletop.Event](),
		Explorations:  store.NewMemory[tabletop.Exploration](),
		Notes:         store.NewMemory[tabletop.Note](),
		Comments:      store.NewMemory[tabletop.Comment](),
		Subscriptions: store.NewMemory[tabletop.PushSubscription](),
		Federated:     store.NewMemory[tabletop.FederatedGame](),
	}
}

// SQLiteCollections keeps every record type in its own table of db.
func SQLiteCollections(ctx context.Context, db *sql.DB) (Collections, error) {
	var c Collections
	var err error
	if c.Users, err = store.NewSQLite[tabletop.User](ctx, db, "users"); err != nil {
		return c, err
	}
	if c.Games, err = store.NewSQLite[tabletop.Instance](ctx, db, "game_instances"); err != nil {
		return c, err
	}
	if c.Challenges, err = store.NewSQLite[tabletop.Challenge](ctx, db, "challenges"); err != nil {
		return c, err
	}
	if c.Standing, err = store.NewSQLite[tabletop.StandingChallenge](ctx, db, "standing_challenges"); err != nil {
		return c, err
	}
	if c.Tournaments, err = store.NewSQLite[tabletop.Tournament](ctx, db, "tournaments"); err != nil {
		return c, err
	}
	if c.Events, err = store.NewSQLite[tabletop.Event](ctx, db, "events"); err != nil {
		return c, err
	}
	if c.Explorations, err = store.NewSQLite[tabletop.Exploration](ctx, db, "explorations"); err != nil {
		return c, err
	}
	if c.Notes, err = store.NewSQLite[tabletop.Note](ctx, db, "notes"); err != nil {
		return c, err
	}
	if c.Comments, err = store.NewSQLite[tabletop.Comment](ctx, db, "comments"); err != nil {
		return c, err
	}
	if c.Subscriptions, err = store.NewSQLite[tabletop.PushSubscription](ctx, db, "push_subscriptions"); err != nil {
		return c, err
	}
	if c.Federated, err = store.NewSQLite[tabletop.FederatedGame](ctx, db, "federated_games"); err != nil {
		return c, err
	}
	return c, nil
}

// Settings tunes the services built by Register.
type Settings struct {
	DivisionSize      int
	FederationServers map[string]string
}

// Register builds every service over c and registers it under its
// registry name.
func Register(reg *registry.Registry, c Collections, s Settings, logger *slog.Logger, opts ...Option) {
	catalog := NewCatalog(tabletop.Catalog)
	users := NewUsers(c.Users, catalog, opts...)
	notifications := NewNotifications(c.Subscriptions, users, logger, opts...)
	games := NewGames(c.Games, catalog, notifications, logger, opts...)

	reg.Register(registry.Catalog, catalog)
	reg.Register(registry.Users, users)
	reg.Register(registry.Notifications, notifications)
	reg.Register(registry.Games, games)
	reg.Register(registry.Challenges,
		NewChallenges(c.Challenges, c.Standing, games, catalog, notifications, logger, opts...))
	reg.Register(registry.Tournaments,
		NewTournaments(c.Tournaments, games, catalog, notifications, logger, s.DivisionSize, opts...))
	reg.Register(registry.Events, NewEvents(c.Events, games, catalog, opts...))
	reg.Register(registry.Explorations,
		NewExplorations(c.Explorations, c.Notes, c.Comments, games, opts...))
	reg.Register(registry.Bot, NewBot(catalog))
	reg.Register(registry.Federation, NewFederation(s.FederationServers, c.Federated, opts...))
}
