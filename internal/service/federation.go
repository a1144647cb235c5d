package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

// Federation records games delegated to partner servers. No request is
// made to the partner.
type Federation struct {
	base
	servers []tabletop.FederationServer
	games   store.Collection[tabletop.FederatedGame]
}

func NewFederation(servers map[string]string, games store.Collection[tabletop.FederatedGame], opts ...Option) *Federation {
	list := make([]tabletop.FederationServer, 0, len(servers))
	for name, url := range servers {
		list = append(list, tabletop.FederationServer{Name: name, URL: strings.TrimRight(url, "/")})
	}
	slices.SortFunc(list, func(a, b tabletop.FederationServer) int { return cmp.Compare(a.Name, b.Name) })
	return &Federation{base: newBase(opts), servers: list, games: games}
}

func (s *Federation) Servers(context.Context) ([]tabletop.FederationServer, error) {
	return slices.Clone(s.servers), nil
}

func (s *Federation) Delegate(ctx context.Context, req tabletop.FederationRequest) (tabletop.FederatedGame, error) {
	i := slices.IndexFunc(s.servers, func(fs tabletop.FederationServer) bool { return fs.Name == req.Server })
	if i < 0 {
		return tabletop.FederatedGame{}, invalid("unknown federation server %q", req.Server)
	}

	id := newID()
	g := tabletop.FederatedGame{
		ID:        id,
		Server:    req.Server,
		RemoteURL: s.servers[i].URL + "/games/" + id,
		GameID:    req.GameID,
		Players:   nonNil(req.Players),
		Requester: req.Requester,
		Status:    "delegated",
		CreatedAt: s.timestamp(),
	}
	if err := s.games.Put(ctx, g.ID, g); err != nil {
		return g, fmt.Errorf("storing federated game: %w", err)
	}
	return g, nil
}

func (s *Federation) Get(ctx context.Context, id string) (tabletop.FederatedGame, error) {
	g, err := s.games.Get(ctx, id)
	if err != nil {
		return g, lookupErr(err, "federated game", id)
	}
	return g, nil
}
