package service

import (
	"context"
	"slices"

	"github.com/playperu/tabletop/internal/tabletop"
)

// Catalog serves a fixed game list.
type Catalog struct {
	games []tabletop.CatalogGame
}

func NewCatalog(games []tabletop.CatalogGame) *Catalog {
	return &Catalog{games: games}
}

func (c *Catalog) List(_ context.Context, tag string) ([]tabletop.CatalogGame, error) {
	out := make([]tabletop.CatalogGame, 0, len(c.games))
	for _, g := range c.games {
		if tag == "" || slices.Contains(g.Tags, tag) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (c *Catalog) Get(_ context.Context, id string) (tabletop.CatalogGame, error) {
	for _, g := range c.games {
		if g.ID == id {
			return g, nil
		}
	}
	return tabletop.CatalogGame{}, notFound("game %q", id)
}

// catalogGame resolves a game id supplied in a request body, where an
// unknown id is a validation failure rather than a missing resource.
func catalogGame(ctx context.Context, c tabletop.CatalogService, id string) (tabletop.CatalogGame, error) {
	g, err := c.Get(ctx, id)
	if err != nil {
		return g, invalid("unknown game %q", id)
	}
	return g, nil
}
