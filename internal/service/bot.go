package service

import (
	"context"

	"github.com/playperu/tabletop/internal/tabletop"
)

// Bot plays the first legal move it is given.
type Bot struct {
	catalog tabletop.CatalogService
}

func NewBot(catalog tabletop.CatalogService) *Bot {
	return &Bot{catalog: catalog}
}

func (b *Bot) Move(ctx context.Context, req tabletop.BotRequest) (tabletop.BotMove, error) {
	if _, err := catalogGame(ctx, b.catalog, req.GameID); err != nil {
		return tabletop.BotMove{}, err
	}
	if len(req.LegalMoves) == 0 {
		return tabletop.BotMove{}, invalid("no legal moves to choose from")
	}
	return tabletop.BotMove{Move: req.LegalMoves[0], Engine: "stub"}, nil
}
