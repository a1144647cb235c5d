package server

import (
	"encoding/json"
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type BotMoveRequest struct {
	GameID     string          `json:"gameId" validate:"required" required:"true"`
	State      json.RawMessage `json:"state,omitempty"`
	LegalMoves []string        `json:"legalMoves" validate:"required,min=1,dive,required" required:"true" minItems:"1"`
}

func (a *api) botMove(r *http.Request, in *BotMoveRequest) (tabletop.BotMove, error) {
	return services(r).Bot.Move(r.Context(), tabletop.BotRequest{
		GameID:     in.GameID,
		State:      in.State,
		LegalMoves: in.LegalMoves,
	})
}
