package server

import (
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type DelegateRequest struct {
	Server  string   `json:"server" validate:"required" required:"true"`
	GameID  string   `json:"gameId" validate:"required" required:"true"`
	Players []string `json:"players" validate:"required,min=2,dive,required" required:"true" minItems:"2"`
}

type FederatedPath struct {
	FederatedID string `path:"federatedId" json:"-"`
}

func (a *api) listServers(r *http.Request, _ *noInput) ([]tabletop.FederationServer, error) {
	return services(r).Federation.Servers(r.Context())
}

func (a *api) delegateGame(r *http.Request, in *DelegateRequest) (tabletop.FederatedGame, error) {
	return services(r).Federation.Delegate(r.Context(), tabletop.FederationRequest{
		Server:    in.Server,
		GameID:    in.GameID,
		Players:   in.Players,
		Requester: caller(r),
	})
}

func federatedLocation(g tabletop.FederatedGame) string { return "/v1/federation/games/" + g.ID }

func (a *api) getFederated(r *http.Request, in *FederatedPath) (tabletop.FederatedGame, error) {
	return services(r).Federation.Get(r.Context(), in.FederatedID)
}
