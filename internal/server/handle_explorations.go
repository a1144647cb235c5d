package server

import (
	"encoding/json"
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type ExplorationRequest struct {
	InstanceID string          `path:"instanceId" json:"-"`
	State      json.RawMessage `json:"state" validate:"required" required:"true"`
	Public     bool            `json:"public"`
}

func (a *api) saveExploration(r *http.Request, in *ExplorationRequest) (tabletop.Exploration, error) {
	return services(r).Explorations.Save(r.Context(), caller(r), in.InstanceID, in.State, in.Public)
}

func (a *api) getExploration(r *http.Request, in *InstancePath) (tabletop.Exploration, error) {
	return services(r).Explorations.Get(r.Context(), caller(r), in.InstanceID)
}

func (a *api) publicExplorations(r *http.Request, in *InstancePath) ([]tabletop.Exploration, error) {
	return services(r).Explorations.Public(r.Context(), in.InstanceID)
}
