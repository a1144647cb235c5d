package server

import (
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type CatalogQuery struct {
	Tag string `query:"tag" description:"Only games carrying this tag."`
}

type CatalogPath struct {
	GameID string `path:"gameId" json:"-"`
}

func (a *api) listCatalog(r *http.Request, in *CatalogQuery) ([]tabletop.CatalogGame, error) {
	return services(r).Catalog.List(r.Context(), in.Tag)
}

func (a *api) getCatalogGame(r *http.Request, in *CatalogPath) (tabletop.CatalogGame, error) {
	return services(r).Catalog.Get(r.Context(), in.GameID)
}
