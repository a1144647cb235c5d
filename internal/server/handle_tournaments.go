package server

import (
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type CreateTournamentRequest struct {
	GameID   string         `json:"gameId" validate:"required" required:"true"`
	Name     string         `json:"name" validate:"required,max=100" required:"true" maxLength:"100"`
	Variants []string       `json:"variants,omitempty" validate:"dive,required"`
	Clock    tabletop.Clock `json:"clock"`
}

type TournamentsQuery struct {
	GameID string `query:"gameId"`
	Status string `query:"status" validate:"omitempty,oneof=open running archived" enum:"open,running,archived"`
}

type TournamentPath struct {
	TournamentID string `path:"tournamentId" json:"-"`
}

type RoundResult struct {
	Tournament tabletop.Tournament `json:"tournament"`
	Games      []tabletop.Instance `json:"games" validate:"dive"`
}

func (a *api) createTournament(r *http.Request, in *CreateTournamentRequest) (tabletop.Tournament, error) {
	return services(r).Tournaments.Create(r.Context(), tabletop.NewTournament{
		CreatedBy: caller(r),
		GameID:    in.GameID,
		Name:      in.Name,
		Variants:  in.Variants,
		Clock:     in.Clock,
	})
}

func tournamentLocation(t tabletop.Tournament) string { return "/v1/tournaments/" + t.ID }

func (a *api) listTournaments(r *http.Request, in *TournamentsQuery) ([]tabletop.Tournament, error) {
	return services(r).Tournaments.List(r.Context(), tabletop.TournamentFilter{GameID: in.GameID, Status: in.Status})
}

func (a *api) getTournament(r *http.Request, in *TournamentPath) (tabletop.Tournament, error) {
	return services(r).Tournaments.Get(r.Context(), in.TournamentID)
}

func (a *api) joinTournament(r *http.Request, in *TournamentPath) (tabletop.Tournament, error) {
	return services(r).Tournaments.Join(r.Context(), in.TournamentID, caller(r))
}

func (a *api) withdrawTournament(r *http.Request, in *TournamentPath) (tabletop.Tournament, error) {
	return services(r).Tournaments.Withdraw(r.Context(), in.TournamentID, caller(r))
}

func (a *api) nextRound(r *http.Request, in *TournamentPath) (RoundResult, error) {
	t, games, err := services(r).Tournaments.NextRound(r.Context(), in.TournamentID)
	return RoundResult{Tournament: t, Games: games}, err
}

func (a *api) endTournament(r *http.Request, in *TournamentPath) (tabletop.Tournament, error) {
	return services(r).Tournaments.End(r.Context(), in.TournamentID)
}
