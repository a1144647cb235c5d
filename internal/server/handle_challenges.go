package server

import (
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type CreateChallengeRequest struct {
	GameID   string         `json:"gameId" validate:"required" required:"true"`
	Invitees []string       `json:"invitees" validate:"required,min=1,dive,required" required:"true" minItems:"1"`
	Variants []string       `json:"variants,omitempty" validate:"dive,required"`
	Clock    tabletop.Clock `json:"clock"`
	Seating  string         `json:"seating,omitempty" validate:"omitempty,oneof=random issuer-first issuer-second" enum:"random,issuer-first,issuer-second"`
	Rated    bool           `json:"rated"`
	Note     string         `json:"note,omitempty" validate:"max=500" maxLength:"500"`
}

type ChallengePath struct {
	ChallengeID string `path:"challengeId" json:"-"`
}

type ChallengeLists struct {
	Issued   []tabletop.Challenge `json:"issued" validate:"dive"`
	Received []tabletop.Challenge `json:"received" validate:"dive"`
}

// AcceptResult carries the game once the last invitee has accepted.
type AcceptResult struct {
	Challenge tabletop.Challenge `json:"challenge"`
	Game      *tabletop.Instance `json:"game,omitempty"`
}

type CreateStandingRequest struct {
	GameID   string         `json:"gameId" validate:"required" required:"true"`
	Variants []string       `json:"variants,omitempty" validate:"dive,required"`
	Clock    tabletop.Clock `json:"clock"`
	Rated    bool           `json:"rated"`
	Limit    int            `json:"limit" validate:"min=0,max=100" maximum:"100" description:"Concurrent games allowed, 0 for no limit."`
}

type StandingQuery struct {
	GameID string `query:"gameId"`
}

type StandingPath struct {
	StandingID string `path:"standingId" json:"-"`
}

func (a *api) createChallenge(r *http.Request, in *CreateChallengeRequest) (tabletop.Challenge, error) {
	return services(r).Challenges.Create(r.Context(), tabletop.NewChallenge{
		Issuer:   caller(r),
		GameID:   in.GameID,
		Invitees: in.Invitees,
		Variants: in.Variants,
		Clock:    in.Clock,
		Seating:  tabletop.Seating(in.Seating),
		Rated:    in.Rated,
		Note:     in.Note,
	})
}

func challengeLocation(c tabletop.Challenge) string { return "/v1/challenges/" + c.ID }

func (a *api) getChallenge(r *http.Request, in *ChallengePath) (tabletop.Challenge, error) {
	return services(r).Challenges.Get(r.Context(), in.ChallengeID)
}

func (a *api) myChallenges(r *http.Request, _ *noInput) (ChallengeLists, error) {
	issued, received, err := services(r).Challenges.ForUser(r.Context(), caller(r))
	return ChallengeLists{Issued: issued, Received: received}, err
}

func (a *api) acceptChallenge(r *http.Request, in *ChallengePath) (AcceptResult, error) {
	c, g, err := services(r).Challenges.Accept(r.Context(), in.ChallengeID, caller(r))
	return AcceptResult{Challenge: c, Game: g}, err
}

func (a *api) declineChallenge(r *http.Request, in *ChallengePath) (noContent, error) {
	return noContent{}, services(r).Challenges.Decline(r.Context(), in.ChallengeID, caller(r))
}

func (a *api) revokeChallenge(r *http.Request, in *ChallengePath) (noContent, error) {
	return noContent{}, services(r).Challenges.Revoke(r.Context(), in.ChallengeID, caller(r))
}

func (a *api) createStanding(r *http.Request, in *CreateStandingRequest) (tabletop.StandingChallenge, error) {
	return services(r).Challenges.CreateStanding(r.Context(), tabletop.NewStandingChallenge{
		Owner:    caller(r),
		GameID:   in.GameID,
		Variants: in.Variants,
		Clock:    in.Clock,
		Rated:    in.Rated,
		Limit:    in.Limit,
	})
}

func standingLocation(sc tabletop.StandingChallenge) string {
	return "/v1/standing-challenges/" + sc.ID
}

func (a *api) listStanding(r *http.Request, in *StandingQuery) ([]tabletop.StandingChallenge, error) {
	return services(r).Challenges.ListStanding(r.Context(), in.GameID)
}

func (a *api) deleteStanding(r *http.Request, in *StandingPath) (noContent, error) {
	return noContent{}, services(r).Challenges.DeleteStanding(r.Context(), in.StandingID, caller(r))
}

func (a *api) acceptStanding(r *http.Request, in *StandingPath) (tabletop.Instance, error) {
	return services(r).Challenges.AcceptStanding(r.Context(), in.StandingID, caller(r))
}
