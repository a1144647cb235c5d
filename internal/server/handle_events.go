package server

import (
	"net/http"
	"time"

	"github.com/playperu/tabletop/internal/tabletop"
)

type CreateEventRequest struct {
	Name        string     `json:"name" validate:"required,max=100" required:"true" maxLength:"100"`
	Description string     `json:"description" validate:"max=4000" maxLength:"4000"`
	GameID      string     `json:"gameId" validate:"required" required:"true"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
}

type EventPath struct {
	EventID string `path:"eventId" json:"-"`
}

type UpdateEventRequest struct {
	EventID     string     `path:"eventId" json:"-"`
	Name        string     `json:"name" validate:"required,max=100" required:"true" maxLength:"100"`
	Description string     `json:"description" validate:"max=4000" maxLength:"4000"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
}

type EventGameRequest struct {
	EventID string   `path:"eventId" json:"-"`
	Players []string `json:"players" validate:"required,min=2,dive,required" required:"true" minItems:"2"`
}

type EventGameResult struct {
	Event tabletop.Event    `json:"event"`
	Game  tabletop.Instance `json:"game"`
}

type ResultRequest struct {
	EventID    string `path:"eventId" json:"-"`
	InstanceID string `path:"gameInstanceId" json:"-"`
	Winner     string `json:"winner,omitempty" validate:"required_without=Draw,excluded_with=Draw"`
	Draw       bool   `json:"draw,omitempty"`
}

func (a *api) createEvent(r *http.Request, in *CreateEventRequest) (tabletop.Event, error) {
	return services(r).Events.Create(r.Context(), tabletop.NewEvent{
		Organizer:   caller(r),
		Name:        in.Name,
		Description: in.Description,
		GameID:      in.GameID,
		StartsAt:    in.StartsAt,
	})
}

func eventLocation(e tabletop.Event) string { return "/v1/events/" + e.ID }

func (a *api) listEvents(r *http.Request, _ *noInput) ([]tabletop.Event, error) {
	return services(r).Events.List(r.Context(), caller(r))
}

func (a *api) getEvent(r *http.Request, in *EventPath) (tabletop.Event, error) {
	return services(r).Events.Get(r.Context(), in.EventID, caller(r))
}

func (a *api) updateEvent(r *http.Request, in *UpdateEventRequest) (tabletop.Event, error) {
	return services(r).Events.Update(r.Context(), in.EventID, caller(r), tabletop.EventUpdate{
		Name:        in.Name,
		Description: in.Description,
		StartsAt:    in.StartsAt,
	})
}

func (a *api) publishEvent(r *http.Request, in *EventPath) (tabletop.Event, error) {
	return services(r).Events.Publish(r.Context(), in.EventID, caller(r))
}

func (a *api) registerEvent(r *http.Request, in *EventPath) (tabletop.Event, error) {
	return services(r).Events.Register(r.Context(), in.EventID, caller(r))
}

func (a *api) withdrawEvent(r *http.Request, in *EventPath) (tabletop.Event, error) {
	return services(r).Events.Withdraw(r.Context(), in.EventID, caller(r))
}

func (a *api) addEventGame(r *http.Request, in *EventGameRequest) (EventGameResult, error) {
	e, g, err := services(r).Events.AddGame(r.Context(), in.EventID, caller(r), in.Players)
	return EventGameResult{Event: e, Game: g}, err
}

func eventGameLocation(res EventGameResult) string { return gameLocation(res.Game) }

func (a *api) reportResult(r *http.Request, in *ResultRequest) (tabletop.Event, error) {
	return services(r).Events.ReportResult(r.Context(), in.EventID, caller(r), in.InstanceID,
		tabletop.EventResult{Winner: in.Winner, Draw: in.Draw})
}
