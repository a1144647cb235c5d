package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/playperu/tabletop/internal/tabletop"
)

type GamesQuery struct {
	GameID string `query:"gameId"`
	Player string `query:"player"`
	Status string `query:"status" validate:"omitempty,oneof=active finished" enum:"active,finished"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200" minimum:"1" maximum:"200"`
}

type InstancePath struct {
	InstanceID string `path:"instanceId" json:"-"`
}

type CreateGameRequest struct {
	GameID   string          `json:"gameId" validate:"required" required:"true"`
	Players  []string        `json:"players" validate:"required,min=2,dive,required" required:"true" minItems:"2"`
	Variants []string        `json:"variants,omitempty" validate:"dive,required"`
	Clock    tabletop.Clock  `json:"clock"`
	Rated    bool            `json:"rated"`
	State    json.RawMessage `json:"state,omitempty"`
}

type MoveRequest struct {
	InstanceID string          `path:"instanceId" json:"-"`
	Move       string          `json:"move" validate:"required,max=256" required:"true" maxLength:"256"`
	State      json.RawMessage `json:"state,omitempty"`
	Outcome    string          `json:"outcome,omitempty" validate:"omitempty,oneof=win draw" enum:"win,draw"`
}

type NoteRequest struct {
	InstanceID string `path:"instanceId" json:"-"`
	Text       string `json:"text" validate:"max=10000" maxLength:"10000"`
}

type CommentRequest struct {
	InstanceID string `path:"instanceId" json:"-"`
	Text       string `json:"text" validate:"required,max=2000" required:"true" maxLength:"2000"`
}

func (a *api) listGames(r *http.Request, in *GamesQuery) ([]tabletop.Instance, error) {
	return services(r).Games.List(r.Context(), tabletop.GameFilter{
		GameID: in.GameID,
		Player: in.Player,
		Status: tabletop.GameStatus(in.Status),
		Limit:  in.Limit,
	})
}

func (a *api) getGame(r *http.Request, in *InstancePath) (tabletop.Instance, error) {
	return services(r).Games.Get(r.Context(), in.InstanceID)
}

func (a *api) createGame(r *http.Request, in *CreateGameRequest) (tabletop.Instance, error) {
	me := caller(r)
	if !slices.Contains(in.Players, me) {
		return tabletop.Instance{}, fmt.Errorf("%s must be one of the players: %w", me, tabletop.ErrInvalid)
	}
	return services(r).Games.Create(r.Context(), tabletop.NewGame{
		GameID:   in.GameID,
		Players:  in.Players,
		Variants: in.Variants,
		Clock:    in.Clock,
		Rated:    in.Rated,
		State:    in.State,
		Origin:   tabletop.Origin{Kind: "direct", Ref: me},
	})
}

func gameLocation(g tabletop.Instance) string { return "/v1/games/" + g.ID }

func (a *api) submitMove(r *http.Request, in *MoveRequest) (tabletop.Instance, error) {
	g, err := services(r).Games.SubmitMove(r.Context(), in.InstanceID, caller(r), tabletop.MoveInput{
		Move:    in.Move,
		State:   in.State,
		Outcome: tabletop.Result(in.Outcome),
	})
	if err == nil {
		a.broker.Publish(g)
	}
	return g, err
}

func (a *api) resign(r *http.Request, in *InstancePath) (tabletop.Instance, error) {
	g, err := services(r).Games.Resign(r.Context(), in.InstanceID, caller(r))
	if err == nil {
		a.broker.Publish(g)
	}
	return g, err
}

func (a *api) claimTimeout(r *http.Request, in *InstancePath) (tabletop.Instance, error) {
	g, err := services(r).Games.ClaimTimeout(r.Context(), in.InstanceID, caller(r))
	if err == nil {
		a.broker.Publish(g)
	}
	return g, err
}

func (a *api) setNote(r *http.Request, in *NoteRequest) (tabletop.Note, error) {
	return services(r).Explorations.SetNote(r.Context(), caller(r), in.InstanceID, in.Text)
}

func (a *api) getNote(r *http.Request, in *InstancePath) (tabletop.Note, error) {
	return services(r).Explorations.GetNote(r.Context(), caller(r), in.InstanceID)
}

func (a *api) listComments(r *http.Request, in *InstancePath) ([]tabletop.Comment, error) {
	return services(r).Explorations.Comments(r.Context(), in.InstanceID)
}

func (a *api) addComment(r *http.Request, in *CommentRequest) (tabletop.Comment, error) {
	return services(r).Explorations.AddComment(r.Context(), in.InstanceID, caller(r), in.Text)
}

// streamGame sends the game's state, then every move until the client goes
// away.
func (a *api) streamGame() endpoint {
	return endpoint{
		in:          InstancePath{},
		status:      http.StatusOK,
		contentType: "text/event-stream",
		handler: func(w http.ResponseWriter, r *http.Request) {
			var in InstancePath
			if err := a.bind(r, &in); err != nil {
				a.fail(w, r, err)
				return
			}
			g, err := services(r).Games.Get(r.Context(), in.InstanceID)
			if err != nil {
				a.fail(w, r, err)
				return
			}

			flusher, ok := w.(http.Flusher)
			if !ok {
				a.fail(w, r, fmt.Errorf("streaming not supported by %T", w))
				return
			}

			ch := a.broker.Subscribe(g.ID)
			defer a.broker.Unsubscribe(g.ID, ch)

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")

			initial, _ := json.Marshal(GameEvent{Type: "state", Game: g})
			fmt.Fprintf(w, "event: state\ndata: %s\n\n", initial)
			flusher.Flush()
			if g.Status == tabletop.GameFinished {
				return
			}

			ping := time.NewTicker(30 * time.Second)
			defer ping.Stop()

			for {
				select {
				case <-r.Context().Done():
					return
				case data := <-ch:
					var ev GameEvent
					_ = json.Unmarshal(data, &ev)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
					flusher.Flush()
					if ev.Type == "finished" {
						return
					}
				case <-ping.C:
					fmt.Fprintf(w, ": ping\n\n")
					flusher.Flush()
				}
			}
		},
	}
}
