package server

import (
	"net/http"
	"time"

	"github.com/playperu/tabletop/internal/tabletop"
)

type UserPath struct {
	UserID string `path:"userId" json:"-"`
}

// Profile is the public view of a user.
type Profile struct {
	ID        string             `json:"id" validate:"required"`
	Name      string             `json:"name"`
	Ratings   map[string]float64 `json:"ratings"`
	Stars     []string           `json:"stars"`
	CreatedAt time.Time          `json:"createdAt"`
}

type ProfileRequest struct {
	Name  string `json:"name" validate:"required,max=64" required:"true" maxLength:"64"`
	Email string `json:"email,omitempty" validate:"omitempty,email" format:"email"`
}

type SettingsRequest struct {
	Language          string            `json:"language" validate:"required,min=2,max=16" required:"true"`
	NotifyMoves       bool              `json:"notifyMoves"`
	NotifyChallenges  bool              `json:"notifyChallenges"`
	NotifyTournaments bool              `json:"notifyTournaments"`
	Display           map[string]string `json:"display,omitempty" validate:"max=32"`
}

type StarPath struct {
	GameID string `path:"gameId" json:"-"`
}

func (a *api) getProfile(r *http.Request, in *UserPath) (Profile, error) {
	u, err := services(r).Users.Get(r.Context(), in.UserID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: u.ID, Name: u.Name, Ratings: u.Ratings, Stars: u.Stars, CreatedAt: u.CreatedAt}, nil
}

func (a *api) getMe(r *http.Request, _ *noInput) (tabletop.User, error) {
	return services(r).Users.Ensure(r.Context(), caller(r))
}

func (a *api) updateMe(r *http.Request, in *ProfileRequest) (tabletop.User, error) {
	return services(r).Users.UpdateProfile(r.Context(), caller(r), in.Name, in.Email)
}

func (a *api) updateSettings(r *http.Request, in *SettingsRequest) (tabletop.User, error) {
	return services(r).Users.UpdateSettings(r.Context(), caller(r), tabletop.Settings{
		Language:          in.Language,
		NotifyMoves:       in.NotifyMoves,
		NotifyChallenges:  in.NotifyChallenges,
		NotifyTournaments: in.NotifyTournaments,
		Display:           in.Display,
	})
}

func (a *api) star(r *http.Request, in *StarPath) (tabletop.User, error) {
	return services(r).Users.Star(r.Context(), caller(r), in.GameID)
}

func (a *api) unstar(r *http.Request, in *StarPath) (tabletop.User, error) {
	return services(r).Users.Unstar(r.Context(), caller(r), in.GameID)
}
