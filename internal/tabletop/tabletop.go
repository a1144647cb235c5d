// Package tabletop defines the core domain records and service interfaces of
// the game platform. It has no dependencies beyond the standard library.
package tabletop

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// Failure classes returned (wrapped) by every service.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalid         = errors.New("invalid")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type User struct {
	ID        string             `json:"id" validate:"required"`
	Name      string             `json:"name"`
	Email     string             `json:"email,omitempty"`
	Ratings   map[string]float64 `json:"ratings"`
	Settings  Settings           `json:"settings"`
	Stars     []string           `json:"stars"`
	CreatedAt time.Time          `json:"createdAt"`
}

type Settings struct {
	Language          string            `json:"language"`
	NotifyMoves       bool              `json:"notifyMoves"`
	NotifyChallenges  bool              `json:"notifyChallenges"`
	NotifyTournaments bool              `json:"notifyTournaments"`
	Display           map[string]string `json:"display,omitempty"`
}

// DefaultSettings apply to a user created on first reference.
func DefaultSettings() Settings {
	return Settings{
		Language:          "en",
		NotifyMoves:       true,
		NotifyChallenges:  true,
		NotifyTournaments: true,
	}
}

// Clock is a per-player time control in seconds.
type Clock struct {
	InitialSeconds   int `json:"initialSeconds" validate:"min=0,max=86400" maximum:"86400"`
	IncrementSeconds int `json:"incrementSeconds" validate:"min=0,max=3600" maximum:"3600"`
}

type Seating string

const (
	SeatingRandom       Seating = "random"
	SeatingIssuerFirst  Seating = "issuer-first"
	SeatingIssuerSecond Seating = "issuer-second"
)

type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeAccepted ChallengeStatus = "accepted"
	ChallengeDeclined ChallengeStatus = "declined"
	ChallengeRevoked  ChallengeStatus = "revoked"
)

type Challenge struct {
	ID        string          `json:"id" validate:"required"`
	GameID    string          `json:"gameId" validate:"required"`
	Issuer    string          `json:"issuer" validate:"required"`
	Invitees  []string        `json:"invitees" validate:"min=1"`
	Accepted  []string        `json:"accepted"`
	Variants  []string        `json:"variants"`
	Clock     Clock           `json:"clock"`
	Seating   Seating         `json:"seating"`
	Rated     bool            `json:"rated"`
	Note      string          `json:"note,omitempty"`
	Status    ChallengeStatus `json:"status" validate:"oneof=pending accepted declined revoked"`
	CreatedAt time.Time       `json:"createdAt"`
}

// StandingChallenge is an open offer any qualifying opponent may take.
type StandingChallenge struct {
	ID        string    `json:"id" validate:"required"`
	Owner     string    `json:"owner" validate:"required"`
	GameID    string    `json:"gameId"`
	Variants  []string  `json:"variants"`
	Clock     Clock     `json:"clock"`
	Rated     bool      `json:"rated"`
	Limit     int       `json:"limit"`
	Games     []string  `json:"games"`
	CreatedAt time.Time `json:"createdAt"`
}

type GameStatus string

const (
	GameActive   GameStatus = "active"
	GameFinished GameStatus = "finished"
)

type Result string

const (
	ResultWin     Result = "win"
	ResultDraw    Result = "draw"
	ResultResign  Result = "resign"
	ResultTimeout Result = "timeout"
)

type Outcome struct {
	Result  Result   `json:"result" validate:"oneof=win draw resign timeout"`
	Winners []string `json:"winners"`
}

// Origin records what created a game instance.
type Origin struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref,omitempty"`
}

type Move struct {
	Player string    `json:"player"`
	Move   string    `json:"move"`
	At     time.Time `json:"at"`
}

// Instance is one play-through of a catalog game. State is an opaque,
// game-specific document; no rules are enforced on it.
type Instance struct {
	ID         string           `json:"id" validate:"required"`
	GameID     string           `json:"gameId" validate:"required"`
	Players    []string         `json:"players" validate:"min=1"`
	Variants   []string         `json:"variants"`
	Clock      Clock            `json:"clock"`
	TimeLeft   map[string]int64 `json:"timeLeftMs"`
	ToMove     int              `json:"toMove"`
	State      json.RawMessage  `json:"state,omitempty"`
	Moves      []Move           `json:"moves"`
	Status     GameStatus       `json:"status" validate:"oneof=active finished"`
	Outcome    *Outcome         `json:"outcome,omitempty"`
	Rated      bool             `json:"rated"`
	Origin     Origin           `json:"origin"`
	CreatedAt  time.Time        `json:"createdAt"`
	LastMoveAt time.Time        `json:"lastMoveAt"`
}

// PlayerToMove is the user whose turn it is, or "" once finished.
func (g Instance) PlayerToMove() string {
	if g.Status != GameActive || len(g.Players) == 0 {
		return ""
	}
	return g.Players[g.ToMove%len(g.Players)]
}

// HasPlayer reports whether userID is seated in the game.
func (g Instance) HasPlayer(userID string) bool {
	return slices.Contains(g.Players, userID)
}

type TournamentPlayer struct {
	UserID   string    `json:"userId"`
	Division int       `json:"division"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Tournament struct {
	ID        string             `json:"id" validate:"required"`
	GameID    string             `json:"gameId"`
	Name      string             `json:"name"`
	Variants  []string           `json:"variants"`
	Clock     Clock              `json:"clock"`
	Players   []TournamentPlayer `json:"players"`
	Divisions int                `json:"divisions"`
	Round     int                `json:"round"`
	Started   bool               `json:"started"`
	Ended     bool               `json:"ended"`
	Archived  bool               `json:"archived"`
	Games     []string           `json:"games"`
	CreatedBy string             `json:"createdBy"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Status summarises the lifecycle flags.
func (t Tournament) Status() string {
	switch {
	case t.Archived || t.Ended:
		return "archived"
	case t.Started:
		return "running"
	default:
		return "open"
	}
}

// Player returns the entry for userID.
func (t Tournament) Player(userID string) (TournamentPlayer, bool) {
	for _, p := range t.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return TournamentPlayer{}, false
}

type EventResult struct {
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"draw,omitempty"`
}

type EventGame struct {
	InstanceID string       `json:"instanceId"`
	Players    []string     `json:"players"`
	Result     *EventResult `json:"result,omitempty"`
}

type Event struct {
	ID          string      `json:"id" validate:"required"`
	Organizer   string      `json:"organizer" validate:"required"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	GameID      string      `json:"gameId"`
	StartsAt    *time.Time  `json:"startsAt,omitempty"`
	Published   bool        `json:"published"`
	Players     []string    `json:"players"`
	Games       []EventGame `json:"games"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Registered reports whether userID is registered for the event.
func (e Event) Registered(userID string) bool {
	return slices.Contains(e.Players, userID)
}

// Exploration is a user's private sandbox for one game instance.
type Exploration struct {
	ID         string          `json:"id" validate:"required"`
	UserID     string          `json:"userId"`
	InstanceID string          `json:"instanceId"`
	State      json.RawMessage `json:"state"`
	Public     bool            `json:"public"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type Note struct {
	ID         string    `json:"id" validate:"required"`
	UserID     string    `json:"userId"`
	InstanceID string    `json:"instanceId"`
	Text       string    `json:"text"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Comment struct {
	ID         string    `json:"id" validate:"required"`
	InstanceID string    `json:"instanceId"`
	UserID     string    `json:"userId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PushKeys struct {
	P256dh string `json:"p256dh" validate:"required" required:"true"`
	Auth   string `json:"auth" validate:"required" required:"true"`
}

type PushSubscription struct {
	ID        string    `json:"id" validate:"required"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	Keys      PushKeys  `json:"keys"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationKind selects which user setting gates a notification.
type NotificationKind string

const (
	NotifyMove       NotificationKind = "move"
	NotifyChallenge  NotificationKind = "challenge"
	NotifyTournament NotificationKind = "tournament"
)

type Notification struct {
	Kind  NotificationKind `json:"kind"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Ref   string           `json:"ref,omitempty"`
}

type FederationServer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type FederatedGame struct {
	ID        string    `json:"id" validate:"required"`
	Server    string    `json:"server"`
	RemoteURL string    `json:"remoteUrl"`
	GameID    string    `json:"gameId"`
	Players   []string  `json:"players"`
	Requester string    `json:"requester"`
	Status    string    `json:"status" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}
