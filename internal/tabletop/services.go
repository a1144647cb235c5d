package tabletop

import (
	"context"
	"encoding/json"
	"time"
)

type CatalogService interface {
	List(ctx context.Context, tag string) ([]CatalogGame, error)
	Get(ctx context.Context, id string) (CatalogGame, error)
}

type UserService interface {
	Get(ctx context.Context, id string) (User, error)
	// Ensure returns the user, creating it on first reference.
	Ensure(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id, name, email string) (User, error)
	UpdateSettings(ctx context.Context, id string, s Settings) (User, error)
	Star(ctx context.Context, id, gameID string) (User, error)
	Unstar(ctx context.Context, id, gameID string) (User, error)
}

type NewGame struct {
	GameID   string
	Players  []string
	Variants []string
	Clock    Clock
	Rated    bool
	State    json.RawMessage
	Origin   Origin
}

type GameFilter struct {
	GameID string
	Player string
	Status GameStatus
	Limit  int
}

type MoveInput struct {
	Move    string
	State   json.RawMessage
	Outcome Result
}

type GameService interface {
	List(ctx context.Context, f GameFilter) ([]Instance, error)
	Get(ctx context.Context, id string) (Instance, error)
	Create(ctx context.Context, g NewGame) (Instance, error)
	Delete(ctx context.Context, id string) error
	SubmitMove(ctx context.Context, id, player string, m MoveInput) (Instance, error)
	Resign(ctx context.Context, id, player string) (Instance, error)
	ClaimTimeout(ctx context.Context, id, claimant string) (Instance, error)
}

type NewChallenge struct {
	Issuer   string
	GameID   string
	Invitees []string
	Variants []string
	Clock    Clock
	Seating  Seating
	Rated    bool
	Note     string
}

type NewStandingChallenge struct {
	Owner    string
	GameID   string
	Variants []string
	Clock    Clock
	Rated    bool
	Limit    int
}

type ChallengeService interface {
	Create(ctx context.Context, c NewChallenge) (Challenge, error)
	Get(ctx context.Context, id string) (Challenge, error)
	ForUser(ctx context.Context, userID string) (issued, received []Challenge, err error)
	// Accept records the invitee's acceptance. Once every invitee has
	// accepted the game is created and returned.
	Accept(ctx context.Context, id, userID string) (Challenge, *Instance, error)
	Decline(ctx context.Context, id, userID string) error
	Revoke(ctx context.Context, id, userID string) error
	// ExpirePending removes pending challenges created before cutoff.
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)

	CreateStanding(ctx context.Context, c NewStandingChallenge) (StandingChallenge, error)
	ListStanding(ctx context.Context, gameID string) ([]StandingChallenge, error)
	DeleteStanding(ctx context.Context, id, userID string) error
	AcceptStanding(ctx context.Context, id, userID string) (Instance, error)
}

type NewTournament struct {
	CreatedBy string
	GameID    string
	Name      string
	Variants  []string
	Clock     Clock
}

type TournamentFilter struct {
	GameID string
	Status string
}

type TournamentService interface {
	Create(ctx context.Context, t NewTournament) (Tournament, error)
	List(ctx context.Context, f TournamentFilter) ([]Tournament, error)
	Get(ctx context.Context, id string) (Tournament, error)
	Join(ctx context.Context, id, userID string) (Tournament, error)
	Withdraw(ctx context.Context, id, userID string) (Tournament, error)
	// NextRound starts the tournament if needed and creates the games of
	// the next round.
	NextRound(ctx context.Context, id string) (Tournament, []Instance, error)
	End(ctx context.Context, id string) (Tournament, error)
}

type NewEvent struct {
	Organizer   string
	Name        string
	Description string
	GameID      string
	StartsAt    *time.Time
}

type EventUpdate struct {
	Name        string
	Description string
	StartsAt    *time.Time
}

type EventService interface {
	Create(ctx context.Context, e NewEvent) (Event, error)
	// List returns published events plus the viewer's own drafts.
	List(ctx context.Context, viewer string) ([]Event, error)
	// Get hides drafts from everyone but the organizer.
	Get(ctx context.Context, id, viewer string) (Event, error)
	Update(ctx context.Context, id, organizer string, u EventUpdate) (Event, error)
	Publish(ctx context.Context, id, organizer string) (Event, error)
	Register(ctx context.Context, id, userID string) (Event, error)
	Withdraw(ctx context.Context, id, userID string) (Event, error)
	AddGame(ctx context.Context, id, organizer string, players []string) (Event, Instance, error)
	ReportResult(ctx context.Context, id, organizer, instanceID string, r EventResult) (Event, error)
}

type ExplorationService interface {
	Save(ctx context.Context, userID, instanceID string, state json.RawMessage, public bool) (Exploration, error)
	Get(ctx context.Context, userID, instanceID string) (Exploration, error)
	Public(ctx context.Context, instanceID string) ([]Exploration, error)
	SetNote(ctx context.Context, userID, instanceID, text string) (Note, error)
	GetNote(ctx context.Context, userID, instanceID string) (Note, error)
	AddComment(ctx context.Context, instanceID, userID, text string) (Comment, error)
	Comments(ctx context.Context, instanceID string) ([]Comment, error)
}

// Notifier delivers a notification to every subscription of a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) (int, error)
}

type NotificationService interface {
	Notifier
	Subscribe(ctx context.Context, userID, endpoint string, keys PushKeys) (PushSubscription, error)
	Subscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	Unsubscribe(ctx context.Context, id, userID string) error
}

type BotRequest struct {
	GameID     string
	State      json.RawMessage
	LegalMoves []string
}

type BotMove struct {
	Move   string `json:"move" validate:"required"`
	Engine string `json:"engine" validate:"required"`
}

type BotService interface {
	Move(ctx context.Context, req BotRequest) (BotMove, error)
}

type FederationRequest struct {
	Server    string
	GameID    string
	Players   []string
	Requester string
}

type FederationService interface {
	Servers(ctx context.Context) ([]FederationServer, error)
	Delegate(ctx context.Context, req FederationRequest) (FederatedGame, error)
	Get(ctx context.Context, id string) (FederatedGame, error)
}
