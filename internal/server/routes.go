package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/tabletop/internal/auth"
	"github.com/playperu/tabletop/internal/ratelimit"
	"github.com/playperu/tabletop/internal/registry"
)

// route is one entry of the route table. Both the router and the API
// description are built from it.
type route struct {
	method      string
	path        string
	tag         string
	summary     string
	description string
	// auth routes reject anonymous callers.
	auth     bool
	errors   []int
	endpoint endpoint
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Logger            *slog.Logger
	Services          *registry.Services
	Resolver          *auth.Resolver
	Limiter           *ratelimit.Limiter
	Metrics           Metrics
	Health            http.Handler
	CORSOrigin        string
	PublicBaseURL     string
	Version           string
	ValidateResponses bool
}

// Metrics instruments the handler. A nil Metrics disables instrumentation.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
	RateLimited()
	TrackStreams(count func() int)
}

const (
	tagCatalog      = "catalog"
	tagUsers        = "users"
	tagGames        = "games"
	tagChallenges   = "challenges"
	tagTournaments  = "tournaments"
	tagEvents       = "events"
	tagExplorations = "explorations"
	tagPush         = "push"
	tagBot          = "bot"
	tagFederation   = "federation"
)

func (a *api) routes() []route {
	const (
		notFound  = http.StatusNotFound
		forbidden = http.StatusForbidden
		conflict  = http.StatusConflict
	)
	return []route{
		{method: http.MethodGet, path: "/v1/catalog", tag: tagCatalog,
			summary: "List catalog games", description: "Lists the games available on the platform, optionally filtered by tag.",
			endpoint: op(a, http.StatusOK, a.listCatalog)},
		{method: http.MethodGet, path: "/v1/catalog/{gameId}", tag: tagCatalog,
			summary: "Get catalog game", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getCatalogGame)},

		{method: http.MethodGet, path: "/v1/users/{userId}", tag: tagUsers,
			summary: "Get user profile", description: "Public profile of a user who has used the API at least once.",
			errors: []int{notFound}, endpoint: op(a, http.StatusOK, a.getProfile)},
		{method: http.MethodGet, path: "/v1/me", tag: tagUsers, auth: true,
			summary: "Get own user", endpoint: op(a, http.StatusOK, a.getMe)},
		{method: http.MethodPut, path: "/v1/me", tag: tagUsers, auth: true,
			summary: "Update own profile", endpoint: op(a, http.StatusOK, a.updateMe)},
		{method: http.MethodPut, path: "/v1/me/settings", tag: tagUsers, auth: true,
			summary: "Replace own settings", endpoint: op(a, http.StatusOK, a.updateSettings)},
		{method: http.MethodPut, path: "/v1/me/stars/{gameId}", tag: tagUsers, auth: true,
			summary: "Star a catalog game", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.star)},
		{method: http.MethodDelete, path: "/v1/me/stars/{gameId}", tag: tagUsers, auth: true,
			summary: "Unstar a catalog game", endpoint: op(a, http.StatusOK, a.unstar)},

		{method: http.MethodGet, path: "/v1/games", tag: tagGames,
			summary: "List game instances", endpoint: op(a, http.StatusOK, a.listGames)},
		{method: http.MethodPost, path: "/v1/games", tag: tagGames, auth: true,
			summary: "Create game instance", description: "Starts a game directly between the given players. The caller must be one of them.",
			endpoint: created(a, a.createGame, gameLocation)},
		{method: http.MethodGet, path: "/v1/games/{instanceId}", tag: tagGames,
			summary: "Get game instance", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getGame)},
		{method: http.MethodGet, path: "/v1/games/{instanceId}/stream", tag: tagGames,
			summary: "Stream game updates", description: "Server-Sent Events: a state event, then move and finished events.",
			errors: []int{notFound}, endpoint: a.streamGame()},
		{method: http.MethodPost, path: "/v1/games/{instanceId}/moves", tag: tagGames, auth: true,
			summary: "Submit move", description: "Only the player to move may submit. Finished games accept no moves.",
			errors: []int{notFound, forbidden, conflict}, endpoint: op(a, http.StatusOK, a.submitMove)},
		{method: http.MethodPost, path: "/v1/games/{instanceId}/resign", tag: tagGames, auth: true,
			summary: "Resign", errors: []int{notFound, forbidden, conflict},
			endpoint: op(a, http.StatusOK, a.resign)},
		{method: http.MethodPost, path: "/v1/games/{instanceId}/timeout", tag: tagGames, auth: true,
			summary: "Claim timeout", description: "Ends the game once the player to move has run out of clock time.",
			errors: []int{notFound, forbidden, conflict}, endpoint: op(a, http.StatusOK, a.claimTimeout)},
		{method: http.MethodPut, path: "/v1/games/{instanceId}/note", tag: tagGames, auth: true,
			summary: "Save private note", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.setNote)},
		{method: http.MethodGet, path: "/v1/games/{instanceId}/note", tag: tagGames, auth: true,
			summary: "Get private note", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getNote)},
		{method: http.MethodGet, path: "/v1/games/{instanceId}/comments", tag: tagGames,
			summary: "List comments", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.listComments)},
		{method: http.MethodPost, path: "/v1/games/{instanceId}/comments", tag: tagGames, auth: true,
			summary: "Add comment", errors: []int{notFound},
			endpoint: op(a, http.StatusCreated, a.addComment)},

		{method: http.MethodPost, path: "/v1/challenges", tag: tagChallenges, auth: true,
			summary: "Issue challenge", endpoint: created(a, a.createChallenge, challengeLocation)},
		{method: http.MethodGet, path: "/v1/challenges/{challengeId}", tag: tagChallenges,
			summary: "Get challenge", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getChallenge)},
		{method: http.MethodGet, path: "/v1/me/challenges", tag: tagChallenges, auth: true,
			summary: "List own challenges", endpoint: op(a, http.StatusOK, a.myChallenges)},
		{method: http.MethodPost, path: "/v1/challenges/{challengeId}/accept", tag: tagChallenges, auth: true,
			summary: "Accept challenge", description: "Once every invitee has accepted, the game is created and returned.",
			errors: []int{notFound, forbidden, conflict}, endpoint: op(a, http.StatusOK, a.acceptChallenge)},
		{method: http.MethodPost, path: "/v1/challenges/{challengeId}/decline", tag: tagChallenges, auth: true,
			summary: "Decline challenge", errors: []int{notFound, forbidden},
			endpoint: op(a, http.StatusNoContent, a.declineChallenge)},
		{method: http.MethodDelete, path: "/v1/challenges/{challengeId}", tag: tagChallenges, auth: true,
			summary: "Revoke challenge", description: "Only the issuer may revoke.",
			errors: []int{notFound, forbidden}, endpoint: op(a, http.StatusNoContent, a.revokeChallenge)},

		{method: http.MethodPost, path: "/v1/standing-challenges", tag: tagChallenges, auth: true,
			summary: "Post standing challenge", endpoint: created(a, a.createStanding, standingLocation)},
		{method: http.MethodGet, path: "/v1/standing-challenges", tag: tagChallenges,
			summary: "List standing challenges", endpoint: op(a, http.StatusOK, a.listStanding)},
		{method: http.MethodDelete, path: "/v1/standing-challenges/{standingId}", tag: tagChallenges, auth: true,
			summary: "Withdraw standing challenge", errors: []int{notFound, forbidden},
			endpoint: op(a, http.StatusNoContent, a.deleteStanding)},
		{method: http.MethodPost, path: "/v1/standing-challenges/{standingId}/accept", tag: tagChallenges, auth: true,
			summary: "Accept standing challenge", description: "Starts a game against the owner. The challenge stays open.",
			errors: []int{notFound, conflict}, endpoint: created(a, a.acceptStanding, gameLocation)},

		{method: http.MethodPost, path: "/v1/tournaments", tag: tagTournaments, auth: true,
			summary: "Create tournament", endpoint: created(a, a.createTournament, tournamentLocation)},
		{method: http.MethodGet, path: "/v1/tournaments", tag: tagTournaments,
			summary: "List tournaments", endpoint: op(a, http.StatusOK, a.listTournaments)},
		{method: http.MethodGet, path: "/v1/tournaments/{tournamentId}", tag: tagTournaments,
			summary: "Get tournament", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getTournament)},
		{method: http.MethodPost, path: "/v1/tournaments/{tournamentId}/players", tag: tagTournaments, auth: true,
			summary: "Join tournament", description: "Joins before the start and assigns a division.",
			errors: []int{notFound, conflict}, endpoint: op(a, http.StatusOK, a.joinTournament)},
		{method: http.MethodDelete, path: "/v1/tournaments/{tournamentId}/players/me", tag: tagTournaments, auth: true,
			summary: "Withdraw from tournament", errors: []int{notFound, conflict},
			endpoint: op(a, http.StatusOK, a.withdrawTournament)},
		{method: http.MethodPost, path: "/v1/tournaments/{tournamentId}/rounds", tag: tagTournaments, auth: true,
			summary: "Start next round", description: "Starts the tournament on the first call and pairs the next round in every division.",
			errors: []int{notFound, conflict}, endpoint: op(a, http.StatusOK, a.nextRound)},
		{method: http.MethodPost, path: "/v1/tournaments/{tournamentId}/end", tag: tagTournaments, auth: true,
			summary: "End tournament", errors: []int{notFound, conflict},
			endpoint: op(a, http.StatusOK, a.endTournament)},

		{method: http.MethodPost, path: "/v1/events", tag: tagEvents, auth: true,
			summary: "Create event", description: "Creates a draft event organized by the caller.",
			endpoint: created(a, a.createEvent, eventLocation)},
		{method: http.MethodGet, path: "/v1/events", tag: tagEvents,
			summary: "List events", description: "Published events, plus the caller's own drafts.",
			endpoint: op(a, http.StatusOK, a.listEvents)},
		{method: http.MethodGet, path: "/v1/events/{eventId}", tag: tagEvents,
			summary: "Get event", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getEvent)},
		{method: http.MethodPut, path: "/v1/events/{eventId}", tag: tagEvents, auth: true,
			summary: "Update event", errors: []int{notFound, forbidden},
			endpoint: op(a, http.StatusOK, a.updateEvent)},
		{method: http.MethodPost, path: "/v1/events/{eventId}/publish", tag: tagEvents, auth: true,
			summary: "Publish event", errors: []int{notFound, forbidden, conflict},
			endpoint: op(a, http.StatusOK, a.publishEvent)},
		{method: http.MethodPost, path: "/v1/events/{eventId}/registrations", tag: tagEvents, auth: true,
			summary: "Register for event", description: "Registering twice is a conflict.",
			errors: []int{notFound, conflict}, endpoint: op(a, http.StatusOK, a.registerEvent)},
		{method: http.MethodDelete, path: "/v1/events/{eventId}/registrations/me", tag: tagEvents, auth: true,
			summary: "Withdraw registration", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.withdrawEvent)},
		{method: http.MethodPost, path: "/v1/events/{eventId}/games", tag: tagEvents, auth: true,
			summary: "Add event game", description: "Pairs registered players in a new game.",
			errors: []int{notFound, forbidden}, endpoint: created(a, a.addEventGame, eventGameLocation)},
		{method: http.MethodPut, path: "/v1/events/{eventId}/games/{gameInstanceId}/result", tag: tagEvents, auth: true,
			summary: "Report event game result", errors: []int{notFound, forbidden},
			endpoint: op(a, http.StatusOK, a.reportResult)},

		{method: http.MethodPut, path: "/v1/explorations/{instanceId}", tag: tagExplorations, auth: true,
			summary: "Save exploration", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.saveExploration)},
		{method: http.MethodGet, path: "/v1/explorations/{instanceId}", tag: tagExplorations, auth: true,
			summary: "Get own exploration", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getExploration)},
		{method: http.MethodGet, path: "/v1/explorations/{instanceId}/public", tag: tagExplorations,
			summary: "List public explorations", endpoint: op(a, http.StatusOK, a.publicExplorations)},

		{method: http.MethodPost, path: "/v1/push/subscriptions", tag: tagPush, auth: true,
			summary: "Subscribe to push notifications", description: "Subscribing the same endpoint twice returns the existing subscription.",
			endpoint: created(a, a.subscribePush, subscriptionLocation)},
		{method: http.MethodGet, path: "/v1/push/subscriptions", tag: tagPush, auth: true,
			summary: "List own push subscriptions", endpoint: op(a, http.StatusOK, a.listPush)},
		{method: http.MethodDelete, path: "/v1/push/subscriptions/{subscriptionId}", tag: tagPush, auth: true,
			summary: "Unsubscribe", errors: []int{notFound, forbidden},
			endpoint: op(a, http.StatusNoContent, a.unsubscribePush)},

		{method: http.MethodPost, path: "/v1/bot/move", tag: tagBot, auth: true,
			summary: "Ask the bot for a move", description: "Picks one of the supplied legal moves.",
			endpoint: op(a, http.StatusOK, a.botMove)},

		{method: http.MethodGet, path: "/v1/federation/servers", tag: tagFederation,
			summary: "List partner servers", endpoint: op(a, http.StatusOK, a.listServers)},
		{method: http.MethodPost, path: "/v1/federation/games", tag: tagFederation, auth: true,
			summary: "Delegate game creation", description: "Hands the game to a partner server.",
			endpoint: created(a, a.delegateGame, federatedLocation)},
		{method: http.MethodGet, path: "/v1/federation/games/{federatedId}", tag: tagFederation,
			summary: "Get delegated game", errors: []int{notFound},
			endpoint: op(a, http.StatusOK, a.getFederated)},
	}
}

// NewHandler builds the full HTTP surface. Platform endpoints sit outside
// the rate limiter so that health checks and scrapes never consume client quota.
func NewHandler(opts HandlerOptions) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &api{
		logger:         logger,
		validate:       newValidator(),
		checkResponses: opts.ValidateResponses,
		broker:         NewBroker(),
		baseURL:        opts.PublicBaseURL,
	}
	table := a.routes()

	spec, err := newOpenAPISpec(table, opts.Version, opts.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(newStructuredLogger(logger))
	r.Use(recoverer(logger))
	if opts.Metrics != nil {
		opts.Metrics.TrackStreams(a.broker.Streams)
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors(opts.CORSOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, newAPIError(http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, newAPIError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path))
	})

	r.Get("/openapi.json", handleOpenAPI(spec))
	r.Mount("/docs", v5emb.New(spec.Info.Title, "/openapi.json", "/docs"))
	if opts.Health != nil {
		r.Mount("/health", opts.Health)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	var counter rejectionCounter
	if opts.Metrics != nil {
		counter = opts.Metrics
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(opts.Limiter, counter))
		r.Use(identify(opts.Resolver))
		r.Use(withServices(opts.Services))

		for _, rt := range table {
			if !rt.auth {
				r.Method(rt.method, rt.path, rt.endpoint.handler)
			}
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(a.ensureUser)
			for _, rt := range table {
				if rt.auth {
					r.Method(rt.method, rt.path, rt.endpoint.handler)
				}
			}
		})
	})

	return r, nil
}

// ensureUser records the caller as a known user before any authenticated
// handler runs.
func (a *api) ensureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := services(r).Users.Ensure(r.Context(), caller(r)); err != nil {
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
