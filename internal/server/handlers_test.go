package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/playperu/tabletop/internal/tabletop"
)

func TestMissingBodyFieldRejectedBeforeHandler(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/challenges", "alice", map[string]any{"invitees": []string{"bob"}})
	resp := wantError(t, rec, http.StatusBadRequest, CodeValidation)

	details, _ := resp.Error.Details.([]any)
	found := false
	for _, d := range details {
		fe, _ := d.(map[string]any)
		if fe["field"] == "gameId" && fe["constraint"] == "required" {
			found = true
		}
	}
	if !found {
		t.Errorf("details = %v, want gameId/required", resp.Error.Details)
	}

	lists := decode[ChallengeLists](t, env.do(http.MethodGet, "/v1/me/challenges", "bob", nil))
	if len(lists.Received) != 0 {
		t.Errorf("bob received %d challenges after a rejected request", len(lists.Received))
	}
}

func TestBindingErrors(t *testing.T) {
	env := newTestEnv(t, 100)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   string
		field  string
	}{
		{name: "malformed json", method: http.MethodPost, path: "/v1/challenges", body: `{"gameId":`, code: CodeInvalidBody},
		{name: "wrong json type", method: http.MethodPost, path: "/v1/challenges", body: `{"gameId":7}`, code: CodeInvalidBody},
		{name: "query type", method: http.MethodGet, path: "/v1/games?limit=many", code: CodeValidation, field: "limit"},
		{name: "query enum", method: http.MethodGet, path: "/v1/games?status=paused", code: CodeValidation, field: "status"},
		{name: "nested field", method: http.MethodPost, path: "/v1/push/subscriptions",
			body: map[string]any{"endpoint": "https://push.example.com/1", "keys": map[string]string{"auth": "a"}},
			code: CodeValidation, field: "keys.p256dh"},
		{name: "both winner and draw", method: http.MethodPut, path: "/v1/events/e1/games/g1/result",
			body: map[string]any{"winner": "bob", "draw": true}, code: CodeValidation, field: "winner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, "alice", tt.body)
			resp := wantError(t, rec, http.StatusBadRequest, tt.code)
			if tt.field == "" {
				return
			}
			if !strings.Contains(mustJSON(t, resp.Error.Details), `"field":"`+tt.field+`"`) {
				t.Errorf("details = %v, want field %s", resp.Error.Details, tt.field)
			}
		})
	}
}

func TestRevokeByNonIssuerIsForbidden(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/challenges", "alice", map[string]any{
		"gameId":   "amazons",
		"invitees": []string{"bob"},
	})
	wantStatus(t, rec, http.StatusCreated)
	c := decode[tabletop.Challenge](t, rec)
	if got, want := rec.Header().Get("Location"), testBaseURL+"/v1/challenges/"+c.ID; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}

	wantError(t, env.do(http.MethodDelete, "/v1/challenges/"+c.ID, "bob", nil), http.StatusForbidden, CodeForbidden)

	still := decode[tabletop.Challenge](t, env.do(http.MethodGet, "/v1/challenges/"+c.ID, "", nil))
	if still.ID != c.ID || still.Status != tabletop.ChallengePending {
		t.Errorf("challenge after rejected revoke = %+v", still)
	}

	wantStatus(t, env.do(http.MethodDelete, "/v1/challenges/"+c.ID, "alice", nil), http.StatusNoContent)
	wantError(t, env.do(http.MethodGet, "/v1/challenges/"+c.ID, "", nil), http.StatusNotFound, CodeNotFound)
}

func TestAcceptChallengeStartsGame(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/challenges", "alice", map[string]any{
		"gameId":   "amazons",
		"invitees": []string{"bob"},
		"seating":  "issuer-first",
	})
	wantStatus(t, rec, http.StatusCreated)
	c := decode[tabletop.Challenge](t, rec)

	wantError(t, env.do(http.MethodPost, "/v1/challenges/"+c.ID+"/accept", "carol", nil), http.StatusForbidden, CodeForbidden)

	rec = env.do(http.MethodPost, "/v1/challenges/"+c.ID+"/accept", "bob", nil)
	wantStatus(t, rec, http.StatusOK)
	res := decode[AcceptResult](t, rec)
	if res.Game == nil {
		t.Fatal("no game after the only invitee accepted")
	}
	if len(res.Game.Players) != 2 || res.Game.Players[0] != "alice" || res.Game.Players[1] != "bob" {
		t.Errorf("players = %v, want [alice bob]", res.Game.Players)
	}
	if res.Challenge.Status != tabletop.ChallengeAccepted {
		t.Errorf("challenge status = %q", res.Challenge.Status)
	}

	wantStatus(t, env.do(http.MethodGet, "/v1/games/"+res.Game.ID, "", nil), http.StatusOK)
	wantError(t, env.do(http.MethodGet, "/v1/challenges/"+c.ID, "", nil), http.StatusNotFound, CodeNotFound)
}

func TestEventRegistration(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/events", "olga", map[string]any{
		"name":   "Spring open",
		"gameId": "amazons",
	})
	wantStatus(t, rec, http.StatusCreated)
	e := decode[tabletop.Event](t, rec)
	base := "/v1/events/" + e.ID

	t.Run("drafts are hidden", func(t *testing.T) {
		wantError(t, env.do(http.MethodGet, base, "bob", nil), http.StatusNotFound, CodeNotFound)
		wantError(t, env.do(http.MethodPost, base+"/registrations", "bob", nil), http.StatusNotFound, CodeNotFound)
		if list := decode[[]tabletop.Event](t, env.do(http.MethodGet, "/v1/events", "", nil)); len(list) != 0 {
			t.Errorf("anonymous list = %d events, want 0", len(list))
		}
		if list := decode[[]tabletop.Event](t, env.do(http.MethodGet, "/v1/events", "olga", nil)); len(list) != 1 {
			t.Errorf("organizer list = %d events, want 1", len(list))
		}
	})

	wantError(t, env.do(http.MethodPost, base+"/publish", "bob", nil), http.StatusNotFound, CodeNotFound)
	wantStatus(t, env.do(http.MethodPost, base+"/publish", "olga", nil), http.StatusOK)

	wantStatus(t, env.do(http.MethodPost, base+"/registrations", "bob", nil), http.StatusOK)
	wantError(t, env.do(http.MethodPost, base+"/registrations", "bob", nil), http.StatusConflict, CodeConflict)

	wantStatus(t, env.do(http.MethodDelete, base+"/registrations/me", "bob", nil), http.StatusOK)
	wantError(t, env.do(http.MethodDelete, base+"/registrations/me", "bob", nil), http.StatusNotFound, CodeNotFound)

	rec = env.do(http.MethodPost, base+"/registrations", "bob", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[tabletop.Event](t, rec); !got.Registered("bob") {
		t.Errorf("players = %v, want bob registered again", got.Players)
	}

	t.Run("games between registered players", func(t *testing.T) {
		wantStatus(t, env.do(http.MethodPost, base+"/registrations", "carol", nil), http.StatusOK)

		wantError(t, env.do(http.MethodPost, base+"/games", "bob", map[string]any{"players": []string{"bob", "carol"}}),
			http.StatusForbidden, CodeForbidden)

		rec := env.do(http.MethodPost, base+"/games", "olga", map[string]any{"players": []string{"bob", "carol"}})
		wantStatus(t, rec, http.StatusCreated)
		res := decode[EventGameResult](t, rec)
		if got, want := rec.Header().Get("Location"), testBaseURL+"/v1/games/"+res.Game.ID; got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}

		rec = env.do(http.MethodPut, base+"/games/"+res.Game.ID+"/result", "olga", map[string]any{"winner": "carol"})
		wantStatus(t, rec, http.StatusOK)
		ev := decode[tabletop.Event](t, rec)
		if len(ev.Games) != 1 || ev.Games[0].Result == nil || ev.Games[0].Result.Winner != "carol" {
			t.Errorf("event games = %+v", ev.Games)
		}
	})
}

func TestGamePlay(t *testing.T) {
	env := newTestEnv(t, 100)

	wantError(t, env.do(http.MethodPost, "/v1/games", defaultUser, map[string]any{
		"gameId": "amazons", "players": []string{"bob", "carol"},
	}), http.StatusBadRequest, CodeValidation)

	rec := env.do(http.MethodPost, "/v1/games", defaultUser, map[string]any{
		"gameId": "amazons", "players": []string{defaultUser, "bob"},
	})
	wantStatus(t, rec, http.StatusCreated)
	g := decode[tabletop.Instance](t, rec)
	if got, want := rec.Header().Get("Location"), testBaseURL+"/v1/games/"+g.ID; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	moves := "/v1/games/" + g.ID + "/moves"

	wantError(t, env.do(http.MethodPost, moves, "carol", map[string]any{"move": "d1-d7"}), http.StatusForbidden, CodeForbidden)
	wantError(t, env.do(http.MethodPost, moves, "bob", map[string]any{"move": "d1-d7"}), http.StatusForbidden, CodeForbidden)
	wantStatus(t, env.do(http.MethodPost, moves, defaultUser, map[string]any{"move": "d1-d7"}), http.StatusOK)

	rec = env.do(http.MethodPost, moves, "bob", map[string]any{"move": "g10-g4", "outcome": "win"})
	wantStatus(t, rec, http.StatusOK)
	g = decode[tabletop.Instance](t, rec)
	if g.Status != tabletop.GameFinished || len(g.Moves) != 2 {
		t.Errorf("game = status %q, %d moves", g.Status, len(g.Moves))
	}

	wantError(t, env.do(http.MethodPost, moves, defaultUser, map[string]any{"move": "a1-a2"}), http.StatusConflict, CodeConflict)

	mine := decode[[]tabletop.Instance](t, env.do(http.MethodGet, "/v1/games?player=bob&status=finished", "", nil))
	if len(mine) != 1 || mine[0].ID != g.ID {
		t.Errorf("finished games of bob = %d", len(mine))
	}
}

func TestGameStream(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/games", defaultUser, map[string]any{
		"gameId": "amazons", "players": []string{defaultUser, "bob"},
	})
	wantStatus(t, rec, http.StatusCreated)
	g := decode[tabletop.Instance](t, rec)

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/games/"+g.ID+"/stream", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	events := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	next := func() string {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for an event")
			return ""
		}
	}

	if ev := next(); ev != "state" {
		t.Fatalf("first event = %q, want state", ev)
	}
	wantStatus(t, env.do(http.MethodPost, "/v1/games/"+g.ID+"/moves", defaultUser, map[string]any{"move": "d1-d7"}), http.StatusOK)
	if ev := next(); ev != "move" {
		t.Fatalf("second event = %q, want move", ev)
	}
	wantStatus(t, env.do(http.MethodPost, "/v1/games/"+g.ID+"/resign", "bob", nil), http.StatusOK)
	if ev := next(); ev != "finished" {
		t.Fatalf("third event = %q, want finished", ev)
	}
	select {
	case ev, ok := <-events:
		if ok {
			t.Errorf("event %q after finished", ev)
		}
	case <-ctx.Done():
		t.Fatal("stream still open after the game finished")
	}
}

func TestTournamentRounds(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/tournaments", "alice", map[string]any{
		"gameId": "amazons", "name": "Weekly",
	})
	wantStatus(t, rec, http.StatusCreated)
	tr := decode[tabletop.Tournament](t, rec)
	base := "/v1/tournaments/" + tr.ID

	for _, p := range []string{"bob", "carol", "dave", "erin", "fay"} {
		wantStatus(t, env.do(http.MethodPost, base+"/players", p, nil), http.StatusOK)
	}
	wantError(t, env.do(http.MethodPost, base+"/players", "bob", nil), http.StatusConflict, CodeConflict)
	wantStatus(t, env.do(http.MethodDelete, base+"/players/me", "fay", nil), http.StatusOK)
	wantError(t, env.do(http.MethodDelete, base+"/players/me", "fay", nil), http.StatusNotFound, CodeNotFound)

	open := decode[[]tabletop.Tournament](t, env.do(http.MethodGet, "/v1/tournaments?status=open", "", nil))
	if len(open) != 1 {
		t.Fatalf("open tournaments = %d, want 1", len(open))
	}

	rec = env.do(http.MethodPost, base+"/rounds", "alice", nil)
	wantStatus(t, rec, http.StatusOK)
	round := decode[RoundResult](t, rec)
	if round.Tournament.Round != 1 || len(round.Games) != 2 {
		t.Fatalf("round %d with %d games, want round 1 with 2", round.Tournament.Round, len(round.Games))
	}
	wantError(t, env.do(http.MethodPost, base+"/players", "gus", nil), http.StatusConflict, CodeConflict)

	wantStatus(t, env.do(http.MethodPost, base+"/end", "alice", nil), http.StatusOK)
	archived := decode[[]tabletop.Tournament](t, env.do(http.MethodGet, "/v1/tournaments?status=archived", "", nil))
	if len(archived) != 1 {
		t.Errorf("archived tournaments = %d, want 1", len(archived))
	}
}

func TestStandingChallenge(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/standing-challenges", "alice", map[string]any{"gameId": "amazons", "limit": 1})
	wantStatus(t, rec, http.StatusCreated)
	sc := decode[tabletop.StandingChallenge](t, rec)

	list := decode[[]tabletop.StandingChallenge](t, env.do(http.MethodGet, "/v1/standing-challenges?gameId=amazons", "", nil))
	if len(list) != 1 {
		t.Fatalf("standing challenges = %d, want 1", len(list))
	}

	rec = env.do(http.MethodPost, "/v1/standing-challenges/"+sc.ID+"/accept", "bob", nil)
	wantStatus(t, rec, http.StatusCreated)
	g := decode[tabletop.Instance](t, rec)
	if !g.HasPlayer("alice") || !g.HasPlayer("bob") {
		t.Errorf("players = %v", g.Players)
	}

	wantError(t, env.do(http.MethodDelete, "/v1/standing-challenges/"+sc.ID, "bob", nil), http.StatusForbidden, CodeForbidden)
	wantStatus(t, env.do(http.MethodDelete, "/v1/standing-challenges/"+sc.ID, "alice", nil), http.StatusNoContent)
}

func TestPushSubscriptions(t *testing.T) {
	env := newTestEnv(t, 100)
	body := map[string]any{
		"endpoint": "https://push.example.com/abc",
		"keys":     map[string]string{"p256dh": "key", "auth": "secret"},
	}

	rec := env.do(http.MethodPost, "/v1/push/subscriptions", "alice", body)
	wantStatus(t, rec, http.StatusCreated)
	sub := decode[tabletop.PushSubscription](t, rec)

	again := decode[tabletop.PushSubscription](t, env.do(http.MethodPost, "/v1/push/subscriptions", "alice", body))
	if again.ID != sub.ID {
		t.Errorf("resubscribing created %s, want %s", again.ID, sub.ID)
	}

	wantError(t, env.do(http.MethodDelete, "/v1/push/subscriptions/"+sub.ID, "bob", nil), http.StatusForbidden, CodeForbidden)
	wantStatus(t, env.do(http.MethodDelete, "/v1/push/subscriptions/"+sub.ID, "alice", nil), http.StatusNoContent)
	if list := decode[[]tabletop.PushSubscription](t, env.do(http.MethodGet, "/v1/push/subscriptions", "alice", nil)); len(list) != 0 {
		t.Errorf("subscriptions after unsubscribe = %d", len(list))
	}
}

func TestBotAndFederation(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/v1/bot/move", "alice", map[string]any{
		"gameId": "amazons", "legalMoves": []string{"a1-a2"},
	})
	wantStatus(t, rec, http.StatusOK)
	if mv := decode[tabletop.BotMove](t, rec); mv.Move != "a1-a2" {
		t.Errorf("bot move = %q", mv.Move)
	}
	wantError(t, env.do(http.MethodPost, "/v1/bot/move", "alice", map[string]any{
		"gameId": "amazons", "legalMoves": []string{},
	}), http.StatusBadRequest, CodeValidation)

	servers := decode[[]tabletop.FederationServer](t, env.do(http.MethodGet, "/v1/federation/servers", "", nil))
	if len(servers) != 1 || servers[0].Name != "north" {
		t.Errorf("servers = %v", servers)
	}

	rec = env.do(http.MethodPost, "/v1/federation/games", "alice", map[string]any{
		"server": "north", "gameId": "amazons", "players": []string{"alice", "bob"},
	})
	wantStatus(t, rec, http.StatusCreated)
	fg := decode[tabletop.FederatedGame](t, rec)
	wantStatus(t, env.do(http.MethodGet, "/v1/federation/games/"+fg.ID, "", nil), http.StatusOK)

	wantError(t, env.do(http.MethodPost, "/v1/federation/games", "alice", map[string]any{
		"server": "south", "gameId": "amazons", "players": []string{"alice", "bob"},
	}), http.StatusBadRequest, CodeValidation)
}
