package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/playperu/tabletop/internal/store"
	"github.com/playperu/tabletop/internal/tabletop"
)

func TestChallengeCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   tabletop.NewChallenge
	}{
		{"no invitees", tabletop.NewChallenge{Issuer: "a", GameID: "amazons"}},
		{"self challenge", tabletop.NewChallenge{Issuer: "a", GameID: "amazons", Invitees: []string{"a"}}},
		{"unknown game", tabletop.NewChallenge{Issuer: "a", GameID: "go", Invitees: []string{"b"}}},
		{"too many players", tabletop.NewChallenge{Issuer: "a", GameID: "amazons", Invitees: []string{"b", "c"}}},
		{"duplicate invitee", tabletop.NewChallenge{Issuer: "a", GameID: "volcano", Invitees: []string{"b", "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.challenges.Create(ctx, tt.in)
			wantErr(t, err, tabletop.ErrInvalid)
		})
	}
}

func TestChallengeAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{
		Issuer:   "alice",
		GameID:   "volcano",
		Invitees: []string{"bob", "carol"},
		Seating:  tabletop.SeatingIssuerFirst,
	}))
	if c.Status != tabletop.ChallengePending {
		t.Fatalf("Status = %q, want pending", c.Status)
	}
	if len(f.notes.To("bob")) != 1 || len(f.notes.To("carol")) != 1 {
		t.Error("invitees were not notified")
	}

	_, _, err := f.challenges.Accept(ctx, c.ID, "mallory")
	wantErr(t, err, tabletop.ErrForbidden)

	c, g, err := f.challenges.Accept(ctx, c.ID, "bob")
	if err != nil || g != nil {
		t.Fatalf("first Accept() = %v, %v", g, err)
	}
	_, _, err = f.challenges.Accept(ctx, c.ID, "bob")
	wantErr(t, err, tabletop.ErrConflict)

	c, g, err = f.challenges.Accept(ctx, c.ID, "carol")
	if err != nil || g == nil {
		t.Fatalf("final Accept() = %v, %v", g, err)
	}
	if c.Status != tabletop.ChallengeAccepted {
		t.Errorf("Status = %q, want accepted", c.Status)
	}
	if g.Players[0] != "alice" || len(g.Players) != 3 || g.Origin.Ref != c.ID {
		t.Errorf("game = %+v", g)
	}

	_, err = f.challenges.Get(ctx, c.ID)
	wantErr(t, err, tabletop.ErrNotFound)
}

// flakyGames fails the next failures calls to Create.
type flakyGames struct {
	tabletop.GameService
	failures int
}

func (g *flakyGames) Create(ctx context.Context, in tabletop.NewGame) (tabletop.Instance, error) {
	if g.failures > 0 {
		g.failures--
		return tabletop.Instance{}, errors.New("store unavailable")
	}
	return g.GameService.Create(ctx, in)
}

func TestChallengeAcceptRetriesAfterGameCreationFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	games := &flakyGames{GameService: f.games, failures: 1}
	challenges := NewChallenges(
		store.NewMemory[tabletop.Challenge](),
		store.NewMemory[tabletop.StandingChallenge](),
		games, f.catalog, f.notes, slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	c := must[tabletop.Challenge](t)(challenges.Create(ctx, tabletop.NewChallenge{
		Issuer:   "alice",
		GameID:   "amazons",
		Invitees: []string{"bob"},
	}))

	if _, _, err := challenges.Accept(ctx, c.ID, "bob"); err == nil {
		t.Fatal("Accept() succeeded while game creation fails")
	}
	stored := must[tabletop.Challenge](t)(challenges.Get(ctx, c.ID))
	if stored.Status != tabletop.ChallengePending || len(stored.Accepted) != 0 {
		t.Fatalf("after failed accept: status %q, accepted %v", stored.Status, stored.Accepted)
	}

	c, g, err := challenges.Accept(ctx, c.ID, "bob")
	if err != nil || g == nil {
		t.Fatalf("retried Accept() = %v, %v", g, err)
	}
	if c.Status != tabletop.ChallengeAccepted || g.Origin.Ref != c.ID {
		t.Errorf("retried Accept() challenge %+v, game %+v", c, g)
	}
}

func TestChallengeSeating(t *testing.T) {
	c := tabletop.Challenge{Issuer: "i", Invitees: []string{"a", "b"}}

	c.Seating = tabletop.SeatingIssuerSecond
	if got := seat(c); got[0] != "a" || got[1] != "i" || got[2] != "b" {
		t.Errorf("issuer-second = %v", got)
	}
	c.Seating = tabletop.SeatingRandom
	if got := seat(c); len(got) != 3 {
		t.Errorf("random = %v", got)
	}
}

func TestChallengeRevokeByNonIssuer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{
		Issuer: "alice", GameID: "cannon", Invitees: []string{"bob"},
	}))

	wantErr(t, f.challenges.Revoke(ctx, c.ID, "bob"), tabletop.ErrForbidden)
	if _, err := f.challenges.Get(ctx, c.ID); err != nil {
		t.Fatalf("challenge gone after rejected revoke: %v", err)
	}

	if err := f.challenges.Revoke(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("Revoke() by issuer: %v", err)
	}
	_, err := f.challenges.Get(ctx, c.ID)
	wantErr(t, err, tabletop.ErrNotFound)
}

func TestChallengeDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{
		Issuer: "alice", GameID: "cannon", Invitees: []string{"bob"},
	}))
	wantErr(t, f.challenges.Decline(ctx, c.ID, "alice"), tabletop.ErrForbidden)
	if err := f.challenges.Decline(ctx, c.ID, "bob"); err != nil {
		t.Fatalf("Decline(): %v", err)
	}
	if len(f.notes.To("alice")) != 1 {
		t.Error("issuer was not told about the decline")
	}
}

func TestChallengesForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{Issuer: "alice", GameID: "cannon", Invitees: []string{"bob"}}))
	must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{Issuer: "bob", GameID: "cannon", Invitees: []string{"alice"}}))
	must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{Issuer: "bob", GameID: "cannon", Invitees: []string{"carol"}}))

	issued, received, err := f.challenges.ForUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(issued) != 1 || len(received) != 1 {
		t.Errorf("ForUser(alice) = %d issued, %d received", len(issued), len(received))
	}
}

func TestChallengeExpirePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{Issuer: "a", GameID: "cannon", Invitees: []string{"b"}}))
	f.clock.Advance(2 * time.Hour)
	fresh := must[tabletop.Challenge](t)(f.challenges.Create(ctx, tabletop.NewChallenge{Issuer: "a", GameID: "cannon", Invitees: []string{"c"}}))

	n, err := f.challenges.ExpirePending(ctx, f.clock.Now().Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("ExpirePending() = %d, %v; want 1", n, err)
	}
	_, err = f.challenges.Get(ctx, old.ID)
	wantErr(t, err, tabletop.ErrNotFound)
	if _, err := f.challenges.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh challenge removed: %v", err)
	}
}

func TestStandingChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc := must[tabletop.StandingChallenge](t)(f.challenges.CreateStanding(ctx, tabletop.NewStandingChallenge{
		Owner: "alice", GameID: "entropy", Variants: []string{"mini"}, Limit: 1,
	}))

	_, err := f.challenges.AcceptStanding(ctx, sc.ID, "alice")
	wantErr(t, err, tabletop.ErrForbidden)

	g := must[tabletop.Instance](t)(f.challenges.AcceptStanding(ctx, sc.ID, "bob"))
	if !g.HasPlayer("alice") || !g.HasPlayer("bob") {
		t.Fatalf("players = %v", g.Players)
	}

	_, err = f.challenges.AcceptStanding(ctx, sc.ID, "carol")
	wantErr(t, err, tabletop.ErrConflict)

	must[tabletop.Instance](t)(f.games.Resign(ctx, g.ID, "bob"))
	must[tabletop.Instance](t)(f.challenges.AcceptStanding(ctx, sc.ID, "carol"))

	list := must[[]tabletop.StandingChallenge](t)(f.challenges.ListStanding(ctx, "entropy"))
	if len(list) != 1 || len(list[0].Games) != 2 {
		t.Fatalf("ListStanding() = %+v", list)
	}

	wantErr(t, f.challenges.DeleteStanding(ctx, sc.ID, "bob"), tabletop.ErrForbidden)
	if err := f.challenges.DeleteStanding(ctx, sc.ID, "alice"); err != nil {
		t.Fatalf("DeleteStanding(): %v", err)
	}
}
