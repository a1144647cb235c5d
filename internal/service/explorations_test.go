package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/playperu/tabletop/internal/tabletop"
)

func TestExplorations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g := must[tabletop.Instance](t)(f.games.Create(ctx, tabletop.NewGame{GameID: "cannon", Players: []string{"a", "b"}}))

	_, err := f.explore.Save(ctx, "a", "missing", json.RawMessage(`{}`), false)
	wantErr(t, err, tabletop.ErrNotFound)
	_, err = f.explore.Get(ctx, "a", g.ID)
	wantErr(t, err, tabletop.ErrNotFound)

	must[tabletop.Exploration](t)(f.explore.Save(ctx, "a", g.ID, json.RawMessage(`{"line":1}`), false))
	must[tabletop.Exploration](t)(f.explore.Save(ctx, "b", g.ID, json.RawMessage(`{"line":2}`), true))
	x := must[tabletop.Exploration](t)(f.explore.Save(ctx, "a", g.ID, json.RawMessage(`{"line":3}`), false))
	if x.ID != "a:"+g.ID {
		t.Errorf("ID = %q", x.ID)
	}

	got := must[tabletop.Exploration](t)(f.explore.Get(ctx, "a", g.ID))
	if string(got.State) != `{"line":3}` {
		t.Errorf("State = %s, want the latest save", got.State)
	}

	public := must[[]tabletop.Exploration](t)(f.explore.Public(ctx, g.ID))
	if len(public) != 1 || public[0].UserID != "b" {
		t.Errorf("Public() = %+v", public)
	}
}

func TestNotesAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g := must[tabletop.Instance](t)(f.games.Create(ctx, tabletop.NewGame{GameID: "cannon", Players: []string{"a", "b"}}))

	_, err := f.explore.GetNote(ctx, "a", g.ID)
	wantErr(t, err, tabletop.ErrNotFound)
	must[tabletop.Note](t)(f.explore.SetNote(ctx, "a", g.ID, "watch the left flank"))
	n := must[tabletop.Note](t)(f.explore.GetNote(ctx, "a", g.ID))
	if n.Text != "watch the left flank" {
		t.Errorf("Text = %q", n.Text)
	}
	_, err = f.explore.GetNote(ctx, "b", g.ID)
	wantErr(t, err, tabletop.ErrNotFound)

	must[tabletop.Comment](t)(f.explore.AddComment(ctx, g.ID, "a", "good game"))
	must[tabletop.Comment](t)(f.explore.AddComment(ctx, g.ID, "b", "thanks"))
	comments := must[[]tabletop.Comment](t)(f.explore.Comments(ctx, g.ID))
	if len(comments) != 2 || comments[0].Text != "good game" {
		t.Errorf("Comments() = %+v", comments)
	}
}
