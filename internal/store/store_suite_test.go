package store

import (
	"context"
	"errors"
	"testing"

	"presenter/internal/models"
)

// runStoreSuite exercises the Store contract against a backend. Both the
// redis and sqlite implementations must pass it unchanged.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("presentation lifecycle", func(t *testing.T) {
		st := newStore(t)
		p, err := st.CreatePresentation(ctx, "Quarterly Review")
		if err != nil {
			t.Fatalf("create presentation: %v", err)
		}
		if p.ID == "" || p.Title != "Quarterly Review" {
			t.Fatalf("unexpected presentation: %+v", p)
		}

		list, err := st.ListPresentations(ctx)
		if err != nil {
			t.Fatalf("list presentations: %v", err)
		}
		if len(list) != 1 || list[0].ID != p.ID {
			t.Fatalf("unexpected list: %+v", list)
		}

		detail, err := st.GetPresentation(ctx, p.ID)
		if err != nil {
			t.Fatalf("get presentation: %v", err)
		}
		if detail == nil || detail.ID != p.ID {
			t.Fatalf("unexpected detail: %+v", detail)
		}
		if len(detail.Slides) != 0 || len(detail.Sessions) != 0 {
			t.Fatalf("expected empty detail, got %+v", detail)
		}

		missing, err := st.GetPresentation(ctx, "nope")
		if err != nil || missing != nil {
			t.Fatalf("expected (nil, nil) for missing presentation, got %+v, %v", missing, err)
		}
	})

	t.Run("slide index gap survives deletion", func(t *testing.T) {
		st := newStore(t)
		p, err := st.CreatePresentation(ctx, "deck")
		if err != nil {
			t.Fatalf("create presentation: %v", err)
		}

		var slides [3]*models.Slide
		for i := range slides {
			sl, err := st.CreateSlide(ctx, p.ID, i)
			if err != nil {
				t.Fatalf("create slide %d: %v", i, err)
			}
			slides[i] = sl
		}

		if err := st.DeleteSlideCascade(ctx, slides[1].ID); err != nil {
			t.Fatalf("delete slide: %v", err)
		}

		got, err := st.ListSlides(ctx, p.ID)
		if err != nil {
			t.Fatalf("list slides: %v", err)
		}
		if len(got) != 2 || got[0].SlideIndex != 0 || got[1].SlideIndex != 2 {
			t.Fatalf("expected indices [0 2], got %+v", got)
		}

		// New slides keep appending past the gap, never reusing 1.
		if _, err := st.CreateSlide(ctx, p.ID, 3); err != nil {
			t.Fatalf("create slide after gap: %v", err)
		}
		got, err = st.ListSlides(ctx, p.ID)
		if err != nil {
			t.Fatalf("list slides: %v", err)
		}
		if len(got) != 3 || got[2].SlideIndex != 3 {
			t.Fatalf("expected indices [0 2 3], got %+v", got)
		}

		if _, err := st.CreateSlide(ctx, "nope", 0); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing presentation, got %v", err)
		}
	})

	t.Run("slide cascade removes elements", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		sl, err := st.CreateSlide(ctx, p.ID, 0)
		if err != nil {
			t.Fatalf("create slide: %v", err)
		}
		e1, err := st.CreateElement(ctx, sl.ID, "a", models.Position{X: 1, Y: 2}, models.Size{Width: 3, Height: 4})
		if err != nil {
			t.Fatalf("create element: %v", err)
		}
		if _, err := st.CreateElement(ctx, sl.ID, "b", models.Position{}, models.Size{}); err != nil {
			t.Fatalf("create element: %v", err)
		}

		if err := st.DeleteSlideCascade(ctx, sl.ID); err != nil {
			t.Fatalf("delete slide cascade: %v", err)
		}
		detail, err := st.GetSlide(ctx, sl.ID)
		if err != nil || detail != nil {
			t.Fatalf("expected slide gone, got %+v, %v", detail, err)
		}
		if err := st.DeleteElement(ctx, e1.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected elements gone with the slide, got %v", err)
		}

		if err := st.DeleteSlideCascade(ctx, sl.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("session binding and guarded delete", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		sess, err := st.CreateSession(ctx, p.ID, "alice", models.RoleViewer)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		if sess.ConnectionID != "" {
			t.Fatalf("expected unbound session, got %q", sess.ConnectionID)
		}

		found, err := st.FindSessionByName(ctx, p.ID, "alice")
		if err != nil || found == nil || found.ID != sess.ID {
			t.Fatalf("find by name: %+v, %v", found, err)
		}
		if none, err := st.FindSessionByConnection(ctx, ""); err != nil || none != nil {
			t.Fatalf("empty connection id must find nothing, got %+v, %v", none, err)
		}

		if _, err := st.UpdateSessionConnection(ctx, sess.ID, "conn-a"); err != nil {
			t.Fatalf("bind conn-a: %v", err)
		}
		found, err = st.FindSessionByConnection(ctx, "conn-a")
		if err != nil || found == nil || found.ID != sess.ID {
			t.Fatalf("find by connection: %+v, %v", found, err)
		}

		// Rebind to a newer connection; the old binding must be gone so a
		// stale grace timer cannot remove the membership.
		if _, err := st.UpdateSessionConnection(ctx, sess.ID, "conn-b"); err != nil {
			t.Fatalf("rebind conn-b: %v", err)
		}
		if stale, err := st.FindSessionByConnection(ctx, "conn-a"); err != nil || stale != nil {
			t.Fatalf("old binding must be dropped, got %+v, %v", stale, err)
		}
		removed, err := st.DeleteSessionsByConnection(ctx, "conn-a")
		if err != nil || removed != nil {
			t.Fatalf("guarded delete must be a no-op, got %+v, %v", removed, err)
		}
		if found, _ := st.FindSessionByName(ctx, p.ID, "alice"); found == nil {
			t.Fatalf("membership must survive the stale delete")
		}

		removed, err = st.DeleteSessionsByConnection(ctx, "conn-b")
		if err != nil || removed == nil || removed.ID != sess.ID {
			t.Fatalf("expected removal via live binding, got %+v, %v", removed, err)
		}
		if found, _ := st.FindSessionByName(ctx, p.ID, "alice"); found != nil {
			t.Fatalf("membership must be gone, got %+v", found)
		}
	})

	t.Run("session role update", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		sess, _ := st.CreateSession(ctx, p.ID, "bob", models.RoleViewer)

		updated, err := st.UpdateSessionRole(ctx, sess.ID, models.RoleEditor)
		if err != nil {
			t.Fatalf("update role: %v", err)
		}
		if updated.Role != models.RoleEditor {
			t.Fatalf("expected EDITOR, got %s", updated.Role)
		}
		if _, err := st.UpdateSessionRole(ctx, "nope", models.RoleEditor); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sessions list in join order", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		for _, name := range []string{"first", "second", "third"} {
			if _, err := st.CreateSession(ctx, p.ID, name, models.RoleViewer); err != nil {
				t.Fatalf("create session %s: %v", name, err)
			}
		}
		sessions, err := st.ListSessions(ctx, p.ID)
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		if len(sessions) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(sessions))
		}
		for i, want := range []string{"first", "second", "third"} {
			if sessions[i].DisplayName != want {
				t.Fatalf("position %d: expected %s, got %s", i, want, sessions[i].DisplayName)
			}
		}
	})

	t.Run("element lifecycle", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		sl, _ := st.CreateSlide(ctx, p.ID, 0)

		e, err := st.CreateElement(ctx, sl.ID, "hello", models.Position{X: 10, Y: 20}, models.Size{Width: 100, Height: 50})
		if err != nil {
			t.Fatalf("create element: %v", err)
		}

		updated, err := st.UpdateElement(ctx, e.ID, "bye", models.Position{X: 30, Y: 40})
		if err != nil {
			t.Fatalf("update element: %v", err)
		}
		if updated.Content != "bye" || updated.Position.X != 30 || updated.Position.Y != 40 {
			t.Fatalf("unexpected element after update: %+v", updated)
		}
		if updated.Size.Width != 100 || updated.Size.Height != 50 {
			t.Fatalf("size must survive an edit, got %+v", updated.Size)
		}

		if err := st.DeleteElement(ctx, e.ID); err != nil {
			t.Fatalf("delete element: %v", err)
		}
		if err := st.DeleteElement(ctx, e.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, err := st.UpdateElement(ctx, e.ID, "x", models.Position{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update after delete, got %v", err)
		}
		if _, err := st.CreateElement(ctx, "nope", "x", models.Position{}, models.Size{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing slide, got %v", err)
		}
	})

	t.Run("presentation detail aggregates", func(t *testing.T) {
		st := newStore(t)
		p, _ := st.CreatePresentation(ctx, "deck")
		sl, _ := st.CreateSlide(ctx, p.ID, 0)
		if _, err := st.CreateElement(ctx, sl.ID, "title", models.Position{X: 1, Y: 1}, models.Size{Width: 2, Height: 2}); err != nil {
			t.Fatalf("create element: %v", err)
		}
		if _, err := st.CreateSession(ctx, p.ID, "alice", models.RoleCreator); err != nil {
			t.Fatalf("create session: %v", err)
		}

		detail, err := st.GetPresentation(ctx, p.ID)
		if err != nil {
			t.Fatalf("get presentation: %v", err)
		}
		if len(detail.Slides) != 1 || len(detail.Slides[0].Elements) != 1 {
			t.Fatalf("unexpected slides in detail: %+v", detail.Slides)
		}
		if len(detail.Sessions) != 1 || detail.Sessions[0].Role != models.RoleCreator {
			t.Fatalf("unexpected sessions in detail: %+v", detail.Sessions)
		}
	})
}
