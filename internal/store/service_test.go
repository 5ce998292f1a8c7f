package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"folio/internal/caps"
	"folio/internal/model"
	"folio/internal/reorder"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, err := Store{Dir: t.TempDir()}.Open(context.Background(), Options{
		Now: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if _, err := svc.Seed(context.Background(), DemoSeed()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return svc
}

func groupIDs(t *testing.T, svc *Service, collection, group string) []string {
	t.Helper()
	c, err := svc.LoadCollection(context.Background(), collection)
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	for _, g := range c.Groups {
		if g.Key == group {
			for i, it := range g.Items {
				if it.Position != i {
					t.Fatalf("group %s: position[%d]=%d", group, i, it.Position)
				}
			}
			return reorder.IDs(g.Items)
		}
	}
	t.Fatalf("group %s missing", group)
	return nil
}

func findByTitle(t *testing.T, svc *Service, collection, title string) model.Item {
	t.Helper()
	c, err := svc.LoadCollection(context.Background(), collection)
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	for _, g := range c.Groups {
		for _, it := range g.Items {
			if it.Title == title {
				return it
			}
		}
	}
	t.Fatalf("%s: no item titled %q", collection, title)
	return model.Item{}
}

func TestLoadCollection_GroupsInDisplayOrder(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.LoadCollection(context.Background(), model.CollectionSkills)
	if err != nil {
		t.Fatalf("LoadCollection: %v", err)
	}
	if len(c.Groups) != 2 || c.Groups[0].Key != model.GroupProgress || c.Groups[1].Key != model.GroupCard {
		t.Fatalf("unexpected groups: %+v", c.Groups)
	}
	if got := c.Groups[0].Items[0].Title; got != "Go" {
		t.Fatalf("first progress skill = %q; want Go", got)
	}

	if _, err := svc.LoadCollection(context.Background(), "blog"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown collection; got %v", err)
	}
}

func TestSubmitOrder_IdempotentFullReplace(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ids := groupIDs(t, svc, model.CollectionProjects, model.GroupDefault)
	want := slices.Clone(ids)
	slices.Reverse(want)

	commit := model.OrderCommit{Collection: model.CollectionProjects, Group: model.GroupDefault, IDs: want}
	ack, err := svc.SubmitOrder(ctx, commit)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if !ack.Changed {
		t.Fatalf("first submit should change the order")
	}
	ack, err = svc.SubmitOrder(ctx, commit)
	if err != nil {
		t.Fatalf("SubmitOrder (again): %v", err)
	}
	if ack.Changed {
		t.Fatalf("second identical submit should be a no-op")
	}
	if got := groupIDs(t, svc, model.CollectionProjects, model.GroupDefault); !slices.Equal(got, want) {
		t.Fatalf("stored order %v; want %v", got, want)
	}
}

func TestSubmitOrder_RejectsNonPermutations(t *testing.T) {
	svc := newTestService(t)
	ids := groupIDs(t, svc, model.CollectionServices, model.GroupDefault)
	skill := groupIDs(t, svc, model.CollectionSkills, model.GroupCard)[0]

	bad := [][]string{
		ids[:len(ids)-1],
		append(slices.Clone(ids[:len(ids)-1]), skill),
		append(slices.Clone(ids), ids[0]),
	}
	for _, b := range bad {
		_, err := svc.SubmitOrder(context.Background(), model.OrderCommit{Collection: model.CollectionServices, Group: model.GroupDefault, IDs: b})
		if !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("SubmitOrder(%v) err=%v; want ErrInvalidOrder", b, err)
		}
	}
	if got := groupIDs(t, svc, model.CollectionServices, model.GroupDefault); !slices.Equal(got, ids) {
		t.Fatalf("rejected commits must not change order: %v", got)
	}
}

func TestSubmitOrder_SeqGuard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := groupIDs(t, svc, model.CollectionServices, model.GroupDefault)

	newer := []string{ids[2], ids[0], ids[1]}
	older := []string{ids[1], ids[2], ids[0]}

	if _, err := svc.SubmitOrder(ctx, model.OrderCommit{Collection: model.CollectionServices, Group: model.GroupDefault, IDs: newer, Seq: 20}); err != nil {
		t.Fatalf("SubmitOrder seq 20: %v", err)
	}
	_, err := svc.SubmitOrder(ctx, model.OrderCommit{Collection: model.CollectionServices, Group: model.GroupDefault, IDs: older, Seq: 10})
	if !errors.Is(err, ErrStaleCommit) {
		t.Fatalf("expected ErrStaleCommit; got %v", err)
	}
	ack, err := svc.SubmitOrder(ctx, model.OrderCommit{Collection: model.CollectionServices, Group: model.GroupDefault, IDs: older, Seq: 20})
	if err != nil || ack.Changed {
		t.Fatalf("replayed seq should be acknowledged without applying; ack=%+v err=%v", ack, err)
	}
	if got := groupIDs(t, svc, model.CollectionServices, model.GroupDefault); !slices.Equal(got, newer) {
		t.Fatalf("stored order %v; want %v", got, newer)
	}
}

func TestSubmitToggle_EnforcesCaps(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	third := findByTitle(t, svc, model.CollectionProjects, "Portfolio site")
	fourth := findByTitle(t, svc, model.CollectionProjects, "Terminal dashboard")

	ack, err := svc.SubmitToggle(ctx, model.ToggleCommit{Collection: model.CollectionProjects, ItemID: third.ID, Flag: model.FlagFeatured, Value: true})
	if err != nil || !ack.Changed {
		t.Fatalf("third featured should fit under cap; ack=%+v err=%v", ack, err)
	}
	_, err = svc.SubmitToggle(ctx, model.ToggleCommit{Collection: model.CollectionProjects, ItemID: fourth.ID, Flag: model.FlagFeatured, Value: true})
	if !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("fourth featured: err=%v; want ErrCapExceeded", err)
	}
	var ee *caps.ExceededError
	if !errors.As(err, &ee) || ee.Rule.Max != 3 {
		t.Fatalf("expected caps.ExceededError with max 3; got %v", err)
	}

	// Clearing frees capacity.
	if _, err := svc.SubmitToggle(ctx, model.ToggleCommit{Collection: model.CollectionProjects, ItemID: third.ID, Flag: model.FlagFeatured, Value: false}); err != nil {
		t.Fatalf("unfeature: %v", err)
	}
	if _, err := svc.SubmitToggle(ctx, model.ToggleCommit{Collection: model.CollectionProjects, ItemID: fourth.ID, Flag: model.FlagFeatured, Value: true}); err != nil {
		t.Fatalf("feature after freeing: %v", err)
	}
	if !findByTitle(t, svc, model.CollectionProjects, "Terminal dashboard").Featured {
		t.Fatalf("feature flag not stored")
	}
}

func TestSubmitToggle_ScopedVisibleCap(t *testing.T) {
	svc := newTestService(t)
	rust := findByTitle(t, svc, model.CollectionSkills, "Rust")
	terraform := findByTitle(t, svc, model.CollectionSkills, "Terraform")
	for _, it := range []model.Item{rust, terraform} {
		if _, err := svc.SubmitToggle(context.Background(), model.ToggleCommit{Collection: model.CollectionSkills, ItemID: it.ID, Flag: model.FlagVisible, Value: true}); err != nil {
			t.Fatalf("show %s: %v", it.Title, err)
		}
	}

	_, err := svc.SubmitToggle(context.Background(), model.ToggleCommit{Collection: model.CollectionSkills, ItemID: "nope", Flag: model.FlagVisible, Value: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown item: err=%v; want ErrNotFound", err)
	}
	_, err = svc.SubmitToggle(context.Background(), model.ToggleCommit{Collection: model.CollectionSkills, ItemID: rust.ID, Flag: "pinned", Value: true})
	if err == nil {
		t.Fatalf("unknown flag should be rejected")
	}
}

func TestCreateAndDeleteKeepPositionsContiguous(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	it, err := svc.CreateItem(ctx, NewItem{Collection: model.CollectionServices, Title: "  Code review  "})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if it.Group != model.GroupDefault || it.Position != 3 || it.Title != "Code review" {
		t.Fatalf("unexpected created item: %+v", it)
	}

	ids := groupIDs(t, svc, model.CollectionServices, model.GroupDefault)
	if err := svc.DeleteItem(ctx, model.CollectionServices, ids[1]); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	got := groupIDs(t, svc, model.CollectionServices, model.GroupDefault)
	want := []string{ids[0], ids[2], ids[3]}
	if !slices.Equal(got, want) {
		t.Fatalf("after delete: %v; want %v", got, want)
	}

	if err := svc.DeleteItem(ctx, model.CollectionServices, ids[1]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting twice: err=%v; want ErrNotFound", err)
	}
	if _, err := svc.CreateItem(ctx, NewItem{Collection: model.CollectionProjects, Title: "x", Featured: true}); err != nil {
		t.Fatalf("third featured project should fit: %v", err)
	}
	if _, err := svc.CreateItem(ctx, NewItem{Collection: model.CollectionProjects, Title: "y", Featured: true}); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("fourth featured project: err=%v; want ErrCapExceeded", err)
	}
}

func TestUpdateItemText(t *testing.T) {
	svc := newTestService(t)
	rust := findByTitle(t, svc, model.CollectionSkills, "Rust")
	it, err := svc.UpdateItemText(context.Background(), model.CollectionSkills, rust.ID, "", "60")
	if err != nil {
		t.Fatalf("UpdateItemText: %v", err)
	}
	if it.Title != "Rust" || it.Subtitle != "60" {
		t.Fatalf("unexpected item: %+v", it)
	}
}

func TestEventsRecordAcceptedCommits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := groupIDs(t, svc, model.CollectionServices, model.GroupDefault)
	if _, err := svc.SubmitOrder(ctx, model.OrderCommit{Collection: model.CollectionServices, Group: model.GroupDefault, IDs: []string{ids[1], ids[0], ids[2]}}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	evs, err := svc.Events(ctx, 1)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != "order.replace" {
		t.Fatalf("latest event = %+v; want order.replace", evs)
	}
	all, err := svc.Events(ctx, 0)
	if err != nil {
		t.Fatalf("Events(all): %v", err)
	}
	if len(all) != 2 || all[0].Type != "seed" {
		t.Fatalf("events = %+v; want [seed order.replace]", all)
	}
}

func TestSeedRejectsCapViolations(t *testing.T) {
	svc := newTestService(t)
	f := SeedFile{Collections: map[string]map[string][]SeedItem{
		model.CollectionTestimonials: {model.GroupDefault: {
			{Title: "a", Featured: true},
			{Title: "b", Featured: true},
			{Title: "c", Featured: true},
			{Title: "d", Featured: true},
		}},
	}}
	if _, err := svc.Seed(context.Background(), f); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("Seed err=%v; want ErrCapExceeded", err)
	}
	// Rolled back: the demo testimonials are still there.
	if got := groupIDs(t, svc, model.CollectionTestimonials, model.GroupDefault); len(got) != 3 {
		t.Fatalf("testimonials after failed seed: %v", got)
	}

	if _, err := ParseSeed([]byte("collections:\n  blog:\n    default: []\n")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ParseSeed unknown collection: err=%v", err)
	}
	if _, err := ParseSeed([]byte("collectons: {}\n")); err == nil {
		t.Fatalf("ParseSeed should reject unknown fields")
	}
}
