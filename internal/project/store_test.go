package project

import (
	"path/filepath"
	"testing"

	"cutroom/pkg/timeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cutroom.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetProject(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Create("My Film", "alice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" {
		t.Fatal("empty project id")
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "My Film" || got.Owner != "alice" {
		t.Errorf("loaded project = %+v", got)
	}
	if got.Timeline == nil || len(got.Timeline.Layers) != 1 || len(got.Timeline.AudioTracks) != 1 {
		t.Errorf("default timeline = %+v, want one layer and one track", got.Timeline)
	}
}

func TestSaveTimelineRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("Round trip", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tl := p.Timeline
	tl.Layers[0].Clips = []timeline.Clip{
		{ID: "c1", AssetID: "a1", AssetType: timeline.AssetTypeVideo, StartMs: 0, DurationMs: 2500, OutPointMs: 2500, Speed: 1},
	}
	tl.Recalculate()

	if err := s.SaveTimeline(p.ID, tl); err != nil {
		t.Fatalf("SaveTimeline: %v", err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DurationMs != 2500 {
		t.Errorf("DurationMs = %d, want 2500", got.DurationMs)
	}
	clip, _ := got.Timeline.FindClip("c1")
	if clip == nil || clip.DurationMs != 2500 {
		t.Errorf("reloaded clip = %+v", clip)
	}
}

func TestSaveTimelineUnknownProject(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveTimeline("nope", &timeline.Timeline{}); err == nil {
		t.Error("expected error for unknown project")
	}
}

func TestListProjects(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("First", "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create("Second", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Touch the second project so its updated_at is strictly newer.
	if err := s.Rename(second.ID, "Second renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Timeline != nil {
		t.Error("listing should not decode snapshots")
	}
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("Doomed", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(p.ID); err == nil {
		t.Error("Get after delete should fail")
	}
	if err := s.Delete(p.ID); err == nil {
		t.Error("second delete should fail")
	}
}
