package engine

import (
	"context"
	"testing"
	"time"

	"cutroom/pkg/timeline"
)

func TestInsertClipDefaultsFromAsset(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	id, err := eng.InsertClip(context.Background(), "layer-2", timeline.Clip{
		AssetID: "vid-1",
		StartMs: 500,
	})
	if err != nil {
		t.Fatalf("InsertClip: %v", err)
	}

	clip, layer := eng.Snapshot().FindClip(id)
	if clip == nil {
		t.Fatal("inserted clip not found")
	}
	if clip.AssetType != timeline.AssetTypeVideo {
		t.Errorf("AssetType = %s, want video", clip.AssetType)
	}
	if clip.DurationMs != 10000 {
		t.Errorf("DurationMs = %d, want asset duration 10000", clip.DurationMs)
	}
	if clip.OutPointMs != 10000 || clip.InPointMs != 0 {
		t.Errorf("source window = [%d, %d], want [0, 10000]", clip.InPointMs, clip.OutPointMs)
	}
	if clip.Speed != 1 || clip.Effects.Opacity != 1 {
		t.Errorf("Speed=%v Opacity=%v, want both 1", clip.Speed, clip.Effects.Opacity)
	}
	// Sorted insert places the new 500ms clip before clip-b at 6000.
	if layer.Clips[0].ID != id {
		t.Errorf("layer order starts with %s, want %s", layer.Clips[0].ID, id)
	}
}

func TestInsertClipNegativeStartFloorsAtZero(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	id, err := eng.InsertClip(context.Background(), "layer-2", timeline.Clip{
		AssetID: "vid-1",
		StartMs: -300,
	})
	if err != nil {
		t.Fatalf("InsertClip: %v", err)
	}
	clip, _ := eng.Snapshot().FindClip(id)
	if clip.StartMs != 0 {
		t.Errorf("StartMs = %d, want 0", clip.StartMs)
	}
}

func TestInsertClipLockedLayerIsNoOp(t *testing.T) {
	tl := testTimeline()
	tl.Layers[1].Locked = true
	eng, persist := newTestEngine(t, tl)

	if _, err := eng.InsertClip(context.Background(), "layer-2", timeline.Clip{AssetID: "vid-1"}); err != nil {
		t.Fatalf("InsertClip: %v", err)
	}
	if n := len(eng.Snapshot().FindLayer("layer-2").Clips); n != 1 {
		t.Errorf("clips = %d, want 1", n)
	}
	if persist.calls != 0 {
		t.Errorf("persist called for a locked-layer insert")
	}
}

func TestInsertClipUnknownAssetIsError(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())
	if _, err := eng.InsertClip(context.Background(), "layer-2", timeline.Clip{AssetID: "missing"}); err == nil {
		t.Fatal("expected error for unknown asset")
	}
}

func TestInsertAudioClipDefaultsFromAsset(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	id, err := eng.InsertAudioClip(context.Background(), "track-1", timeline.AudioClip{
		AssetID: "aud-1",
		StartMs: 5000,
	})
	if err != nil {
		t.Fatalf("InsertAudioClip: %v", err)
	}

	clip, _ := eng.Snapshot().FindAudioClip(id)
	if clip.DurationMs != 8000 {
		t.Errorf("DurationMs = %d, want asset duration 8000", clip.DurationMs)
	}
	if clip.Volume != 1 {
		t.Errorf("Volume = %v, want 1", clip.Volume)
	}
}

func TestDeleteClipCascadesExtractedAudio(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	// Extracted audio inserted mid-session still uses the single-link
	// relation, so deleting its video clip takes it along.
	extractedID, err := eng.InsertAudioClip(context.Background(), "track-1", timeline.AudioClip{
		AssetID:            "aud-1",
		StartMs:            0,
		LinkedVideoClipID:  "clip-a",
		LinkedVideoLayerID: "layer-1",
	})
	if err != nil {
		t.Fatalf("InsertAudioClip: %v", err)
	}

	if err := eng.DeleteClip(context.Background(), "clip-a"); err != nil {
		t.Fatalf("DeleteClip: %v", err)
	}

	snap := eng.Snapshot()
	if c, _ := snap.FindClip("clip-a"); c != nil {
		t.Error("clip-a still present after delete")
	}
	if c, _ := snap.FindAudioClip(extractedID); c != nil {
		t.Error("extracted audio should cascade with its video clip")
	}
	if c, _ := snap.FindAudioClip("audio-a"); c == nil {
		t.Error("unlinked audio-a should survive")
	}
}

func TestDeleteClipLeavesGroupMembers(t *testing.T) {
	tl := testTimeline()
	tl.Groups = []timeline.ClipGroup{{ID: "grp-1"}}
	tl.Layers[0].Clips[0].GroupID = "grp-1"
	tl.AudioTracks[0].Clips[0].GroupID = "grp-1"
	eng, _ := newTestEngine(t, tl)

	if err := eng.DeleteClip(context.Background(), "clip-a"); err != nil {
		t.Fatalf("DeleteClip: %v", err)
	}

	snap := eng.Snapshot()
	audio, _ := snap.FindAudioClip("audio-a")
	if audio == nil {
		t.Fatal("group member audio-a deleted, want left in place")
	}
	if audio.GroupID != "grp-1" {
		t.Errorf("GroupID = %q, want grp-1", audio.GroupID)
	}
}

func TestDeleteClipRecalculatesDuration(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.DeleteClip(context.Background(), "clip-b"); err != nil {
		t.Fatalf("DeleteClip: %v", err)
	}
	if d := eng.Snapshot().DurationMs; d != 4000 {
		t.Errorf("DurationMs = %d, want 4000 after removing the tail clip", d)
	}
}

func TestCreateGroupAndUngroup(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	groupID, err := eng.CreateGroup(context.Background(), "Scene 1", "#00ff00", []string{"clip-a", "audio-a"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if groupID == "" {
		t.Fatal("empty group id")
	}

	snap := eng.Snapshot()
	video, audio := snap.GroupMembers(groupID)
	if len(video) != 1 || len(audio) != 1 {
		t.Fatalf("members = %d video, %d audio; want 1 each", len(video), len(audio))
	}
	if g := snap.FindGroup(groupID); g == nil || g.Name != "Scene 1" {
		t.Errorf("group record = %+v, want name Scene 1", g)
	}

	if err := eng.Ungroup(context.Background(), []string{"clip-a", "audio-a"}); err != nil {
		t.Fatalf("Ungroup: %v", err)
	}
	snap = eng.Snapshot()
	video, audio = snap.GroupMembers(groupID)
	if len(video) != 0 || len(audio) != 0 {
		t.Errorf("members after ungroup = %d video, %d audio; want 0", len(video), len(audio))
	}
	if snap.FindGroup(groupID) == nil {
		t.Error("group record should persist after members leave")
	}
}

func TestSchedulerCoalescesRequests(t *testing.T) {
	var runs int
	s := NewScheduler(time.Hour, func() { runs++ })

	s.Request()
	s.Request()
	s.Request()

	if !s.Tick() {
		t.Fatal("Tick with pending request reported no run")
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1 coalesced run", runs)
	}
	if s.Tick() {
		t.Error("Tick with nothing pending should not run")
	}
	s.Stop()
}
