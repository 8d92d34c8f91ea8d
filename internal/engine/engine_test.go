package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

type stubResolver map[string]AssetInfo

func (r stubResolver) ResolveAsset(id string) (AssetInfo, error) {
	if info, ok := r[id]; ok {
		return info, nil
	}
	return AssetInfo{}, fmt.Errorf("asset %s not found", id)
}

// recordingPersist captures snapshots handed to persistence.
type recordingPersist struct {
	calls     int
	lastID    string
	lastSnap  *timeline.Timeline
	returnErr error
}

func (p *recordingPersist) persist(_ context.Context, id string, snap *timeline.Timeline) error {
	p.calls++
	p.lastID = id
	p.lastSnap = snap
	return p.returnErr
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Layers: []timeline.Layer{
			{
				ID: "layer-1", Name: "Layer 1", Visible: true,
				Clips: []timeline.Clip{
					{
						ID: "clip-a", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
						StartMs: 0, DurationMs: 4000, InPointMs: 0, OutPointMs: 4000, Speed: 1,
					},
				},
			},
			{
				ID: "layer-2", Name: "Layer 2", Visible: true,
				Clips: []timeline.Clip{
					{
						ID: "clip-b", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
						StartMs: 6000, DurationMs: 2000, InPointMs: 0, OutPointMs: 2000, Speed: 1,
					},
				},
			},
		},
		AudioTracks: []timeline.AudioTrack{
			{
				ID: "track-1", Name: "Narration", Type: timeline.TrackNarration, Volume: 1,
				Clips: []timeline.AudioClip{
					{
						ID: "audio-a", AssetID: "aud-1",
						StartMs: 0, DurationMs: 4000, InPointMs: 0, OutPointMs: 4000, Volume: 1,
					},
				},
			},
		},
	}
}

func testAssets() stubResolver {
	return stubResolver{
		"vid-1": {Type: timeline.AssetTypeVideo, DurationMs: 10000, Width: 1920, Height: 1080},
		"aud-1": {Type: timeline.AssetTypeAudio, DurationMs: 8000},
		"img-1": {Type: timeline.AssetTypeImage, Width: 800, Height: 600},
	}
}

func newTestEngine(t *testing.T, tl *timeline.Timeline) (*Engine, *recordingPersist) {
	t.Helper()
	persist := &recordingPersist{}
	eng := New("tl-1", tl, testAssets(), persist.persist, Options{Logger: quietLogger()})
	return eng, persist
}

func TestMoveCommit(t *testing.T) {
	eng, persist := newTestEngine(t, testTimeline())

	// At 1000 px/s one pixel equals one millisecond.
	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1200)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 1200 {
		t.Errorf("StartMs = %d, want 1200", clip.StartMs)
	}
	if persist.calls != 1 {
		t.Errorf("persist calls = %d, want 1", persist.calls)
	}
}

func TestMoveFloorsAtZero(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-b", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-9000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-b")
	if clip.StartMs != 0 {
		t.Errorf("StartMs = %d, want 0", clip.StartMs)
	}
}

func TestCommitReadsLatestPendingDelta(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(500)
	eng.Tick() // rendered frame at 500
	eng.PointerMove(900)
	eng.PointerMove(1100) // coalesced, never rendered
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 1100 {
		t.Errorf("StartMs = %d, want 1100 (latest pending delta, not last rendered)", clip.StartMs)
	}
}

func TestPreviewWireFormat(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(500)
	preview := eng.Tick()
	if preview == nil {
		t.Fatal("Tick returned no preview for an active session")
	}

	raw, err := json.Marshal(preview)
	if err != nil {
		t.Fatalf("marshal preview: %v", err)
	}
	for _, key := range []string{`"clips"`, `"startMs"`, `"durationMs"`, `"inPointMs"`, `"outPointMs"`, `"speed"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("preview JSON missing %s: %s", key, raw)
		}
	}
	if strings.Contains(string(raw), `"StartMs"`) {
		t.Errorf("preview JSON carries Go-cased keys: %s", raw)
	}
}

func TestTrimEndClamps(t *testing.T) {
	tests := []struct {
		name         string
		deltaMs      int64
		wantDuration int64
		wantOutPoint int64
	}{
		{name: "shrink clamped to min duration", deltaMs: -5000, wantDuration: 100, wantOutPoint: 100},
		{name: "grow clamped to asset duration", deltaMs: 50000, wantDuration: 10000, wantOutPoint: 10000},
		{name: "grow within source", deltaMs: 2000, wantDuration: 6000, wantOutPoint: 6000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newTestEngine(t, testTimeline())
			if err := eng.StartDrag("clip-a", ModeTrimEnd, 0, 1000); err != nil {
				t.Fatalf("StartDrag: %v", err)
			}
			eng.PointerMove(float64(tt.deltaMs))
			if err := eng.Commit(context.Background()); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			clip, _ := eng.Snapshot().FindClip("clip-a")
			if clip.DurationMs != tt.wantDuration {
				t.Errorf("DurationMs = %d, want %d", clip.DurationMs, tt.wantDuration)
			}
			if clip.OutPointMs != tt.wantOutPoint {
				t.Errorf("OutPointMs = %d, want %d", clip.OutPointMs, tt.wantOutPoint)
			}
		})
	}
}

func TestTrimStartShiftsStartAndInPoint(t *testing.T) {
	tl := testTimeline()
	// A clip mid-timeline with source material before its in point.
	tl.Layers[0].Clips[0] = timeline.Clip{
		ID: "clip-a", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
		StartMs: 2000, DurationMs: 4000, InPointMs: 1000, OutPointMs: 5000, Speed: 1,
	}
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeTrimStart, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(500)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 2500 {
		t.Errorf("StartMs = %d, want 2500", clip.StartMs)
	}
	if clip.DurationMs != 3500 {
		t.Errorf("DurationMs = %d, want 3500", clip.DurationMs)
	}
	if clip.InPointMs != 1500 {
		t.Errorf("InPointMs = %d, want 1500", clip.InPointMs)
	}
}

func TestTrimStartClampedBySourceStart(t *testing.T) {
	tl := testTimeline()
	tl.Layers[0].Clips[0] = timeline.Clip{
		ID: "clip-a", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
		StartMs: 3000, DurationMs: 2000, InPointMs: 1000, OutPointMs: 3000, Speed: 1,
	}
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeTrimStart, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-5000) // extend far left, only 1000ms of source remains
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.InPointMs != 0 {
		t.Errorf("InPointMs = %d, want 0", clip.InPointMs)
	}
	if clip.StartMs != 2000 {
		t.Errorf("StartMs = %d, want 2000", clip.StartMs)
	}
	if clip.DurationMs != 3000 {
		t.Errorf("DurationMs = %d, want 3000", clip.DurationMs)
	}
}

func TestStretchEndDoublingHalvesSpeed(t *testing.T) {
	tl := testTimeline()
	tl.Layers[0].Clips[0] = timeline.Clip{
		ID: "clip-b2", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
		StartMs: 0, DurationMs: 3000, InPointMs: 0, OutPointMs: 3000, Speed: 1,
	}
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-b2", ModeStretchEnd, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(3000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-b2")
	if clip.Speed != 0.5 {
		t.Errorf("Speed = %v, want 0.5", clip.Speed)
	}
	if clip.DurationMs != 6000 {
		t.Errorf("DurationMs = %d, want 6000", clip.DurationMs)
	}
	if clip.OutPointMs-clip.InPointMs != 3000 {
		t.Errorf("source window changed: %d, want 3000", clip.OutPointMs-clip.InPointMs)
	}
}

func TestStretchSpeedClamping(t *testing.T) {
	tests := []struct {
		name         string
		deltaMs      int64
		wantSpeed    float64
		wantDuration int64
	}{
		// Window is 4000ms. Shrinking to 400ms would need speed 10; clamp
		// to 5.0 and recompute duration.
		{name: "clamp fast", deltaMs: -3600, wantSpeed: 5.0, wantDuration: 800},
		// Growing to 40000ms would need speed 0.1; clamp to 0.2.
		{name: "clamp slow", deltaMs: 36000, wantSpeed: 0.2, wantDuration: 20000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newTestEngine(t, testTimeline())
			if err := eng.StartDrag("clip-a", ModeStretchEnd, 0, 1000); err != nil {
				t.Fatalf("StartDrag: %v", err)
			}
			eng.PointerMove(float64(tt.deltaMs))
			if err := eng.Commit(context.Background()); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			clip, _ := eng.Snapshot().FindClip("clip-a")
			if clip.Speed != tt.wantSpeed {
				t.Errorf("Speed = %v, want %v", clip.Speed, tt.wantSpeed)
			}
			if clip.DurationMs != tt.wantDuration {
				t.Errorf("DurationMs = %d, want %d", clip.DurationMs, tt.wantDuration)
			}
		})
	}
}

func TestStretchStartAnchorsRightEdge(t *testing.T) {
	tl := testTimeline()
	tl.Layers[0].Clips[0] = timeline.Clip{
		ID: "clip-a", AssetID: "vid-1", AssetType: timeline.AssetTypeVideo,
		StartMs: 2000, DurationMs: 3000, InPointMs: 0, OutPointMs: 3000, Speed: 1,
	}
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeStretchStart, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-1000) // drag left edge left, duration grows to 4000
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.EndMs() != 5000 {
		t.Errorf("end = %d, want right edge anchored at 5000", clip.EndMs())
	}
	if clip.DurationMs != 4000 {
		t.Errorf("DurationMs = %d, want 4000", clip.DurationMs)
	}
	if clip.Speed != 0.75 {
		t.Errorf("Speed = %v, want 0.75", clip.Speed)
	}
}

func TestStretchRefusedForResizableClips(t *testing.T) {
	for _, mode := range []DragMode{ModeStretchStart, ModeStretchEnd} {
		t.Run(string(mode), func(t *testing.T) {
			tl := testTimeline()
			// A shape clip has no source window; stretching it must be a
			// no-op rather than collapsing the duration against a zero
			// window.
			tl.Layers[0].Clips[0] = timeline.Clip{
				ID: "clip-a", StartMs: 1000, DurationMs: 3000, Speed: 1,
				Shape: &timeline.Shape{Kind: "rectangle", Fill: "#ff0000"},
			}
			eng, persist := newTestEngine(t, tl)

			if err := eng.StartDrag("clip-a", mode, 0, 1000); err != nil {
				t.Fatalf("StartDrag: %v", err)
			}
			eng.PointerMove(1000)
			if err := eng.Commit(context.Background()); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			clip, _ := eng.Snapshot().FindClip("clip-a")
			if clip.DurationMs != 3000 || clip.StartMs != 1000 || clip.Speed != 1 {
				t.Errorf("geometry changed: start=%d dur=%d speed=%v", clip.StartMs, clip.DurationMs, clip.Speed)
			}
			if persist.calls != 0 {
				t.Errorf("persist called %d times for a no-op", persist.calls)
			}
		})
	}
}

func TestTrimResizableClipKeepsInPointPinned(t *testing.T) {
	tl := testTimeline()
	tl.Layers[0].Clips[0] = timeline.Clip{
		ID: "clip-a", StartMs: 2000, DurationMs: 3000, Speed: 1,
		TextContent: "Title", TextStyle: &timeline.TextStyle{FontFamily: "Inter", FontSize: 48, Color: "#ffffff"},
	}
	eng, _ := newTestEngine(t, tl)

	// Grow leftward past the original start.
	if err := eng.StartDrag("clip-a", ModeTrimStart, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-1000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 1000 || clip.DurationMs != 4000 {
		t.Errorf("geometry = start %d dur %d, want 1000/4000", clip.StartMs, clip.DurationMs)
	}
	if clip.InPointMs != 0 {
		t.Errorf("InPointMs = %d, want pinned at 0", clip.InPointMs)
	}

	// Growing the right edge must leave the out point alone too.
	if err := eng.StartDrag("clip-a", ModeTrimEnd, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(2000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ = eng.Snapshot().FindClip("clip-a")
	if clip.DurationMs != 6000 {
		t.Errorf("DurationMs = %d, want 6000", clip.DurationMs)
	}
	if clip.OutPointMs != 0 {
		t.Errorf("OutPointMs = %d, want pinned at 0", clip.OutPointMs)
	}
}

func TestFreezeEndFloorsAtZero(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-a", ModeFreezeEnd, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-500)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.FreezeFrameMs != 0 {
		t.Errorf("FreezeFrameMs = %d, want 0", clip.FreezeFrameMs)
	}
	if clip.DurationMs != 4000 {
		t.Errorf("DurationMs changed to %d, freeze must not touch duration", clip.DurationMs)
	}
}

func TestGroupMoveAppliesIdenticalDelta(t *testing.T) {
	tl := testTimeline()
	tl.Groups = []timeline.ClipGroup{{ID: "grp-1", Name: "Scene 1"}}
	tl.Layers[0].Clips[0].GroupID = "grp-1"
	tl.AudioTracks[0].Clips[0].GroupID = "grp-1"
	tl.AudioTracks[0].Clips[0].StartMs = 500
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1200)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap := eng.Snapshot()
	clip, _ := snap.FindClip("clip-a")
	audio, _ := snap.FindAudioClip("audio-a")
	if clip.StartMs != 1200 {
		t.Errorf("primary StartMs = %d, want 1200", clip.StartMs)
	}
	if audio.StartMs != 1700 {
		t.Errorf("member StartMs = %d, want 1700 (identical delta)", audio.StartMs)
	}
}

func TestGroupMoveMemberFloorsIndividually(t *testing.T) {
	tl := testTimeline()
	tl.Groups = []timeline.ClipGroup{{ID: "grp-1"}}
	tl.Layers[0].Clips[0].GroupID = "grp-1"
	tl.Layers[0].Clips[0].StartMs = 2000
	tl.AudioTracks[0].Clips[0].GroupID = "grp-1"
	tl.AudioTracks[0].Clips[0].StartMs = 500
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(-1000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap := eng.Snapshot()
	clip, _ := snap.FindClip("clip-a")
	audio, _ := snap.FindAudioClip("audio-a")
	if clip.StartMs != 1000 {
		t.Errorf("primary StartMs = %d, want 1000", clip.StartMs)
	}
	if audio.StartMs != 0 {
		t.Errorf("member StartMs = %d, want 0 (floored individually)", audio.StartMs)
	}
}

func TestGroupMoveSkipsLockedLayers(t *testing.T) {
	tl := testTimeline()
	tl.Groups = []timeline.ClipGroup{{ID: "grp-1"}}
	tl.Layers[0].Clips[0].GroupID = "grp-1"
	tl.Layers[1].Clips[0].GroupID = "grp-1"
	tl.Layers[1].Locked = true
	eng, _ := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-b")
	if clip.StartMs != 6000 {
		t.Errorf("locked-layer member moved to %d, want 6000 untouched", clip.StartMs)
	}
}

func TestMultiSelectionJoinsSession(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())
	eng.SetSelection([]string{"clip-a", "clip-b"})

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-b")
	if clip.StartMs != 7000 {
		t.Errorf("selected clip StartMs = %d, want 7000", clip.StartMs)
	}
}

func TestLockedLayerDragIsNoOp(t *testing.T) {
	tl := testTimeline()
	tl.Layers[0].Locked = true
	eng, persist := newTestEngine(t, tl)

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 0 {
		t.Errorf("clip on locked layer moved to %d", clip.StartMs)
	}
	if persist.calls != 0 {
		t.Errorf("persist called %d times for a no-op", persist.calls)
	}
}

func TestLostEditTokenRefusesCommit(t *testing.T) {
	persist := &recordingPersist{}
	holding := true
	eng := New("tl-1", testTimeline(), testAssets(), persist.persist, Options{
		Logger: quietLogger(),
		Guard:  func() bool { return holding },
	})

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	holding = false
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 0 {
		t.Errorf("commit applied despite lost edit token, StartMs = %d", clip.StartMs)
	}
	if persist.calls != 0 {
		t.Errorf("persist called despite lost edit token")
	}
}

func TestCancelDiscardsSession(t *testing.T) {
	eng, persist := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	eng.Cancel()
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 0 {
		t.Errorf("cancelled drag still moved clip to %d", clip.StartMs)
	}
	if persist.calls != 0 {
		t.Errorf("persist called after cancel")
	}
}

func TestUnknownClipIsError(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())
	if err := eng.StartDrag("nope", ModeMove, 0, 1000); err == nil {
		t.Error("expected error for unknown clip id")
	}
}

func TestNewSessionEndsPrevious(t *testing.T) {
	eng, _ := newTestEngine(t, testTimeline())

	if err := eng.StartDrag("clip-a", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	eng.PointerMove(1000)
	if err := eng.StartDrag("clip-b", ModeMove, 0, 1000); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	if err := eng.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	clip, _ := eng.Snapshot().FindClip("clip-a")
	if clip.StartMs != 0 {
		t.Errorf("clip-a moved to %d by a discarded session", clip.StartMs)
	}
}
