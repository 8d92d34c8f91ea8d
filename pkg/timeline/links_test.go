package timeline

import "testing"

func linkedPairTimeline() *Timeline {
	return &Timeline{
		Layers: []Layer{
			{
				ID: "layer-1", Visible: true,
				Clips: []Clip{
					{ID: "v1", AssetID: "a1", AssetType: AssetTypeVideo, StartMs: 0, DurationMs: 2000, OutPointMs: 2000, Speed: 1},
				},
			},
		},
		AudioTracks: []AudioTrack{
			{
				ID: "track-1", Type: TrackVideoExtracted, Volume: 1,
				Clips: []AudioClip{
					{ID: "x1", AssetID: "a1", StartMs: 0, DurationMs: 2000, OutPointMs: 2000, Volume: 1},
				},
			},
		},
	}
}

func TestNormalizeLegacyLinksCreatesGroup(t *testing.T) {
	tl := linkedPairTimeline()
	tl.Layers[0].Clips[0].LinkedAudioClipID = "x1"
	tl.AudioTracks[0].Clips[0].LinkedVideoClipID = "v1"
	tl.AudioTracks[0].Clips[0].LinkedVideoLayerID = "layer-1"

	tl.NormalizeLegacyLinks()

	v := &tl.Layers[0].Clips[0]
	a := &tl.AudioTracks[0].Clips[0]
	if v.GroupID == "" || v.GroupID != a.GroupID {
		t.Fatalf("group ids = %q / %q, want one shared fresh group", v.GroupID, a.GroupID)
	}
	if v.LinkedAudioClipID != "" || a.LinkedVideoClipID != "" || a.LinkedVideoLayerID != "" {
		t.Error("legacy link fields must be cleared after migration")
	}
	if g := tl.FindGroup(v.GroupID); g == nil {
		t.Error("migrated group has no ClipGroup record")
	}
}

func TestNormalizeLegacyLinksGroupIDWins(t *testing.T) {
	tl := linkedPairTimeline()
	tl.Groups = []ClipGroup{{ID: "existing"}}
	tl.Layers[0].Clips[0].GroupID = "existing"
	tl.Layers[0].Clips[0].LinkedAudioClipID = "x1"

	tl.NormalizeLegacyLinks()

	v := &tl.Layers[0].Clips[0]
	a := &tl.AudioTracks[0].Clips[0]
	if v.GroupID != "existing" {
		t.Errorf("video GroupID = %q, want existing membership preserved", v.GroupID)
	}
	if a.GroupID != "existing" {
		t.Errorf("audio GroupID = %q, want pulled into the existing group", a.GroupID)
	}
	if len(tl.Groups) != 1 {
		t.Errorf("groups = %d, want no fresh group created", len(tl.Groups))
	}
}

func TestNormalizeLegacyLinksDanglingCleared(t *testing.T) {
	tl := linkedPairTimeline()
	tl.Layers[0].Clips[0].LinkedAudioClipID = "gone"
	tl.AudioTracks[0].Clips[0].LinkedVideoClipID = "also-gone"

	tl.NormalizeLegacyLinks()

	if tl.Layers[0].Clips[0].LinkedAudioClipID != "" {
		t.Error("dangling video-side link not cleared")
	}
	if tl.AudioTracks[0].Clips[0].LinkedVideoClipID != "" {
		t.Error("dangling audio-side link not cleared")
	}
	if tl.Layers[0].Clips[0].GroupID != "" || tl.AudioTracks[0].Clips[0].GroupID != "" {
		t.Error("dangling links must not create groups")
	}
	if len(tl.Groups) != 0 {
		t.Errorf("groups = %d, want 0", len(tl.Groups))
	}
}

func TestNormalizeLegacyLinksAudioSideOnly(t *testing.T) {
	tl := linkedPairTimeline()
	tl.AudioTracks[0].Clips[0].LinkedVideoClipID = "v1"

	tl.NormalizeLegacyLinks()

	v := &tl.Layers[0].Clips[0]
	a := &tl.AudioTracks[0].Clips[0]
	if a.GroupID == "" || a.GroupID != v.GroupID {
		t.Errorf("group ids = %q / %q, want shared group from audio-side link", v.GroupID, a.GroupID)
	}
}

func TestNormalizeLegacyLinksIdempotent(t *testing.T) {
	tl := linkedPairTimeline()
	tl.Layers[0].Clips[0].LinkedAudioClipID = "x1"

	tl.NormalizeLegacyLinks()
	groups := len(tl.Groups)
	tl.NormalizeLegacyLinks()

	if len(tl.Groups) != groups {
		t.Errorf("second pass grew groups from %d to %d", groups, len(tl.Groups))
	}
}
