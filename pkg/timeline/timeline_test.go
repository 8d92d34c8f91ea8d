package timeline

import "testing"

func sampleTimeline() *Timeline {
	return &Timeline{
		Layers: []Layer{
			{
				ID: "layer-1", Visible: true,
				Clips: []Clip{
					{ID: "v1", AssetID: "a1", AssetType: AssetTypeVideo, StartMs: 0, DurationMs: 3000, OutPointMs: 3000, Speed: 1,
						Keyframes: []Keyframe{{TimeMs: 100, Values: map[string]float64{"x": 1}}}},
					{ID: "v2", AssetID: "a1", AssetType: AssetTypeVideo, StartMs: 5000, DurationMs: 1000, OutPointMs: 1000, Speed: 1},
				},
			},
		},
		AudioTracks: []AudioTrack{
			{
				ID: "track-1", Type: TrackNarration, Volume: 1,
				Clips: []AudioClip{
					{ID: "n1", AssetID: "a2", StartMs: 1000, DurationMs: 2000, OutPointMs: 2000, Volume: 1,
						VolumeKeyframes: []VolumeKeyframe{{TimeMs: 50, Volume: 0.5}}},
				},
			},
		},
		Groups: []ClipGroup{{ID: "g1", Name: "Scene"}},
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTimeline()
	cp := orig.Clone()

	cp.Layers[0].Clips[0].StartMs = 999
	cp.Layers[0].Clips[0].Keyframes[0].Values["x"] = 42
	cp.AudioTracks[0].Clips[0].VolumeKeyframes[0].Volume = 0.9
	cp.Groups[0].Name = "Renamed"

	if orig.Layers[0].Clips[0].StartMs != 0 {
		t.Error("clip mutation leaked into the original")
	}
	if orig.Layers[0].Clips[0].Keyframes[0].Values["x"] != 1 {
		t.Error("keyframe value map is shared between copies")
	}
	if orig.AudioTracks[0].Clips[0].VolumeKeyframes[0].Volume != 0.5 {
		t.Error("volume keyframes are shared between copies")
	}
	if orig.Groups[0].Name != "Scene" {
		t.Error("group slice is shared between copies")
	}
}

func TestFinders(t *testing.T) {
	tl := sampleTimeline()

	if clip, layer := tl.FindClip("v2"); clip == nil || layer.ID != "layer-1" {
		t.Errorf("FindClip(v2) = %v in %v", clip, layer)
	}
	if clip, _ := tl.FindClip("missing"); clip != nil {
		t.Error("FindClip(missing) should be nil")
	}
	if clip, track := tl.FindAudioClip("n1"); clip == nil || track.ID != "track-1" {
		t.Errorf("FindAudioClip(n1) = %v in %v", clip, track)
	}
	if g := tl.FindGroup("g1"); g == nil || g.Name != "Scene" {
		t.Errorf("FindGroup(g1) = %v", g)
	}
}

func TestGroupMembersSpansDomains(t *testing.T) {
	tl := sampleTimeline()
	tl.Layers[0].Clips[0].GroupID = "g1"
	tl.AudioTracks[0].Clips[0].GroupID = "g1"

	video, audio := tl.GroupMembers("g1")
	if len(video) != 1 || video[0].ID != "v1" {
		t.Errorf("video members = %v", video)
	}
	if len(audio) != 1 || audio[0].ID != "n1" {
		t.Errorf("audio members = %v", audio)
	}
}

func TestRecalculate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tl *Timeline)
		want   int64
	}{
		{name: "tail video clip wins", mutate: func(tl *Timeline) {}, want: 6000},
		{
			name: "audio tail wins when longer",
			mutate: func(tl *Timeline) {
				tl.AudioTracks[0].Clips[0].StartMs = 7000
			},
			want: 9000,
		},
		{
			name: "empty timeline floors at zero",
			mutate: func(tl *Timeline) {
				tl.Layers[0].Clips = nil
				tl.AudioTracks[0].Clips = nil
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := sampleTimeline()
			tt.mutate(tl)
			tl.Recalculate()
			if tl.DurationMs != tt.want {
				t.Errorf("DurationMs = %d, want %d", tl.DurationMs, tt.want)
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	tl := sampleTimeline()
	if got := tl.Overlaps(); len(got) != 0 {
		t.Fatalf("Overlaps on disjoint clips = %v, want none", got)
	}

	// Slide v2 back into v1's interval.
	tl.Layers[0].Clips[1].StartMs = 2500
	got := tl.Overlaps()
	if len(got) != 1 {
		t.Fatalf("Overlaps = %v, want one pair", got)
	}
	ov := got[0]
	if ov.OwnerID != "layer-1" || ov.ClipA != "v1" || ov.ClipB != "v2" {
		t.Errorf("Overlap = %+v, want v1/v2 on layer-1", ov)
	}

	// Touching edges do not overlap.
	tl.Layers[0].Clips[1].StartMs = 3000
	if got := tl.Overlaps(); len(got) != 0 {
		t.Errorf("edge-adjacent clips flagged: %v", got)
	}
}
