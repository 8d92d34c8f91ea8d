package timeline

// TrackType categorizes an audio track by its role in the mix.
type TrackType string

// Known audio track types.
const (
	TrackNarration      TrackType = "narration"
	TrackBGM            TrackType = "bgm"
	TrackSoundEffect    TrackType = "se"
	TrackVideoExtracted TrackType = "video-extracted"
)

// Ducking describes automatic volume reduction applied to a track while
// another track (typically narration) is active.
type Ducking struct {
	Enabled     bool    `json:"enabled"`
	TargetLevel float64 `json:"targetLevel"` // 0.0 to 1.0
	AttackMs    int64   `json:"attackMs"`
	ReleaseMs   int64   `json:"releaseMs"`
}

// VolumeKeyframe is a sampled volume value at a time local to the clip.
type VolumeKeyframe struct {
	TimeMs int64   `json:"timeMs"`
	Volume float64 `json:"volume"`
}

// AudioTrack represents an ordered, lockable container of audio clips.
// LinkedVideoLayerID is a render-adjacency hint for the UI only, not an
// ownership relation.
type AudioTrack struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Type               TrackType   `json:"type"`
	Volume             float64     `json:"volume"` // 0.0 to 1.0
	Muted              bool        `json:"muted"`
	Locked             bool        `json:"locked"`
	Ducking            *Ducking    `json:"ducking,omitempty"`
	LinkedVideoLayerID string      `json:"linkedVideoLayerId,omitempty"`
	Clips              []AudioClip `json:"clips"`
}

// AudioClip represents a single placed audio element on a track.
type AudioClip struct {
	ID              string           `json:"id"`
	AssetID         string           `json:"assetId"`
	StartMs         int64            `json:"startMs"`
	DurationMs      int64            `json:"durationMs"`
	InPointMs       int64            `json:"inPointMs"`
	OutPointMs      int64            `json:"outPointMs"`
	Volume          float64          `json:"volume"`
	FadeInMs        int64            `json:"fadeInMs"`
	FadeOutMs       int64            `json:"fadeOutMs"`
	VolumeKeyframes []VolumeKeyframe `json:"volumeKeyframes,omitempty"`
	GroupID         string           `json:"groupId,omitempty"`

	// Legacy single-link relation to the originating video clip, superseded
	// by GroupID but still honored where present.
	LinkedVideoClipID  string `json:"linkedVideoClipId,omitempty"`
	LinkedVideoLayerID string `json:"linkedVideoLayerId,omitempty"`
}

// EndMs returns the clip's end position on the timeline.
func (c *AudioClip) EndMs() int64 {
	return c.StartMs + c.DurationMs
}

// SourceWindowMs returns the amount of source material the clip exposes.
func (c *AudioClip) SourceWindowMs() int64 {
	return c.OutPointMs - c.InPointMs
}

// Clone returns a deep copy of the audio clip.
func (c *AudioClip) Clone() *AudioClip {
	out := *c
	if c.VolumeKeyframes != nil {
		out.VolumeKeyframes = make([]VolumeKeyframe, len(c.VolumeKeyframes))
		copy(out.VolumeKeyframes, c.VolumeKeyframes)
	}
	return &out
}

// Clone returns a deep copy of the track.
func (t *AudioTrack) Clone() *AudioTrack {
	out := *t
	if t.Ducking != nil {
		d := *t.Ducking
		out.Ducking = &d
	}
	out.Clips = make([]AudioClip, len(t.Clips))
	for i := range t.Clips {
		out.Clips[i] = *t.Clips[i].Clone()
	}
	return &out
}
