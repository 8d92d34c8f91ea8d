package timeline

// Clip duration and speed bounds enforced by the editing engine.
const (
	MinClipDurationMs = 100
	MinSpeed          = 0.2
	MaxSpeed          = 5.0
)

// Transform describes how a clip is placed on the canvas.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	Rotation float64 `json:"rotation"` // degrees
}

// Effects holds per-clip visual effect settings.
type Effects struct {
	Opacity   float64 `json:"opacity"` // 0.0 to 1.0
	FadeInMs  int64   `json:"fadeInMs"`
	FadeOutMs int64   `json:"fadeOutMs"`
}

// Keyframe is a sampled property value at a time local to the clip.
type Keyframe struct {
	TimeMs int64              `json:"timeMs"`
	Values map[string]float64 `json:"values"`
	Easing string             `json:"easing,omitempty"`
}

// Shape describes a generated shape clip (no backing asset).
type Shape struct {
	Kind   string `json:"kind"` // rectangle, ellipse, line
	Fill   string `json:"fill"`
	Stroke string `json:"stroke,omitempty"`
}

// TextStyle describes rendering of a text clip.
type TextStyle struct {
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	Color      string  `json:"color"`
	Bold       bool    `json:"bold"`
	Italic     bool    `json:"italic"`
	Align      string  `json:"align,omitempty"`
}

// Clip represents a single placed item on a video layer: a media asset,
// a still image, a generated shape or a text element. All times are in
// milliseconds. InPointMs/OutPointMs describe the window of source
// material exposed on the timeline and are only meaningful when the clip
// is backed by a non-still asset.
type Clip struct {
	ID            string     `json:"id"`
	AssetID       string     `json:"assetId,omitempty"` // empty for shape/text clips
	AssetType     string     `json:"assetType,omitempty"`
	StartMs       int64      `json:"startMs"`
	DurationMs    int64      `json:"durationMs"`
	InPointMs     int64      `json:"inPointMs"`
	OutPointMs    int64      `json:"outPointMs"`
	Speed         float64    `json:"speed"` // playback rate multiplier
	FreezeFrameMs int64      `json:"freezeFrameMs,omitempty"`
	GroupID       string     `json:"groupId,omitempty"`
	Transform     Transform  `json:"transform"`
	Effects       Effects    `json:"effects"`
	Keyframes     []Keyframe `json:"keyframes,omitempty"`
	Shape         *Shape     `json:"shape,omitempty"`
	TextContent   string     `json:"textContent,omitempty"`
	TextStyle     *TextStyle `json:"textStyle,omitempty"`

	// LinkedAudioClipID is the legacy single-link relation to an extracted
	// audio clip, superseded by GroupID but still honored where present.
	LinkedAudioClipID string `json:"linkedAudioClipId,omitempty"`
}

// Asset type names as stored on clips and in the asset registry.
const (
	AssetTypeVideo = "video"
	AssetTypeAudio = "audio"
	AssetTypeImage = "image"
)

// EndMs returns the clip's end position on the timeline.
func (c *Clip) EndMs() int64 {
	return c.StartMs + c.DurationMs
}

// Resizable reports whether the clip has no source-duration ceiling.
// Shape, text and image clips can be trimmed to any length; only clips
// backed by timed media are constrained by the source window.
func (c *Clip) Resizable() bool {
	return c.AssetID == "" || c.AssetType == AssetTypeImage
}

// SourceWindowMs returns the amount of source material the clip exposes.
func (c *Clip) SourceWindowMs() int64 {
	return c.OutPointMs - c.InPointMs
}

// Clone returns a deep copy of the clip.
func (c *Clip) Clone() *Clip {
	out := *c
	if c.Keyframes != nil {
		out.Keyframes = make([]Keyframe, len(c.Keyframes))
		for i, kf := range c.Keyframes {
			out.Keyframes[i] = kf
			if kf.Values != nil {
				out.Keyframes[i].Values = make(map[string]float64, len(kf.Values))
				for k, v := range kf.Values {
					out.Keyframes[i].Values[k] = v
				}
			}
		}
	}
	if c.Shape != nil {
		shape := *c.Shape
		out.Shape = &shape
	}
	if c.TextStyle != nil {
		style := *c.TextStyle
		out.TextStyle = &style
	}
	return &out
}
