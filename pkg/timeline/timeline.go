// Package timeline defines the data model of the video editor: layers of
// video clips, audio tracks, cross-cutting clip groups and the derived
// timeline duration. The editing engine mutates timelines exclusively by
// deep copy and replace; the types here carry no synchronization.
package timeline

// Layer represents an ordered, lockable container of video-domain clips.
// Layers are kept in top-to-bottom render order. A locked layer rejects
// all clip mutation originating from interaction.
type Layer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
	Visible bool   `json:"visible"`
	Locked  bool   `json:"locked"`
	Clips   []Clip `json:"clips"`
}

// Clone returns a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	out := *l
	out.Clips = make([]Clip, len(l.Clips))
	for i := range l.Clips {
		out.Clips[i] = *l.Clips[i].Clone()
	}
	return &out
}

// ClipGroup is a cross-cutting tag linking clips across layers and tracks
// for synchronized movement and trimming. A group owns no clips;
// membership is inferred from each clip's GroupID. A group persists even
// if temporarily empty.
type ClipGroup struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Timeline is the root aggregate of a project's edit state. DurationMs is
// derived from clip positions and kept denormalized for fast reads; call
// Recalculate after any mutation.
type Timeline struct {
	Layers      []Layer      `json:"layers"`
	AudioTracks []AudioTrack `json:"audioTracks"`
	Groups      []ClipGroup  `json:"groups,omitempty"`
	DurationMs  int64        `json:"durationMs"`
}

// Clone returns a deep copy of the whole timeline.
func (tl *Timeline) Clone() *Timeline {
	out := &Timeline{
		DurationMs: tl.DurationMs,
	}
	out.Layers = make([]Layer, len(tl.Layers))
	for i := range tl.Layers {
		out.Layers[i] = *tl.Layers[i].Clone()
	}
	out.AudioTracks = make([]AudioTrack, len(tl.AudioTracks))
	for i := range tl.AudioTracks {
		out.AudioTracks[i] = *tl.AudioTracks[i].Clone()
	}
	if tl.Groups != nil {
		out.Groups = make([]ClipGroup, len(tl.Groups))
		copy(out.Groups, tl.Groups)
	}
	return out
}

// FindClip returns the clip with the given ID and its owning layer, or
// nils if no layer contains it.
func (tl *Timeline) FindClip(clipID string) (*Clip, *Layer) {
	for li := range tl.Layers {
		layer := &tl.Layers[li]
		for ci := range layer.Clips {
			if layer.Clips[ci].ID == clipID {
				return &layer.Clips[ci], layer
			}
		}
	}
	return nil, nil
}

// FindAudioClip returns the audio clip with the given ID and its owning
// track, or nils if no track contains it.
func (tl *Timeline) FindAudioClip(clipID string) (*AudioClip, *AudioTrack) {
	for ti := range tl.AudioTracks {
		track := &tl.AudioTracks[ti]
		for ci := range track.Clips {
			if track.Clips[ci].ID == clipID {
				return &track.Clips[ci], track
			}
		}
	}
	return nil, nil
}

// FindLayer returns the layer with the given ID, or nil.
func (tl *Timeline) FindLayer(layerID string) *Layer {
	for i := range tl.Layers {
		if tl.Layers[i].ID == layerID {
			return &tl.Layers[i]
		}
	}
	return nil
}

// FindTrack returns the audio track with the given ID, or nil.
func (tl *Timeline) FindTrack(trackID string) *AudioTrack {
	for i := range tl.AudioTracks {
		if tl.AudioTracks[i].ID == trackID {
			return &tl.AudioTracks[i]
		}
	}
	return nil
}

// FindGroup returns the group with the given ID, or nil.
func (tl *Timeline) FindGroup(groupID string) *ClipGroup {
	for i := range tl.Groups {
		if tl.Groups[i].ID == groupID {
			return &tl.Groups[i]
		}
	}
	return nil
}

// GroupMembers returns every video and audio clip whose GroupID equals
// the given group ID, with their owning layers/tracks.
func (tl *Timeline) GroupMembers(groupID string) ([]*Clip, []*AudioClip) {
	if groupID == "" {
		return nil, nil
	}
	var video []*Clip
	var audio []*AudioClip
	for li := range tl.Layers {
		layer := &tl.Layers[li]
		for ci := range layer.Clips {
			if layer.Clips[ci].GroupID == groupID {
				video = append(video, &layer.Clips[ci])
			}
		}
	}
	for ti := range tl.AudioTracks {
		track := &tl.AudioTracks[ti]
		for ci := range track.Clips {
			if track.Clips[ci].GroupID == groupID {
				audio = append(audio, &track.Clips[ci])
			}
		}
	}
	return video, audio
}
