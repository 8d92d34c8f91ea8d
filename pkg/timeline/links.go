package timeline

import "github.com/google/uuid"

// NormalizeLegacyLinks migrates the legacy single-link relation
// (Clip.LinkedAudioClipID / AudioClip.LinkedVideoClipID) to the group
// model. Each linked pair that is not already grouped receives a fresh
// group; afterwards the legacy fields are cleared. When a clip carries
// both a legacy link and a differing GroupID, the GroupID wins and the
// legacy link is dropped.
//
// Intended to run once, when a timeline is loaded from persistence.
func (tl *Timeline) NormalizeLegacyLinks() {
	for li := range tl.Layers {
		layer := &tl.Layers[li]
		for ci := range layer.Clips {
			clip := &layer.Clips[ci]
			if clip.LinkedAudioClipID == "" {
				continue
			}
			audio, _ := tl.FindAudioClip(clip.LinkedAudioClipID)
			clip.LinkedAudioClipID = ""
			if audio == nil {
				continue // dangling link, nothing to migrate
			}
			audio.LinkedVideoClipID = ""
			audio.LinkedVideoLayerID = ""
			if clip.GroupID != "" {
				// Existing group membership takes precedence.
				if audio.GroupID == "" {
					audio.GroupID = clip.GroupID
				}
				continue
			}
			if audio.GroupID != "" {
				clip.GroupID = audio.GroupID
				continue
			}
			group := ClipGroup{ID: uuid.New().String(), Name: "Linked clips"}
			tl.Groups = append(tl.Groups, group)
			clip.GroupID = group.ID
			audio.GroupID = group.ID
		}
	}

	// Audio-side links may exist without a matching video-side field.
	for ti := range tl.AudioTracks {
		track := &tl.AudioTracks[ti]
		for ci := range track.Clips {
			ac := &track.Clips[ci]
			if ac.LinkedVideoClipID == "" {
				continue
			}
			clip, _ := tl.FindClip(ac.LinkedVideoClipID)
			ac.LinkedVideoClipID = ""
			ac.LinkedVideoLayerID = ""
			if clip == nil {
				continue // dangling link
			}
			if ac.GroupID != "" {
				if clip.GroupID == "" {
					clip.GroupID = ac.GroupID
				}
				continue
			}
			if clip.GroupID != "" {
				ac.GroupID = clip.GroupID
				continue
			}
			group := ClipGroup{ID: uuid.New().String(), Name: "Linked clips"}
			tl.Groups = append(tl.Groups, group)
			clip.GroupID = group.ID
			ac.GroupID = group.ID
		}
	}
}
