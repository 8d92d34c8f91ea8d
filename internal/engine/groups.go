package engine

import "cutroom/pkg/timeline"

// Member is a clip captured alongside the primary clip at session start
// so that group-synchronized previews and commits can be computed from
// each member's own initial geometry rather than a shared raw delta.
type Member struct {
	ClipID    string
	OwnerID   string
	Audio     bool
	Initial   Geometry
	CeilingMs int64
	Resizable bool
}

// collectMembers resolves the set of clips that must follow the primary
// clip through the given manipulation. Clips sharing the primary's group
// take priority; any additional multi-selected clips are then added.
// Clips on locked layers or tracks are skipped, as is the primary clip
// itself. Move propagates to every member; trim and stretch propagate
// only from a video primary to audio members (each cropped independently
// from its own geometry); freeze-end never propagates.
func (e *Engine) collectMembers(tl *timeline.Timeline, primaryID, groupID string, primaryAudio bool, mode DragMode) []Member {
	if mode == ModeFreezeEnd {
		return nil
	}

	var members []Member
	seen := map[string]bool{primaryID: true}

	add := func(m Member) {
		if seen[m.ClipID] {
			return
		}
		seen[m.ClipID] = true
		members = append(members, m)
	}

	capture := func(tl *timeline.Timeline, clipID string) (Member, bool) {
		if clip, layer := tl.FindClip(clipID); clip != nil {
			if layer.Locked {
				return Member{}, false
			}
			m := Member{
				ClipID:    clip.ID,
				OwnerID:   layer.ID,
				Initial:   geometryOf(clip),
				Resizable: clip.Resizable(),
			}
			if !m.Resizable {
				m.CeilingMs, m.Resizable = e.assetCeiling(clip.AssetID)
			}
			return m, true
		}
		if clip, track := tl.FindAudioClip(clipID); clip != nil {
			if track.Locked {
				return Member{}, false
			}
			m := Member{
				ClipID:  clip.ID,
				OwnerID: track.ID,
				Audio:   true,
				Initial: audioGeometryOf(clip),
			}
			m.CeilingMs, m.Resizable = e.assetCeiling(clip.AssetID)
			return m, true
		}
		return Member{}, false
	}

	if groupID != "" {
		video, audio := tl.GroupMembers(groupID)
		for _, c := range video {
			if m, ok := capture(tl, c.ID); ok {
				add(m)
			}
		}
		for _, c := range audio {
			if m, ok := capture(tl, c.ID); ok {
				add(m)
			}
		}
	}

	// The multi-selection only extends the set when the primary clip is
	// itself part of it.
	if e.selection[primaryID] {
		for id := range e.selection {
			if m, ok := capture(tl, id); ok {
				add(m)
			}
		}
	}

	if mode != ModeMove {
		// Trim/stretch previews only propagate video -> audio.
		if primaryAudio {
			return nil
		}
		filtered := members[:0]
		for _, m := range members {
			if m.Audio {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}
	return members
}

// assetCeiling resolves the source-duration ceiling for a clip's asset.
// The second return marks the ceiling as unbounded: resolution failures
// degrade to an unbounded trim rather than blocking the gesture.
func (e *Engine) assetCeiling(assetID string) (int64, bool) {
	if assetID == "" {
		return 0, true
	}
	info, err := e.assets.ResolveAsset(assetID)
	if err != nil {
		e.logger.WithError(err).WithField("asset_id", assetID).Warn("Could not resolve asset duration, trim unbounded")
		return 0, true
	}
	return info.DurationMs, false
}
