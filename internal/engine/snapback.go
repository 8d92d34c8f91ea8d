package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

// SnapToPrevious moves the identified clip (and its group) backward onto
// the nearest sensible boundary, using a two-phase search:
//
//  1. If no clip on another layer or track occupies the clip's current
//     start position, the target is the greatest clip end anywhere on the
//     timeline outside the moving set (the global tail).
//  2. Otherwise the target is the end of the nearest preceding clip on
//     the clip's own layer or track (or zero when none precedes it).
//
// The resulting delta is applied identically to the clip and every group
// member, each floored at zero. Locked or missing clips are no-ops.
func (e *Engine) SnapToPrevious(ctx context.Context, clipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard != nil && !e.guard() {
		e.logger.WithField("timeline_id", e.timelineID).Warn("Snap refused, edit token lost")
		return nil
	}

	next := e.current.Clone()

	var (
		currentStart int64
		ownerID      string
		groupID      string
		audio        bool
	)
	if clip, layer := next.FindClip(clipID); clip != nil {
		if layer.Locked {
			return nil
		}
		currentStart, ownerID, groupID = clip.StartMs, layer.ID, clip.GroupID
	} else if audioClip, track := next.FindAudioClip(clipID); audioClip != nil {
		if track.Locked {
			return nil
		}
		currentStart, ownerID, groupID, audio = audioClip.StartMs, track.ID, audioClip.GroupID, true
	} else {
		return nil
	}

	moving := map[string]bool{clipID: true}
	members := e.collectMembers(next, clipID, groupID, audio, ModeMove)
	for _, m := range members {
		moving[m.ClipID] = true
	}

	var target int64
	if hasContentAt(next, ownerID, currentStart, moving) {
		target = precedingEndOn(next, ownerID, currentStart, moving)
	} else {
		target = globalTail(next, moving)
	}

	delta := target - currentStart
	if delta == 0 {
		return nil
	}

	shift := func(start int64) int64 {
		start += delta
		if start < 0 {
			start = 0
		}
		return start
	}
	if audio {
		clip, _ := next.FindAudioClip(clipID)
		clip.StartMs = shift(clip.StartMs)
	} else {
		clip, _ := next.FindClip(clipID)
		clip.StartMs = shift(clip.StartMs)
	}
	for _, m := range members {
		if m.Audio {
			if clip, _ := next.FindAudioClip(m.ClipID); clip != nil {
				clip.StartMs = shift(clip.StartMs)
			}
		} else {
			if clip, _ := next.FindClip(m.ClipID); clip != nil {
				clip.StartMs = shift(clip.StartMs)
			}
		}
	}

	next.Recalculate()
	e.current = next

	e.logger.WithFields(logrus.Fields{
		"clip_id":  clipID,
		"delta_ms": delta,
	}).Info("Snapped clip to previous boundary")
	return e.persistLocked(ctx)
}

// hasContentAt reports whether some clip outside the moving set, on a
// layer or track other than ownerID, occupies position t.
func hasContentAt(tl *timeline.Timeline, ownerID string, t int64, moving map[string]bool) bool {
	for li := range tl.Layers {
		layer := &tl.Layers[li]
		if layer.ID == ownerID {
			continue
		}
		for ci := range layer.Clips {
			c := &layer.Clips[ci]
			if !moving[c.ID] && c.StartMs <= t && t < c.EndMs() {
				return true
			}
		}
	}
	for ti := range tl.AudioTracks {
		track := &tl.AudioTracks[ti]
		if track.ID == ownerID {
			continue
		}
		for ci := range track.Clips {
			c := &track.Clips[ci]
			if !moving[c.ID] && c.StartMs <= t && t < c.EndMs() {
				return true
			}
		}
	}
	return false
}

// globalTail returns the greatest clip end across every layer and track,
// excluding the moving set.
func globalTail(tl *timeline.Timeline, moving map[string]bool) int64 {
	var tail int64
	for li := range tl.Layers {
		for ci := range tl.Layers[li].Clips {
			c := &tl.Layers[li].Clips[ci]
			if !moving[c.ID] && c.EndMs() > tail {
				tail = c.EndMs()
			}
		}
	}
	for ti := range tl.AudioTracks {
		for ci := range tl.AudioTracks[ti].Clips {
			c := &tl.AudioTracks[ti].Clips[ci]
			if !moving[c.ID] && c.EndMs() > tail {
				tail = c.EndMs()
			}
		}
	}
	return tail
}

// precedingEndOn returns the end of the nearest clip before t on the
// given layer or track, excluding the moving set, or zero when nothing
// precedes it.
func precedingEndOn(tl *timeline.Timeline, ownerID string, t int64, moving map[string]bool) int64 {
	var best int64
	consider := func(id string, end int64) {
		if !moving[id] && end <= t && end > best {
			best = end
		}
	}
	if layer := tl.FindLayer(ownerID); layer != nil {
		for ci := range layer.Clips {
			consider(layer.Clips[ci].ID, layer.Clips[ci].EndMs())
		}
	}
	if track := tl.FindTrack(ownerID); track != nil {
		for ci := range track.Clips {
			consider(track.Clips[ci].ID, track.Clips[ci].EndMs())
		}
	}
	return best
}
