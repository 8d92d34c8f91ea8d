package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

// audioCutFadeMs is the micro-fade applied at a fresh cut boundary so
// audio does not click.
const audioCutFadeMs = 10

// SplitAt cuts the identified clip at the given timeline position,
// typically the playhead. A cut outside the clip's interior, or on a
// locked owner, is a silent no-op. When the clip belongs to a group,
// every member of the group is cut at the same position and membership
// is remapped: all leading halves get one fresh group, all trailing
// halves another, so a cut never strands time-disjoint members inside
// one group. With a single-member group both halves leave ungrouped.
func (e *Engine) SplitAt(ctx context.Context, clipID string, cutMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard != nil && !e.guard() {
		e.logger.WithField("timeline_id", e.timelineID).Warn("Split refused, edit token lost")
		return nil
	}

	next := e.current.Clone()

	var groupID string
	if clip, layer := next.FindClip(clipID); clip != nil {
		if layer.Locked || !strictlyInside(cutMs, clip.StartMs, clip.EndMs()) {
			return nil
		}
		groupID = clip.GroupID
	} else if audioClip, track := next.FindAudioClip(clipID); audioClip != nil {
		if track.Locked || !strictlyInside(cutMs, audioClip.StartMs, audioClip.EndMs()) {
			return nil
		}
		groupID = audioClip.GroupID
	} else {
		return nil // clip gone, expected edge case
	}

	if groupID == "" {
		splitVideoClipIn(next, clipID, cutMs, "", "")
		splitAudioClipIn(next, clipID, cutMs, "", "")
	} else {
		e.splitGroup(next, groupID, cutMs)
	}

	next.Recalculate()
	e.current = next

	e.logger.WithFields(logrus.Fields{
		"clip_id": clipID,
		"cut_ms":  cutMs,
		"group":   groupID != "",
	}).Info("Split clip")
	return e.persistLocked(ctx)
}

// splitGroup runs the same split independently over every group member
// and remaps the resulting pieces onto fresh before/after groups.
func (e *Engine) splitGroup(tl *timeline.Timeline, groupID string, cutMs int64) {
	video, audio := tl.GroupMembers(groupID)
	videoIDs := make([]string, 0, len(video))
	for _, c := range video {
		videoIDs = append(videoIDs, c.ID)
	}
	audioIDs := make([]string, 0, len(audio))
	for _, c := range audio {
		audioIDs = append(audioIDs, c.ID)
	}

	beforeID, afterID := "", ""
	if len(videoIDs)+len(audioIDs) > 1 {
		source := tl.FindGroup(groupID)
		before := timeline.ClipGroup{ID: uuid.New().String()}
		after := timeline.ClipGroup{ID: uuid.New().String()}
		if source != nil {
			before.Name, before.Color = source.Name, source.Color
			after.Name, after.Color = source.Name, source.Color
		}
		tl.Groups = append(tl.Groups, before, after)
		beforeID, afterID = before.ID, after.ID
	}

	for _, id := range videoIDs {
		splitVideoClipIn(tl, id, cutMs, beforeID, afterID)
	}
	for _, id := range audioIDs {
		splitAudioClipIn(tl, id, cutMs, beforeID, afterID)
	}
}

// splitVideoClipIn splits one video clip at cutMs when the cut falls
// strictly inside it; otherwise the clip is only remapped to the group
// on its side of the cut. The leading half keeps the original id.
func splitVideoClipIn(tl *timeline.Timeline, clipID string, cutMs int64, beforeGroup, afterGroup string) {
	clip, layer := tl.FindClip(clipID)
	if clip == nil {
		return
	}
	if !strictlyInside(cutMs, clip.StartMs, clip.EndMs()) {
		// The cut misses this member: it lands whole in whichever half
		// it lies on.
		if clip.StartMs >= cutMs {
			clip.GroupID = afterGroup
		} else {
			clip.GroupID = beforeGroup
		}
		clip.LinkedAudioClipID = ""
		return
	}

	offset := cutMs - clip.StartMs

	second := clip.Clone()
	second.ID = uuid.New().String()
	second.StartMs = cutMs
	second.DurationMs = clip.DurationMs - offset
	if !clip.Resizable() {
		second.InPointMs = clip.InPointMs + roundMul(offset, clip.Speed)
	}
	second.GroupID = afterGroup
	second.LinkedAudioClipID = ""
	second.Effects.FadeInMs = 0
	second.Keyframes = rebaseKeyframes(clip.Keyframes, offset)

	clip.DurationMs = offset
	if !clip.Resizable() {
		clip.OutPointMs = second.InPointMs // leading half ends where the trailing half begins
	}
	clip.GroupID = beforeGroup
	clip.LinkedAudioClipID = ""
	clip.Effects.FadeOutMs = 0
	clip.FreezeFrameMs = 0 // the frozen tail travels with the trailing half
	clip.Keyframes = keepKeyframesBefore(clip.Keyframes, offset)

	insertClipAfter(layer, clip.ID, *second)
}

// splitAudioClipIn is the audio counterpart of splitVideoClipIn; each
// half additionally receives a micro-fade at the new cut boundary while
// fades on the untouched edges are preserved.
func splitAudioClipIn(tl *timeline.Timeline, clipID string, cutMs int64, beforeGroup, afterGroup string) {
	clip, track := tl.FindAudioClip(clipID)
	if clip == nil {
		return
	}
	if !strictlyInside(cutMs, clip.StartMs, clip.EndMs()) {
		if clip.StartMs >= cutMs {
			clip.GroupID = afterGroup
		} else {
			clip.GroupID = beforeGroup
		}
		clip.LinkedVideoClipID = ""
		clip.LinkedVideoLayerID = ""
		return
	}

	offset := cutMs - clip.StartMs

	second := clip.Clone()
	second.ID = uuid.New().String()
	second.StartMs = cutMs
	second.DurationMs = clip.DurationMs - offset
	second.InPointMs = clip.InPointMs + offset
	second.GroupID = afterGroup
	second.LinkedVideoClipID = ""
	second.LinkedVideoLayerID = ""
	second.FadeInMs = audioCutFadeMs
	second.VolumeKeyframes = rebaseVolumeKeyframes(clip.VolumeKeyframes, offset)

	clip.DurationMs = offset
	clip.OutPointMs = second.InPointMs
	clip.GroupID = beforeGroup
	clip.LinkedVideoClipID = ""
	clip.LinkedVideoLayerID = ""
	clip.FadeOutMs = audioCutFadeMs
	clip.VolumeKeyframes = keepVolumeKeyframesBefore(clip.VolumeKeyframes, offset)

	insertAudioClipAfter(track, clip.ID, *second)
}

func strictlyInside(t, start, end int64) bool {
	return t > start && t < end
}

// rebaseKeyframes shifts keyframes into the trailing half's local time
// and drops the ones that fall before the cut.
func rebaseKeyframes(kfs []timeline.Keyframe, offset int64) []timeline.Keyframe {
	var out []timeline.Keyframe
	for _, kf := range kfs {
		if kf.TimeMs-offset >= 0 {
			kf.TimeMs -= offset
			out = append(out, kf)
		}
	}
	return out
}

func keepKeyframesBefore(kfs []timeline.Keyframe, offset int64) []timeline.Keyframe {
	var out []timeline.Keyframe
	for _, kf := range kfs {
		if kf.TimeMs < offset {
			out = append(out, kf)
		}
	}
	return out
}

func rebaseVolumeKeyframes(kfs []timeline.VolumeKeyframe, offset int64) []timeline.VolumeKeyframe {
	var out []timeline.VolumeKeyframe
	for _, kf := range kfs {
		if kf.TimeMs-offset >= 0 {
			kf.TimeMs -= offset
			out = append(out, kf)
		}
	}
	return out
}

func keepVolumeKeyframesBefore(kfs []timeline.VolumeKeyframe, offset int64) []timeline.VolumeKeyframe {
	var out []timeline.VolumeKeyframe
	for _, kf := range kfs {
		if kf.TimeMs < offset {
			out = append(out, kf)
		}
	}
	return out
}

// insertClipAfter places a clip immediately after its sibling so layer
// order stays position-sorted.
func insertClipAfter(layer *timeline.Layer, siblingID string, clip timeline.Clip) {
	for i := range layer.Clips {
		if layer.Clips[i].ID == siblingID {
			layer.Clips = append(layer.Clips, timeline.Clip{})
			copy(layer.Clips[i+2:], layer.Clips[i+1:])
			layer.Clips[i+1] = clip
			return
		}
	}
	layer.Clips = append(layer.Clips, clip)
}

func insertAudioClipAfter(track *timeline.AudioTrack, siblingID string, clip timeline.AudioClip) {
	for i := range track.Clips {
		if track.Clips[i].ID == siblingID {
			track.Clips = append(track.Clips, timeline.AudioClip{})
			copy(track.Clips[i+2:], track.Clips[i+1:])
			track.Clips[i+1] = clip
			return
		}
	}
	track.Clips = append(track.Clips, clip)
}
