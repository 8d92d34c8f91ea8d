package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

// mutate runs fn against a cloned timeline under the engine lock. When
// fn reports a change the clone replaces the current timeline, the
// derived duration is refreshed and the snapshot goes to persistence.
func (e *Engine) mutate(ctx context.Context, op string, fn func(tl *timeline.Timeline) (bool, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard != nil && !e.guard() {
		e.logger.WithFields(logrus.Fields{"timeline_id": e.timelineID, "op": op}).Warn("Mutation refused, edit token lost")
		return nil
	}

	next := e.current.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	next.Recalculate()
	e.current = next
	return e.persistLocked(ctx)
}

// InsertClip drops a new clip onto a layer at the given position. Asset
// metadata supplies the default duration and the source window; shape
// and text clips get the provided duration as-is. Returns the new clip's
// id. Inserting onto a locked or unknown layer is a no-op.
func (e *Engine) InsertClip(ctx context.Context, layerID string, clip timeline.Clip) (string, error) {
	if clip.ID == "" {
		clip.ID = uuid.New().String()
	}
	if clip.Speed == 0 {
		clip.Speed = 1
	}
	if clip.Effects.Opacity == 0 {
		clip.Effects.Opacity = 1
	}

	if clip.AssetID != "" {
		info, err := e.assets.ResolveAsset(clip.AssetID)
		if err != nil {
			return "", fmt.Errorf("resolve asset %s: %w", clip.AssetID, err)
		}
		clip.AssetType = info.Type
		if info.Type != timeline.AssetTypeImage {
			if clip.DurationMs <= 0 {
				clip.DurationMs = info.DurationMs
			}
			if clip.OutPointMs <= clip.InPointMs {
				clip.InPointMs = 0
				clip.OutPointMs = roundMul(clip.DurationMs, clip.Speed)
			}
		}
	}
	if clip.DurationMs < timeline.MinClipDurationMs {
		clip.DurationMs = timeline.MinClipDurationMs
	}
	if clip.StartMs < 0 {
		clip.StartMs = 0
	}

	err := e.mutate(ctx, "insert-clip", func(tl *timeline.Timeline) (bool, error) {
		layer := tl.FindLayer(layerID)
		if layer == nil || layer.Locked {
			return false, nil
		}
		insertClipSorted(layer, clip)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return clip.ID, nil
}

// InsertAudioClip drops a new audio clip onto a track, with the source
// window defaulted from the asset duration. Returns the new clip's id.
func (e *Engine) InsertAudioClip(ctx context.Context, trackID string, clip timeline.AudioClip) (string, error) {
	if clip.ID == "" {
		clip.ID = uuid.New().String()
	}
	if clip.Volume == 0 {
		clip.Volume = 1
	}
	if clip.AssetID != "" {
		info, err := e.assets.ResolveAsset(clip.AssetID)
		if err != nil {
			return "", fmt.Errorf("resolve asset %s: %w", clip.AssetID, err)
		}
		if clip.DurationMs <= 0 {
			clip.DurationMs = info.DurationMs
		}
		if clip.OutPointMs <= clip.InPointMs {
			clip.InPointMs = 0
			clip.OutPointMs = clip.DurationMs
		}
	}
	if clip.DurationMs < timeline.MinClipDurationMs {
		clip.DurationMs = timeline.MinClipDurationMs
	}
	if clip.StartMs < 0 {
		clip.StartMs = 0
	}

	err := e.mutate(ctx, "insert-audio-clip", func(tl *timeline.Timeline) (bool, error) {
		track := tl.FindTrack(trackID)
		if track == nil || track.Locked {
			return false, nil
		}
		insertAudioClipSorted(track, clip)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return clip.ID, nil
}

// DeleteClip removes a clip from its layer or track. Deleting a video
// clip cascades to audio clips bound to it through the legacy
// single-link relation; other members of a shared group are left in
// place, keeping their group id.
func (e *Engine) DeleteClip(ctx context.Context, clipID string) error {
	return e.mutate(ctx, "delete-clip", func(tl *timeline.Timeline) (bool, error) {
		if clip, layer := tl.FindClip(clipID); clip != nil {
			if layer.Locked {
				return false, nil
			}
			linked := clip.LinkedAudioClipID
			removeClip(layer, clipID)
			// Legacy cascade: the extracted audio travels with its video.
			for ti := range tl.AudioTracks {
				track := &tl.AudioTracks[ti]
				for ci := len(track.Clips) - 1; ci >= 0; ci-- {
					ac := &track.Clips[ci]
					if ac.LinkedVideoClipID == clipID || (linked != "" && ac.ID == linked) {
						track.Clips = append(track.Clips[:ci], track.Clips[ci+1:]...)
					}
				}
			}
			return true, nil
		}
		if clip, track := tl.FindAudioClip(clipID); clip != nil {
			if track.Locked {
				return false, nil
			}
			removeAudioClip(track, clipID)
			return true, nil
		}
		return false, nil
	})
}

// CreateGroup tags the given clips with a fresh group, replacing any
// membership they carried before. A call with no clips is a no-op.
// Returns the new group's id.
func (e *Engine) CreateGroup(ctx context.Context, name, color string, clipIDs []string) (string, error) {
	if len(clipIDs) == 0 {
		return "", nil
	}
	groupID := uuid.New().String()
	err := e.mutate(ctx, "create-group", func(tl *timeline.Timeline) (bool, error) {
		changed := false
		for _, id := range clipIDs {
			if clip, layer := tl.FindClip(id); clip != nil && !layer.Locked {
				clip.GroupID = groupID
				changed = true
			} else if ac, track := tl.FindAudioClip(id); ac != nil && !track.Locked {
				ac.GroupID = groupID
				changed = true
			}
		}
		if changed {
			tl.Groups = append(tl.Groups, timeline.ClipGroup{ID: groupID, Name: name, Color: color})
		}
		return changed, nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

// Ungroup clears group membership on the given clips. The group itself
// persists even when left empty; clips leave it by clearing their tag.
func (e *Engine) Ungroup(ctx context.Context, clipIDs []string) error {
	return e.mutate(ctx, "ungroup", func(tl *timeline.Timeline) (bool, error) {
		changed := false
		for _, id := range clipIDs {
			if clip, layer := tl.FindClip(id); clip != nil && !layer.Locked && clip.GroupID != "" {
				clip.GroupID = ""
				changed = true
			} else if ac, track := tl.FindAudioClip(id); ac != nil && !track.Locked && ac.GroupID != "" {
				ac.GroupID = ""
				changed = true
			}
		}
		return changed, nil
	})
}

// insertClipSorted keeps the layer's clip sequence ordered by start.
func insertClipSorted(layer *timeline.Layer, clip timeline.Clip) {
	for i := range layer.Clips {
		if layer.Clips[i].StartMs > clip.StartMs {
			layer.Clips = append(layer.Clips, timeline.Clip{})
			copy(layer.Clips[i+1:], layer.Clips[i:])
			layer.Clips[i] = clip
			return
		}
	}
	layer.Clips = append(layer.Clips, clip)
}

func insertAudioClipSorted(track *timeline.AudioTrack, clip timeline.AudioClip) {
	for i := range track.Clips {
		if track.Clips[i].StartMs > clip.StartMs {
			track.Clips = append(track.Clips, timeline.AudioClip{})
			copy(track.Clips[i+1:], track.Clips[i:])
			track.Clips[i] = clip
			return
		}
	}
	track.Clips = append(track.Clips, clip)
}

func removeClip(layer *timeline.Layer, clipID string) {
	for i := range layer.Clips {
		if layer.Clips[i].ID == clipID {
			layer.Clips = append(layer.Clips[:i], layer.Clips[i+1:]...)
			return
		}
	}
}

func removeAudioClip(track *timeline.AudioTrack, clipID string) {
	for i := range track.Clips {
		if track.Clips[i].ID == clipID {
			track.Clips = append(track.Clips[:i], track.Clips[i+1:]...)
			return
		}
	}
}
