package timeline

import "sort"

// Recalculate refreshes the denormalized DurationMs from clip positions.
// Must be called after every committed mutation.
func (tl *Timeline) Recalculate() {
	var max int64
	for li := range tl.Layers {
		for ci := range tl.Layers[li].Clips {
			if end := tl.Layers[li].Clips[ci].EndMs(); end > max {
				max = end
			}
		}
	}
	for ti := range tl.AudioTracks {
		for ci := range tl.AudioTracks[ti].Clips {
			if end := tl.AudioTracks[ti].Clips[ci].EndMs(); end > max {
				max = end
			}
		}
	}
	if max < 0 {
		max = 0
	}
	tl.DurationMs = max
}

// Overlap flags two clips on the same layer or track whose time
// intervals intersect. Overlaps are permitted by the model; they are
// surfaced for a visual warning, never auto-resolved.
type Overlap struct {
	OwnerID string `json:"ownerId"` // layer or track ID
	ClipA   string `json:"clipA"`
	ClipB   string `json:"clipB"`
}

type span struct {
	id    string
	start int64
	end   int64
}

// Overlaps returns every pair of intersecting clips, computed per layer
// and per track independently.
func (tl *Timeline) Overlaps() []Overlap {
	var out []Overlap
	for li := range tl.Layers {
		layer := &tl.Layers[li]
		spans := make([]span, 0, len(layer.Clips))
		for ci := range layer.Clips {
			c := &layer.Clips[ci]
			spans = append(spans, span{id: c.ID, start: c.StartMs, end: c.EndMs()})
		}
		out = append(out, overlapsIn(layer.ID, spans)...)
	}
	for ti := range tl.AudioTracks {
		track := &tl.AudioTracks[ti]
		spans := make([]span, 0, len(track.Clips))
		for ci := range track.Clips {
			c := &track.Clips[ci]
			spans = append(spans, span{id: c.ID, start: c.StartMs, end: c.EndMs()})
		}
		out = append(out, overlapsIn(track.ID, spans)...)
	}
	return out
}

// overlapsIn finds intersecting [start, end) intervals using a sweep over
// the spans sorted by start time.
func overlapsIn(ownerID string, spans []span) []Overlap {
	if len(spans) < 2 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start == spans[j].start {
			return spans[i].id < spans[j].id
		}
		return spans[i].start < spans[j].start
	})

	var out []Overlap
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start >= spans[i].end {
				break // sorted by start, no later span can intersect
			}
			out = append(out, Overlap{OwnerID: ownerID, ClipA: spans[i].id, ClipB: spans[j].id})
		}
	}
	return out
}
