package engine

import (
	"sort"

	"cutroom/pkg/timeline"
)

// collectSnapPoints gathers every other clip's start and end time across
// all layers and tracks, excluding the clips currently being dragged.
// The result is sorted and de-duplicated.
func collectSnapPoints(tl *timeline.Timeline, exclude map[string]bool) []int64 {
	var points []int64
	for li := range tl.Layers {
		for ci := range tl.Layers[li].Clips {
			c := &tl.Layers[li].Clips[ci]
			if exclude[c.ID] {
				continue
			}
			points = append(points, c.StartMs, c.EndMs())
		}
	}
	for ti := range tl.AudioTracks {
		for ci := range tl.AudioTracks[ti].Clips {
			c := &tl.AudioTracks[ti].Clips[ci]
			if exclude[c.ID] {
				continue
			}
			points = append(points, c.StartMs, c.EndMs())
		}
	}
	if len(points) == 0 {
		return nil
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	dedup := points[:1]
	for _, p := range points[1:] {
		if p != dedup[len(dedup)-1] {
			dedup = append(dedup, p)
		}
	}
	return dedup
}

// findNearestSnapPoint returns the snap point closest to t within the
// threshold. The second return is false when no point is close enough.
func findNearestSnapPoint(t int64, points []int64, thresholdMs int64) (int64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	i := sort.Search(len(points), func(i int) bool { return points[i] >= t })

	best := int64(0)
	bestDist := int64(-1)
	if i < len(points) {
		best, bestDist = points[i], points[i]-t
	}
	if i > 0 {
		if d := t - points[i-1]; bestDist < 0 || d < bestDist {
			best, bestDist = points[i-1], d
		}
	}
	if bestDist < 0 || bestDist > thresholdMs {
		return 0, false
	}
	return best, true
}

// snapMoveDelta adjusts a raw move delta so the primary clip's start or
// end lands on the nearest snap point within the threshold. A start-edge
// match takes priority over an end-edge match. The returned snap line is
// the matched time for UI feedback; ok is false when nothing matched and
// the raw delta is returned unchanged.
func snapMoveDelta(initial Geometry, deltaMs int64, points []int64, thresholdMs int64) (adjusted int64, snapLine int64, ok bool) {
	candidateStart := initial.StartMs + deltaMs
	if candidateStart < 0 {
		candidateStart = 0
	}
	if point, found := findNearestSnapPoint(candidateStart, points, thresholdMs); found {
		return point - initial.StartMs, point, true
	}
	candidateEnd := candidateStart + initial.DurationMs
	if point, found := findNearestSnapPoint(candidateEnd, points, thresholdMs); found {
		return point - initial.DurationMs - initial.StartMs, point, true
	}
	return deltaMs, 0, false
}
