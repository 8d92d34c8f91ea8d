package engine

import (
	"math"

	"cutroom/pkg/timeline"
)

// DragMode identifies which manipulation a drag session performs. The
// mode is chosen by which screen region the gesture begins in (clip body
// vs. edge handles) and stays fixed for the whole session.
type DragMode string

// Supported drag modes.
const (
	ModeMove         DragMode = "move"
	ModeTrimStart    DragMode = "trim-start"
	ModeTrimEnd      DragMode = "trim-end"
	ModeStretchStart DragMode = "stretch-start"
	ModeStretchEnd   DragMode = "stretch-end"
	ModeFreezeEnd    DragMode = "freeze-end"
)

// Valid reports whether m is a known drag mode.
func (m DragMode) Valid() bool {
	switch m {
	case ModeMove, ModeTrimStart, ModeTrimEnd, ModeStretchStart, ModeStretchEnd, ModeFreezeEnd:
		return true
	}
	return false
}

// Geometry is the manipulated subset of a clip's fields, captured at
// session start and transformed per frame. All deltas are clamped, never
// rejected: the caller always receives the closest valid geometry.
type Geometry struct {
	StartMs       int64   `json:"startMs"`
	DurationMs    int64   `json:"durationMs"`
	InPointMs     int64   `json:"inPointMs"`
	OutPointMs    int64   `json:"outPointMs"`
	Speed         float64 `json:"speed"`
	FreezeFrameMs int64   `json:"freezeFrameMs,omitempty"`
}

// geometryOf captures a video clip's manipulated fields.
func geometryOf(c *timeline.Clip) Geometry {
	return Geometry{
		StartMs:       c.StartMs,
		DurationMs:    c.DurationMs,
		InPointMs:     c.InPointMs,
		OutPointMs:    c.OutPointMs,
		Speed:         c.Speed,
		FreezeFrameMs: c.FreezeFrameMs,
	}
}

// audioGeometryOf captures an audio clip's manipulated fields. Audio
// clips always play at unit speed.
func audioGeometryOf(c *timeline.AudioClip) Geometry {
	return Geometry{
		StartMs:    c.StartMs,
		DurationMs: c.DurationMs,
		InPointMs:  c.InPointMs,
		OutPointMs: c.OutPointMs,
		Speed:      1,
	}
}

// applyMode dispatches to the transform for the given mode. ceiling is
// the resolved source duration in ms; it is ignored for resizable clips.
func applyMode(mode DragMode, g Geometry, deltaMs int64, ceilingMs int64, resizable bool) Geometry {
	switch mode {
	case ModeMove:
		return applyMove(g, deltaMs)
	case ModeTrimStart:
		return applyTrimStart(g, deltaMs, ceilingMs, resizable)
	case ModeTrimEnd:
		return applyTrimEnd(g, deltaMs, ceilingMs, resizable)
	case ModeStretchStart:
		return applyStretchStart(g, deltaMs)
	case ModeStretchEnd:
		return applyStretchEnd(g, deltaMs)
	case ModeFreezeEnd:
		return applyFreezeEnd(g, deltaMs)
	}
	return g
}

// applyMove shifts the clip along the timeline, floored at zero.
func applyMove(g Geometry, deltaMs int64) Geometry {
	g.StartMs += deltaMs
	if g.StartMs < 0 {
		g.StartMs = 0
	}
	return g
}

// applyTrimStart crops the clip's leading edge. A positive delta shrinks
// the clip; the effective trim is clamped so duration stays at least
// MinClipDurationMs, the start never goes negative and the source window
// stays within [0, ceiling]. The in point advances by the effective trim
// scaled by speed so playback content is consumed, not stretched.
func applyTrimStart(g Geometry, deltaMs int64, ceilingMs int64, resizable bool) Geometry {
	hi := g.DurationMs - timeline.MinClipDurationMs
	lo := -g.StartMs
	if !resizable {
		// Cannot expose material before the source start.
		srcLo := int64(math.Ceil(-float64(g.InPointMs) / g.Speed))
		if srcLo > lo {
			lo = srcLo
		}
	}
	effective := clamp(deltaMs, lo, hi)
	g.StartMs += effective
	g.DurationMs -= effective
	if !resizable {
		// Resizable clips keep their in point pinned at zero; only
		// source-backed clips consume or expose source material.
		g.InPointMs += roundMul(effective, g.Speed)
	}
	return g
}

// applyTrimEnd crops the clip's trailing edge. A positive delta grows the
// clip, clamped so the source window does not run past the resolved
// asset duration (no ceiling for resizable clips).
func applyTrimEnd(g Geometry, deltaMs int64, ceilingMs int64, resizable bool) Geometry {
	lo := -(g.DurationMs - timeline.MinClipDurationMs)
	hi := int64(math.MaxInt64)
	if !resizable {
		hi = int64(math.Floor(float64(ceilingMs-g.OutPointMs) / g.Speed))
	}
	effective := clamp(deltaMs, lo, hi)
	g.DurationMs += effective
	if !resizable {
		g.OutPointMs += roundMul(effective, g.Speed)
	}
	return g
}

// applyStretchEnd holds the source window fixed and solves for a new
// playback speed from the requested duration, clamping the speed and
// recomputing the duration from the clamped value.
func applyStretchEnd(g Geometry, deltaMs int64) Geometry {
	window := g.OutPointMs - g.InPointMs
	newDuration := g.DurationMs + deltaMs
	speed, duration := solveStretch(window, newDuration)
	g.Speed = speed
	g.DurationMs = duration
	return g
}

// applyStretchStart is applyStretchEnd mirrored: the clip's right edge
// stays anchored while the left edge moves, so the start shifts by the
// resulting duration delta.
func applyStretchStart(g Geometry, deltaMs int64) Geometry {
	window := g.OutPointMs - g.InPointMs
	end := g.StartMs + g.DurationMs
	newDuration := g.DurationMs - deltaMs
	speed, duration := solveStretch(window, newDuration)
	g.Speed = speed
	g.DurationMs = duration
	g.StartMs = end - duration
	if g.StartMs < 0 {
		g.StartMs = 0
	}
	return g
}

// applyFreezeEnd adjusts only the trailing frozen-frame extension.
func applyFreezeEnd(g Geometry, deltaMs int64) Geometry {
	g.FreezeFrameMs += deltaMs
	if g.FreezeFrameMs < 0 {
		g.FreezeFrameMs = 0
	}
	return g
}

// solveStretch derives (speed, duration) for a requested duration with
// the source window held fixed. speed = window / duration, clamped to
// [MinSpeed, MaxSpeed]; the duration is then recomputed from the clamped
// speed so the invariant window == duration * speed holds.
func solveStretch(windowMs, requestedDurationMs int64) (float64, int64) {
	if requestedDurationMs < 1 {
		requestedDurationMs = 1
	}
	speed := float64(windowMs) / float64(requestedDurationMs)
	if speed < timeline.MinSpeed {
		speed = timeline.MinSpeed
	}
	if speed > timeline.MaxSpeed {
		speed = timeline.MaxSpeed
	}
	duration := int64(math.Round(float64(windowMs) / speed))
	return speed, duration
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundMul rounds v * f to the nearest millisecond.
func roundMul(v int64, f float64) int64 {
	return int64(math.Round(float64(v) * f))
}
