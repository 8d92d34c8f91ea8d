// Package engine implements the timeline editing engine: a pure
// state+logic core that owns one drag/trim/stretch session at a time,
// resolves group membership and snap points, splits clips and keeps the
// derived timeline duration current. The engine never paints anything;
// hosts read preview state per scheduler tick and render it themselves.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

// AssetInfo is the read-only metadata the engine needs about a source
// asset: its kind, playable duration and native dimensions.
type AssetInfo struct {
	Type       string `json:"type"`
	DurationMs int64  `json:"durationMs"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// AssetResolver supplies asset metadata for trim/stretch ceilings and
// default clip dimensions. The engine never mutates assets.
type AssetResolver interface {
	ResolveAsset(assetID string) (AssetInfo, error)
}

// PersistFunc receives a full replacement snapshot once per committed
// user gesture. Persistence is fire-and-forget: the engine neither
// retries nor rolls back on failure.
type PersistFunc func(ctx context.Context, timelineID string, snapshot *timeline.Timeline) error

// WriteGuard is consulted before every mutation. When it returns false
// (the host lost its exclusive edit token) the engine degrades to
// read-only and mutation entry points become no-ops.
type WriteGuard func() bool

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	SnapThresholdMs int64
	Logger          *logrus.Logger
	Guard           WriteGuard
}

// DefaultSnapThresholdMs is the magnetic range of a snap point.
const DefaultSnapThresholdMs = 200

// Engine owns the current timeline of one project and the single active
// drag session. All methods are safe for concurrent use; the timeline is
// only ever replaced whole (copy-and-replace), never mutated in place
// under a reader.
type Engine struct {
	mu         sync.Mutex
	timelineID string
	current    *timeline.Timeline
	assets     AssetResolver
	persist    PersistFunc
	guard      WriteGuard
	logger     *logrus.Logger

	snapThresholdMs int64
	selection       map[string]bool
	session         *Session
}

// New creates an engine for one timeline. The timeline is normalized
// (legacy links migrated to groups) and its derived duration refreshed.
func New(timelineID string, tl *timeline.Timeline, assets AssetResolver, persist PersistFunc, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	threshold := opts.SnapThresholdMs
	if threshold <= 0 {
		threshold = DefaultSnapThresholdMs
	}

	tl = tl.Clone()
	tl.NormalizeLegacyLinks()
	tl.Recalculate()

	return &Engine{
		timelineID:      timelineID,
		current:         tl,
		assets:          assets,
		persist:         persist,
		guard:           opts.Guard,
		logger:          logger,
		snapThresholdMs: threshold,
		selection:       make(map[string]bool),
	}
}

// Snapshot returns a deep copy of the current timeline for readers.
func (e *Engine) Snapshot() *timeline.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// SetSelection replaces the current multi-selection. Selected clips are
// pulled into drag sessions alongside the primary clip's group.
func (e *Engine) SetSelection(clipIDs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = make(map[string]bool, len(clipIDs))
	for _, id := range clipIDs {
		e.selection[id] = true
	}
}

// Session is the state of one pointer gesture, captured at pointer-down.
// The captured context is immutable; only the pending pointer delta
// changes as pointer-move events arrive, latest wins.
type Session struct {
	Mode    DragMode
	ClipID  string
	OwnerID string
	Audio   bool

	initial   Geometry
	ceilingMs int64
	unbounded bool

	pointerStartX   float64
	pixelsPerSecond float64
	members         []Member
	snapPoints      []int64

	pendingDeltaMs int64
	dirty          bool
}

// Preview is the per-tick render state of an active session: the
// candidate geometry of every affected clip plus the snap line, if any.
type Preview struct {
	Clips      map[string]Geometry `json:"clips"`
	SnapLineMs int64               `json:"snapLineMs"`
	Snapped    bool                `json:"snapped"`
}

// StartDrag opens a drag session for the given clip, implicitly ending
// any previous session. It returns an error only for an unknown clip id
// or mode (programmer error); a locked owner or an inapplicable mode is
// an expected edge case and leaves the engine without a session.
func (e *Engine) StartDrag(clipID string, mode DragMode, pointerX, pixelsPerSecond float64) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown drag mode %q", mode)
	}
	if pixelsPerSecond <= 0 {
		return fmt.Errorf("pixels-per-second must be positive, got %v", pixelsPerSecond)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Only one session may be active; starting a new one discards the old.
	e.session = nil

	var (
		sess    *Session
		groupID string
	)
	if clip, layer := e.current.FindClip(clipID); clip != nil {
		if layer.Locked {
			e.logger.WithField("clip_id", clipID).Debug("Drag ignored, layer locked")
			return nil
		}
		if mode == ModeFreezeEnd && clip.AssetType != timeline.AssetTypeVideo {
			e.logger.WithField("clip_id", clipID).Debug("Freeze-end only applies to video clips")
			return nil
		}
		if (mode == ModeStretchStart || mode == ModeStretchEnd) && clip.Resizable() {
			// Resizable clips have no source window to stretch; solving
			// speed against a zero window would collapse the duration.
			e.logger.WithFields(logrus.Fields{"clip_id": clipID, "mode": mode}).Debug("Stretch only applies to source-backed clips")
			return nil
		}
		sess = &Session{
			Mode:    mode,
			ClipID:  clip.ID,
			OwnerID: layer.ID,
			initial: geometryOf(clip),
		}
		sess.unbounded = clip.Resizable()
		if !sess.unbounded {
			sess.ceilingMs, sess.unbounded = e.assetCeiling(clip.AssetID)
		}
		groupID = clip.GroupID
	} else if audioClip, track := e.current.FindAudioClip(clipID); audioClip != nil {
		if track.Locked {
			e.logger.WithField("clip_id", clipID).Debug("Drag ignored, track locked")
			return nil
		}
		switch mode {
		case ModeStretchStart, ModeStretchEnd, ModeFreezeEnd:
			e.logger.WithFields(logrus.Fields{"clip_id": clipID, "mode": mode}).Debug("Mode not applicable to audio clips")
			return nil
		}
		sess = &Session{
			Mode:    mode,
			ClipID:  audioClip.ID,
			OwnerID: track.ID,
			Audio:   true,
			initial: audioGeometryOf(audioClip),
		}
		sess.ceilingMs, sess.unbounded = e.assetCeiling(audioClip.AssetID)
		groupID = audioClip.GroupID
	} else {
		return fmt.Errorf("clip %s not found", clipID)
	}

	sess.pointerStartX = pointerX
	sess.pixelsPerSecond = pixelsPerSecond
	sess.members = e.collectMembers(e.current, sess.ClipID, groupID, sess.Audio, mode)

	if mode == ModeMove {
		exclude := map[string]bool{sess.ClipID: true}
		for _, m := range sess.members {
			exclude[m.ClipID] = true
		}
		sess.snapPoints = collectSnapPoints(e.current, exclude)
	}

	e.session = sess
	return nil
}

// PointerMove records the latest pointer position. Deltas within one
// scheduler tick are coalesced: only the most recent position is kept.
func (e *Engine) PointerMove(pointerX float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.session
	if sess == nil {
		return
	}
	deltaPx := pointerX - sess.pointerStartX
	sess.pendingDeltaMs = int64(math.Round(deltaPx / sess.pixelsPerSecond * 1000))
	sess.dirty = true
}

// Dirty reports whether a pointer delta arrived since the last tick.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && e.session.dirty
}

// Tick computes the visible preview for the latest pending delta. Hosts
// call this at most once per scheduler tick. Returns nil when no session
// is active.
func (e *Engine) Tick() *Preview {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.session
	if sess == nil {
		return nil
	}
	sess.dirty = false
	return e.computePreview(sess, sess.pendingDeltaMs)
}

// computePreview applies the session's mode to the captured geometry of
// the primary clip and each member. Caller must hold e.mu.
func (e *Engine) computePreview(sess *Session, deltaMs int64) *Preview {
	preview := &Preview{Clips: make(map[string]Geometry, 1+len(sess.members))}

	effectiveDelta := deltaMs
	if sess.Mode == ModeMove {
		adjusted, line, snapped := snapMoveDelta(sess.initial, deltaMs, sess.snapPoints, e.snapThresholdMs)
		effectiveDelta = adjusted
		preview.SnapLineMs = line
		preview.Snapped = snapped
	}

	primary := applyMode(sess.Mode, sess.initial, effectiveDelta, sess.ceilingMs, sess.unbounded)
	preview.Clips[sess.ClipID] = primary

	for _, m := range sess.members {
		preview.Clips[m.ClipID] = memberGeometry(sess, m, effectiveDelta, primary)
	}
	return preview
}

// memberGeometry derives a group member's candidate geometry. Moves
// share the primary's delta; trims are re-derived from the member's own
// initial geometry and ceiling; stretches propagate the primary's
// duration delta as a crop, since audio members cannot change speed.
func memberGeometry(sess *Session, m Member, deltaMs int64, primary Geometry) Geometry {
	switch sess.Mode {
	case ModeMove:
		return applyMove(m.Initial, deltaMs)
	case ModeTrimStart:
		return applyTrimStart(m.Initial, deltaMs, m.CeilingMs, m.Resizable)
	case ModeTrimEnd:
		return applyTrimEnd(m.Initial, deltaMs, m.CeilingMs, m.Resizable)
	case ModeStretchStart:
		shift := primary.DurationMs - sess.initial.DurationMs
		return applyTrimStart(m.Initial, -shift, m.CeilingMs, m.Resizable)
	case ModeStretchEnd:
		shift := primary.DurationMs - sess.initial.DurationMs
		return applyTrimEnd(m.Initial, shift, m.CeilingMs, m.Resizable)
	}
	return m.Initial
}

// Cancel discards the active session without committing. The visual
// delta is simply dropped; the timeline is untouched.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
}

// Commit applies the final pending delta to the primary clip and every
// captured member in one atomic copy-and-replace, refreshes the derived
// duration and hands the new snapshot to persistence. The commit reads
// the latest pending delta, not the last rendered one, so a dropped
// preview frame never loses pointer movement. A locked owner, a deleted
// clip or a lost edit token turns the commit into a no-op.
func (e *Engine) Commit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.session
	e.session = nil
	if sess == nil {
		return nil
	}
	if e.guard != nil && !e.guard() {
		e.logger.WithField("timeline_id", e.timelineID).Warn("Commit refused, edit token lost")
		return nil
	}

	preview := e.computePreview(sess, sess.pendingDeltaMs)

	next := e.current.Clone()
	if !applyGeometry(next, sess.ClipID, sess.Audio, preview.Clips[sess.ClipID], sess.OwnerID) {
		// Clip deleted or owner locked during the gesture.
		return nil
	}
	for _, m := range sess.members {
		applyGeometry(next, m.ClipID, m.Audio, preview.Clips[m.ClipID], m.OwnerID)
	}
	next.Recalculate()
	e.current = next

	return e.persistLocked(ctx)
}

// applyGeometry writes a candidate geometry back to its clip. Returns
// false when the clip no longer exists or its owner became locked.
func applyGeometry(tl *timeline.Timeline, clipID string, audio bool, g Geometry, ownerID string) bool {
	if audio {
		clip, track := tl.FindAudioClip(clipID)
		if clip == nil || track.ID != ownerID || track.Locked {
			return false
		}
		clip.StartMs = g.StartMs
		clip.DurationMs = g.DurationMs
		clip.InPointMs = g.InPointMs
		clip.OutPointMs = g.OutPointMs
		return true
	}
	clip, layer := tl.FindClip(clipID)
	if clip == nil || layer.ID != ownerID || layer.Locked {
		return false
	}
	clip.StartMs = g.StartMs
	clip.DurationMs = g.DurationMs
	clip.InPointMs = g.InPointMs
	clip.OutPointMs = g.OutPointMs
	clip.Speed = g.Speed
	clip.FreezeFrameMs = g.FreezeFrameMs
	return true
}

// persistLocked hands the current snapshot to the persistence
// collaborator. Failures are logged, never retried or rolled back.
// Caller must hold e.mu.
func (e *Engine) persistLocked(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	if err := e.persist(ctx, e.timelineID, e.current.Clone()); err != nil {
		e.logger.WithError(err).WithField("timeline_id", e.timelineID).Error("Failed to persist timeline snapshot")
		return err
	}
	return nil
}
