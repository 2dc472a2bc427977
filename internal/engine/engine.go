package engine

import (
	"slices"
	"time"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/history"
	"github.com/bodymap/bodymap/internal/spatial"
	"github.com/bodymap/bodymap/internal/stroke"
	"github.com/bodymap/bodymap/internal/throttle"
	"github.com/bodymap/bodymap/internal/typeid"
)

// DefaultPointerInterval is the minimum time between processed pointer moves.
const DefaultPointerInterval = 8 * time.Millisecond

// Options configures an Engine. Zero values select defaults.
type Options struct {
	PlayerID        string
	HistorySize     int
	Optimizer       stroke.OptimizerConfig
	PointerInterval time.Duration
	CellSize        float64
	Regions         *geom.RegionMap
	Transform       geom.ModelTransform
	Clock           stroke.Clock
}

// Engine owns the shared canvas state: strokes, fills, sensations, text,
// the action history and the spatial index derived from the marks.
// All mutation goes through the Engine. It is not safe for concurrent use;
// callers serialize access (see collab.Session).
type Engine struct {
	playerID  string
	clock     stroke.Clock
	regions   *geom.RegionMap
	transform geom.ModelTransform

	strokes    *stroke.Manager
	compressor *stroke.Compressor
	optimizer  *stroke.Optimizer
	index      *spatial.Index
	history    *history.History
	pointer    *throttle.Limiter

	colors     document.ColorMap
	sensations []document.SensationMark
	texts      []document.TextMark
	effects    []document.CustomEffect
}

// New creates an engine with an empty canvas.
func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = stroke.SystemClock
	}
	regions := opts.Regions
	if regions == nil {
		regions = geom.DefaultRegionMap()
	}
	transform := opts.Transform
	if transform.Scale == 0 {
		transform = geom.Identity()
	}
	interval := opts.PointerInterval
	if interval == 0 {
		interval = DefaultPointerInterval
	}

	e := &Engine{
		playerID:   opts.PlayerID,
		clock:      clock,
		regions:    regions,
		transform:  transform,
		strokes:    stroke.NewManager(opts.PlayerID, clock),
		compressor: stroke.NewCompressor(clock),
		optimizer:  stroke.NewOptimizer(opts.Optimizer, clock),
		index:      spatial.NewIndex(opts.CellSize),
		history:    history.New(opts.HistorySize),
		pointer:    throttle.New(interval),
		colors:     document.ColorMap{},
	}
	e.rebuild()
	return e
}

// --- Identity and placement ---

func (e *Engine) PlayerID() string {
	return e.playerID
}

// SetPlayerID sets the actor that owns new strokes. Drawing is refused
// until an id is set.
func (e *Engine) SetPlayerID(id string) {
	e.playerID = id
	e.strokes.SetOwner(id)
}

func (e *Engine) Transform() geom.ModelTransform {
	return e.transform
}

func (e *Engine) Rotation() float64 {
	return e.transform.Rotation
}

// SetRotation turns the model about its vertical axis. Marks are stored in
// model space so they rotate with it.
func (e *Engine) SetRotation(radians float64) {
	e.transform = e.transform.WithRotation(radians)
}

func (e *Engine) Regions() *geom.RegionMap {
	return e.regions
}

// --- Drawing ---

// StartStroke opens a stroke for the local actor and resets the key-point
// compressor. It returns false when no player id is set.
func (e *Engine) StartStroke(brushSize float64, color string) (string, bool) {
	id, ok := e.strokes.StartStroke(brushSize, color)
	if !ok {
		return "", false
	}
	e.compressor.Reset()
	e.pointer.Reset()
	return id, true
}

// AddMarkToStroke appends a mark to the open stroke, or returns nil.
func (e *Engine) AddMarkToStroke(in document.MarkInput) *document.Mark {
	m := e.strokes.AddMarkToStroke(in)
	if m != nil {
		e.rebuild()
	}
	return m
}

// Paint handles one pointer-move sample during a drag. Samples closer than
// the pointer interval to the previous one, misses and hits on unknown
// meshes are ignored.
func (e *Engine) Paint(hit geom.Hit) *document.Mark {
	open := e.strokes.OpenStroke()
	if open == nil {
		return nil
	}
	coord, ok := geom.Locate(hit, e.regions, e.transform)
	if !ok {
		return nil
	}
	now := e.clock()
	if !e.pointer.Allow(time.UnixMilli(now)) {
		return nil
	}
	e.compressor.AddPointAt(hit.Point, coord.Region, now)
	return e.AddMarkToStroke(document.MarkInput{
		ID:        stroke.MarkID(open.ID, len(open.Marks)),
		Position:  coord.Local,
		Color:     open.Color,
		Size:      stroke.MarkRadius(open.BrushSize),
		Timestamp: now,
		Surface:   coord.Region.Surface,
	})
}

// FinishStroke completes the open stroke, records it in the history and
// returns it with its compressed wire form. Both are nil when no stroke was
// open or it had no marks.
func (e *Engine) FinishStroke() (*document.Stroke, *document.OptimizedDrawingStroke) {
	s := e.strokes.FinishStroke()
	if s == nil {
		e.compressor.Reset()
		e.rebuild()
		return nil, nil
	}
	wire := e.compressor.Finalize(s.ID, s.Color, s.BrushSize, s.AuthorID)
	if wire == nil {
		wire = stroke.CompressStroke(s, e.transform.LocalToWorld)
	}
	e.compressor.Reset()

	e.record(history.ActionDraw, history.Data{Strokes: []document.Stroke{*s.Clone()}}, nil)
	e.optimize()
	e.rebuild()
	return s, wire
}

// optimize thins old marks when the canvas grows too large. It never runs
// while a stroke is open.
func (e *Engine) optimize() {
	if e.strokes.OpenStroke() != nil {
		return
	}
	marks := e.strokes.CompletedMarks()
	if !e.optimizer.ShouldTriggerCleanup(marks) {
		return
	}
	kept := e.optimizer.Optimize(marks)
	keep := make(map[string]struct{}, len(kept))
	for _, m := range kept {
		keep[m.ID] = struct{}{}
	}
	e.strokes.Retain(keep)
}

// ApplyRemoteStroke restores a stroke drawn by another participant and
// records it as a locally undoable draw. Strokes already present are
// ignored.
func (e *Engine) ApplyRemoteStroke(s *document.Stroke, playerID string) bool {
	if !e.strokes.RestoreStroke(s) {
		return false
	}
	e.record(history.ActionDraw, history.Data{Strokes: []document.Stroke{*s.Clone()}}, remote(playerID))
	e.optimize()
	e.rebuild()
	return true
}

// --- Fills ---

// Fill colors a body region.
func (e *Engine) Fill(part, color string) bool {
	return e.fill(part, color, nil)
}

func (e *Engine) ApplyRemoteFill(part, color, playerID string) bool {
	return e.fill(part, color, remote(playerID))
}

func (e *Engine) fill(part, color string, meta *history.Metadata) bool {
	if part == "" {
		return false
	}
	prev := e.colors.Clone()
	e.colors[part] = color
	e.record(history.ActionFill, history.Data{
		BodyPartColors:         document.ColorMap{part: color},
		PreviousBodyPartColors: prev,
	}, meta)
	return true
}

// --- Sensations ---

// PlaceSensation adds a sensation mark, assigning an id when missing.
func (e *Engine) PlaceSensation(m document.SensationMark) document.SensationMark {
	if m.ID == "" {
		m.ID = typeid.NewSensationID()
	}
	e.placeSensation(m, nil)
	return m
}

// ApplyRemoteSensation adds a sensation placed by another participant.
// A mark whose id is already present is ignored.
func (e *Engine) ApplyRemoteSensation(m document.SensationMark, playerID string) bool {
	if m.ID == "" || e.sensationIndex(m.ID) >= 0 {
		return false
	}
	e.placeSensation(m, remote(playerID))
	return true
}

func (e *Engine) placeSensation(m document.SensationMark, meta *history.Metadata) {
	prev := slices.Clone(e.sensations)
	e.sensations = append(e.sensations, m)
	placed := m
	e.record(history.ActionSensation, history.Data{
		SensationMark:          &placed,
		PreviousSensationMarks: prev,
	}, meta)
}

func (e *Engine) sensationIndex(id string) int {
	return slices.IndexFunc(e.sensations, func(s document.SensationMark) bool { return s.ID == id })
}

// --- Text ---

// PlaceText stamps a text mark, assigning an id when missing.
func (e *Engine) PlaceText(t document.TextMark) document.TextMark {
	if t.ID == "" {
		t.ID = typeid.NewTextID()
	}
	if t.AuthorID == "" {
		t.AuthorID = e.playerID
	}
	if t.Timestamp == 0 {
		t.Timestamp = e.clock()
	}
	e.placeText(t, nil)
	return t
}

func (e *Engine) ApplyRemoteTextPlace(t document.TextMark, playerID string) bool {
	if t.ID == "" || e.textIndex(t.ID) >= 0 {
		return false
	}
	e.placeText(t, remote(playerID))
	return true
}

func (e *Engine) placeText(t document.TextMark, meta *history.Metadata) {
	t.Surface = t.Surface.Normalize()
	e.texts = append(e.texts, t)
	placed := t
	e.record(history.ActionTextPlace, history.Data{TextMark: &placed}, meta)
}

// EditText replaces the text of a mark.
func (e *Engine) EditText(id, text string) bool {
	return e.editText(id, text, nil)
}

func (e *Engine) ApplyRemoteTextEdit(id, text, playerID string) bool {
	return e.editText(id, text, remote(playerID))
}

func (e *Engine) editText(id, text string, meta *history.Metadata) bool {
	i := e.textIndex(id)
	if i < 0 || e.texts[i].Text == text {
		return false
	}
	prev := e.texts[i].Text
	e.texts[i].Text = text
	edited := e.texts[i]
	e.record(history.ActionTextEdit, history.Data{
		TextMark:     &edited,
		PreviousText: prev,
		Text:         text,
	}, meta)
	return true
}

// DeleteText removes a text mark.
func (e *Engine) DeleteText(id string) bool {
	return e.deleteText(id, nil)
}

func (e *Engine) ApplyRemoteTextDelete(id, playerID string) bool {
	return e.deleteText(id, remote(playerID))
}

func (e *Engine) deleteText(id string, meta *history.Metadata) bool {
	i := e.textIndex(id)
	if i < 0 {
		return false
	}
	prev := slices.Clone(e.texts)
	deleted := e.texts[i]
	e.texts = slices.Delete(e.texts, i, i+1)
	e.record(history.ActionTextDelete, history.Data{
		TextMark:          &deleted,
		PreviousTextMarks: prev,
	}, meta)
	return true
}

func (e *Engine) textIndex(id string) int {
	return slices.IndexFunc(e.texts, func(t document.TextMark) bool { return t.ID == id })
}

// PickText returns the last placed text mark on the surface whose collision
// radius contains p.
func (e *Engine) PickText(p geom.Point, surface geom.Surface) (document.TextMark, bool) {
	surface = surface.Normalize()
	for i := len(e.texts) - 1; i >= 0; i-- {
		t := e.texts[i]
		if t.Surface.Normalize() != surface {
			continue
		}
		if p.Distance(t.Position) <= TextCollisionRadius(t.FontSize) {
			return t, true
		}
	}
	return document.TextMark{}, false
}

// --- Custom effects ---

// CreateCustomEffect registers a sensation preset. Presets are shared with
// the room but are not part of the undo history.
func (e *Engine) CreateCustomEffect(fx document.CustomEffect) document.CustomEffect {
	if fx.ID == "" {
		fx.ID = typeid.NewEffectID()
	}
	if fx.AuthorID == "" {
		fx.AuthorID = e.playerID
	}
	e.upsertEffect(fx)
	return fx
}

// UpsertCustomEffect stores a preset received from the room.
func (e *Engine) UpsertCustomEffect(fx document.CustomEffect) bool {
	if fx.ID == "" {
		return false
	}
	e.upsertEffect(fx)
	return true
}

func (e *Engine) upsertEffect(fx document.CustomEffect) {
	if i := slices.IndexFunc(e.effects, func(c document.CustomEffect) bool { return c.ID == fx.ID }); i >= 0 {
		e.effects[i] = fx
		return
	}
	e.effects = append(e.effects, fx)
}

func (e *Engine) DeleteCustomEffect(id string) bool {
	n := len(e.effects)
	e.effects = slices.DeleteFunc(e.effects, func(c document.CustomEffect) bool { return c.ID == id })
	return len(e.effects) != n
}

// --- Clearing ---

// ClearAll removes every stroke, sensation and text mark. Fills are kept.
func (e *Engine) ClearAll() bool {
	return e.clear(history.ActionClear, nil)
}

func (e *Engine) ApplyRemoteClear(playerID string) bool {
	return e.clear(history.ActionClear, remote(playerID))
}

// ResetAll clears everything including fills and model rotation.
func (e *Engine) ResetAll() bool {
	return e.clear(history.ActionResetAll, nil)
}

func (e *Engine) ApplyRemoteReset(playerID string) bool {
	return e.clear(history.ActionResetAll, remote(playerID))
}

func (e *Engine) clear(kind history.ActionType, meta *history.Metadata) bool {
	prev := e.Snapshot()
	prev.CustomEffects = nil
	if kind == history.ActionClear && len(prev.Strokes) == 0 && len(prev.SensationMarks) == 0 && len(prev.TextMarks) == 0 {
		return false
	}
	if kind == history.ActionResetAll && prev.IsEmpty() && prev.ModelRotation == 0 {
		return false
	}
	e.clearState(kind)
	e.record(kind, history.Data{Previous: prev}, meta)
	return true
}

func (e *Engine) clearState(kind history.ActionType) {
	e.strokes.Clear()
	e.compressor.Reset()
	e.sensations = nil
	e.texts = nil
	if kind == history.ActionResetAll {
		e.colors = document.ColorMap{}
		e.SetRotation(0)
	}
	e.rebuild()
}

// --- History ---

func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

// HistoryItems returns the action log, oldest first.
func (e *Engine) HistoryItems() []*history.Item {
	return e.history.Items()
}

// HistoryIndex returns the history cursor.
func (e *Engine) HistoryIndex() int {
	return e.history.CurrentIndex()
}

func (e *Engine) record(kind history.ActionType, data history.Data, meta *history.Metadata) {
	e.history.Add(&history.Item{
		ID:        typeid.NewActionID(),
		Type:      kind,
		Timestamp: e.clock(),
		Data:      data,
		Metadata:  meta,
	})
}

func remote(playerID string) *history.Metadata {
	return &history.Metadata{IsMultiplayer: true, PlayerID: playerID}
}

// --- Queries ---

// AllMarks returns completed and in-progress marks in drawing order.
func (e *Engine) AllMarks() []document.Mark {
	return e.strokes.AllMarks()
}

// AllStrokes returns the completed strokes.
func (e *Engine) AllStrokes() []document.Stroke {
	return e.strokes.AllStrokes()
}

func (e *Engine) Stroke(id string) *document.Stroke {
	return e.strokes.Stroke(id)
}

// HasStroke reports whether a completed stroke with the id exists.
func (e *Engine) HasStroke(id string) bool {
	return e.strokes.Has(id)
}

// QueryRadius returns marks within r (plus their own size) of center.
func (e *Engine) QueryRadius(center geom.Point, r float64) []document.Mark {
	return e.index.QueryRadius(center, r)
}

// QueryBox returns marks positioned inside the box.
func (e *Engine) QueryBox(lo, hi geom.Point) []document.Mark {
	return e.index.QueryBox(lo, hi)
}

func (e *Engine) Colors() document.ColorMap {
	return e.colors.Clone()
}

func (e *Engine) Sensations() []document.SensationMark {
	return slices.Clone(e.sensations)
}

func (e *Engine) Texts() []document.TextMark {
	return slices.Clone(e.texts)
}

func (e *Engine) CustomEffects() []document.CustomEffect {
	return slices.Clone(e.effects)
}

// Snapshot captures the full shared state.
func (e *Engine) Snapshot() *document.Snapshot {
	return &document.Snapshot{
		Strokes:        e.strokes.AllStrokes(),
		BodyPartColors: e.colors.Clone(),
		SensationMarks: slices.Clone(e.sensations),
		TextMarks:      slices.Clone(e.texts),
		CustomEffects:  slices.Clone(e.effects),
		ModelRotation:  e.transform.Rotation,
	}
}

// ApplySnapshot merges a peer's state into the canvas. Strokes, sensations,
// text and presets are added by id; colors and rotation take the snapshot's
// values. Nothing is recorded in the history. It returns the number of
// strokes that were new.
func (e *Engine) ApplySnapshot(snap *document.Snapshot) int {
	if snap == nil {
		return 0
	}
	restored := 0
	for i := range snap.Strokes {
		if e.strokes.RestoreStroke(&snap.Strokes[i]) {
			restored++
		}
	}
	for part, color := range snap.BodyPartColors {
		e.colors[part] = color
	}
	for _, s := range snap.SensationMarks {
		if i := e.sensationIndex(s.ID); i >= 0 {
			e.sensations[i] = s
		} else {
			e.sensations = append(e.sensations, s)
		}
	}
	for _, t := range snap.TextMarks {
		if i := e.textIndex(t.ID); i >= 0 {
			e.texts[i] = t
		} else {
			e.texts = append(e.texts, t)
		}
	}
	for _, fx := range snap.CustomEffects {
		e.UpsertCustomEffect(fx)
	}
	e.SetRotation(snap.ModelRotation)
	e.rebuild()
	return restored
}

// LoadSnapshot replaces the canvas with the snapshot and clears the history.
func (e *Engine) LoadSnapshot(snap *document.Snapshot) {
	snap = snap.Clone()
	if snap == nil {
		snap = &document.Snapshot{}
	}
	e.strokes.Replace(snap.Strokes)
	e.compressor.Reset()
	e.colors = snap.BodyPartColors.Clone()
	e.sensations = snap.SensationMarks
	e.texts = snap.TextMarks
	e.effects = snap.CustomEffects
	e.SetRotation(snap.ModelRotation)
	e.history.Clear()
	e.rebuild()
}

// rebuild refreshes the spatial index from the stroke manager. Every
// mutation of the mark set must be followed by a rebuild.
func (e *Engine) rebuild() {
	e.index.Build(e.strokes.AllMarks())
}
