// Package session holds the editing state for one image or frame: the
// instance registry, selection, tool, stroke capture, and undo/redo. All
// mutation funnels through the session's methods, so one stroke maps to
// exactly one history push and there is no hidden aliasing of registry
// state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdougie/maskedit/internal/history"
	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/raster"
	"github.com/bdougie/maskedit/internal/registry"
)

// ErrStrokeInFlight is returned when a stroke is started while a previous
// stroke-apply request has not completed. The single in-flight slot keeps
// two edits from racing on the same registry snapshot.
var ErrStrokeInFlight = errors.New("a stroke apply is already in flight")

// Applier produces a binary footprint from a finished stroke. The local
// applier rasterizes in-process; a remote applier delegates to the
// segmentation service.
type Applier interface {
	Footprint(ctx context.Context, stroke raster.Stroke, op registry.Op, sel registry.Selection) (*mask.Mask, error)
}

// LocalApplier rasterizes strokes in-process with the capsule+disc brush.
type LocalApplier struct {
	Width  int
	Height int
}

// Footprint implements Applier.
func (a LocalApplier) Footprint(_ context.Context, stroke raster.Stroke, _ registry.Op, _ registry.Selection) (*mask.Mask, error) {
	return raster.Rasterize(stroke, a.Width, a.Height), nil
}

// EventKind discriminates session events.
type EventKind int

const (
	// EventStrokeApplied fires after a stroke mutated the registry and was
	// pushed onto history.
	EventStrokeApplied EventKind = iota
	// EventStrokeFailed fires when a stroke was rejected or its apply
	// request failed; the registry is unchanged.
	EventStrokeFailed
	// EventRegistryReplaced fires when an inference result replaced the
	// whole registry.
	EventRegistryReplaced
)

// Event is the per-stroke completion/error notification the render layer
// subscribes to.
type Event struct {
	Kind EventKind
	Op   registry.Op
	Err  error
}

// Session is the editing state machine for one target image.
type Session struct {
	mu      sync.Mutex
	width   int
	height  int
	reg     *registry.Registry
	sel     registry.Selection
	tool    raster.Tool
	radius  int
	capture *raster.Capture
	hist    *history.Stack
	applier Applier
	pending bool
	events  chan Event
	logger  *slog.Logger
}

// Config carries session construction options.
type Config struct {
	Width           int
	Height          int
	BrushRadius     int
	HistoryCapacity int
	Scale           float64
	Applier         Applier // nil means local rasterization
	Logger          *slog.Logger
}

// New creates an empty session for an image of the given dimensions.
func New(cfg Config) *Session {
	if cfg.BrushRadius <= 0 {
		cfg.BrushRadius = 5
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.Applier == nil {
		cfg.Applier = LocalApplier{Width: cfg.Width, Height: cfg.Height}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		width:   cfg.Width,
		height:  cfg.Height,
		reg:     registry.New(cfg.Width, cfg.Height),
		sel:     registry.NoSelection(),
		tool:    raster.ToolBrush,
		radius:  cfg.BrushRadius,
		capture: raster.NewCapture(raster.Transform{Scale: cfg.Scale}),
		hist:    history.New(cfg.HistoryCapacity),
		applier: cfg.Applier,
		events:  make(chan Event, 64),
		logger:  cfg.Logger,
	}
	// The empty registry is snapshot 0 so the first stroke can be undone.
	s.hist.Push(s.reg)
	return s
}

// Events returns the completion/error event stream.
func (s *Session) Events() <-chan Event { return s.events }

// Registry returns the current registry. Callers must treat it as
// read-only; all mutation goes through the session.
func (s *Session) Registry() *registry.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg
}

// Selection returns the current selection.
func (s *Session) Selection() registry.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Pending reports whether a stroke apply is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// CanUndo reports undo availability for the view layer.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanUndo()
}

// CanRedo reports redo availability for the view layer.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanRedo()
}

// SetTool selects the active tool.
func (s *Session) SetTool(t raster.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tool = t
}

// SetRadius sets the brush radius in source pixels.
func (s *Session) SetRadius(r int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r > 0 {
		s.radius = r
	}
}

// SetScale updates the display→source scale factor, e.g. after a zoom.
func (s *Session) SetScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.SetTransform(raster.Transform{Scale: scale})
}

// Select targets the instance at index i.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.reg.Len() {
		return fmt.Errorf("%w: index %d of %d", registry.ErrNotFound, i, s.reg.Len())
	}
	s.sel = registry.Select(i)
	return nil
}

// SelectNew targets the new-instance slot, so the next brush stroke creates
// an instance.
func (s *Session) SelectNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = registry.SelectNew()
}

// ClearSelection deselects.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = registry.NoSelection()
}

// LoadInstances replaces the whole registry with a fresh inference result.
// History is cleared and the result becomes snapshot 0, not an edit
// outcome.
func (s *Session) LoadInstances(instances []registry.Instance) error {
	next := registry.New(s.width, s.height)
	for i, in := range instances {
		if err := next.Append(in); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}

	s.mu.Lock()
	s.reg = next
	s.sel = registry.NoSelection()
	s.hist.Clear()
	s.hist.Push(next)
	s.mu.Unlock()

	s.emit(Event{Kind: EventRegistryReplaced})
	return nil
}

// DeleteSelected removes the selected instance; selections past it shift
// down. The deletion is an undoable edit.
func (s *Session) DeleteSelected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.sel.Index()
	if !ok {
		return fmt.Errorf("%w: delete requires an instance selection", registry.ErrInvalidOperation)
	}
	next := s.reg.Clone()
	if err := next.DeleteAt(idx); err != nil {
		return err
	}
	s.reg = next
	s.sel = s.sel.AfterDelete(idx)
	s.hist.Push(next)
	return nil
}

// Undo restores the previous snapshot. Selection resets because instance
// indices may no longer line up.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.Undo()
	if !ok {
		return false
	}
	s.reg = snap
	s.sel = registry.NoSelection()
	return true
}

// Redo restores the next snapshot.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.hist.Redo()
	if !ok {
		return false
	}
	s.reg = snap
	s.sel = registry.NoSelection()
	return true
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session event dropped, subscriber too slow", "kind", ev.Kind)
	}
}
