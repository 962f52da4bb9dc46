package session

import (
	"context"
	"fmt"

	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/raster"
	"github.com/bdougie/maskedit/internal/registry"
)

// PointerDown starts a stroke at a display position. It fails without
// starting anything when the tool/selection pairing is illegal or a
// previous stroke apply is still in flight.
func (s *Session) PointerDown(p raster.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return ErrStrokeInFlight
	}
	if _, err := s.opForLocked(s.tool); err != nil {
		return err
	}
	s.capture.Begin(s.tool, s.radius, p)
	return nil
}

// PointerMove appends the pointer position to the stroke in progress.
func (s *Session) PointerMove(p raster.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.Move(p)
}

// PointerLeave cancels the stroke in progress; the discarded stroke never
// reaches the algebra engine.
func (s *Session) PointerLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.Cancel()
}

// PointerUp finalizes the stroke and kicks off the apply. The apply runs
// asynchronously; completion or failure arrives on the event stream, and
// no new stroke may start until then.
func (s *Session) PointerUp(ctx context.Context) {
	s.mu.Lock()
	stroke, tool, ok := s.capture.End()
	if !ok {
		s.mu.Unlock()
		return
	}
	op, err := s.opForLocked(tool)
	if err != nil {
		// Selection changed mid-stroke.
		s.mu.Unlock()
		s.emit(Event{Kind: EventStrokeFailed, Err: err})
		return
	}
	s.pending = true
	sel := s.sel
	s.mu.Unlock()

	go func() {
		footprint, ferr := s.applier.Footprint(ctx, stroke, op, sel)
		s.completeStroke(op, sel, footprint, ferr)
	}()
}

// opForLocked maps the tool/selection pairing to a mask-algebra op.
// Brush requires some selection; eraser requires a concrete instance.
func (s *Session) opForLocked(tool raster.Tool) (registry.Op, error) {
	switch tool {
	case raster.ToolBrush:
		if s.sel.IsNew() {
			return registry.OpCreate, nil
		}
		if _, ok := s.sel.Index(); ok {
			return registry.OpAdd, nil
		}
		return 0, fmt.Errorf("%w: brush requires a selection", registry.ErrInvalidOperation)
	case raster.ToolEraser:
		if _, ok := s.sel.Index(); ok {
			return registry.OpRemove, nil
		}
		return 0, fmt.Errorf("%w: eraser requires an instance selection", registry.ErrInvalidOperation)
	default:
		return 0, fmt.Errorf("%w: no tool active", registry.ErrInvalidOperation)
	}
}

// completeStroke applies the footprint under the session lock and pushes
// exactly one history entry on success. The stroke carries the selection
// captured at pointer-up, so reselecting while the apply is in flight never
// redirects the edit; the apply outcome then becomes the live selection.
func (s *Session) completeStroke(op registry.Op, sel registry.Selection, footprint *mask.Mask, ferr error) {
	s.mu.Lock()
	s.pending = false
	if ferr != nil {
		s.mu.Unlock()
		s.logger.Warn("stroke apply failed", "op", op, "error", ferr)
		s.emit(Event{Kind: EventStrokeFailed, Op: op, Err: ferr})
		return
	}

	next, nextSel, err := registry.Apply(s.reg, sel, op, footprint)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("stroke rejected", "op", op, "error", err)
		s.emit(Event{Kind: EventStrokeFailed, Op: op, Err: err})
		return
	}
	s.reg = next
	s.sel = nextSel
	s.hist.Push(next)
	s.mu.Unlock()

	s.emit(Event{Kind: EventStrokeApplied, Op: op})
}
