package registry

import (
	"fmt"

	"github.com/bdougie/maskedit/internal/mask"
)

// Op is a mask-algebra operation combining a stroke footprint with the
// registry.
type Op int

const (
	// OpCreate turns the footprint into a new appended instance.
	OpCreate Op = iota
	// OpAdd unions the footprint into the selected instance.
	OpAdd
	// OpRemove subtracts the footprint from the selected instance.
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Apply combines a stroke footprint with the registry and returns the
// resulting registry and selection. The input registry is never mutated;
// on error it is returned unchanged with the original selection, so a
// failed stroke has no effect. The caller owns pushing the result onto
// history.
func Apply(reg *Registry, sel Selection, op Op, footprint *mask.Mask) (*Registry, Selection, error) {
	if footprint == nil || footprint.Width() != reg.Width() || footprint.Height() != reg.Height() {
		return reg, sel, fmt.Errorf("%w: footprint must be %dx%d", mask.ErrDimensionMismatch, reg.Width(), reg.Height())
	}

	switch op {
	case OpCreate:
		return applyCreate(reg, sel, footprint)
	case OpAdd:
		return applyAdd(reg, sel, footprint)
	case OpRemove:
		return applyRemove(reg, sel, footprint)
	default:
		return reg, sel, fmt.Errorf("%w: unknown op %d", ErrInvalidOperation, int(op))
	}
}

func applyCreate(reg *Registry, sel Selection, footprint *mask.Mask) (*Registry, Selection, error) {
	if !sel.IsNew() {
		return reg, sel, fmt.Errorf("%w: create requires the new-instance selection, have %s", ErrInvalidOperation, sel)
	}
	in, err := NewInstance(footprint.Clone(), "")
	if err != nil {
		// Footprint rasterized to nothing (e.g. fully outside bounds).
		return reg, sel, err
	}
	next := reg.Clone()
	if err := next.Append(in); err != nil {
		return reg, sel, err
	}
	return next, sel, nil
}

func applyAdd(reg *Registry, sel Selection, footprint *mask.Mask) (*Registry, Selection, error) {
	idx, ok := sel.Index()
	if !ok {
		return reg, sel, fmt.Errorf("%w: brush add requires an instance selection, have %s", ErrInvalidOperation, sel)
	}
	next := reg.Clone()
	in, err := next.Get(idx)
	if err != nil {
		return reg, sel, err
	}
	if err := in.Mask.Or(footprint); err != nil {
		return reg, sel, err
	}
	box, _ := in.Mask.Bounds()
	in.Box = box
	in.Score = 1.0
	if err := next.ReplaceAt(idx, in); err != nil {
		return reg, sel, err
	}
	return next, sel, nil
}

func applyRemove(reg *Registry, sel Selection, footprint *mask.Mask) (*Registry, Selection, error) {
	idx, ok := sel.Index()
	if !ok {
		return reg, sel, fmt.Errorf("%w: eraser requires an instance selection, have %s", ErrInvalidOperation, sel)
	}
	next := reg.Clone()
	in, err := next.Get(idx)
	if err != nil {
		return reg, sel, err
	}
	if err := in.Mask.AndNot(footprint); err != nil {
		return reg, sel, err
	}
	if in.Mask.Empty() {
		// Fully erased instances are deleted, never kept empty.
		if err := next.DeleteAt(idx); err != nil {
			return reg, sel, err
		}
		return next, sel.AfterDelete(idx), nil
	}
	box, _ := in.Mask.Bounds()
	in.Box = box
	in.Score = 1.0
	if err := next.ReplaceAt(idx, in); err != nil {
		return reg, sel, err
	}
	return next, sel, nil
}
