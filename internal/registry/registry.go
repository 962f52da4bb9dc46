package registry

import (
	"errors"
	"fmt"

	"github.com/bdougie/maskedit/internal/mask"
)

var (
	// ErrInvalidOperation flags an illegal tool/selection pairing. The
	// registry is left unchanged.
	ErrInvalidOperation = errors.New("invalid operation for current selection")

	// ErrNotFound flags a stale instance index, e.g. after a deletion.
	ErrNotFound = errors.New("instance not found")
)

// Instance is one editable mask/box/score triple. Score is the model
// confidence, or 1.0 once the instance has been manually created or edited.
type Instance struct {
	Mask  *mask.Mask
	Box   mask.Rect
	Score float64
	Label string
}

// NewInstance builds a manually created instance from a non-empty mask.
func NewInstance(m *mask.Mask, label string) (Instance, error) {
	box, ok := m.Bounds()
	if !ok {
		return Instance{}, fmt.Errorf("%w: empty mask", ErrInvalidOperation)
	}
	return Instance{Mask: m, Box: box, Score: 1.0, Label: label}, nil
}

// clone deep-copies the instance.
func (in Instance) clone() Instance {
	c := in
	c.Mask = in.Mask.Clone()
	return c
}

// Registry is the ordered set of instances for the active image or frame.
// Instance identity is positional. All mutating methods keep the invariants:
// every mask has the registry's exact dimensions, boxes are tight, and no
// instance is ever retained with an all-zero mask.
type Registry struct {
	width     int
	height    int
	instances []Instance
}

// New creates an empty registry for an image of the given dimensions.
func New(width, height int) *Registry {
	return &Registry{width: width, height: height}
}

// Width returns the target image width.
func (r *Registry) Width() int { return r.width }

// Height returns the target image height.
func (r *Registry) Height() int { return r.height }

// Len returns the instance count.
func (r *Registry) Len() int { return len(r.instances) }

// Get returns the instance at index i.
func (r *Registry) Get(i int) (Instance, error) {
	if i < 0 || i >= len(r.instances) {
		return Instance{}, fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(r.instances))
	}
	return r.instances[i], nil
}

// Instances returns the instances in order. The slice is shared; callers
// must not mutate it.
func (r *Registry) Instances() []Instance { return r.instances }

// Append adds an instance at the end.
func (r *Registry) Append(in Instance) error {
	if err := r.check(in); err != nil {
		return err
	}
	r.instances = append(r.instances, in)
	return nil
}

// ReplaceAt swaps the instance at index i.
func (r *Registry) ReplaceAt(i int, in Instance) error {
	if i < 0 || i >= len(r.instances) {
		return fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(r.instances))
	}
	if err := r.check(in); err != nil {
		return err
	}
	r.instances[i] = in
	return nil
}

// DeleteAt removes the instance at index i; later instances shift down.
func (r *Registry) DeleteAt(i int) error {
	if i < 0 || i >= len(r.instances) {
		return fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(r.instances))
	}
	r.instances = append(r.instances[:i], r.instances[i+1:]...)
	return nil
}

// Clear removes all instances.
func (r *Registry) Clear() {
	r.instances = nil
}

// Clone returns an independent deep copy, the unit of history snapshots.
func (r *Registry) Clone() *Registry {
	c := New(r.width, r.height)
	if len(r.instances) > 0 {
		c.instances = make([]Instance, len(r.instances))
		for i, in := range r.instances {
			c.instances[i] = in.clone()
		}
	}
	return c
}

// Equal reports whether both registries hold identical instances.
func (r *Registry) Equal(o *Registry) bool {
	if r.width != o.width || r.height != o.height || len(r.instances) != len(o.instances) {
		return false
	}
	for i := range r.instances {
		a, b := r.instances[i], o.instances[i]
		if a.Box != b.Box || a.Score != b.Score || a.Label != b.Label || !a.Mask.Equal(b.Mask) {
			return false
		}
	}
	return true
}

func (r *Registry) check(in Instance) error {
	if in.Mask == nil || in.Mask.Width() != r.width || in.Mask.Height() != r.height {
		return fmt.Errorf("%w: instance mask must be %dx%d", mask.ErrDimensionMismatch, r.width, r.height)
	}
	if in.Mask.Empty() {
		return fmt.Errorf("%w: all-zero mask", ErrInvalidOperation)
	}
	return nil
}
