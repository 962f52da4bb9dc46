// Package history implements bounded linear undo/redo over full registry
// snapshots.
package history

import "github.com/bdougie/maskedit/internal/registry"

// DefaultCapacity bounds the stack when no capacity is given.
const DefaultCapacity = 50

// Stack is a bounded sequence of registry snapshots with a cursor that
// always points at the currently displayed snapshot. Pushing after an undo
// discards everything past the cursor; the history is linear, never a tree.
// Snapshots are deep copies taken on Push and handed back as deep copies,
// so callers can never alias stored state.
type Stack struct {
	snaps    []*registry.Registry
	cursor   int
	capacity int
}

// New creates a stack holding at most capacity snapshots. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{cursor: -1, capacity: capacity}
}

// Len returns the number of stored snapshots.
func (s *Stack) Len() int { return len(s.snaps) }

// Push records a snapshot as the new present, discarding any redo branch.
// Pushing beyond capacity evicts the oldest snapshots, keeping the newest.
func (s *Stack) Push(r *registry.Registry) {
	s.snaps = append(s.snaps[:s.cursor+1], r.Clone())
	if over := len(s.snaps) - s.capacity; over > 0 {
		s.snaps = append(s.snaps[:0], s.snaps[over:]...)
	}
	s.cursor = len(s.snaps) - 1
}

// CanUndo reports whether a snapshot exists before the cursor.
func (s *Stack) CanUndo() bool { return s.cursor > 0 }

// CanRedo reports whether a snapshot exists past the cursor.
func (s *Stack) CanRedo() bool { return s.cursor >= 0 && s.cursor < len(s.snaps)-1 }

// Undo steps the cursor back and returns that snapshot. ok is false at the
// oldest snapshot; the stack is unchanged then.
func (s *Stack) Undo() (*registry.Registry, bool) {
	if !s.CanUndo() {
		return nil, false
	}
	s.cursor--
	return s.snaps[s.cursor].Clone(), true
}

// Redo steps the cursor forward and returns that snapshot. ok is false at
// the newest snapshot.
func (s *Stack) Redo() (*registry.Registry, bool) {
	if !s.CanRedo() {
		return nil, false
	}
	s.cursor++
	return s.snaps[s.cursor].Clone(), true
}

// Current returns the snapshot under the cursor, or ok=false when empty.
func (s *Stack) Current() (*registry.Registry, bool) {
	if s.cursor < 0 {
		return nil, false
	}
	return s.snaps[s.cursor].Clone(), true
}

// Clear empties the stack. Used when a fresh inference result replaces the
// whole registry; that result is pushed as snapshot 0 afterwards, not
// treated as an edit outcome.
func (s *Stack) Clear() {
	s.snaps = nil
	s.cursor = -1
}
