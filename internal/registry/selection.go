package registry

import "fmt"

// selectionKind discriminates the Selection variant.
type selectionKind int

const (
	selNone selectionKind = iota
	selNew
	selIndex
)

// Selection is the tagged selection variant: nothing selected, the "new
// instance" slot, or a concrete instance index. The zero value is no
// selection.
type Selection struct {
	kind  selectionKind
	index int
}

// NoSelection returns the empty selection.
func NoSelection() Selection { return Selection{} }

// SelectNew returns the selection targeting a yet-to-be-created instance.
func SelectNew() Selection { return Selection{kind: selNew} }

// Select returns the selection of the instance at index i.
func Select(i int) Selection { return Selection{kind: selIndex, index: i} }

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool { return s.kind == selNone }

// IsNew reports whether the "new instance" slot is selected.
func (s Selection) IsNew() bool { return s.kind == selNew }

// Index returns the selected instance index; ok is false unless a concrete
// index is selected.
func (s Selection) Index() (int, bool) {
	return s.index, s.kind == selIndex
}

// AfterDelete returns the selection adjusted for the deletion of index i:
// selections past i shift down, a selection of i itself becomes none.
func (s Selection) AfterDelete(i int) Selection {
	if s.kind != selIndex {
		return s
	}
	switch {
	case s.index == i:
		return NoSelection()
	case s.index > i:
		return Select(s.index - 1)
	default:
		return s
	}
}

func (s Selection) String() string {
	switch s.kind {
	case selNew:
		return "new"
	case selIndex:
		return fmt.Sprintf("index(%d)", s.index)
	default:
		return "none"
	}
}
