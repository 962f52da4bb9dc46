package raster

// Tool is the editing tool a stroke is drawn with.
type Tool int

const (
	ToolNone Tool = iota
	ToolBrush
	ToolEraser
)

func (t Tool) String() string {
	switch t {
	case ToolBrush:
		return "brush"
	case ToolEraser:
		return "eraser"
	default:
		return "none"
	}
}

// Capture accumulates pointer motion into a stroke. The pointer device
// issues one serialized event stream, so Capture is not safe for concurrent
// use and does not need to be.
type Capture struct {
	transform Transform
	stroke    Stroke
	tool      Tool
	active    bool
}

// NewCapture returns a capture mapping display coordinates through transform.
func NewCapture(transform Transform) *Capture {
	return &Capture{transform: transform}
}

// SetTransform updates the display→source mapping (e.g. after a zoom).
func (c *Capture) SetTransform(t Transform) { c.transform = t }

// Active reports whether a stroke is currently being drawn.
func (c *Capture) Active() bool { return c.active }

// Begin starts a stroke at the given display position. A stroke already in
// progress is replaced.
func (c *Capture) Begin(tool Tool, radius int, display Point) {
	c.active = true
	c.tool = tool
	c.stroke = Stroke{Radius: radius, Points: []Point{c.transform.ToSource(display)}}
}

// Move appends the pointer position while held. No-op when no stroke is
// active.
func (c *Capture) Move(display Point) {
	if !c.active {
		return
	}
	c.stroke.Points = append(c.stroke.Points, c.transform.ToSource(display))
}

// End finalizes the stroke and returns it with the tool it was drawn with.
// ok is false when no stroke was active.
func (c *Capture) End() (stroke Stroke, tool Tool, ok bool) {
	if !c.active {
		return Stroke{}, ToolNone, false
	}
	c.active = false
	return c.stroke, c.tool, true
}

// Cancel discards the in-progress stroke, as when the pointer leaves the
// canvas mid-stroke. The discarded stroke has no effect.
func (c *Capture) Cancel() {
	c.active = false
	c.stroke = Stroke{}
}
