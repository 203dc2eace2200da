package annotate

import "strings"

const (
	// Minimum free space beside the clicked element for each placement.
	MinSideSpace   = 200.0
	MinBottomSpace = 100.0

	// Offset separates the box from the stored click point.
	Offset = 12.0
	// Margin keeps the box away from the viewport edges.
	Margin = 8.0
)

type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
)

func (p Placement) Valid() bool {
	switch p {
	case PlacementTop, PlacementBottom, PlacementLeft, PlacementRight:
		return true
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the visible page area.
type Viewport = Size

// Rect is an element's bounding client rect.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Element describes the clicked DOM node.
type Element struct {
	Tag     string   `json:"tag"`
	ID      string   `json:"id,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Text    string   `json:"text,omitempty"`
	// InOverlay is set for nodes inside the annotation UI itself.
	InOverlay bool `json:"inOverlay,omitempty"`
}

// Selector builds a best-effort CSS selector: #id, else tag.class..., else tag.
func Selector(el Element) string {
	if el.ID != "" {
		return "#" + el.ID
	}
	tag := strings.ToLower(el.Tag)
	var classes []string
	for _, c := range el.Classes {
		if c = strings.TrimSpace(c); c != "" {
			classes = append(classes, c)
		}
	}
	if len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}
	return tag
}

// Label is the short human description stored alongside the selector.
func Label(el Element) string {
	text := strings.Join(strings.Fields(el.Text), " ")
	if runes := []rune(text); len(runes) > 60 {
		text = string(runes[:57]) + "..."
	}
	if text == "" {
		return Selector(el)
	}
	return text
}

// ChoosePlacement picks the side of the element with enough room, preferring right, left,
// bottom, then top.
func ChoosePlacement(r Rect, vp Viewport) Placement {
	switch {
	case vp.Width-r.Right() >= MinSideSpace:
		return PlacementRight
	case r.Left >= MinSideSpace:
		return PlacementLeft
	case vp.Height-r.Bottom() >= MinBottomSpace:
		return PlacementBottom
	default:
		return PlacementTop
	}
}

// DisplayPosition returns the top-left corner of an annotation box anchored at the stored
// click point, kept inside the viewport.
func DisplayPosition(at Point, p Placement, box Size, vp Viewport) Point {
	var pos Point
	switch p {
	case PlacementRight:
		pos = Point{X: at.X + Offset, Y: at.Y - box.Height/2}
	case PlacementLeft:
		pos = Point{X: at.X - box.Width - Offset, Y: at.Y - box.Height/2}
	case PlacementBottom:
		pos = Point{X: at.X - box.Width/2, Y: at.Y + Offset}
	default:
		pos = Point{X: at.X - box.Width/2, Y: at.Y - box.Height - Offset}
	}
	pos.X = clamp(pos.X, Margin, vp.Width-box.Width-Margin)
	pos.Y = clamp(pos.Y, Margin, vp.Height-box.Height-Margin)
	return pos
}

// clamp prefers lo when the range is empty so small viewports pin the box to the top-left.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
