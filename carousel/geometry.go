package carousel

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Orientation classifies an item by its aspect ratio.
// The zero value means "unknown" and resolves to Square.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Square    Orientation = "square"
	Landscape Orientation = "landscape"
)

// Valid reports whether o is one of the three known classes.
func (o Orientation) Valid() bool {
	switch o {
	case Portrait, Square, Landscape:
		return true
	}
	return false
}

// ratio returns the width:height proportions used to size an item.
func (o Orientation) ratio() (w, h float64) {
	switch o {
	case Portrait:
		return 3, 4
	case Landscape:
		return 4, 3
	default:
		return 1, 1
	}
}

// ClassifyAspectRatio returns the orientation whose nominal ratio is closest
// to widthOverHeight. Ties go to the earlier of portrait, square, landscape.
// Ratios that cannot be compared (NaN) classify as square.
func ClassifyAspectRatio(widthOverHeight float64) Orientation {
	best := Square
	bestDiff := math.Inf(1)
	for _, o := range [...]Orientation{Portrait, Square, Landscape} {
		w, h := o.ratio()
		if d := math.Abs(widthOverHeight - w/h); d < bestDiff {
			bestDiff = d
			best = o
		}
	}
	return best
}

// itemSizeScale keeps items inside the container height with a small margin.
const itemSizeScale = 0.9

// ContainerSize returns the rounded display size for an item of the given
// orientation in a carousel of the given base height.
func ContainerSize(o Orientation, baseHeight float64) (width, height float64) {
	scaled := baseHeight * itemSizeScale
	w, h := o.ratio()
	return math.Round(scaled * w / h), math.Round(scaled)
}

// Item is one entry of the carousel.
type Item struct {
	ID string `json:"id" yaml:"id"`
	// Image references the item's picture (path or URL). Empty for
	// content-only items.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// Content is opaque payload for the view layer.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	// Orientation is an optional explicit hint.
	Orientation Orientation `json:"orientation,omitempty" yaml:"orientation,omitempty"`
}

// OrientationSource looks up the resolved orientation of an item by ID.
type OrientationSource interface {
	Orientation(id string) (Orientation, bool)
}

// OrientationMap is an OrientationSource backed by a map.
type OrientationMap map[string]Orientation

func (m OrientationMap) Orientation(id string) (Orientation, bool) {
	o, ok := m[id]
	return o, ok && o.Valid()
}

// ItemGeometry is the static placement of one item on the ring.
type ItemGeometry struct {
	ID           string      `json:"id"`
	Orientation  Orientation `json:"orientation"`
	Width        float64     `json:"width"`
	Height       float64     `json:"height"`
	AngularWidth float64     `json:"angular_width"`
	CenterAngle  float64     `json:"center_angle"`
}

func resolveOrientation(it Item, src OrientationSource) Orientation {
	if src != nil {
		if o, ok := src.Orientation(it.ID); ok {
			return o
		}
	}
	if it.Orientation.Valid() {
		return it.Orientation
	}
	return Square
}

// ComputeGeometry lays items out around the ring. Each item's angular width
// is proportional to its display width, and the first item is centered at 0°.
// A nil source falls back to each item's own hint, then to Square.
func ComputeGeometry(items []Item, src OrientationSource, baseHeight float64) []ItemGeometry {
	if len(items) == 0 {
		return []ItemGeometry{}
	}

	out := make([]ItemGeometry, len(items))
	widths := make([]float64, len(items))
	for i, it := range items {
		o := resolveOrientation(it, src)
		w, h := ContainerSize(o, baseHeight)
		out[i] = ItemGeometry{ID: it.ID, Orientation: o, Width: w, Height: h}
		widths[i] = w
	}

	total := floats.Sum(widths)
	if total <= 0 {
		// Zero base height collapses every width; share the circle evenly.
		return UniformGeometry(items)
	}

	angular := make([]float64, len(widths))
	copy(angular, widths)
	floats.Scale(360/total, angular)

	cumulative := floats.CumSum(make([]float64, len(angular)), angular)
	offset := -angular[0] / 2
	for i := range out {
		before := cumulative[i] - angular[i]
		out[i].AngularWidth = angular[i]
		out[i].CenterAngle = before + angular[i]/2 + offset
	}
	return out
}

// UniformGeometry spaces items evenly, ignoring their widths. Hosts use it
// when orientation metadata is not available yet.
func UniformGeometry(items []Item) []ItemGeometry {
	n := len(items)
	out := make([]ItemGeometry, n)
	for i, it := range items {
		out[i] = ItemGeometry{
			ID:           it.ID,
			Orientation:  Square,
			AngularWidth: 360 / float64(n),
			CenterAngle:  float64(i) * 360 / float64(n),
		}
	}
	return out
}

// MaxItems is the largest number of items a carousel lays out.
const MaxItems = 30

// LimitItems truncates items to max entries and reports how many were dropped.
// A non-positive max means MaxItems.
func LimitItems(items []Item, max int) ([]Item, int) {
	if max <= 0 {
		max = MaxItems
	}
	if len(items) <= max {
		return items, 0
	}
	return items[:max], len(items) - max
}
