package carousel

import (
	"fmt"
	"math"
)

// TransformParams are the ring-wide inputs to ComputeTransform.
type TransformParams struct {
	// Radius is in pixels.
	Radius float64
	// DepthIntensity is the extra forward push of the front item, in rem.
	// The item directly behind is pulled back by the same amount.
	DepthIntensity float64
	MinOpacity     float64
	MaxOpacity     float64
	// MinScale is the scale of the item farthest from front-center.
	// The front-most item is always drawn at scale 1.
	MinScale float64
}

// MaxDisplacement is the farthest any item can be pushed toward the viewer.
func (p TransformParams) MaxDisplacement() float64 {
	return p.Radius + math.Abs(p.DepthIntensity)*remBase
}

// Transform is the per-frame render record for one item. ForwardDisplacement
// is in pixels.
type Transform struct {
	Index               int     `json:"index"`
	RotationAngle       float64 `json:"rotation_angle"`
	ForwardDisplacement float64 `json:"forward_displacement"`
	Scale               float64 `json:"scale"`
	Opacity             float64 `json:"opacity"`
	StackOrder          int     `json:"stack_order"`
	Deviation           float64 `json:"deviation"`
}

// ComputeTransform places an item centered at centerAngle on a ring that is
// currently rotated by rotation degrees. The result depends only on its
// inputs.
func ComputeTransform(centerAngle, rotation float64, p TransformParams) Transform {
	relative := NormalizeTo360(centerAngle + NormalizeTo360(rotation))
	deviation := NormalizeTo180(relative)
	falloff := deviation / 180

	opacity := math.Max(p.MinOpacity, p.MaxOpacity-falloff*(p.MaxOpacity-p.MinOpacity))
	scale := math.Max(p.MinScale, 1-falloff*(1-p.MinScale))
	stack := int(math.Round(math.Cos(radians(centerAngle-rotation)) * 100))
	depthOffset := math.Cos(radians(deviation)) * p.DepthIntensity

	return Transform{
		RotationAngle:       centerAngle,
		ForwardDisplacement: p.Radius + depthOffset*remBase,
		Scale:               scale,
		Opacity:             opacity,
		StackOrder:          stack,
		Deviation:           deviation,
	}
}

// TransformCSS renders every transform with CSS, in order.
func TransformCSS(trs []Transform) []string {
	out := make([]string, len(trs))
	for i, t := range trs {
		out[i] = t.CSS()
	}
	return out
}

// ComputeTransforms runs ComputeTransform for every item.
func ComputeTransforms(geoms []ItemGeometry, rotation float64, p TransformParams) []Transform {
	out := make([]Transform, len(geoms))
	for i, g := range geoms {
		out[i] = ComputeTransform(g.CenterAngle, rotation, p)
		out[i].Index = i
	}
	return out
}

// remBase is the root font size, in pixels, used to express displacement in rem.
const remBase = 16

// CSS renders the transform as a CSS transform value, with the displacement
// in rem (radius/16 plus the depth offset). Opacity and stack order are
// applied separately by the host.
func (t Transform) CSS() string {
	return fmt.Sprintf("rotateY(%gdeg) translateZ(%grem) scale(%g)",
		t.RotationAngle, t.ForwardDisplacement/remBase, t.Scale)
}
