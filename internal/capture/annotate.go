package capture

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{R: 46, G: 204, B: 113, A: 255}
	labelColor = image.NewUniform(boxColor)
)

const boxThickness = 2

// Annotate returns a copy of src with a box and "Name: <payload>" label per
// detection. src is returned untouched when there is nothing to draw.
func Annotate(src image.Image, detections []Detection) image.Image {
	if len(detections) == 0 {
		return src
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	for _, det := range detections {
		box := det.Bounds.Intersect(bounds)
		if box.Empty() {
			continue
		}
		drawBox(dst, box)

		labelY := box.Min.Y - 4
		if labelY-face.Ascent < bounds.Min.Y {
			labelY = box.Max.Y + face.Ascent + 2
		}
		drawer := font.Drawer{
			Dst:  dst,
			Src:  labelColor,
			Face: face,
			Dot:  fixed.P(box.Min.X, labelY),
		}
		drawer.DrawString("Name: " + det.Payload)
	}
	return dst
}

func drawBox(dst *image.RGBA, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(dst, edge.Intersect(r), fill, image.Point{}, draw.Src)
	}
}
