package ui

import (
	"image"

	"fyne.io/fyne/v2"

	"gemini-assistant/src/screenshot"
)

// dragRect returns the top-left corner and size of the rectangle spanned by
// two drag points.
func dragRect(a, b fyne.Position) (fyne.Position, fyne.Size) {
	x0, x1 := order(a.X, b.X)
	y0, y1 := order(a.Y, b.Y)
	return fyne.NewPos(x0, y0), fyne.NewSize(x1-x0, y1-y0)
}

// toRegion maps a drag inside an area of the given size, which shows the
// screen captured at bounds, to absolute screen pixels.
func toRegion(start, end fyne.Position, area fyne.Size, bounds image.Rectangle) screenshot.Region {
	if area.Width <= 0 || area.Height <= 0 || bounds.Empty() {
		return screenshot.Region{}
	}
	sx := float32(bounds.Dx()) / area.Width
	sy := float32(bounds.Dy()) / area.Height
	px := func(v, limit, scale float32, origin int) int {
		return origin + int(clamp(v, 0, limit)*scale+0.5)
	}
	return screenshot.Normalize(
		px(start.X, area.Width, sx, bounds.Min.X),
		px(start.Y, area.Height, sy, bounds.Min.Y),
		px(end.X, area.Width, sx, bounds.Min.X),
		px(end.Y, area.Height, sy, bounds.Min.Y),
	)
}

func order(a, b float32) (float32, float32) {
	if b < a {
		return b, a
	}
	return a, b
}

func clamp(v, lo, hi float32) float32 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
