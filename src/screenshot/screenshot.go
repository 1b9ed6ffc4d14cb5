package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/kbinani/screenshot"
)

// Region is a rectangle in absolute screen pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether r covers no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Normalize builds a region from two drag corners given in any order.
func Normalize(x0, y0, x1, y1 int) Region {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// CapturePrimary grabs the whole primary display. It is used as the
// backdrop of the region selector; the image bounds equal the display
// bounds, so regions in screen coordinates can be cut from it directly.
func CapturePrimary() (*image.RGBA, image.Rectangle, error) {
	bounds, err := GetDisplayBounds()
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to capture display: %w", err)
	}
	return placeAt(img, bounds.Min), bounds, nil
}

// placeAt moves img so its top-left pixel sits at origin. Captures start at
// (0,0) while regions are in screen coordinates.
func placeAt(img *image.RGBA, origin image.Point) *image.RGBA {
	img.Rect = img.Rect.Sub(img.Rect.Min).Add(origin)
	return img
}

// CaptureRegion captures a specific region of the screen as PNG.
func CaptureRegion(region Region) ([]byte, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return EncodePNG(img)
}

// CropPNG cuts region out of an image captured earlier (whose bounds are in
// the same screen coordinates) and encodes it as PNG.
func CropPNG(src image.Image, region Region) ([]byte, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	r := region.Rect().Intersect(src.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region %v lies outside the captured image %v", region.Rect(), src.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return EncodePNG(dst)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// GetDisplayBounds returns the bounds of the primary display.
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}
