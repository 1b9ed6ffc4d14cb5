package ui

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"

	"gemini-assistant/src/screenshot"
)

func TestDragRect(t *testing.T) {
	pos, size := dragRect(fyne.NewPos(50, 80), fyne.NewPos(10, 20))
	if pos != fyne.NewPos(10, 20) || size != fyne.NewSize(40, 60) {
		t.Errorf("dragRect = %v %v", pos, size)
	}
}

func TestToRegion(t *testing.T) {
	tests := []struct {
		name       string
		start, end fyne.Position
		area       fyne.Size
		bounds     image.Rectangle
		want       screenshot.Region
	}{
		{
			name:   "same scale",
			start:  fyne.NewPos(10, 20),
			end:    fyne.NewPos(110, 70),
			area:   fyne.NewSize(1920, 1080),
			bounds: image.Rect(0, 0, 1920, 1080),
			want:   screenshot.Region{X: 10, Y: 20, Width: 100, Height: 50},
		},
		{
			name:   "hidpi",
			start:  fyne.NewPos(100, 100),
			end:    fyne.NewPos(50, 25),
			area:   fyne.NewSize(1280, 720),
			bounds: image.Rect(0, 0, 2560, 1440),
			want:   screenshot.Region{X: 100, Y: 50, Width: 100, Height: 150},
		},
		{
			name:   "offset display, drag past edge",
			start:  fyne.NewPos(-5, 10),
			end:    fyne.NewPos(900, 20),
			area:   fyne.NewSize(800, 600),
			bounds: image.Rect(1920, 0, 2720, 600),
			want:   screenshot.Region{X: 1920, Y: 10, Width: 800, Height: 10},
		},
		{
			name:   "zero area",
			start:  fyne.NewPos(1, 1),
			end:    fyne.NewPos(2, 2),
			bounds: image.Rect(0, 0, 10, 10),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toRegion(tt.start, tt.end, tt.area, tt.bounds); got != tt.want {
				t.Errorf("toRegion = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if clamp(-1, 0, 5) != 0 || clamp(9, 0, 5) != 5 || clamp(3, 0, 5) != 3 {
		t.Error("clamp out of range")
	}
}
