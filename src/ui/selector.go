package ui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

var (
	shadeColor     = color.NRGBA{A: 0x50}
	selectionFill  = color.NRGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0x30}
	selectionColor = color.NRGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0xff}
)

// selectArea shows the captured screen and lets the user drag a rectangle.
type selectArea struct {
	widget.BaseWidget

	backdrop *canvas.Image
	shade    *canvas.Rectangle
	rect     *canvas.Rectangle

	start, last fyne.Position
	dragging    bool
	onDone      func(start, end fyne.Position, area fyne.Size)
}

var (
	_ desktop.Mouseable = (*selectArea)(nil)
	_ fyne.Draggable    = (*selectArea)(nil)
)

func newSelectArea(img image.Image, onDone func(start, end fyne.Position, area fyne.Size)) *selectArea {
	a := &selectArea{
		backdrop: canvas.NewImageFromImage(img),
		shade:    canvas.NewRectangle(shadeColor),
		rect:     canvas.NewRectangle(selectionFill),
		onDone:   onDone,
	}
	a.backdrop.FillMode = canvas.ImageFillStretch
	a.backdrop.ScaleMode = canvas.ImageScaleFastest
	a.rect.StrokeColor = selectionColor
	a.rect.StrokeWidth = 2
	a.rect.Hide()
	a.ExtendBaseWidget(a)
	return a
}

func (a *selectArea) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(a.backdrop, a.shade, container.NewWithoutLayout(a.rect)))
}

func (a *selectArea) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	a.start, a.last = ev.Position, ev.Position
	a.dragging = true
	a.rect.Move(ev.Position)
	a.rect.Resize(fyne.NewSize(0, 0))
	a.rect.Show()
	a.rect.Refresh()
}

func (a *selectArea) Dragged(ev *fyne.DragEvent) {
	if !a.dragging {
		return
	}
	a.last = ev.Position
	pos, size := dragRect(a.start, a.last)
	a.rect.Move(pos)
	a.rect.Resize(size)
	a.rect.Refresh()
}

func (a *selectArea) MouseUp(ev *desktop.MouseEvent) {
	a.last = ev.Position
	a.finish()
}

func (a *selectArea) DragEnd() { a.finish() }

func (a *selectArea) finish() {
	if !a.dragging {
		return
	}
	a.dragging = false
	if a.onDone != nil {
		a.onDone(a.start, a.last, a.Size())
	}
}
