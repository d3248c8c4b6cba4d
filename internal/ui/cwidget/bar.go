package cwidget

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const barHeight float32 = 22

// ProbabilityBar is a labelled horizontal bar whose fill width follows a
// value in [0,1] and whose text is set by the caller.
type ProbabilityBar struct {
	widget.BaseWidget

	Label string

	value float64
	text  string
	fill  color.Color
}

func NewProbabilityBar(label string) *ProbabilityBar {
	b := &ProbabilityBar{Label: label, text: "0.0%", fill: theme.Color(theme.ColorNamePrimary)}
	b.ExtendBaseWidget(b)
	return b
}

// SetState updates fill fraction, caption and fill color in one refresh.
func (b *ProbabilityBar) SetState(value float64, text string, fill color.Color) {
	b.value = clamp01(value)
	b.text = text
	if fill != nil {
		b.fill = fill
	}
	b.Refresh()
}

func (b *ProbabilityBar) Value() float64    { return b.value }
func (b *ProbabilityBar) Text() string      { return b.text }
func (b *ProbabilityBar) Fill() color.Color { return b.fill }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (b *ProbabilityBar) CreateRenderer() fyne.WidgetRenderer {
	r := &barRenderer{
		bar:   b,
		label: widget.NewLabel(b.Label),
		track: canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground)),
		fill:  canvas.NewRectangle(b.fill),
		text:  canvas.NewText(b.text, color.White),
	}
	r.track.CornerRadius = 4
	r.fill.CornerRadius = 4
	r.text.Alignment = fyne.TextAlignCenter
	r.text.TextStyle = fyne.TextStyle{Bold: true}
	return r
}

type barRenderer struct {
	bar   *ProbabilityBar
	label *widget.Label
	track *canvas.Rectangle
	fill  *canvas.Rectangle
	text  *canvas.Text
}

func (r *barRenderer) Layout(size fyne.Size) {
	labelH := r.label.MinSize().Height
	r.label.Resize(fyne.NewSize(size.Width, labelH))
	r.label.Move(fyne.NewPos(0, 0))

	trackPos := fyne.NewPos(0, labelH)
	r.track.Resize(fyne.NewSize(size.Width, barHeight))
	r.track.Move(trackPos)

	r.fill.Resize(fyne.NewSize(size.Width*float32(r.bar.value), barHeight))
	r.fill.Move(trackPos)

	r.text.Resize(fyne.NewSize(size.Width, barHeight))
	r.text.Move(trackPos)
}

func (r *barRenderer) MinSize() fyne.Size {
	l := r.label.MinSize()
	return fyne.NewSize(fyne.Max(l.Width, 120), l.Height+barHeight)
}

func (r *barRenderer) Refresh() {
	r.label.SetText(r.bar.Label)
	r.track.FillColor = theme.Color(theme.ColorNameInputBackground)
	r.fill.FillColor = r.bar.fill
	r.text.Text = r.bar.text
	r.Layout(r.bar.Size())

	r.track.Refresh()
	r.fill.Refresh()
	r.text.Refresh()
}

func (r *barRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.label, r.track, r.fill, r.text}
}

func (r *barRenderer) Destroy() {}
