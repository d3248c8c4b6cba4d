package cwidget

import (
	"image/color"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
)

func TestProbabilityBar(t *testing.T) {
	test.NewTempApp(t)

	bar := NewProbabilityBar("Healthy")
	bar.Resize(fyne.NewSize(200, 60))

	green := color.RGBA{R: 0x28, G: 0xa7, B: 0x45, A: 0xff}
	bar.SetState(0.679, "67.9%", green)

	if bar.Text() != "67.9%" {
		t.Errorf("text = %q", bar.Text())
	}
	if bar.Fill() != green {
		t.Errorf("fill = %v", bar.Fill())
	}

	r := test.TempWidgetRenderer(t, bar).(*barRenderer)
	r.Layout(bar.Size())
	if w := r.fill.Size().Width; w < 135 || w > 136 {
		t.Errorf("fill width = %v, want about 135.8", w)
	}

	bar.SetState(1.7, "170.0%", nil)
	if bar.Value() != 1 {
		t.Errorf("value not clamped: %v", bar.Value())
	}
	if bar.Fill() != green {
		t.Error("nil fill should keep the previous color")
	}
}

func TestIntInput(t *testing.T) {
	test.NewTempApp(t)

	var got int
	in := NewIntInput("FPS", "Enter integer", 30, 1, func(v int) { got = v })

	test.Type(in.entryWidget, "24")
	if got != 24 {
		t.Fatalf("OnChanged got %d, want 24", got)
	}
	if in.Caption() != "FPS: 24" {
		t.Fatalf("caption = %q", in.Caption())
	}

	in.SetText("0")
	if in.errorWidget.Hidden {
		t.Fatal("zero should be rejected")
	}
	if got != 24 {
		t.Fatalf("rejected value propagated: %d", got)
	}

	in.SetText("abc")
	if in.errorWidget.Hidden {
		t.Fatal("non-integer should be rejected")
	}

	in.SetText("")
	if !in.errorWidget.Hidden || got != 30 {
		t.Fatalf("empty should reset to default, got %d", got)
	}
}
