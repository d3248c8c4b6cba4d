package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	"foodvision/internal/models"
	"foodvision/internal/ui/cwidget"
	"foodvision/processing/inference"
)

// liveView forwards controller output to the widgets. Every call hops onto
// the fyne main goroutine.
type liveView struct {
	app *DetectApp
}

func (v *liveView) ShowLoading(loading bool) {
	fyne.Do(func() {
		if loading {
			v.app.loading.Show()
			v.app.loading.Start()
			return
		}
		v.app.loading.Stop()
		v.app.loading.Hide()
	})
}

func (v *liveView) PrepareSlots(classes []string) {
	names := append([]string(nil), classes...)

	fyne.Do(func() {
		v.app.bars = v.app.bars[:0]
		v.app.barsBox.Objects = nil
		for _, name := range names {
			bar := cwidget.NewProbabilityBar(name)
			v.app.bars = append(v.app.bars, bar)
			v.app.barsBox.Add(bar)
		}
		v.app.barsBox.Refresh()
		v.app.verdictLabel.Hide()
	})
}

func (v *liveView) Render(r inference.Result) {
	fyne.Do(func() {
		for _, b := range r.Bars {
			if b.Index >= len(v.app.bars) {
				continue
			}
			v.app.bars[b.Index].SetState(b.Percent/100, b.Text, b.Verdict.Color())
		}

		v.app.verdictLabel.SetText(r.VerdictText)
		v.app.verdictLabel.Importance = importanceOf(r.Verdict)
		v.app.verdictLabel.Show()
		v.app.verdictLabel.Refresh()

		if r.Frame != nil {
			v.app.videoCanvas.Image = r.Frame
			v.app.videoCanvas.Refresh()
		}
	})
}

func importanceOf(v models.Verdict) widget.Importance {
	if v == models.VerdictHealthy {
		return widget.SuccessImportance
	}
	return widget.DangerImportance
}
