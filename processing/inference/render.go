package inference

import (
	"image"
	"time"

	"foodvision/internal/models"
)

// Bar is the display state of one class slot.
type Bar struct {
	Index       int
	Class       string
	Probability float64
	// Percent is the probability as a percentage rounded to one decimal.
	Percent float64
	Text    string
	Verdict models.Verdict
}

// Result is everything the view needs to draw one tick.
type Result struct {
	Bars        []Bar
	Best        models.Best
	Verdict     models.Verdict
	VerdictText string
	Frame       image.Image
	Latency     time.Duration
}

// View renders controller output. Calls arrive on the loop goroutine.
type View interface {
	ShowLoading(loading bool)
	PrepareSlots(classes []string)
	Render(r Result)
}

// Summarize builds the bars of one pass and picks its best entry. verdicts
// holds the verdict of each class in the fixed ordering.
func Summarize(preds []models.Prediction, verdicts []models.Verdict) ([]Bar, models.Best, models.Verdict) {
	bars := make([]Bar, len(preds))
	for i, p := range preds {
		bars[i] = Bar{
			Index:       i,
			Class:       p.ClassName,
			Probability: p.Probability,
			Percent:     models.Percent(p.Probability),
			Text:        models.FormatPercent(p.Probability),
			Verdict:     verdicts[i],
		}
	}

	idx := models.ArgMaxIndex(preds)
	if idx < 0 {
		return bars, models.UnknownBest(), models.VerdictUnhealthy
	}

	best := models.Best{Class: preds[idx].ClassName, Probability: preds[idx].Probability}
	return bars, best, verdicts[idx]
}

type nopView struct{}

func (nopView) ShowLoading(bool)      {}
func (nopView) PrepareSlots([]string) {}
func (nopView) Render(Result)         {}
