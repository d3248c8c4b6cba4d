package models

import (
	"math"
	"strconv"
)

// UnknownClass is the class reported before the first completed tick.
const UnknownClass = "Unknown"

type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Best is the highest-probability class of the latest completed pass.
type Best struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

func UnknownBest() Best {
	return Best{Class: UnknownClass, Probability: 0}
}

// ArgMaxIndex returns the index of the highest probability, -1 for an
// empty sequence. Equal probabilities keep the earliest entry.
func ArgMaxIndex(preds []Prediction) int {
	if len(preds) == 0 {
		return -1
	}

	idx := 0
	for i := 1; i < len(preds); i++ {
		if preds[i].Probability > preds[idx].Probability {
			idx = i
		}
	}
	return idx
}

func ArgMax(preds []Prediction) (Best, bool) {
	idx := ArgMaxIndex(preds)
	if idx < 0 {
		return Best{}, false
	}
	return Best{Class: preds[idx].ClassName, Probability: preds[idx].Probability}, true
}

// Percent converts a probability to a percentage rounded to one decimal.
func Percent(probability float64) float64 {
	return math.Round(probability*1000) / 10
}

// FormatPercent renders a probability as "67.9%". The text is built from
// Percent so it always matches the bar width.
func FormatPercent(probability float64) string {
	return strconv.FormatFloat(Percent(probability), 'f', 1, 64) + "%"
}
