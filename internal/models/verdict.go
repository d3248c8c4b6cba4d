package models

import (
	"fmt"
	"image/color"
)

type Verdict int

const (
	VerdictUnhealthy Verdict = iota
	VerdictHealthy
)

func (v Verdict) String() string {
	if v == VerdictHealthy {
		return "Healthy"
	}
	return "Unhealthy"
}

var (
	HealthyColor   = color.RGBA{R: 0x28, G: 0xa7, B: 0x45, A: 0xff}
	UnhealthyColor = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
)

func (v Verdict) Color() color.RGBA {
	if v == VerdictHealthy {
		return HealthyColor
	}
	return UnhealthyColor
}

// VerdictPolicy maps class names to verdicts. Exactly one label is
// healthy; every other label is unhealthy.
type VerdictPolicy struct {
	HealthyLabel      string
	HealthyCalories   int
	UnhealthyCalories int
}

func DefaultVerdictPolicy() VerdictPolicy {
	return VerdictPolicy{
		HealthyLabel:      "Healthy",
		HealthyCalories:   200,
		UnhealthyCalories: 450,
	}
}

func (p VerdictPolicy) Classify(className string) Verdict {
	if className == p.HealthyLabel {
		return VerdictHealthy
	}
	return VerdictUnhealthy
}

// ClassifyAll derives the verdict of every class in order.
func (p VerdictPolicy) ClassifyAll(classes []string) []Verdict {
	out := make([]Verdict, len(classes))
	for i, c := range classes {
		out[i] = p.Classify(c)
	}
	return out
}

func (p VerdictPolicy) Calories(v Verdict) int {
	if v == VerdictHealthy {
		return p.HealthyCalories
	}
	return p.UnhealthyCalories
}

// PanelText is the verdict panel message.
func (p VerdictPolicy) PanelText(v Verdict) string {
	if v == VerdictHealthy {
		return fmt.Sprintf("✅ Prediction: Healthy (~%d kcal)", p.HealthyCalories)
	}
	return fmt.Sprintf("❌ Prediction: Unhealthy (~%d kcal)", p.UnhealthyCalories)
}

// OverlayText is the label drawn on exported snapshots.
func (p VerdictPolicy) OverlayText(v Verdict) string {
	return fmt.Sprintf("%s - ~%d Cal", v, p.Calories(v))
}
