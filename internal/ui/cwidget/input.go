package cwidget

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that parses its text into T and reports
// parse failures under the entry.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText    string
	Placeholder  string
	DefaultValue T

	OnChanged func(T)
	Validator func(string) (T, error)
}

// NewIntInput accepts integers >= minValue. An empty entry means the
// default value.
func NewIntInput(label, placeholder string, defaultValue, minValue int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		DefaultValue: defaultValue,
		OnChanged:    onChanged,
	}

	input.Validator = func(s string) (int, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return input.DefaultValue, nil
		}

		v, err := strconv.Atoi(s)
		if err != nil {
			return input.DefaultValue, fmt.Errorf("not an integer: %q", s)
		}
		if v < minValue {
			return input.DefaultValue, fmt.Errorf("must be at least %d", minValue)
		}
		return v, nil
	}

	input.build()
	return input
}

func (item *Input[T]) build() {
	item.labelWidget = widget.NewLabel(item.caption(item.DefaultValue))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)
		if err != nil {
			return
		}

		if item.OnChanged != nil {
			item.OnChanged(res)
		}
		item.labelWidget.SetText(item.caption(res))
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) caption(v T) string {
	return fmt.Sprintf("%s: %v", item.LabelText, v)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}

func (item *Input[T]) Caption() string {
	return item.labelWidget.Text
}
