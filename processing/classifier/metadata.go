package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Layout is the tensor memory order the model expects.
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
)

const defaultImageSize = 224

// Metadata describes the exported model. Both the Teachable Machine keys
// (labels, imageSize) and the snake_case export keys are accepted.
type Metadata struct {
	Labels      []string `json:"labels"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"imageSize"`
	ImageSizeSC int      `json:"image_size"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	// Softmax applies a softmax to raw logits before reporting.
	Softmax bool `json:"softmax"`
}

func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	return ParseMetadata(raw)
}

func ParseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(m.ClassNames()) == 0 {
		return Metadata{}, ErrNoClasses
	}

	if m.ImageSize == 0 {
		m.ImageSize = m.ImageSizeSC
	}
	if len(m.InputShape) == 0 {
		if m.ImageSize == 0 {
			m.ImageSize = defaultImageSize
		}
		m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.ClassNames()))}
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}

	if err := m.resolveImageSize(); err != nil {
		return Metadata{}, err
	}

	return m, nil
}

// resolveImageSize checks the input shape is a fixed single RGB square and
// takes the image size from it when none was given.
func (m *Metadata) resolveImageSize() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("%w: input shape %v is not 4-dimensional", ErrInvalidMetadata, m.InputShape)
	}
	for _, d := range m.InputShape {
		if d <= 0 {
			return fmt.Errorf("%w: dynamic input shape %v", ErrInvalidMetadata, m.InputShape)
		}
	}

	h, w := m.InputShape[1], m.InputShape[2]
	if m.Layout() == LayoutNCHW {
		h, w = m.InputShape[2], m.InputShape[3]
	} else if m.InputShape[3] != 3 {
		return fmt.Errorf("%w: input shape %v has no RGB channel axis", ErrInvalidMetadata, m.InputShape)
	}
	if h != w {
		return fmt.Errorf("%w: non-square input %dx%d", ErrInvalidMetadata, w, h)
	}

	if m.ImageSize == 0 {
		m.ImageSize = int(h)
	}
	if int64(m.ImageSize) != h {
		return fmt.Errorf("%w: image size %d does not match input shape %v", ErrInvalidMetadata, m.ImageSize, m.InputShape)
	}
	if m.InputSize() != 3*m.ImageSize*m.ImageSize {
		return fmt.Errorf("%w: input shape %v must have batch size 1", ErrInvalidMetadata, m.InputShape)
	}

	return nil
}

func (m Metadata) ClassNames() []string {
	if len(m.Labels) > 0 {
		return m.Labels
	}
	return m.Classes
}

func (m Metadata) Layout() Layout {
	if len(m.InputShape) == 4 && m.InputShape[1] == 3 {
		return LayoutNCHW
	}
	return LayoutNHWC
}

func (m Metadata) InputSize() int {
	n := 1
	for _, d := range m.InputShape {
		n *= int(d)
	}
	return n
}
