// Package snapshot renders the current frame with the verdict overlay and
// encodes it for export.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"foodvision/internal/models"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultFileName = "snapshot.png"
	NoPrediction    = "No Prediction"

	FontSize      = 28
	OutlineWidth  = 4
	OffsetLeft    = 10
	OffsetBottom  = 20
	defaultFormat = "png"
)

var ErrUnknownFormat = errors.New("snapshot: unknown format")

var (
	faceOnce sync.Once
	face     font.Face
	faceErr  error
	// faceMu serializes drawing; opentype faces keep per-face scratch buffers.
	faceMu sync.Mutex
)

func overlayFace() (font.Face, error) {
	faceOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = err
			return
		}
		face, faceErr = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    FontSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	})
	return face, faceErr
}

// Overlay is the caption drawn onto a snapshot.
type Overlay struct {
	Text  string
	Color color.Color
}

// LabelFor picks the caption for the current best class.
func LabelFor(best models.Best, policy models.VerdictPolicy) Overlay {
	if best.Class == "" {
		return Overlay{Text: NoPrediction, Color: color.White}
	}

	v := policy.Classify(best.Class)
	return Overlay{Text: policy.OverlayText(v), Color: v.Color()}
}

// Compose copies frame and draws the caption bottom-aligned 10px from the
// left and 20px above the bottom edge, black outline under the fill.
func Compose(frame image.Image, o Overlay) (*image.NRGBA, error) {
	if frame == nil {
		return nil, errors.New("snapshot: no frame")
	}

	ff, err := overlayFace()
	if err != nil {
		return nil, fmt.Errorf("snapshot: load font: %w", err)
	}

	b := frame.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, b.Min, draw.Src)

	// Bottom alignment: the descender sits on y.
	x := OffsetLeft
	y := dst.Bounds().Dy() - OffsetBottom - ff.Metrics().Descent.Ceil()

	faceMu.Lock()
	defer faceMu.Unlock()

	d := &font.Drawer{Dst: dst, Face: ff, Src: image.NewUniform(color.Black)}

	r := OutlineWidth / 2
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r || (dx == 0 && dy == 0) {
				continue
			}
			d.Dot = fixed.P(x+dx, y+dy)
			d.DrawString(o.Text)
		}
	}

	d.Src = image.NewUniform(o.Color)
	d.Dot = fixed.P(x, y)
	d.DrawString(o.Text)

	return dst, nil
}

// Encode writes img as png, jpeg or webp. quality applies to the lossy formats.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch normalizeFormat(format) {
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	case "jpg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: quality >= 100, Quality: float32(quality)})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return defaultFormat
	case "jpeg":
		return "jpg"
	default:
		return f
	}
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	return "." + normalizeFormat(format)
}

// FileName is the suggested name for a snapshot in the save dialog.
func FileName(format string) string {
	return strings.TrimSuffix(DefaultFileName, ".png") + Extension(format)
}

// SaveToDir writes img into dir under a unique name and returns its path.
func SaveToDir(dir string, img image.Image, format string, quality int, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("snapshot-%s-%s%s", at.Format("20060102-150405"), uuid.NewString()[:8], Extension(format))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := Encode(f, img, format, quality); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}

	return path, f.Close()
}
