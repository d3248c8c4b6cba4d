package snapshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foodvision/internal/models"

	"github.com/chai2010/webp"
	. "github.com/smartystreets/goconvey/convey"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func countColor(img *image.NRGBA, want color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.R == want.R && c.G == want.G && c.B == want.B {
				n++
			}
		}
	}
	return n
}

func TestLabelFor(t *testing.T) {
	Convey("Given the default verdict policy", t, func() {
		policy := models.DefaultVerdictPolicy()

		Convey("The healthy class gets the green healthy caption", func() {
			o := LabelFor(models.Best{Class: "Healthy", Probability: 0.95}, policy)

			So(o.Text, ShouldEqual, "Healthy - ~200 Cal")
			So(o.Color, ShouldResemble, models.HealthyColor)
		})

		Convey("Any other class gets the red unhealthy caption", func() {
			o := LabelFor(models.Best{Class: "Pizza", Probability: 0.99}, policy)

			So(o.Text, ShouldEqual, "Unhealthy - ~450 Cal")
			So(o.Color, ShouldResemble, models.UnhealthyColor)
		})

		Convey("No class means no prediction", func() {
			o := LabelFor(models.Best{}, policy)

			So(o.Text, ShouldEqual, NoPrediction)
		})
	})
}

func TestCompose(t *testing.T) {
	Convey("Given a webcam frame", t, func() {
		frame := grayFrame(300, 300)

		out, err := Compose(frame, Overlay{Text: "Healthy - ~200 Cal", Color: models.HealthyColor})
		So(err, ShouldBeNil)

		Convey("The snapshot keeps the frame size", func() {
			So(out.Bounds().Dx(), ShouldEqual, 300)
			So(out.Bounds().Dy(), ShouldEqual, 300)
		})

		Convey("The caption is filled and outlined near the bottom-left", func() {
			So(countColor(out, models.HealthyColor), ShouldBeGreaterThan, 0)
			So(countColor(out, color.RGBA{A: 255}), ShouldBeGreaterThan, 0)

			region := out.SubImage(image.Rect(0, 0, 300, 240)).(*image.NRGBA)
			So(countColor(region, models.HealthyColor), ShouldEqual, 0)
		})

		Convey("The source frame is left untouched", func() {
			So(frame.RGBAAt(12, 270), ShouldResemble, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		})
	})

	Convey("A missing frame is an error", t, func() {
		_, err := Compose(nil, Overlay{Text: NoPrediction, Color: color.White})
		So(err, ShouldNotBeNil)
	})
}

func TestEncode(t *testing.T) {
	img := grayFrame(8, 8)

	Convey("Given an image", t, func() {
		Convey("PNG output decodes back", func() {
			var buf bytes.Buffer
			So(Encode(&buf, img, "png", 90), ShouldBeNil)

			dec, err := png.Decode(&buf)
			So(err, ShouldBeNil)
			So(dec.Bounds().Dx(), ShouldEqual, 8)
		})

		Convey("WebP output decodes back", func() {
			var buf bytes.Buffer
			So(Encode(&buf, img, "webp", 80), ShouldBeNil)

			dec, err := webp.Decode(&buf)
			So(err, ShouldBeNil)
			So(dec.Bounds().Dy(), ShouldEqual, 8)
		})

		Convey("JPEG is accepted under both spellings", func() {
			var buf bytes.Buffer
			So(Encode(&buf, img, "jpeg", 80), ShouldBeNil)
			So(Encode(&buf, img, "JPG", 80), ShouldBeNil)
		})

		Convey("Unknown formats are rejected", func() {
			err := Encode(&bytes.Buffer{}, img, "gif", 80)
			So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
		})
	})
}

func TestFileNames(t *testing.T) {
	if got := FileName("png"); got != "snapshot.png" {
		t.Errorf("FileName(png) = %q", got)
	}
	if got := FileName(""); got != "snapshot.png" {
		t.Errorf("FileName(\"\") = %q", got)
	}
	if got := FileName("jpeg"); got != "snapshot.jpg" {
		t.Errorf("FileName(jpeg) = %q", got)
	}
}

func TestSaveToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	path, err := SaveToDir(dir, grayFrame(4, 4), "png", 90, at)
	if err != nil {
		t.Fatalf("SaveToDir: %v", err)
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "snapshot-20240501-123000-") || !strings.HasSuffix(base, ".png") {
		t.Fatalf("unexpected name %q", base)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}
