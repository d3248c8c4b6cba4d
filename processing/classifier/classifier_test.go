package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"foodvision/internal/config"
	"foodvision/internal/models"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseMetadata(t *testing.T) {
	Convey("Given a Teachable Machine metadata file", t, func() {
		meta, err := ParseMetadata([]byte(`{"labels":["Healthy","Unhealthy"],"imageSize":224}`))

		So(err, ShouldBeNil)
		So(meta.ClassNames(), ShouldResemble, []string{"Healthy", "Unhealthy"})
		So(meta.InputShape, ShouldResemble, []int64{1, 224, 224, 3})
		So(meta.OutputShape, ShouldResemble, []int64{1, 2})
		So(meta.Layout(), ShouldEqual, LayoutNHWC)
		So(meta.InputName, ShouldEqual, "input")
	})

	Convey("Given a channel-first export", t, func() {
		meta, err := ParseMetadata([]byte(`{"classes":["a","b","c"],"image_size":64,"input_shape":[1,3,64,64],"output_shape":[1,3]}`))

		So(err, ShouldBeNil)
		So(meta.ImageSize, ShouldEqual, 64)
		So(meta.Layout(), ShouldEqual, LayoutNCHW)
		So(meta.InputSize(), ShouldEqual, 3*64*64)
	})

	Convey("Given an input shape but no image size", t, func() {
		Convey("A channel-first shape supplies the size", func() {
			meta, err := ParseMetadata([]byte(`{"classes":["a","b"],"input_shape":[1,3,256,256]}`))

			So(err, ShouldBeNil)
			So(meta.ImageSize, ShouldEqual, 256)
			So(len(Tensorize(image.NewRGBA(image.Rect(0, 0, 640, 480)), meta.ImageSize, meta.Layout())), ShouldEqual, meta.InputSize())
		})

		Convey("A channel-last shape supplies the size", func() {
			meta, err := ParseMetadata([]byte(`{"classes":["a","b"],"input_shape":[1,160,160,3]}`))

			So(err, ShouldBeNil)
			So(meta.ImageSize, ShouldEqual, 160)
			So(meta.Layout(), ShouldEqual, LayoutNHWC)
		})
	})

	Convey("Given input shapes that cannot be fed a square frame", t, func() {
		for _, raw := range []string{
			`{"classes":["a"],"input_shape":[1,3,224,192]}`,
			`{"classes":["a"],"input_shape":[-1,224,224,3]}`,
			`{"classes":["a"],"input_shape":[1,224,224,1]}`,
			`{"classes":["a"],"input_shape":[2,224,224,3]}`,
			`{"classes":["a"],"imageSize":224,"input_shape":[1,3,256,256]}`,
			`{"classes":["a"],"input_shape":[1,224,3]}`,
		} {
			_, err := ParseMetadata([]byte(raw))

			So(errors.Is(err, ErrInvalidMetadata), ShouldBeTrue)
		}
	})

	Convey("Given metadata without classes", t, func() {
		_, err := ParseMetadata([]byte(`{"imageSize":224}`))

		So(errors.Is(err, ErrNoClasses), ShouldBeTrue)
	})
}

func TestTensorize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 255, A: 255})
		}
	}

	nhwc := Tensorize(img, 4, LayoutNHWC)
	if len(nhwc) != 4*4*3 {
		t.Fatalf("nhwc len = %d", len(nhwc))
	}
	if math.Abs(float64(nhwc[0])-1) > 1e-3 || math.Abs(float64(nhwc[1])+1) > 1e-3 {
		t.Fatalf("nhwc first pixel = %v %v, want 1 -1", nhwc[0], nhwc[1])
	}

	nchw := Tensorize(img, 4, LayoutNCHW)
	if math.Abs(float64(nchw[0])-1) > 1e-3 || math.Abs(float64(nchw[16])) > 1e-3 {
		t.Fatalf("nchw planes = %v %v, want 1 0", nchw[0], nchw[16])
	}
}

func TestToPredictions(t *testing.T) {
	Convey("Given model output", t, func() {
		classes := []string{"Healthy", "Unhealthy"}

		Convey("Raw probabilities are kept in class order", func() {
			preds, err := toPredictions(classes, []float32{0.25, 0.75}, false)

			So(err, ShouldBeNil)
			So(preds[0].ClassName, ShouldEqual, "Healthy")
			So(preds[1].Probability, ShouldEqual, 0.75)
		})

		Convey("Logits are normalized by softmax", func() {
			preds, err := toPredictions(classes, []float32{2, 2}, true)

			So(err, ShouldBeNil)
			So(preds[0].Probability, ShouldAlmostEqual, 0.5, 1e-9)
			So(preds[0].Probability+preds[1].Probability, ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("Short output is rejected", func() {
			_, err := toPredictions(classes, []float32{1}, false)

			So(errors.Is(err, ErrClassCountMismatch), ShouldBeTrue)
		})
	})
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{Backend: "tflite"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func newClassifierServer(t *testing.T, reply []models.Prediction, frames *atomic.Int32) *httptest.Server {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage || len(msg) == 0 {
				return
			}

			n := frames.Add(1)
			if n == 2 {
				// Drop the second exchange to force a reconnect.
				return
			}

			out, _ := json.Marshal(reply)
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestRemoteClassifier(t *testing.T) {
	Convey("Given a websocket classifier server", t, func() {
		reply := []models.Prediction{
			{ClassName: "Healthy", Probability: 0.9},
			{ClassName: "Unhealthy", Probability: 0.1},
		}
		var frames atomic.Int32
		srv := newClassifierServer(t, reply, &frames)
		url := "ws" + strings.TrimPrefix(srv.URL, "http")

		ctx := context.Background()
		c, err := NewRemote(ctx, url)
		So(err, ShouldBeNil)
		defer c.Close()

		frame := image.NewRGBA(image.Rect(0, 0, 16, 16))

		Convey("Predict returns the server's predictions", func() {
			preds, err := c.Predict(ctx, frame)

			So(err, ShouldBeNil)
			So(preds, ShouldResemble, reply)

			Convey("A dropped connection fails once and then redials", func() {
				_, err := c.Predict(ctx, frame)
				So(err, ShouldNotBeNil)

				preds, err := c.Predict(ctx, frame)
				So(err, ShouldBeNil)
				So(ClassNames(preds), ShouldResemble, []string{"Healthy", "Unhealthy"})
			})
		})
	})

	Convey("Given no server", t, func() {
		_, err := NewRemote(context.Background(), "ws://127.0.0.1:1/ws")

		So(err, ShouldNotBeNil)
	})
}
