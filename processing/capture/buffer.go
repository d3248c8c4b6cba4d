package capture

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

var ErrStreamClosed = errors.New("capture: stream closed")

type BufferOption func(*FrameBuffer)

// WithMirror flips frames horizontally, the way a selfie webcam preview does.
func WithMirror(mirror bool) BufferOption {
	return func(b *FrameBuffer) {
		b.mirror = mirror
	}
}

// WithSquareCrop center-crops frames to a square on their shorter side.
func WithSquareCrop(crop bool) BufferOption {
	return func(b *FrameBuffer) {
		b.squareCrop = crop
	}
}

// FrameBuffer holds the newest frame of a streamer. Update advances it.
type FrameBuffer struct {
	src        VideoStreamer
	mirror     bool
	squareCrop bool

	mu    sync.RWMutex
	frame image.Image
}

func NewFrameBuffer(src VideoStreamer, opts ...BufferOption) *FrameBuffer {
	b := &FrameBuffer{src: src}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update advances to the newest available frame. Before any frame has been
// seen it blocks until one arrives; afterwards it never blocks and keeps
// the current frame when nothing new is pending.
func (b *FrameBuffer) Update(ctx context.Context) error {
	var latest image.Image

	if b.Frame() == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-b.src.FrameChan():
			if !ok {
				return b.closedErr()
			}
			latest = f
		case err, ok := <-b.src.ErrorChan():
			if ok && err != nil {
				return err
			}
			return ErrStreamClosed
		}
	}

drain:
	for {
		select {
		case f, ok := <-b.src.FrameChan():
			if !ok {
				if latest != nil {
					break drain
				}
				return b.closedErr()
			}
			latest = f
		default:
			break drain
		}
	}

	if latest == nil {
		return nil
	}

	if b.mirror {
		latest = imaging.FlipH(latest)
	}
	if b.squareCrop {
		latest = cropSquare(latest)
	}

	b.mu.Lock()
	b.frame = latest
	b.mu.Unlock()

	return nil
}

// Frame returns the newest processed frame, nil before the first Update.
func (b *FrameBuffer) Frame() image.Image {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame
}

func cropSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	if side == bounds.Dx() && side == bounds.Dy() {
		return img
	}
	return imaging.CropCenter(img, side, side)
}

func (b *FrameBuffer) closedErr() error {
	select {
	case err, ok := <-b.src.ErrorChan():
		if ok && err != nil {
			return err
		}
	default:
	}
	return ErrStreamClosed
}
