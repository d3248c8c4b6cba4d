package capture

import (
	"image"
)

// VideoStreamer produces decoded frames until stopped or exhausted. Both
// channels are closed when the stream ends.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}
