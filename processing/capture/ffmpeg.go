package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"foodvision/internal/logger"
)

const (
	bytesPerPixel = 4
	standardFPS   = 30
)

// ffmpegStream runs ffmpeg with rawvideo RGBA output on stdout and slices
// the pipe into frames.
type ffmpegStream struct {
	stopOnce sync.Once
	killOnce sync.Once

	args   []string
	width  int
	height int

	// pace throttles reads to one frame per interval; zero reads as fast
	// as ffmpeg produces.
	pace time.Duration
	// dropWhenBusy replaces the oldest buffered frame instead of blocking
	// the pipe when the consumer falls behind.
	dropWhenBusy bool

	cmd    *exec.Cmd
	stderr bytes.Buffer
	log    logger.Logger

	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func newFFmpegStream(name string, args []string, width, height int, buffer int) *ffmpegStream {
	return &ffmpegStream{
		args:      args,
		width:     width,
		height:    height,
		log:       logger.Named(name),
		frameChan: make(chan image.Image, buffer),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func rawVideoArgs(fps uint, width, height int) []string {
	return []string{
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

func (s *ffmpegStream) Start() error {
	s.cmd = exec.Command("ffmpeg", s.args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, s.stderr.String())
	}

	s.log.Info(context.Background(), "ffmpeg started",
		logger.Int("width", s.width), logger.Int("height", s.height))

	go s.readLoop(stdout)

	return nil
}

func (s *ffmpegStream) readLoop(stdout io.ReadCloser) {
	defer close(s.frameChan)
	defer close(s.errChan)
	defer stdout.Close()
	defer s.stopCmd()

	frameSize := s.width * s.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	var tick <-chan time.Time
	if s.pace > 0 {
		ticker := time.NewTicker(s.pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-s.stopChan:
				return
			case <-tick:
			}
		} else {
			select {
			case <-s.stopChan:
				return
			default:
			}
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-s.stopChan:
			default:
				s.errChan <- fmt.Errorf("read error: %w", err)
			}
			return
		}

		pixels := make([]byte, len(buffer))
		copy(pixels, buffer)

		img := &image.RGBA{
			Pix:    pixels,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		}

		if s.dropWhenBusy {
			s.replaceOldest(img)
			continue
		}

		select {
		case s.frameChan <- img:
		case <-s.stopChan:
			return
		}
	}
}

func (s *ffmpegStream) replaceOldest(img image.Image) {
	select {
	case s.frameChan <- img:
		return
	default:
	}

	select {
	case <-s.frameChan:
	default:
	}

	select {
	case s.frameChan <- img:
	default:
	}
}

func (s *ffmpegStream) stopCmd() {
	s.killOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
		}
	})
}

func (s *ffmpegStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.stopCmd()
	})
}

func (s *ffmpegStream) FrameChan() <-chan image.Image { return s.frameChan }
func (s *ffmpegStream) ErrorChan() <-chan error       { return s.errChan }
