// Package inference runs the capture, predict and render loop.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"foodvision/internal/logger"
	"foodvision/internal/metrics"
	"foodvision/internal/models"
	"foodvision/processing/capture"
	"foodvision/processing/classifier"
)

type State int

const (
	StateLoading State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

var ErrNotRunning = errors.New("inference: controller is not running")

const defaultFPS = 30

type (
	ClassifierFactory func(ctx context.Context) (classifier.Classifier, error)
	StreamerFactory   func() (capture.VideoStreamer, error)
)

type Settings struct {
	TargetFPS uint
	// ProbeWidth and ProbeHeight size the blank frame used to discover
	// the class ordering.
	ProbeWidth  int
	ProbeHeight int
	Mirror      bool
	SquareCrop  bool
	Policy      models.VerdictPolicy
}

type Stats struct {
	Latency time.Duration
	FPS     uint
	Ticks   uint64
}

type Option func(*Controller)

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns the model, the frame source and the current best class.
// Ticks run strictly one after another on the goroutine calling Run.
type Controller struct {
	settings      Settings
	newClassifier ClassifierFactory
	newStreamer   StreamerFactory
	view          View
	log           logger.Logger
	metrics       *metrics.Manager

	clf    classifier.Classifier
	src    capture.VideoStreamer
	frames *capture.FrameBuffer

	mu       sync.RWMutex
	state    State
	classes  []string
	verdicts []models.Verdict
	best     models.Best
	frame    image.Image
	stats    Stats

	frameCount    uint
	lastFPSUpdate time.Time
}

func NewController(settings Settings, newClassifier ClassifierFactory, newStreamer StreamerFactory, view View, opts ...Option) *Controller {
	if settings.TargetFPS == 0 {
		settings.TargetFPS = defaultFPS
	}
	if view == nil {
		view = nopView{}
	}

	c := &Controller{
		settings:      settings,
		newClassifier: newClassifier,
		newStreamer:   newStreamer,
		view:          view,
		log:           logger.Named("inference"),
		state:         StateLoading,
		best:          models.UnknownBest(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Initialize loads the model, discovers the class ordering with one probe
// prediction, opens the frame source and prepares one view slot per class.
// On failure the loading indicator stays up.
func (c *Controller) Initialize(ctx context.Context) error {
	if st := c.State(); st != StateLoading {
		return fmt.Errorf("inference: initialize in state %s", st)
	}

	c.view.ShowLoading(true)

	clf, err := c.newClassifier(ctx)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	c.clf = clf

	probe := image.NewRGBA(image.Rect(0, 0, max(c.settings.ProbeWidth, 1), max(c.settings.ProbeHeight, 1)))
	preds, err := clf.Predict(ctx, probe)
	if err != nil {
		return fmt.Errorf("probe prediction: %w", err)
	}
	if len(preds) == 0 {
		return classifier.ErrNoClasses
	}

	classes := classifier.ClassNames(preds)
	verdicts := c.settings.Policy.ClassifyAll(classes)

	src, err := c.newStreamer()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	if err := src.Start(); err != nil {
		return fmt.Errorf("start source: %w", err)
	}
	c.src = src
	c.frames = capture.NewFrameBuffer(src,
		capture.WithMirror(c.settings.Mirror),
		capture.WithSquareCrop(c.settings.SquareCrop))

	if err := c.frames.Update(ctx); err != nil {
		return fmt.Errorf("first frame: %w", err)
	}

	c.mu.Lock()
	c.classes = classes
	c.verdicts = verdicts
	c.frame = c.frames.Frame()
	c.state = StateRunning
	c.lastFPSUpdate = time.Now()
	c.mu.Unlock()

	c.view.PrepareSlots(classes)
	c.view.ShowLoading(false)

	c.log.Info(ctx, "inference ready", logger.Any("classes", classes))
	return nil
}

// Tick advances the frame, predicts on it and renders the result. The best
// class is only replaced once the whole pass succeeded.
func (c *Controller) Tick(ctx context.Context) error {
	if c.State() != StateRunning {
		return ErrNotRunning
	}

	start := time.Now()

	if err := c.frames.Update(ctx); err != nil {
		return fmt.Errorf("advance frame: %w", err)
	}
	frame := c.frames.Frame()

	predStart := time.Now()
	preds, err := c.clf.Predict(ctx, frame)
	c.metrics.ObservePredict(time.Since(predStart))
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	c.mu.RLock()
	classes, verdicts := c.classes, c.verdicts
	c.mu.RUnlock()

	if len(preds) != len(classes) {
		return fmt.Errorf("%w: %d predictions for %d classes", classifier.ErrClassCountMismatch, len(preds), len(classes))
	}
	for i, p := range preds {
		if p.ClassName != classes[i] {
			return fmt.Errorf("%w: slot %d is %q, want %q", classifier.ErrClassOrderMismatch, i, p.ClassName, classes[i])
		}
	}

	bars, best, verdict := Summarize(preds, verdicts)
	latency := time.Since(start)

	c.mu.Lock()
	c.best = best
	c.frame = frame
	c.stats.Latency = latency
	c.stats.Ticks++
	c.frameCount++
	if time.Since(c.lastFPSUpdate) >= time.Second {
		c.stats.FPS = c.frameCount
		c.frameCount = 0
		c.lastFPSUpdate = time.Now()
	}
	c.mu.Unlock()

	c.view.Render(Result{
		Bars:        bars,
		Best:        best,
		Verdict:     verdict,
		VerdictText: c.settings.Policy.PanelText(verdict),
		Frame:       frame,
		Latency:     latency,
	})

	c.metrics.RecordTick(time.Since(start), verdict.String(), best.Probability)
	return nil
}

// Run initializes the controller and ticks until ctx is cancelled or a
// tick fails. Cancellation returns nil. Resources are released on return.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	if err := c.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.log.Error(ctx, "initialization failed", logger.Error(err))
		return err
	}

	interval := time.Second / time.Duration(c.settings.TargetFPS)

	for {
		started := time.Now()

		if err := c.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.metrics.RecordTickFailure()
			c.log.Error(ctx, "tick failed", logger.Error(err))
			return err
		}

		if err := waitNextFrame(ctx, started, interval); err != nil {
			return nil
		}
	}
}

// waitNextFrame sleeps until one interval after started. An overrunning
// tick proceeds at once; ticks never overlap.
func waitNextFrame(ctx context.Context, started time.Time, interval time.Duration) error {
	remaining := interval - time.Since(started)
	if remaining <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	if c.src != nil {
		c.src.Stop()
	}
	if c.clf != nil {
		if err := c.clf.Close(); err != nil {
			c.log.Warn(context.Background(), "closing classifier", logger.Error(err))
		}
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Best is the best class of the latest completed tick, or the Unknown
// sentinel before the first one.
func (c *Controller) Best() models.Best {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.best
}

// Frame is the frame the latest completed tick predicted on.
func (c *Controller) Frame() image.Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

func (c *Controller) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Controller) Policy() models.VerdictPolicy {
	return c.settings.Policy
}
