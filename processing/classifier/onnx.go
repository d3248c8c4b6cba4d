package classifier

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"foodvision/internal/config"
	"foodvision/internal/logger"
	"foodvision/internal/models"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Mutex

// ONNXClassifier runs a local ONNX export of the model.
type ONNXClassifier struct {
	mu     sync.Mutex
	meta   Metadata
	layout Layout

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewONNX(cfg config.ModelConfig) (*ONNXClassifier, error) {
	if err := initEnvironment(cfg.OnnxLibrary); err != nil {
		return nil, err
	}

	modelPath := filepath.Join(cfg.Dir, cfg.ModelFile)
	metadataPath := filepath.Join(cfg.Dir, cfg.MetadataFile)

	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Named("onnx").Info(context.Background(), "model loaded",
		logger.String("model", modelPath),
		logger.Any("classes", meta.ClassNames()),
		logger.Int("image_size", meta.ImageSize))

	return &ONNXClassifier{
		meta:         meta,
		layout:       meta.Layout(),
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func initEnvironment(libraryPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Shutdown releases the process-wide ONNX runtime.
func Shutdown() {
	ortInit.Lock()
	defer ortInit.Unlock()

	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

func (c *ONNXClassifier) Predict(ctx context.Context, img image.Image) ([]models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := Tensorize(img, c.meta.ImageSize, c.layout)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrClosed
	}

	dst := c.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return toPredictions(c.meta.ClassNames(), c.outputTensor.GetData(), c.meta.Softmax)
}

func toPredictions(classes []string, output []float32, applySoftmax bool) ([]models.Prediction, error) {
	if len(output) < len(classes) {
		return nil, fmt.Errorf("%w: %d values for %d classes", ErrClassCountMismatch, len(output), len(classes))
	}

	output = output[:len(classes)]

	var probs []float64
	if applySoftmax {
		probs = softmax(output)
	} else {
		probs = make([]float64, len(output))
		for i, v := range output {
			probs[i] = float64(v)
		}
	}

	preds := make([]models.Prediction, len(classes))
	for i, name := range classes {
		preds[i] = models.Prediction{ClassName: name, Probability: probs[i]}
	}

	return preds, nil
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return nil
}
