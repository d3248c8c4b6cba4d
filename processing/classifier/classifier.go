// Package classifier turns frames into per-class probability sequences.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"

	"foodvision/internal/config"
	"foodvision/internal/models"
)

var (
	ErrUnknownBackend     = errors.New("classifier: unknown backend")
	ErrNoClasses          = errors.New("classifier: model has no classes")
	ErrClassCountMismatch = errors.New("classifier: output does not match class count")
	ErrClassOrderMismatch = errors.New("classifier: output class order changed")
	ErrClosed             = errors.New("classifier: closed")
	ErrInvalidMetadata    = errors.New("classifier: invalid model metadata")
)

// Classifier predicts one probability per class, in a fixed class order.
type Classifier interface {
	Predict(ctx context.Context, img image.Image) ([]models.Prediction, error)
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.ModelConfig) (Classifier, error) {
	var (
		clf Classifier
		err error
	)

	switch cfg.Backend {
	case config.BackendONNX:
		clf, err = NewONNX(cfg)
	case config.BackendRemote:
		clf, err = NewRemote(ctx, cfg.RemoteURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	// Keep a failed constructor's typed nil out of the interface.
	if err != nil {
		return nil, err
	}
	return clf, nil
}

// ClassNames returns the class order of a prediction sequence.
func ClassNames(preds []models.Prediction) []string {
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.ClassName
	}
	return names
}
