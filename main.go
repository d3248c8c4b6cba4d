package main

import (
	"context"
	"fmt"
	"os"

	"foodvision/internal/config"
	"foodvision/internal/logger"
	"foodvision/internal/metrics"
	ui "foodvision/internal/ui"
	"foodvision/processing/classifier"
	"foodvision/processing/inference"
)

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Named("main")
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "loading config", logger.Error(err))
		os.Exit(1)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "ignoring log level", logger.Error(err))
	}

	m := metrics.NewManager()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			log.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error(ctx, "metrics server stopped", logger.Error(err))
			}
		}()
	}

	defer classifier.Shutdown()

	var newClassifier inference.ClassifierFactory = func(ctx context.Context) (classifier.Classifier, error) {
		return classifier.New(ctx, cfg.Model)
	}

	app := ui.CreateApp(cfg, newClassifier, m)

	app.Run()
}
