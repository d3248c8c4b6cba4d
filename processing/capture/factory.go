package capture

import (
	"fmt"

	"foodvision/internal/config"
)

func NewStreamer(cfg *config.Config) (VideoStreamer, error) {
	switch cfg.GetSource() {
	case config.SourceWebcam:
		return NewFFmpegWebcam(cfg.GetDeviceID(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight()), nil
	case config.SourceLocal:
		ls, err := NewLocalStreamer(cfg.GetLocalPath(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight())
		if err != nil {
			return nil, err
		}
		return ls, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", cfg.GetSource())
	}
}
