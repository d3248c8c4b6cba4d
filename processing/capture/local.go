package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"foodvision/internal/logger"
)

const localBuffer = 10

type LocalFileStreamer struct {
	*ffmpegStream
}

func NewLocalStreamer(path string, targetFPS uint, scaledWidth int, scaledHeight int) (*LocalFileStreamer, error) {
	if path == "" {
		return nil, errors.New("local source: empty video path")
	}

	w, h, err := probeVideoDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if targetFPS == 0 {
		targetFPS = standardFPS
	}

	args := append([]string{"-i", path}, rawVideoArgs(targetFPS, scaledWidth, scaledHeight)...)
	stream := newFFmpegStream("local", args, scaledWidth, scaledHeight, localBuffer)
	// A file decodes faster than real time; pace it to the target rate.
	stream.pace = time.Second / time.Duration(targetFPS)

	stream.log.Debug(context.Background(), "probed video",
		logger.String("path", path), logger.Int("width", int(w)), logger.Int("height", int(h)))

	return &LocalFileStreamer{ffmpegStream: stream}, nil
}

type probeData struct {
	Streams []struct {
		Width  uint16 `json:"width"`
		Height uint16 `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (uint16, uint16, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (uint16, uint16, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video streams found")
	}

	return data.Streams[0].Width, data.Streams[0].Height, nil
}
