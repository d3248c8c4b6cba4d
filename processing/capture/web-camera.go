package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"

	"foodvision/internal/logger"
)

type FFmpegWebcamStreamer struct {
	*ffmpegStream
}

func NewFFmpegWebcam(deviceName string, targetFPS uint, scaledWidth int, scaledHeight int) *FFmpegWebcamStreamer {
	if targetFPS == 0 {
		targetFPS = standardFPS
	}

	var input []string
	if runtime.GOOS == "windows" {
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", deviceName)}
	} else {
		input = []string{"-f", "v4l2", "-i", deviceName}
	}

	stream := newFFmpegStream("webcam", append(input, rawVideoArgs(targetFPS, scaledWidth, scaledHeight)...),
		scaledWidth, scaledHeight, 1)
	// A live camera keeps producing; only the newest frame matters.
	stream.dropWhenBusy = true

	stream.log.Debug(context.Background(), "webcam selected", logger.String("device", deviceName))

	return &FFmpegWebcamStreamer{ffmpegStream: stream}
}

var dshowDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// ffmpeg exits non-zero on the dummy input; the listing is on stderr.
		_ = cmd.Run()

		return parseDShowDevices(stderr.String()), nil
	}

	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}

	cameras := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode()&os.ModeDevice != 0 {
			cameras = append(cameras, m)
		}
	}
	sort.Strings(cameras)

	return cameras, nil
}

func parseDShowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}

	return cameras
}
