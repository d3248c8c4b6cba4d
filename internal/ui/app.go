package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"foodvision/internal/config"
	"foodvision/internal/logger"
	"foodvision/internal/metrics"
	"foodvision/internal/models"
	"foodvision/internal/ui/cwidget"
	"foodvision/processing/capture"
	"foodvision/processing/history"
	"foodvision/processing/inference"
	"foodvision/processing/snapshot"
)

const (
	loadingCameras = "Loading cameras..."
	noCameras      = "No cameras found"
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config        *config.Config
	metrics       *metrics.Manager
	log           logger.Logger
	newClassifier inference.ClassifierFactory
	history       *history.Log

	controller *inference.Controller
	cancel     context.CancelFunc
	done       chan struct{}

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	loading      *widget.ProgressBarInfinite
	videoCanvas  *canvas.Image
	latencyLabel *widget.Label
	fpsLabel     *widget.Label
	barsBox      *fyne.Container
	bars         []*cwidget.ProbabilityBar
	verdictLabel *widget.Label
	historyBox   *fyne.Container
}

func CreateApp(cfg *config.Config, newClassifier inference.ClassifierFactory, m *metrics.Manager) *DetectApp {
	a := app.NewWithID("foodvision")
	a.Settings().SetTheme(newVariantTheme(cfg.IsDark()))

	w := a.NewWindow("Healthy Food Detector")
	w.Resize(fyne.NewSize(1200, 700))

	return &DetectApp{
		fyneApp:       a,
		mainWin:       w,
		config:        cfg,
		metrics:       m,
		log:           logger.Named("ui"),
		newClassifier: newClassifier,
		history:       history.New(cfg.History.Capacity),
	}
}

func (a *DetectApp) Run() {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	})

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	a.loading = widget.NewProgressBarInfinite()
	a.loading.Hide()

	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 480))

	a.latencyLabel = widget.NewLabel(a.formatLatency(0))
	a.fpsLabel = widget.NewLabel(a.formatFPS(0))

	videoContainer := container.NewBorder(
		container.NewVBox(
			container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.latencyLabel),
			a.loading,
		),
		nil, nil, nil,
		a.videoCanvas,
	)

	a.setupConfigSettings()

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Source Type:"),
		sourceTypeSelect,
		widget.NewSeparator(),
		a.dynamicSettings,
		a.staticSettings,
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Start Processing", theme.MediaPlayIcon(), func() {
			a.StartProcessing()
		}),
		widget.NewButtonWithIcon("Toggle Theme", theme.ColorPaletteIcon(), a.toggleTheme),
	)

	split := container.NewHSplit(
		container.NewVScroll(container.NewPadded(sidebar)),
		container.NewHSplit(
			container.NewPadded(videoContainer),
			container.NewPadded(a.buildResultsPanel()),
		),
	)
	split.SetOffset(0.25)

	a.mainWin.SetContent(split)

	// Selecting the source triggers refreshSettingsUI.
	sourceTypeSelect.SetSelected(string(a.config.GetSource()))

	a.mainWin.SetCloseIntercept(func() {
		a.StopProcessing()
		if err := a.config.SaveByDefault(); err != nil {
			a.log.Error(context.Background(), "saving config", logger.Error(err))
		}
		a.fyneApp.Quit()
	})

	a.fyneApp.Lifecycle().SetOnStarted(a.StartProcessing)

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) buildResultsPanel() fyne.CanvasObject {
	a.barsBox = container.NewVBox()

	a.verdictLabel = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	a.verdictLabel.Hide()

	a.historyBox = container.NewVBox()
	historyScroll := container.NewVScroll(a.historyBox)
	historyScroll.SetMinSize(fyne.NewSize(260, 160))

	return container.NewVBox(
		widget.NewLabelWithStyle("Predictions", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		a.barsBox,
		a.verdictLabel,
		widget.NewSeparator(),
		container.NewGridWithColumns(2,
			widget.NewButtonWithIcon("Save to History", theme.DocumentSaveIcon(), a.saveToHistory),
			widget.NewButtonWithIcon("Snapshot", theme.FileImageIcon(), a.takeSnapshot),
		),
		widget.NewLabelWithStyle("History", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		historyScroll,
	)
}

func (a *DetectApp) verdictPolicy() models.VerdictPolicy {
	return models.VerdictPolicy{
		HealthyLabel:      a.config.Verdict.HealthyLabel,
		HealthyCalories:   a.config.Verdict.HealthyCalories,
		UnhealthyCalories: a.config.Verdict.UnhealthyCalories,
	}
}

// StopProcessing cancels the running loop and waits until it has released
// the model and the frame source.
func (a *DetectApp) StopProcessing() {
	if a.cancel == nil {
		return
	}

	a.cancel()
	<-a.done

	a.cancel = nil
	a.done = nil
}

// StartProcessing (re)builds the controller from the current config and
// runs it in the background.
func (a *DetectApp) StartProcessing() {
	a.StopProcessing()

	settings := inference.Settings{
		TargetFPS:   a.config.GetFPS(),
		ProbeWidth:  a.config.GetWidth(),
		ProbeHeight: a.config.GetHeight(),
		Mirror:      a.config.GetSource() == config.SourceWebcam && a.config.GetFlip(),
		SquareCrop:  a.config.GetSquareCrop(),
		Policy:      a.verdictPolicy(),
	}

	ctrl := inference.NewController(
		settings,
		a.newClassifier,
		func() (capture.VideoStreamer, error) { return capture.NewStreamer(a.config) },
		&liveView{app: a},
		inference.WithLogger(logger.Named("inference")),
		inference.WithMetrics(a.metrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.controller = ctrl
	a.cancel = cancel
	a.done = done

	go func() {
		defer close(done)
		if err := ctrl.Run(ctx); err != nil {
			fyne.Do(func() {
				dialog.ShowError(err, a.mainWin)
			})
		}
	}()

	go a.runStatLoop(ctx, ctrl)
}

func (a *DetectApp) runStatLoop(ctx context.Context, ctrl *inference.Controller) {
	uiTicker := time.NewTicker(time.Millisecond * 200)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			stats := ctrl.Stats()
			fyne.Do(func() {
				a.latencyLabel.SetText(a.formatLatency(stats.Latency))
				a.fpsLabel.SetText(a.formatFPS(stats.FPS))
			})
		case <-ctx.Done():
			return
		}
	}
}

func (a *DetectApp) formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func (a *DetectApp) formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func (a *DetectApp) saveToHistory() {
	if a.controller == nil {
		return
	}

	entry := history.NewEntry(time.Now(), a.controller.Best())
	if !a.history.Add(entry) {
		return
	}

	a.metrics.RecordHistorySave()
	a.refreshHistory()
}

func (a *DetectApp) refreshHistory() {
	a.historyBox.Objects = nil
	for _, e := range a.history.Entries() {
		a.historyBox.Add(widget.NewLabel(e.String()))
	}
	a.historyBox.Refresh()
}

var errNoFrame = errors.New("no frame captured yet")

func (a *DetectApp) takeSnapshot() {
	if a.controller == nil || a.controller.Frame() == nil {
		dialog.ShowError(errNoFrame, a.mainWin)
		return
	}

	overlay := snapshot.LabelFor(a.controller.Best(), a.controller.Policy())
	img, err := snapshot.Compose(a.controller.Frame(), overlay)
	if err != nil {
		dialog.ShowError(err, a.mainWin)
		return
	}

	format := a.config.Snapshot.Format
	quality := a.config.Snapshot.Quality

	if dir := a.config.Snapshot.Dir; dir != "" {
		path, err := snapshot.SaveToDir(dir, img, format, quality, time.Now())
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.metrics.RecordSnapshot(format)
		a.log.Info(context.Background(), "snapshot saved", logger.String("path", path))
		return
	}

	save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if w == nil {
			return
		}
		defer w.Close()

		if err := snapshot.Encode(w, img, format, quality); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.metrics.RecordSnapshot(format)
		a.log.Info(context.Background(), "snapshot saved", logger.String("path", w.URI().Path()))
	}, a.mainWin)
	save.SetFileName(snapshot.FileName(format))
	save.Show()
}

func (a *DetectApp) toggleTheme() {
	dark := !a.config.IsDark()
	a.config.SetDark(dark)
	a.fyneApp.Settings().SetTheme(newVariantTheme(dark))
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	fpsInput := cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.GetFPS()),
		1,
		func(i int) {
			a.config.SetFPS(uint(i))
		},
	)

	widthInput := cwidget.NewIntInput(
		"Width",
		"Enter integer",
		a.config.GetWidth(),
		1,
		func(i int) {
			a.config.SetWidth(i)
		},
	)

	heightInput := cwidget.NewIntInput(
		"Height",
		"Enter integer",
		a.config.GetHeight(),
		1,
		func(i int) {
			a.config.SetHeight(i)
		},
	)

	cropCheck := widget.NewCheck("Square crop", func(b bool) {
		a.config.SetSquareCrop(b)
	})
	cropCheck.SetChecked(a.config.GetSquareCrop())

	applyCfg := widget.NewButton("Save config", func() {
		if err := a.config.SaveByDefault(); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.StartProcessing()
	})

	a.staticSettings.Add(fpsInput)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(cropCheck)

	a.staticSettings.Add(applyCfg)
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.GetLocalPath())

		pathEntry.OnChanged = func(s string) {
			a.config.SetLocalPath(s)
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					defer reader.Close()
					pathEntry.SetText(reader.URI().Path())
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{loadingCameras}, func(s string) {
			if s != loadingCameras && s != noCameras {
				a.config.SetDeviceID(s)
			}
		})
		deviceSelect.SetSelected(loadingCameras)
		deviceSelect.Disable()

		flipCheck := widget.NewCheck("Mirror image", func(b bool) {
			a.config.SetFlip(b)
		})
		flipCheck.SetChecked(a.config.GetFlip())

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)
		a.dynamicSettings.Add(flipCheck)
		a.dynamicSettings.Refresh()

		go func() {
			devices, err := capture.ListCameras()

			fyne.Do(func() {
				switch {
				case err != nil:
					dialog.ShowError(err, a.mainWin)
					deviceSelect.Options = []string{"Error listing cameras"}
				case len(devices) == 0:
					deviceSelect.Options = []string{noCameras}
				default:
					deviceSelect.Options = devices
					deviceSelect.Enable()

					if id := a.config.GetDeviceID(); id != "" {
						deviceSelect.SetSelected(id)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()
	}

	a.dynamicSettings.Refresh()
}
