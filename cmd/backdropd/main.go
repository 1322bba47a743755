// Command backdropd captures a local camera, replaces the background
// behind the person with a still image and previews the result in a
// window.
//
// Runtime signals:
//
//	SIGINT/SIGTERM  graceful shutdown
//	SIGUSR1         enable rendering (foreground)
//	SIGUSR2         disable rendering (background; camera frames are
//	                dropped, the last frame stays on screen)
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"cogentcore.org/core/gpu"

	"github.com/visiona/virtual-backdrop/capture"
	"github.com/visiona/virtual-backdrop/compose"
	"github.com/visiona/virtual-backdrop/config"
	"github.com/visiona/virtual-backdrop/engine"
	"github.com/visiona/virtual-backdrop/render"
	"github.com/visiona/virtual-backdrop/segment"
)

const defaultConfigPath = "config/backdrop.yaml"

func init() {
	// must lock main thread for gpu!
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting backdropd", "config", *configPath)
	if err := run(cfg); err != nil {
		slog.Error("backdropd failed", "error", err)
		os.Exit(1)
	}
	slog.Info("backdropd stopped")
}

func run(cfg *config.Config) error {
	// Preview window first; the GPU adapter is selected against its surface.
	var resize func(size image.Point)
	winSize := image.Point{X: cfg.Output.Width, Y: cfg.Output.Height}
	sp, terminate, pollEvents, winSize, err := gpu.GLFWCreateWindow(winSize, "Virtual Backdrop", &resize)
	if err != nil {
		return fmt.Errorf("creating window failed: %w", err)
	}
	defer terminate()

	gp := gpu.NewGPU(sp)
	sf := gpu.NewSurface(gp, sp, winSize, 1, gpu.UndefinedType)
	defer sf.Release()
	defer gp.Release()

	// Background store and compositing kernel.
	store, err := compose.NewBackgroundStore(cfg.Output.Width, cfg.Output.Height)
	if err != nil {
		return err
	}
	if cfg.BackgroundPath != "" {
		img, err := loadImage(cfg.BackgroundPath)
		if err != nil {
			return fmt.Errorf("loading background failed: %w", err)
		}
		if err := store.SetBackground(img); err != nil {
			return err
		}
	}

	kernel, err := compose.NewKernel(gp, compose.KernelConfig{
		FrameWidth:       cfg.Camera.Width,
		FrameHeight:      cfg.Camera.Height,
		MaskWidth:        cfg.Model.InputSize,
		MaskHeight:       cfg.Model.InputSize,
		BackgroundWidth:  cfg.Output.Width,
		BackgroundHeight: cfg.Output.Height,
		OutWidth:         cfg.Output.Width,
		OutHeight:        cfg.Output.Height,
		PersonClass:      cfg.Model.PersonClass,
	})
	if err != nil {
		return err
	}
	defer kernel.Release()

	// Segmentation.
	segmenter, err := segment.NewDNNSegmenter(segment.ModelConfig{
		Path:       cfg.Model.Path,
		InputSize:  cfg.Model.InputSize,
		ClassCount: cfg.Model.ClassCount,
	})
	if err != nil {
		return err
	}
	processor, err := segment.NewProcessor(segmenter, kernel, store, cfg.Model.InputSize)
	if err != nil {
		return err
	}
	defer processor.Close()

	// Renderer.
	slot := render.NewSlot(cfg.Camera.Mirrored, cfg.Camera.RotationValue())
	renderer, err := render.NewRenderer(gp, sf, slot)
	if err != nil {
		return err
	}
	defer renderer.Release()
	resize = func(size image.Point) { renderer.SetSize(size) }

	// Capture and controller.
	source, err := capture.NewWebcamSource(capture.Config{
		Device:    cfg.Camera.Device,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		FrameRate: cfg.Camera.FrameRate,
		Rotation:  cfg.Camera.RotationValue(),
		Mirrored:  cfg.Camera.Mirrored,
	})
	if err != nil {
		return err
	}

	controller, err := engine.NewController(source, processor, slot)
	if err != nil {
		return err
	}
	controller.SetFPSObserver(capture.FPSObserverFunc(func(fps float64) {
		slog.Info("pipeline fps", "fps", fmt.Sprintf("%.1f", fps))
	}))
	controller.SetErrorObserver(func(e capture.SessionError) {
		slog.Error("unrecoverable session error", "code", e.Code.String(), "error", e.Err)
	})

	if err := controller.Configure(); err != nil {
		return err
	}
	defer controller.Close()
	controller.Start()

	// Signals: shutdown plus the foreground/background toggle.
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, syscall.SIGINT, syscall.SIGTERM)
	sigLifecycle := make(chan os.Signal, 2)
	signal.Notify(sigLifecycle, syscall.SIGUSR1, syscall.SIGUSR2)

	// Display refresh loop on the locked main thread.
	refresh := time.NewTicker(time.Second / 60)
	defer refresh.Stop()

	for {
		select {
		case sig := <-sigShutdown:
			slog.Info("received shutdown signal", "signal", sig.String())
			return nil

		case sig := <-sigLifecycle:
			enabled := sig == syscall.SIGUSR1
			controller.SetRenderingEnabled(enabled)

		case <-refresh.C:
			if !pollEvents() {
				slog.Info("window closed")
				return nil
			}
			renderer.Draw()
		}
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s failed: %w", path, err)
	}
	return img, nil
}
