// Package main implements the nescore NES emulator executable.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/golang/glog"

	"nescore/internal/app"
	"nescore/internal/version"
)

var cli struct {
	ROM    string           `arg:"" optional:"" name:"rom" help:"Path to NES ROM file (optional for GUI mode)."`
	Config string           `short:"c" help:"Path to configuration file."`
	Debug  bool             `help:"Enable debug mode."`
	NoGUI  bool             `name:"nogui" help:"Run without GUI (headless mode)."`
	Ver    kong.VersionFlag `name:"version" help:"Show version information and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("nescore"),
		kong.Description("A cycle-accurate NES (Nintendo Entertainment System) emulator core."),
		kong.UsageOnError(),
		kong.Vars{"version": version.GetDetailedVersion()},
	)

	setupGracefulShutdown()

	glog.V(1).Infof("nescore starting (%s)", version.GetVersion())

	configPath := cli.Config
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, cli.NoGUI)
	if err != nil {
		glog.Fatalf("failed to create application: %v", err)
	}

	if cli.NoGUI {
		config := application.GetConfig()
		config.Video.Backend = "headless"
		glog.V(1).Info("headless mode requested")
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			glog.Errorf("application cleanup error: %v", err)
		}
	}()

	if cli.Debug {
		config := application.GetConfig()
		config.UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
		glog.V(1).Info("debug mode enabled")
	}

	if cli.ROM != "" {
		glog.V(1).Infof("loading rom: %s", cli.ROM)
		if err := application.LoadROM(cli.ROM); err != nil {
			glog.Fatalf("failed to load rom: %v", err)
		}

		if cli.Debug {
			application.ApplyDebugSettings()
		}
	}

	if cli.NoGUI {
		if cli.ROM == "" {
			glog.Fatal("rom file required for headless mode")
		}
		runHeadlessMode(application)
	} else {
		if err := runGUIMode(application); err != nil {
			glog.Fatalf("gui mode failed: %v", err)
		}
	}

	glog.V(1).Info("emulator shutting down")
}

// runGUIMode runs the full GUI application
func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	windowWidth, windowHeight := config.GetWindowResolution()
	glog.V(1).Infof("window: %dx%d (scale: %dx)", windowWidth, windowHeight, config.Window.Scale)
	glog.V(1).Infof("audio: %s (%d Hz, %.0f%% volume)",
		enabledString(config.Audio.Enabled),
		config.Audio.SampleRate,
		config.Audio.Volume*100)
	glog.V(1).Infof("video: %s, %s, vsync: %s",
		config.Video.Filter,
		config.Video.AspectRatio,
		enabledString(config.Video.VSync))

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %v", err)
	}

	glog.V(1).Infof("session stats: frames=%d uptime=%v avg_fps=%.1f",
		application.GetFrameCount(), application.GetUptime(), application.GetFPS())

	return nil
}

// runHeadlessMode runs the emulator without GUI, dumping a handful of
// frame buffers to PPM files so the rendered output can be inspected
// without a display.
func runHeadlessMode(application *app.Application) {
	bus := application.GetBus()
	if bus == nil {
		glog.Fatal("bus not initialized")
	}

	const targetFrames = 120
	dumpAt := map[int]bool{30: true, 60: true, 119: true}

	for frame := 0; frame < targetFrames; frame++ {
		bus.Frame()

		if dumpAt[frame] {
			filename := fmt.Sprintf("frame_%03d.ppm", frame+1)
			frameBuffer := [256 * 240]uint32{}
			copy(frameBuffer[:], bus.GetFrameBuffer())
			if err := saveFrameBufferAsPPM(frameBuffer, filename); err != nil {
				glog.Errorf("failed to save %s: %v", filename, err)
				continue
			}
			analyzeFrameBuffer(frameBuffer, frame+1)
		}

		if frame%30 == 29 {
			glog.V(1).Infof("%d/%d frames complete", frame+1, targetFrames)
		}
	}

	glog.V(1).Info("headless run complete")
}

// saveFrameBufferAsPPM saves the frame buffer as a PPM image file
func saveFrameBufferAsPPM(frameBuffer [256 * 240]uint32, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create file: %v", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "P3\n256 240\n255\n")

	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := frameBuffer[y*256+x]
			r := (pixel >> 16) & 0xFF
			g := (pixel >> 8) & 0xFF
			b := pixel & 0xFF
			fmt.Fprintf(file, "%d %d %d ", r, g, b)
		}
		fmt.Fprintf(file, "\n")
	}

	return nil
}

// analyzeFrameBuffer logs a quick summary of a frame buffer's pixel content
func analyzeFrameBuffer(frameBuffer [256 * 240]uint32, frame int) {
	colorCounts := make(map[uint32]int)
	for _, pixel := range frameBuffer {
		colorCounts[pixel]++
	}

	nonBlackPixels := 0
	for color, count := range colorCounts {
		if color != 0x000000 {
			nonBlackPixels += count
		}
	}

	glog.V(1).Infof("frame %d: %d distinct colors, %d non-black pixels (%.1f%%)",
		frame, len(colorCounts), nonBlackPixels,
		float64(nonBlackPixels)/float64(256*240)*100)
}

// setupGracefulShutdown sets up signal handling for graceful shutdown
func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		glog.V(1).Info("interrupt received, shutting down gracefully")
		os.Exit(0)
	}()
}

// enabledString returns "enabled" or "disabled" based on boolean value
func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
