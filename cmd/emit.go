package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/emitter"
	"github.com/smazurov/nectar/internal/geometry"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/markers"
)

// EmitOptions configures the emit command.
type EmitOptions struct {
	Store       StoreOptions
	Camera      string
	Image       string
	Width       int
	Height      int
	Format      string
	Markers     string
	Calibration string
	FPS         float64
	Count       int
}

// CreateEmitCmd creates the emit command, a producer that publishes a raw
// frame file (and optionally a detection list) as a camera.
func CreateEmitCmd() *cobra.Command {
	var opts EmitOptions
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Publish a raw frame file as a camera",
		Long: `Writes the camera size, pixel format and calibration keys to the store, ` +
			`then repeatedly stores the frame and publishes the frame notification.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return RunEmit(ctx, opts)
		},
	}

	addStoreFlags(cmd, &opts.Store)
	cmd.Flags().StringVar(&opts.Camera, "camera", "camera0", "Camera identifier")
	cmd.Flags().StringVar(&opts.Image, "image", "", "Raw frame file (packed pixels)")
	cmd.Flags().IntVar(&opts.Width, "width", 640, "Frame width")
	cmd.Flags().IntVar(&opts.Height, "height", 480, "Frame height")
	cmd.Flags().StringVar(&opts.Format, "format", "RGB", "Pixel format (RGB, BGR, ARGB, GRAY)")
	cmd.Flags().StringVar(&opts.Markers, "markers", "", "Detection message file published with every frame")
	cmd.Flags().StringVar(&opts.Calibration, "calibration", "", "Calibration document to store")
	cmd.Flags().Float64Var(&opts.FPS, "fps", 30, "Frames per second")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "Number of frames to send (0 = until interrupted)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// RunEmit publishes frames until ctx is cancelled or opts.Count frames
// were sent.
func RunEmit(ctx context.Context, opts EmitOptions) error {
	logger := logging.GetLogger("emitter").With("camera_id", opts.Camera)

	format, err := camera.ParsePixelFormat(opts.Format)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(opts.Image)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	frame := camera.Frame{Data: data, Width: opts.Width, Height: opts.Height, Channels: format.Channels()}
	if len(data) < frame.Size() {
		return &camera.FrameSizeError{Width: frame.Width, Height: frame.Height, Channels: frame.Channels, Got: len(data)}
	}

	var detections []markers.DetectedMarker
	if opts.Markers != "" {
		raw, err := os.ReadFile(opts.Markers)
		if err != nil {
			return fmt.Errorf("read markers: %w", err)
		}
		if detections, err = markers.Decode(raw); err != nil {
			return err
		}
	}

	dialer, err := NewDialer(opts.Store)
	if err != nil {
		return err
	}
	store := channel.New(dialer, channel.Options{Name: opts.Camera + "/emit"})
	defer store.Close()
	if err := store.Connect(ctx); err != nil {
		return err
	}

	em := emitter.New(store, opts.Camera)
	if opts.Calibration != "" {
		raw, err := os.ReadFile(opts.Calibration)
		if err != nil {
			return fmt.Errorf("read calibration: %w", err)
		}
		dev, err := geometry.ParseProjectiveDevice(raw)
		if err != nil {
			return err
		}
		if err := em.SendCalibration(ctx, dev); err != nil {
			return err
		}
	}

	interval := time.Second
	if opts.FPS > 0 {
		interval = time.Duration(float64(time.Second) / opts.FPS)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Emitting frames", "width", frame.Width, "height", frame.Height, "format", string(format), "interval", interval)
	for sent := 0; opts.Count <= 0 || sent < opts.Count; sent++ {
		if err := em.SendImage(ctx, frame, format); err != nil {
			return err
		}
		if detections != nil {
			if err := em.SendMarkers(ctx, detections); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			logger.Info("Emitter stopped", "frames", sent+1)
			return nil
		case <-ticker.C:
		}
	}
	color, _ := em.Counts()
	logger.Info("Emitter finished", "frames", color)
	return nil
}
