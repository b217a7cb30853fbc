package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/nectar/cmd"
	"github.com/smazurov/nectar/internal/api"
	"github.com/smazurov/nectar/internal/camera"
	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/config"
	"github.com/smazurov/nectar/internal/events"
	"github.com/smazurov/nectar/internal/logging"
	"github.com/smazurov/nectar/internal/metrics"
	"github.com/smazurov/nectar/internal/nats"
	"github.com/smazurov/nectar/internal/tracking"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8095" toml:"server.port" env:"SERVER_PORT"`

	// Store settings
	StoreBackend  string `help:"Store backend (redis, nats)" default:"redis" toml:"store.backend" env:"STORE_BACKEND"`
	StoreAddr     string `help:"Store address (host:port for redis, URL for nats)" default:"" toml:"store.addr" env:"STORE_ADDR"`
	StorePassword string `help:"Redis password" default:"" toml:"store.password" env:"STORE_PASSWORD"`
	StoreDB       int    `help:"Redis database" default:"0" toml:"store.db" env:"STORE_DB"`

	// Embedded NATS broker
	NatsEmbedded bool   `help:"Run an embedded NATS broker and use it as the store" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsStoreDir string `help:"Embedded NATS JetStream directory" default:"" toml:"nats.store_dir" env:"NATS_STORE_DIR"`

	// Camera settings
	Cameras    string `help:"Comma-separated camera identifiers" default:"camera0" toml:"cameras.ids" env:"CAMERAS"`
	CameraMode string `help:"Frame acquisition mode (push, poll)" default:"push" toml:"cameras.mode" env:"CAMERA_MODE"`
	UseDepth   bool   `help:"Read depth frames when the camera has a depth sensor" default:"false" toml:"cameras.use_depth" env:"CAMERA_USE_DEPTH"`

	// Tracking settings
	BoardsFile string `help:"Board definitions file" default:"boards.toml" toml:"tracking.boards_file" env:"BOARDS_FILE"`

	// Metrics
	MetricsEnabled bool `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`
	CORSOrigins  string `help:"Comma-separated allowed browser origins (empty allows any)" default:"" toml:"server.cors_origins" env:"CORS_ORIGINS"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingChannel  string `help:"Store channel logging level" default:"info" toml:"logging.channel" env:"LOGGING_CHANNEL"`
	LoggingCamera   string `help:"Camera stream logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingTracking string `help:"Tracking logging level" default:"info" toml:"logging.tracking" env:"LOGGING_TRACKING"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingNats     string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

// splitIDs splits a comma-separated list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Modules without a dedicated option take their level from [logging]
		logCfg := config.LoadLoggingConfig(opts.Config)
		logCfg.Level = opts.LoggingLevel
		logCfg.Format = opts.LoggingFormat
		for module, level := range map[string]string{
			"channel":  opts.LoggingChannel,
			"camera":   opts.LoggingCamera,
			"tracking": opts.LoggingTracking,
			"api":      opts.LoggingAPI,
			"http":     opts.LoggingHTTP,
			"nats":     opts.LoggingNats,
		} {
			logCfg.Modules[module] = level
		}
		logging.Initialize(logCfg)
		logger := logging.GetLogger("main")

		mode, err := camera.ParseMode(opts.CameraMode)
		if err != nil {
			logger.Error("Invalid camera mode", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()
		registry := tracking.NewRegistry(tracking.Options{})
		tracker := tracking.NewTracker(registry, eventBus)
		group := camera.NewGroup()

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Registry:     registry,
			Cameras:      group,
			EventBus:     eventBus,
			CORSOrigins:  splitIDs(opts.CORSOrigins),
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())
		var natsServer *nats.Server
		var models *channel.Channel
		var watcher *config.Watcher[config.BoardsConfig]

		hooks.OnStart(func() {
			storeOpts := cmd.StoreOptions{
				Backend:  opts.StoreBackend,
				Addr:     opts.StoreAddr,
				Password: opts.StorePassword,
				DB:       opts.StoreDB,
			}

			// The embedded broker must be up before any stream dials it
			if opts.NatsEmbedded {
				natsServer = nats.NewServer(nats.ServerOptions{
					Port:     opts.NatsPort,
					StoreDir: opts.NatsStoreDir,
					Logger:   logging.GetLogger("nats"),
				})
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
				storeOpts.Backend = cmd.BackendNATS
				storeOpts.Addr = natsServer.ClientURL()
			}

			dialer, dialErr := cmd.NewDialer(storeOpts)
			if dialErr != nil {
				logger.Error("Invalid store configuration", "error", dialErr)
				os.Exit(1)
			}

			for _, id := range splitIDs(opts.Cameras) {
				stream := camera.NewStream(dialer, camera.Options{
					ID:       id,
					Mode:     mode,
					UseDepth: opts.UseDepth,
					Bus:      eventBus,
				})
				if startErr := stream.Start(ctx); startErr != nil {
					logger.Error("Failed to start camera stream", "camera_id", id, "error", startErr)
					_ = stream.Close()
					continue
				}
				group.Add(stream)
				if mode == camera.ModePoll {
					go func() {
						if runErr := stream.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, channel.ErrClosed) {
							logger.Error("Camera stream stopped", "camera_id", id, "error", runErr)
						}
					}()
				}
			}

			// Stored board models are read through their own connection
			models = channel.New(dialer, channel.Options{Name: "boards", Bus: eventBus})
			loader := tracking.NewLoader(registry, models, group)

			boards, loadErr := config.LoadBoardsConfig(opts.BoardsFile)
			if loadErr != nil {
				logger.Warn("Failed to load boards", "file", opts.BoardsFile, "error", loadErr)
			} else if applyErr := loader.Apply(ctx, &boards); applyErr != nil {
				logger.Warn("Some boards could not be applied", "error", applyErr)
			}

			watcher = config.NewConfigWatcher(opts.BoardsFile, config.LoadBoardsConfig, logging.GetLogger("config"))
			watcher.OnReload(func(cfg config.BoardsConfig) {
				logger.Info("Boards file changed, reloading", "boards", len(cfg.Boards))
				if applyErr := loader.Apply(ctx, &cfg); applyErr != nil {
					logger.Warn("Some boards could not be applied", "error", applyErr)
				}
			})
			if watchErr := watcher.Start(ctx); watchErr != nil {
				logger.Warn("Failed to start boards watcher, hot-reload disabled", "error", watchErr)
				watcher = nil
			}

			tracker.Start()

			logger.Info("Starting HTTP server", "port", opts.Port, "cameras", group.IDs())
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			tracker.Stop()

			// Closing the streams interrupts blocked subscriptions
			if closeErr := group.Close(); closeErr != nil {
				logger.Warn("Error closing camera streams", "error", closeErr)
			}
			if models != nil {
				_ = models.Close()
			}
			cancel()

			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "nectar"
	cli.Root().Short = "Marker board tracking over a shared pub/sub store"

	cli.Root().AddCommand(cmd.CreateEmitCmd())
	cli.Root().AddCommand(cmd.CreateCalibrateCmd())
	cli.Root().AddCommand(cmd.CreateBoardsCmd())

	// Run the CLI
	cli.Run()
}
