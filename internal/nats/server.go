package nats

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// MaxPayload bounds a single message. Raw color frames travel as one message.
const MaxPayload = 8 * 1024 * 1024

// ServerOptions configures the embedded NATS server.
type ServerOptions struct {
	// Port -1 picks a random free port.
	Port int
	Host string
	Name string

	// StoreDir holds JetStream data. Empty uses a temporary directory.
	StoreDir string
	Logger   *slog.Logger
}

// Server wraps an embedded NATS server with JetStream enabled.
type Server struct {
	ns      *server.Server
	opts    ServerOptions
	logger  *slog.Logger
	tempDir string
}

// NewServer creates a new embedded NATS server.
func NewServer(opts ServerOptions) *Server {
	if opts.Port == 0 {
		opts.Port = 4222
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Name == "" {
		opts.Name = "nectar"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		opts:   opts,
		logger: logger.With("component", "nats-server"),
	}
}

// Start starts the embedded NATS server and waits for it to be ready.
func (s *Server) Start() error {
	storeDir := s.opts.StoreDir
	if storeDir == "" {
		dir, err := os.MkdirTemp("", "nectar-jetstream-")
		if err != nil {
			return fmt.Errorf("failed to create JetStream store: %w", err)
		}
		storeDir = dir
		s.tempDir = dir
	}

	nsOpts := &server.Options{
		Host:           s.opts.Host,
		Port:           s.opts.Port,
		ServerName:     s.opts.Name,
		JetStream:      true,
		StoreDir:       storeDir,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
		MaxPayload:     MaxPayload,
	}

	ns, err := server.NewServer(nsOpts)
	if err != nil {
		s.cleanup()
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		s.cleanup()
		return fmt.Errorf("NATS server failed to start within 5 seconds")
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", s.ClientURL(), "store_dir", storeDir)

	return nil
}

// Stop gracefully shuts down the NATS server.
func (s *Server) Stop() {
	if s.ns != nil {
		s.logger.Info("Stopping NATS server")
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
		s.ns = nil
	}
	s.cleanup()
}

func (s *Server) cleanup() {
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

// ClientURL returns the URL clients should use to connect.
func (s *Server) ClientURL() string {
	if s.ns == nil {
		return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
	}
	return s.ns.ClientURL()
}

// IsRunning returns true if the server is running and accepting connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// NumClients returns the number of connected clients.
func (s *Server) NumClients() int {
	if s.ns == nil {
		return 0
	}
	return s.ns.NumClients()
}
