package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/nectar/internal/channel"
	"github.com/smazurov/nectar/internal/channel/redisconn"
	"github.com/smazurov/nectar/internal/nats"
)

// Store backends.
const (
	BackendRedis = "redis"
	BackendNATS  = "nats"
)

// StoreOptions selects and addresses the shared store.
type StoreOptions struct {
	Backend  string
	Addr     string
	Password string
	DB       int
}

// NewDialer returns the dialer of the configured backend. An empty address
// uses the backend default.
func NewDialer(opts StoreOptions) (channel.Dialer, error) {
	switch opts.Backend {
	case BackendRedis, "":
		addr := opts.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		d := redisconn.NewDialer(addr)
		d.Password = opts.Password
		d.DB = opts.DB
		return d, nil
	case BackendNATS:
		url := opts.Addr
		if url == "" {
			url = "nats://127.0.0.1:4222"
		}
		return nats.NewDialer(url), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", opts.Backend, BackendRedis, BackendNATS)
	}
}

func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.Backend, "store", BackendRedis, "Store backend (redis, nats)")
	cmd.Flags().StringVar(&opts.Addr, "store-addr", "", "Store address (host:port for redis, URL for nats)")
	cmd.Flags().StringVar(&opts.Password, "store-password", "", "Redis password")
	cmd.Flags().IntVar(&opts.DB, "store-db", 0, "Redis database")
}
