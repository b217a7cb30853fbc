package cmd

import (
	"testing"

	"github.com/smazurov/nectar/internal/channel/redisconn"
	"github.com/smazurov/nectar/internal/nats"
)

func TestNewDialer(t *testing.T) {
	tests := []struct {
		name    string
		opts    StoreOptions
		want    string
		wantErr bool
	}{
		{"default redis", StoreOptions{}, "localhost:6379", false},
		{"redis addr", StoreOptions{Backend: BackendRedis, Addr: "10.0.0.2:6380"}, "10.0.0.2:6380", false},
		{"nats default", StoreOptions{Backend: BackendNATS}, "nats://127.0.0.1:4222", false},
		{"nats url", StoreOptions{Backend: BackendNATS, Addr: "nats://broker:4222"}, "nats://broker:4222", false},
		{"unknown", StoreOptions{Backend: "etcd"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDialer(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewDialer() error = nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDialer() error = %v", err)
			}
			var got string
			switch d := d.(type) {
			case *redisconn.Dialer:
				got = d.Addr
			case *nats.Dialer:
				got = d.URL
			}
			if got != tt.want {
				t.Errorf("address = %q, want %q", got, tt.want)
			}
		})
	}
}
