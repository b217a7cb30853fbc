package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestCalibrateLoad(t *testing.T) {
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nectar/load_configuration" {
			http.NotFound(w, r)
			return
		}
		got = r.URL.Query()
		_, _ = w.Write([]byte("loaded"))
	}))
	defer ts.Close()

	cmd := CreateCalibrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"load", "board.svg", "--server", ts.URL, "--output", "table", "--type", "mb"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got.Get("file") != "board.svg" || got.Get("output") != "table" || got.Get("type") != "mb" {
		t.Errorf("query = %v", got)
	}
	if strings.TrimSpace(out.String()) != "loaded" {
		t.Errorf("output = %q, want loaded", out.String())
	}
}

func TestCalibrateLoadBadType(t *testing.T) {
	cmd := CreateCalibrateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"load", "x.yaml", "--output", "k", "--type", "yaml"})
	if err := cmd.Execute(); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestCalibrateService(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	cmd := CreateCalibrateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"service", "camera0", "restart", "--server", ts.URL})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if path != "/nectar/service/camera0/restart" {
		t.Errorf("path = %q", path)
	}
}
