package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/nectar/internal/config"
)

func runBoards(t *testing.T, args ...string) string {
	t.Helper()
	cmd := CreateBoardsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("boards %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestBoardsAddListRemove(t *testing.T) {
	file := filepath.Join(t.TempDir(), "boards.toml")

	runBoards(t, "add", "table", "--file", file, "--cameras", "camera0,camera1",
		"--width", "420", "--height", "297", "--filter-frequency", "30", "--drawing")

	cfg, err := config.LoadBoardsConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	b, ok := cfg.Boards["table"]
	if !ok {
		t.Fatal("table not saved")
	}
	if b.Width != 420 || len(b.Cameras) != 2 || b.Filter == nil || b.Drawing == nil || !b.Drawing.Enabled {
		t.Errorf("saved board = %+v", b)
	}

	out := runBoards(t, "list", "--file", file)
	if !strings.Contains(out, "table") || !strings.Contains(out, "camera0,camera1") {
		t.Errorf("list output = %q", out)
	}

	runBoards(t, "remove", "table", "--file", file)
	cfg, err = config.LoadBoardsConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Boards) != 0 {
		t.Errorf("boards after remove = %v", cfg.Boards)
	}
}

func TestBoardsRemoveUnknown(t *testing.T) {
	cmd := CreateBoardsCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"remove", "ghost", "--file", filepath.Join(t.TempDir(), "boards.toml")})
	if err := cmd.Execute(); err == nil {
		t.Error("remove of unknown board succeeded")
	}
}
