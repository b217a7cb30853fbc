package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrBoardNotFound is returned for operations on an unknown board.
var ErrBoardNotFound = errors.New("board not found")

// MarkerConfig places one marker on a board. Corners are four (x, y) points
// in board millimetres.
type MarkerConfig struct {
	ID      int       `toml:"id" json:"id"`
	Corners []float64 `toml:"corners" json:"corners"`
}

// FilterConfig enables one-euro smoothing of the board pose.
type FilterConfig struct {
	Frequency float64 `toml:"frequency" json:"frequency"`
	MinCutoff float64 `toml:"min_cutoff" json:"min_cutoff"`
}

// DrawingConfig ignores pose changes smaller than MinDistance millimetres.
type DrawingConfig struct {
	Enabled     bool    `toml:"enabled" json:"enabled"`
	MinDistance float64 `toml:"min_distance" json:"min_distance"`
}

// BoardConfig is a tracked board definition.
type BoardConfig struct {
	Name    string         `toml:"name" json:"name"`
	Width   float64        `toml:"width,omitempty" json:"width,omitempty"`
	Height  float64        `toml:"height,omitempty" json:"height,omitempty"`
	Cameras []string       `toml:"cameras" json:"cameras"`
	Filter  *FilterConfig  `toml:"filter,omitempty" json:"filter,omitempty"`
	Drawing *DrawingConfig `toml:"drawing,omitempty" json:"drawing,omitempty"`

	// Markers defines the board inline. When empty the model is read from
	// the store key named after the board.
	Markers []MarkerConfig `toml:"markers,omitempty" json:"markers,omitempty"`

	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// BoardsConfig is the complete boards file.
type BoardsConfig struct {
	Version int                    `toml:"version" json:"version"`
	Boards  map[string]BoardConfig `toml:"boards" json:"boards"`
}

// LoadBoardsConfig reads a boards file. A missing file yields an empty
// configuration.
func LoadBoardsConfig(path string) (BoardsConfig, error) {
	cfg := BoardsConfig{Version: 1, Boards: make(map[string]BoardConfig)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read boards config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse boards config: %w", err)
	}
	if cfg.Boards == nil {
		cfg.Boards = make(map[string]BoardConfig)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	for name, b := range cfg.Boards {
		if b.Name == "" {
			b.Name = name
			cfg.Boards[name] = b
		}
	}
	return cfg, nil
}

// BoardManager manages the boards file.
type BoardManager struct {
	configPath string

	mu     sync.RWMutex
	config BoardsConfig
}

// NewBoardManager creates a manager for configPath.
func NewBoardManager(configPath string) *BoardManager {
	if configPath == "" {
		configPath = "boards.toml"
	}
	return &BoardManager{
		configPath: configPath,
		config:     BoardsConfig{Version: 1, Boards: make(map[string]BoardConfig)},
	}
}

// Path returns the boards file path.
func (bm *BoardManager) Path() string {
	return bm.configPath
}

// Load reads the boards file.
func (bm *BoardManager) Load() error {
	cfg, err := LoadBoardsConfig(bm.configPath)
	if err != nil {
		return err
	}
	bm.Replace(cfg)
	return nil
}

// Replace swaps the in-memory configuration, e.g. after a file reload.
func (bm *BoardManager) Replace(cfg BoardsConfig) {
	bm.mu.Lock()
	bm.config = cfg
	bm.mu.Unlock()
}

// Save writes the boards file.
func (bm *BoardManager) Save() error {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return bm.saveLocked()
}

func (bm *BoardManager) saveLocked() error {
	dir := filepath.Dir(bm.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(bm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal boards config: %w", err)
	}

	if err := os.WriteFile(bm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write boards config: %w", err)
	}
	return nil
}

// AddBoard adds or replaces a board and saves the file.
func (bm *BoardManager) AddBoard(board BoardConfig) error {
	if board.Name == "" {
		return fmt.Errorf("board name cannot be empty")
	}
	for i, m := range board.Markers {
		if len(m.Corners) != 8 {
			return fmt.Errorf("board %s: marker %d (id %d) has %d corner values, want 8",
				board.Name, i, m.ID, len(m.Corners))
		}
	}
	board.UpdatedAt = time.Now()

	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.config.Boards[board.Name] = board
	return bm.saveLocked()
}

// RemoveBoard removes a board and saves the file.
func (bm *BoardManager) RemoveBoard(name string) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if _, exists := bm.config.Boards[name]; !exists {
		return fmt.Errorf("%w: %s", ErrBoardNotFound, name)
	}
	delete(bm.config.Boards, name)
	return bm.saveLocked()
}

// GetBoard returns a board by name.
func (bm *BoardManager) GetBoard(name string) (BoardConfig, bool) {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	b, ok := bm.config.Boards[name]
	return b, ok
}

// GetBoards returns every board sorted by name.
func (bm *BoardManager) GetBoards() []BoardConfig {
	bm.mu.RLock()
	out := make([]BoardConfig, 0, len(bm.config.Boards))
	for _, b := range bm.config.Boards {
		out = append(out, b)
	}
	bm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
