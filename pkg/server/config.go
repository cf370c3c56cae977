package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vctt94/pokerroom/pkg/poker"
)

// Config is the server configuration file.
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Rooms  []RoomConfig    `hcl:"room,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Host           string `hcl:"host,optional"`
	Port           int    `hcl:"port,optional"`
	DBPath         string `hcl:"db,optional"`
	DebugLevel     string `hcl:"debug_level,optional"`
	LogFile        string `hcl:"log_file,optional"`
	MaxLogFiles    int    `hcl:"max_log_files,optional"`
	EventWorkers   int    `hcl:"event_workers,optional"`
	EventQueueSize int    `hcl:"event_queue_size,optional"`

	// Defaults for rooms that do not set them.
	Seed               int64 `hcl:"seed,optional"`
	TurnTimeoutSeconds int   `hcl:"turn_timeout_seconds,optional"`

	// TurnTimeout overrides TurnTimeoutSeconds. It is set from flags, not
	// from the file.
	TurnTimeout time.Duration
}

// DefaultTurnTimeout returns the turn timeout of rooms that do not set one.
func (s *ServerSettings) DefaultTurnTimeout() time.Duration {
	if s.TurnTimeout != 0 {
		return s.TurnTimeout
	}
	return time.Duration(s.TurnTimeoutSeconds) * time.Second
}

// RoomConfig declares a room created at startup.
type RoomConfig struct {
	ID                 string `hcl:"id,label"`
	SmallBlind         int64  `hcl:"small_blind"`
	BigBlind           int64  `hcl:"big_blind"`
	BuyIn              int64  `hcl:"buy_in,optional"`
	MinPlayers         int    `hcl:"min_players,optional"`
	MaxPlayers         int    `hcl:"max_players,optional"`
	SidePots           bool   `hcl:"side_pots,optional"`
	Seed               int64  `hcl:"seed,optional"`
	TurnTimeoutSeconds int    `hcl:"turn_timeout_seconds,optional"`
}

// DefaultConfig returns the configuration used without a config file: a
// single 1/2 room named "main".
func DefaultConfig() *Config {
	cfg := &Config{
		Server: &ServerSettings{},
		Rooms: []RoomConfig{{
			ID:         "main",
			SmallBlind: 1,
			BigBlind:   2,
			MaxPlayers: 6,
		}},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads an HCL config file. A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	s := c.Server
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 8088
	}
	if s.DebugLevel == "" {
		s.DebugLevel = "info"
	}
	if s.MaxLogFiles == 0 {
		s.MaxLogFiles = 3
	}
	if s.EventWorkers == 0 {
		s.EventWorkers = 4
	}
	if s.EventQueueSize == 0 {
		s.EventQueueSize = 1000
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	s := c.Server
	// Port 0 picks a free port.
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.TurnTimeoutSeconds < 0 || s.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout cannot be negative")
	}
	if s.EventWorkers < 1 || s.EventQueueSize < 1 {
		return fmt.Errorf("event workers and queue size must be positive")
	}
	seen := make(map[string]bool)
	for _, r := range c.Rooms {
		if seen[r.ID] {
			return fmt.Errorf("room %q declared twice", r.ID)
		}
		seen[r.ID] = true
		if err := c.TableConfig(r).Validate(); err != nil {
			return fmt.Errorf("room %q: %v", r.ID, err)
		}
	}
	return nil
}

// TableConfig returns the table rules of a declared room, falling back to
// the server defaults.
func (c *Config) TableConfig(r RoomConfig) poker.TableConfig {
	seed := r.Seed
	if seed == 0 {
		seed = c.Server.Seed
	}
	timeout := time.Duration(r.TurnTimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = c.Server.DefaultTurnTimeout()
	}
	return poker.TableConfig{
		ID:          r.ID,
		SmallBlind:  r.SmallBlind,
		BigBlind:    r.BigBlind,
		BuyIn:       r.BuyIn,
		MinPlayers:  r.MinPlayers,
		MaxPlayers:  r.MaxPlayers,
		SidePots:    r.SidePots,
		Seed:        seed,
		TurnTimeout: timeout,
	}.WithDefaults()
}
