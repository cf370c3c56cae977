package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pokersrv.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server {
  port                 = 9000
  debug_level          = "debug"
  seed                 = 42
  turn_timeout_seconds = 30
}

room "high" {
  small_blind = 5
  big_blind   = 10
  buy_in      = 1000
  max_players = 4
  side_pots   = true
}

room "low" {
  small_blind          = 1
  big_blind            = 2
  seed                 = 9
  turn_timeout_seconds = 15
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.DebugLevel)
	assert.Equal(t, 4, cfg.Server.EventWorkers)
	require.Len(t, cfg.Rooms, 2)

	high := cfg.TableConfig(cfg.Rooms[0])
	assert.Equal(t, "high", high.ID)
	assert.Equal(t, int64(1000), high.BuyIn)
	assert.Equal(t, 4, high.MaxPlayers)
	assert.True(t, high.SidePots)
	assert.Equal(t, int64(42), high.Seed)
	assert.Equal(t, 30*time.Second, high.TurnTimeout)

	low := cfg.TableConfig(cfg.Rooms[1])
	assert.Equal(t, int64(9), low.Seed)
	assert.Equal(t, 15*time.Second, low.TurnTimeout)
	assert.Positive(t, low.BuyIn)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "main", cfg.Rooms[0].ID)
	assert.Equal(t, 8088, cfg.Server.Port)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Rooms[0].ID)
}

func TestConfigValidate(t *testing.T) {
	path := writeConfig(t, `
room "bad" {
  small_blind = 10
  big_blind   = 5
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Rooms = append(cfg.Rooms, cfg.Rooms[0])
	assert.ErrorContains(t, cfg.Validate(), "declared twice")

	cfg = DefaultConfig()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.TurnTimeoutSeconds = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigBadHCL(t *testing.T) {
	path := writeConfig(t, `server { port = `)
	_, err := LoadConfig(path)
	assert.Error(t, err)

	path = writeConfig(t, `room "x" { small_blind = "many" big_blind = 2 }`)
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestFlagTurnTimeoutKeepsSubSecond(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TurnTimeoutSeconds = 30
	cfg.Server.TurnTimeout = 500 * time.Millisecond
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.TableConfig(cfg.Rooms[0]).TurnTimeout)

	// A room's own timeout still wins.
	cfg.Rooms[0].TurnTimeoutSeconds = 5
	assert.Equal(t, 5*time.Second, cfg.TableConfig(cfg.Rooms[0]).TurnTimeout)

	cfg.Server.TurnTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}
