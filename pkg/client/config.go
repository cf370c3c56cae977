package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vctt94/pokerroom/pkg/utils"
)

const playerIDFile = "player_id"

// AppConfig is the configuration shared by the command line tools.
type AppConfig struct {
	DataDir   string
	ServerURL string
	RoomID    string
	PlayerID  string
	Name      string
}

// DefaultDataDir returns the data directory used when none is given.
func DefaultDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

// LoadPlayerID returns the player ID stored in datadir, creating one on
// first use so that every invocation of a tool acts as the same player.
func LoadPlayerID(datadir string) (string, error) {
	if err := utils.EnsureDataDirExists(datadir); err != nil {
		return "", err
	}
	path := filepath.Join(datadir, playerIDFile)
	b, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read player id: %v", err)
	}

	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to store player id: %v", err)
	}
	return id, nil
}

// Validate checks that a room and a server are configured.
func (c *AppConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.RoomID == "" {
		return fmt.Errorf("room is required")
	}
	if c.PlayerID == "" {
		return fmt.Errorf("player ID is not set")
	}
	return nil
}
