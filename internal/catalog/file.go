package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mcdev12/draftroom/internal/models"
)

// NewFromFile loads a Memory catalog from a JSON array of players,
// typically exported from an upstream rankings feed.
func NewFromFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read player file: %w", err)
	}

	var players []models.Player
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("failed to parse player file: %w", err)
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("player file %s contains no players", path)
	}
	return NewMemory(players), nil
}
