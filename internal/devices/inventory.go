// -----------------------------------------------------------------------
// Device Inventory - Static slot pool loaded at startup
// -----------------------------------------------------------------------

package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/models"
)

// inventoryFile is the shape of one device inventory TOML file
type inventoryFile struct {
	Slots []common.SlotConfig `toml:"slots"`
}

// LoadSlots builds the static slot inventory from configuration: inline
// entries first, then per-device TOML files from the devices directory.
// A file entry with an id already seen overrides the inline definition.
func LoadSlots(config *common.DevicesConfig, logger arbor.ILogger) ([]models.Slot, error) {
	byID := make(map[string]int)
	var slots []models.Slot

	add := func(sc common.SlotConfig) error {
		if sc.ID == "" {
			return fmt.Errorf("slot id is required")
		}
		slot := models.Slot{
			ID:           sc.ID,
			Port:         sc.Port,
			SerialNumber: sc.SerialNumber,
		}
		if idx, exists := byID[sc.ID]; exists {
			slots[idx] = slot
			return nil
		}
		byID[sc.ID] = len(slots)
		slots = append(slots, slot)
		return nil
	}

	for _, sc := range config.Slots {
		if err := add(sc); err != nil {
			return nil, fmt.Errorf("inline slot inventory: %w", err)
		}
	}

	if config.Dir != "" {
		entries, err := os.ReadDir(config.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read devices directory %s: %w", config.Dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
				continue
			}
			path := filepath.Join(config.Dir, entry.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read device file %s: %w", path, err)
			}

			var file inventoryFile
			if err := toml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse device file %s: %w", path, err)
			}

			for _, sc := range file.Slots {
				if err := add(sc); err != nil {
					return nil, fmt.Errorf("device file %s: %w", path, err)
				}
			}

			logger.Debug().Str("file", entry.Name()).Int("slots", len(file.Slots)).Msg("Loaded device inventory file")
		}
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("slot inventory is empty")
	}

	logger.Info().Int("slots", len(slots)).Msg("Slot inventory loaded")
	return slots, nil
}
