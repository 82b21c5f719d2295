package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/storage/badger"
)

// Manager owns the Badger connection and exposes the typed storage interfaces
type Manager struct {
	db         *badger.BadgerDB
	runStorage interfaces.RunStorage
	logger     arbor.ILogger
}

// NewManager opens the history database and wires up storage implementations
func NewManager(config *common.Config, logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("open run history database: %w", err)
	}

	return &Manager{
		db:         db,
		runStorage: badger.NewRunStorage(db, logger),
		logger:     logger,
	}, nil
}

// RunStorage returns the run history storage
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.runStorage
}

// RunValueLogGC triggers Badger value-log garbage collection
func (m *Manager) RunValueLogGC() error {
	return m.db.RunValueLogGC()
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing run history database")
	return m.db.Close()
}
