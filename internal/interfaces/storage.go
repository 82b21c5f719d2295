package interfaces

import (
	"context"

	"github.com/voltlab/galvana/internal/models"
)

// RunListOptions filters and pages run history queries
type RunListOptions struct {
	Status   string
	SlotID   string
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string // "ASC" or "DESC"
}

// RunStorage persists terminal run records for history across restarts
type RunStorage interface {
	SaveRun(ctx context.Context, record *models.RunRecord) error
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, opts *RunListOptions) ([]*models.RunRecord, error)
	CountRuns(ctx context.Context) (int, error)
	DeleteRun(ctx context.Context, runID string) error
	// PruneRuns deletes the oldest records beyond the retention limit,
	// returning the number removed
	PruneRuns(ctx context.Context, retain int) (int, error)
}

// StorageManager owns the database connection lifecycle
type StorageManager interface {
	RunStorage() RunStorage
	RunValueLogGC() error
	Close() error
}
