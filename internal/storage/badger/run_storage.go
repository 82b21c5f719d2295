package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, record *models.RunRecord) error {
	if record.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	var record models.RunRecord
	if err := s.db.Store().Get(runID, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}
	return &record, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, opts *interfaces.RunListOptions) ([]*models.RunRecord, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(models.RunStatus(opts.Status))
		}
		if opts.SlotID != "" {
			query = query.And("SlotID").Eq(opts.SlotID)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.OrderBy != "" {
			if opts.OrderDir == "DESC" {
				query = query.SortBy(opts.OrderBy).Reverse()
			} else {
				query = query.SortBy(opts.OrderBy)
			}
		} else {
			query = query.SortBy("CreatedAt").Reverse()
		}
	} else {
		query = query.SortBy("CreatedAt").Reverse()
	}

	var records []models.RunRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	result := make([]*models.RunRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *RunStorage) CountRuns(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.RunRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count run records: %w", err)
	}
	return int(count), nil
}

func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.db.Store().Delete(runID, &models.RunRecord{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("run not found: %s", runID)
		}
		return fmt.Errorf("failed to delete run record: %w", err)
	}
	return nil
}

// PruneRuns deletes the oldest records beyond the retention limit
func (s *RunStorage) PruneRuns(ctx context.Context, retain int) (int, error) {
	if retain <= 0 {
		return 0, nil
	}

	total, err := s.CountRuns(ctx)
	if err != nil {
		return 0, err
	}
	excess := total - retain
	if excess <= 0 {
		return 0, nil
	}

	var oldest []models.RunRecord
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Limit(excess)
	if err := s.db.Store().Find(&oldest, query); err != nil {
		return 0, fmt.Errorf("failed to find prunable run records: %w", err)
	}

	pruned := 0
	for i := range oldest {
		if err := s.db.Store().Delete(oldest[i].ID, &models.RunRecord{}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", oldest[i].ID).Msg("Failed to prune run record")
			continue
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Int("retained", retain).Msg("Run history pruned")
	}
	return pruned, nil
}
