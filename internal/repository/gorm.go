package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormSolveRunRepository implements SolveRunRepository using GORM.
type GormSolveRunRepository struct {
	db *gorm.DB
}

// NewGormSolveRunRepository creates a new GormSolveRunRepository.
func NewGormSolveRunRepository(db *gorm.DB) *GormSolveRunRepository {
	return &GormSolveRunRepository{db: db}
}

// SaveRun persists a completed solve.
func (r *GormSolveRunRepository) SaveRun(ctx context.Context, run *SolveRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to save solve run: %w", err)
	}
	return nil
}

// GetRunByID retrieves a run by its id.
func (r *GormSolveRunRepository) GetRunByID(ctx context.Context, id int64) (*SolveRun, error) {
	var run SolveRun

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("solve run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get solve run: %w", err)
	}

	return &run, nil
}

// ListRecentRuns retrieves the most recent runs, newest first.
func (r *GormSolveRunRepository) ListRecentRuns(ctx context.Context, limit int) ([]*SolveRun, error) {
	var runs []*SolveRun

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query solve runs: %w", err)
	}

	return runs, nil
}
