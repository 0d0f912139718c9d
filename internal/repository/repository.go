// Package repository provides database abstraction for the solve
// run-history store.
package repository

import "context"

// SolveRunRepository defines the interface for persisting and querying
// solve run history.
type SolveRunRepository interface {
	// SaveRun persists a completed solve.
	SaveRun(ctx context.Context, run *SolveRun) error

	// GetRunByID retrieves a run by its id.
	GetRunByID(ctx context.Context, id int64) (*SolveRun, error)

	// ListRecentRuns retrieves the most recent runs, newest first.
	ListRecentRuns(ctx context.Context, limit int) ([]*SolveRun, error)
}
