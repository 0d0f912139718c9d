// Package repository provides database abstraction for the solve
// run-history store.
package repository

import "time"

// SolveRun is one persisted record of a completed solve: the inputs
// that produced it and the outputs from spec §6.
type SolveRun struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FormulaPath  string    `gorm:"column:formula_path;type:varchar(512)"`
	DecompPath   string    `gorm:"column:decomp_path;type:varchar(512)"`
	Layout       string    `gorm:"column:layout;type:varchar(16)"`
	Weighted     bool      `gorm:"column:weighted"`
	IsSat        bool      `gorm:"column:is_sat"`
	Count        float64   `gorm:"column:count"`
	Exponent     int       `gorm:"column:exponent"`
	NumJoin      int       `gorm:"column:num_join"`
	NumIntroduce int       `gorm:"column:num_introduce_forget"`
	MaxTableSize uint64    `gorm:"column:max_table_size"`
	DurationMS   int64     `gorm:"column:duration_ms"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for SolveRun.
func (SolveRun) TableName() string {
	return "solve_runs"
}
