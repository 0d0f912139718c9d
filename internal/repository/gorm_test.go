package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&SolveRun{})
	require.NoError(t, err)

	return db
}

func TestGormSolveRunRepository_SaveRun(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSolveRunRepository(db)
	ctx := context.Background()

	run := &SolveRun{
		FormulaPath:  "formula.cnf",
		DecompPath:   "decomp.td",
		Layout:       "auto",
		Weighted:     false,
		IsSat:        true,
		Count:        5,
		Exponent:     0,
		NumJoin:      1,
		NumIntroduce: 4,
		MaxTableSize: 8,
		DurationMS:   12,
	}

	err := repo.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.NotZero(t, run.ID)
}

func TestGormSolveRunRepository_GetRunByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSolveRunRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		run, err := repo.GetRunByID(ctx, 999)
		assert.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "solve run not found")
	})

	t.Run("Success", func(t *testing.T) {
		run := &SolveRun{FormulaPath: "a.cnf", Layout: "array", Count: 2, IsSat: true}
		require.NoError(t, db.Create(run).Error)

		result, err := repo.GetRunByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.cnf", result.FormulaPath)
		assert.Equal(t, 2.0, result.Count)
	})
}

func TestGormSolveRunRepository_ListRecentRuns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSolveRunRepository(db)
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		runs, err := repo.ListRecentRuns(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("OrderedNewestFirst", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, db.Create(&SolveRun{FormulaPath: "f.cnf"}).Error)
		}

		runs, err := repo.ListRecentRuns(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Greater(t, runs[0].ID, runs[1].ID)
	})
}
