package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satcount/gpusatgo/internal/config"
	"github.com/satcount/gpusatgo/pkg/cnf"
	"github.com/satcount/gpusatgo/pkg/model"
	"github.com/satcount/gpusatgo/pkg/treedec"
	"github.com/satcount/gpusatgo/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Solve: config.SolveConfig{
			Layout: "auto",
			MaxBag: 40,
		},
		Database: config.DatabaseConfig{
			Type: "sqlite",
		},
		Storage: config.StorageConfig{
			Type:      "local",
			LocalPath: "./test_storage",
		},
	}
}

func TestService_New(t *testing.T) {
	cfg := testConfig()

	t.Run("WithLogger", func(t *testing.T) {
		logger := utils.NewDefaultLogger(utils.LevelInfo, nil)
		svc, err := New(cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.False(t, svc.IsRunning())
	})

	t.Run("WithoutLogger", func(t *testing.T) {
		svc, err := New(cfg, nil)
		require.NoError(t, err)
		require.NotNil(t, svc)
	})
}

func TestService_Stats(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)

	stats := svc.Stats()
	assert.False(t, stats.Running)
}

func TestService_HealthCheck_NoComponents(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)

	err = svc.HealthCheck(context.Background())
	assert.NoError(t, err)
}

func TestSolver_Solve_WithoutInitialize(t *testing.T) {
	// Solve must work even when Initialize (db/storage wiring) was never
	// called: recordRun/uploadTrace degrade to no-ops.
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)

	formula := cnf.NewFormula(1, []cnf.Clause{{1}})
	leaf := treedec.NewBag(0, treedec.KindLeaf, []int{1})
	root := treedec.NewBag(1, treedec.KindForget, nil, 0)
	decomp := &treedec.Decomposition{Bags: []*treedec.Bag{leaf, root}, Root: 1}

	task := model.NewSolveTask("f.cnf", "d.td")

	result, err := svc.Solve(context.Background(), formula, decomp, task)
	require.NoError(t, err)
	assert.True(t, result.IsSat)
	assert.Equal(t, 1.0, result.Count)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
}

func TestSolver_Solve_PropagatesDriverError(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)

	formula := cnf.NewFormula(2, []cnf.Clause{{1, 2}})
	leaf := treedec.NewBag(0, treedec.KindLeaf, []int{1, 2})
	decomp := &treedec.Decomposition{Bags: []*treedec.Bag{leaf}, Root: 0}

	task := model.NewSolveTask("f.cnf", "d.td")
	task.MaxBag = 1 // width-2 leaf exceeds a cap of 1

	_, err = svc.Solve(context.Background(), formula, decomp, task)
	require.Error(t, err)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
}
