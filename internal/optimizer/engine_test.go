package optimizer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
)

func newTestEngine() *Engine {
	return NewEngine(EngineOptions{}, nil)
}

func TestEngine_TwoGroupsPlannedIndependently(t *testing.T) {
	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 6000, Quantity: 2, CrossSection: 314, Specification: "HRB400"},
			{ID: "d2", Length: 5000, Quantity: 2, CrossSection: 491, Specification: "HRB500"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	result, err := newTestEngine().Optimize(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Solutions, 2)
	require.Contains(t, result.Solutions, "HRB400_314")
	require.Contains(t, result.Solutions, "HRB500_491")

	// 2x6000 fills one module exactly.
	solA := result.Solutions["HRB400_314"]
	assert.Equal(t, 1, solA.TotalModuleUsed)
	assert.Zero(t, solA.TotalWaste)
	assert.Zero(t, solA.TotalRealRemainder)
	assert.InDelta(t, 0.0, solA.LossRate, 1e-9)

	// 2x5000 leaves a 2000mm remainder above the waste threshold.
	solB := result.Solutions["HRB500_491"]
	assert.Equal(t, 1, solB.TotalModuleUsed)
	assert.Zero(t, solB.TotalWaste)
	assert.InDelta(t, 2000, solB.TotalRealRemainder, 1e-9)
	assert.InDelta(t, 16.6667, solB.LossRate, 0.001)

	assert.Equal(t, 2, result.TotalModuleUsed)
	assert.InDelta(t, 24000, result.TotalMaterial, 1e-9)
	assert.InDelta(t, 8.3333, result.TotalLossRate, 0.001)
	assert.InDelta(t, 91.6667, result.UtilizationRate, 0.001)
	assert.Empty(t, result.UnmetDemands)
	assert.Empty(t, result.ConsistencyIssues)

	require.NotNil(t, result.LossRateValidation)
	assert.True(t, result.LossRateValidation.IsConsistent)

	require.NotNil(t, result.ModuleSteelUsage)
	assert.Equal(t, 2, result.ModuleSteelUsage.TotalCount)
	assert.InDelta(t, 24000, result.ModuleSteelUsage.TotalLength, 1e-9)

	assert.True(t, result.ProcessingStatus.IsCompleted)
	assert.True(t, result.ProcessingStatus.RemaindersFinalized)
	assert.True(t, result.ProcessingStatus.ReadyForRendering)
}

func TestEngine_RemainderReusedWithinGroup(t *testing.T) {
	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 7000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
			{ID: "d2", Length: 4000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	result, err := newTestEngine().Optimize(context.Background(), req)
	require.NoError(t, err)

	// The 4000mm demand is cut from the 5000mm offcut of the first plan
	// instead of opening a second module.
	assert.Equal(t, 1, result.TotalModuleUsed)
	assert.InDelta(t, 12000, result.TotalMaterial, 1e-9)
	assert.Zero(t, result.TotalWaste)
	assert.InDelta(t, 1000, result.TotalRealRemainder, 1e-9)
	assert.Empty(t, result.UnmetDemands)
	assert.Empty(t, result.ConsistencyIssues)

	sol := result.Solutions["HRB400_314"]
	var remainderSourced int
	for _, p := range sol.CuttingPlans {
		if p.SourceType == model.SourceRemainder {
			remainderSourced++
		}
	}
	assert.Equal(t, 1, remainderSourced)
}

func TestEngine_ShortOffcutCountedAsWaste(t *testing.T) {
	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 5950, Quantity: 2, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     200,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	result, err := newTestEngine().Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalModuleUsed)
	assert.InDelta(t, 100, result.TotalWaste, 1e-9)
	assert.Zero(t, result.TotalRealRemainder)
	assert.InDelta(t, 0.8333, result.TotalLossRate, 0.001)
}

func TestEngine_InvalidConstraintsAbortBeforePlanning(t *testing.T) {
	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 15000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	result, err := newTestEngine().Optimize(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidConstraints, apperrors.GetErrorCode(err))

	require.NotNil(t, result)
	require.NotNil(t, result.ConstraintValidation)
	assert.False(t, result.ConstraintValidation.IsValid)
	assert.Empty(t, result.Solutions)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 6000, Quantity: 2, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	result, err := newTestEngine().Optimize(ctx, req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCancelled, apperrors.GetErrorCode(err))
	assert.Nil(t, result)
}

func TestEngine_ProgressReported(t *testing.T) {
	var mu sync.Mutex
	type call struct{ completed, total int }
	var calls []call

	engine := NewEngine(EngineOptions{
		Progress: func(completed, total int) {
			mu.Lock()
			calls = append(calls, call{completed, total})
			mu.Unlock()
		},
	}, nil)

	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 6000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
			{ID: "d2", Length: 6000, Quantity: 1, CrossSection: 491, Specification: "HRB500"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	_, err := engine.Optimize(context.Background(), req)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, calls)
	assert.Equal(t, call{0, 2}, calls[0])
	assert.Contains(t, calls, call{2, 2})
	for _, c := range calls {
		assert.Equal(t, 2, c.total)
		assert.GreaterOrEqual(t, c.completed, 0)
		assert.LessOrEqual(t, c.completed, 2)
	}
}
