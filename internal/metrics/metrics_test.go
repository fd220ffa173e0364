package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGather(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	ObserveSolve("cbc", "optimal", 0.2)
	ObserveSolve("cbc", "infeasible", 0)
	ObserveModel(12, 30)

	families, err := Registry.Gather()
	require.NoError(t, err)
	counts := map[string]int{}
	for _, f := range families {
		counts[f.GetName()] = len(f.GetMetric())
	}
	assert.GreaterOrEqual(t, counts["vrptw_solves_total"], 2)
	assert.Equal(t, 2, counts["vrptw_model_size"])
	assert.GreaterOrEqual(t, counts["vrptw_solve_duration_seconds"], 1)
}
