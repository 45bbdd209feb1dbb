package handler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/internal/engine/expr"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/pkg/api"
)

func conditionStep(src string) *api.Step {
	return &api.Step{
		ID:     "check",
		Type:   api.StepTypeCondition,
		Config: api.Args{handler.ConfigExpression: src},
	}
}

func TestCondition(t *testing.T) {
	c := handler.NewCondition()
	in := api.Context{
		"score": {"value": 0.8, "label": "high"},
	}

	tests := []struct {
		src  string
		want bool
	}{
		{"score.value > 0.5", true},
		{"score.value > 0.9", false},
		{`score.label == "high" && score.value >= 0.8`, true},
		{"!(score.value < 0.5)", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out, err := c.Execute(context.Background(), conditionStep(tt.src), in)
			require.NoError(t, err)
			assert.Equal(t, api.Args{"result": tt.want}, out)
		})
	}
}

func TestConditionCachedAcrossRuns(t *testing.T) {
	c := handler.NewCondition()
	step := conditionStep("a.n > 1")

	out, err := c.Execute(context.Background(), step, api.Context{
		"a": {"n": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["result"])

	out, err = c.Execute(context.Background(), step, api.Context{
		"a": {"n": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, false, out["result"])
}

func TestConditionErrors(t *testing.T) {
	c := handler.NewCondition()

	_, err := c.Execute(context.Background(), conditionStep(""), nil)
	assert.ErrorIs(t, err, handler.ErrMissingConfig)

	_, err = c.Execute(context.Background(), conditionStep("a.n >"), nil)
	assert.ErrorIs(t, err, expr.ErrSyntax)

	_, err = c.Execute(context.Background(),
		conditionStep(`a.n > "x"`), api.Context{"a": {"n": 1}},
	)
	assert.ErrorIs(t, err, expr.ErrTypeMismatch)
}

func TestConditionThroughRegistry(t *testing.T) {
	r := handler.NewDefaultRegistry(handler.Dependencies{})

	_, err := r.Dispatch(context.Background(), conditionStep("a.n >"), nil)
	assert.ErrorIs(t, err, handler.ErrHandler)
	assert.ErrorIs(t, err, expr.ErrSyntax)
}
