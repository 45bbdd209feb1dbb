package handler

import (
	"context"

	"github.com/kode4food/stepflow/internal/engine/expr"
	"github.com/kode4food/stepflow/internal/util"
	"github.com/kode4food/stepflow/pkg/api"
)

// Condition evaluates a boolean expression over the run's context
type Condition struct {
	cache *util.LRUCache[*expr.Expression]
}

const conditionCacheSize = 1024

var _ Handler = (*Condition)(nil)

func NewCondition() *Condition {
	return &Condition{
		cache: util.NewLRUCache[*expr.Expression](conditionCacheSize),
	}
}

func (c *Condition) Execute(
	_ context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	src := step.Config.GetString(ConfigExpression, "")
	if src == "" {
		return nil, missingConfig(step, ConfigExpression)
	}

	e, err := c.cache.Get(src, func() (*expr.Expression, error) {
		return expr.Compile(src)
	})
	if err != nil {
		return nil, err
	}

	res, err := e.Evaluate(in)
	if err != nil {
		return nil, err
	}
	return api.Args{"result": res}, nil
}
