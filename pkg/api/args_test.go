package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/stepflow/pkg/api"
)

func TestArgsGetters(t *testing.T) {
	args := api.Args{
		"str":    "hello",
		"bool":   true,
		"int":    3,
		"float":  float64(7),
		"nested": map[string]any{"x": 1},
	}

	assert.Equal(t, "hello", args.GetString("str", ""))
	assert.Equal(t, "def", args.GetString("bool", "def"))
	assert.True(t, args.GetBool("bool", false))
	assert.True(t, args.GetBool("missing", true))
	assert.Equal(t, 3, args.GetInt("int", 0))
	assert.Equal(t, 7, args.GetInt("float", 0))
	assert.Equal(t, 9, args.GetInt("str", 9))

	nested, ok := args.GetArgs("nested")
	assert.True(t, ok)
	assert.Equal(t, api.Args{"x": 1}, nested)

	_, ok = args.GetArgs("str")
	assert.False(t, ok)
}

func TestArgsSet(t *testing.T) {
	var empty api.Args
	assert.Equal(t, api.Args{"a": 1}, empty.Set("a", 1))

	orig := api.Args{"a": 1}
	res := orig.Set("b", 2)
	assert.Len(t, orig, 1)
	assert.Len(t, res, 2)
}

func TestContextWith(t *testing.T) {
	var ctx api.Context
	next := ctx.With("a", api.Args{"v": 1})
	assert.Nil(t, ctx)
	assert.Equal(t, api.Args{"v": 1}, next["a"])

	again := next.With("b", api.Args{"v": 2})
	assert.Len(t, next, 1)
	assert.Len(t, again, 2)
}
