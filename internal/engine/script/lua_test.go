package script_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/internal/engine/script"
	"github.com/kode4food/stepflow/pkg/api"
)

func TestLuaExecute(t *testing.T) {
	env := script.NewLuaEnv()

	ctx := api.Context{
		"fetch": {"count": 5, "name": "orders"},
	}
	cfg := api.Args{"factor": 3}

	res, err := env.Execute(t.Context(),
		"return {total = context.fetch.count * config.factor}", ctx, cfg,
	)
	require.NoError(t, err)
	assert.Equal(t, 15, res["total"])
}

func TestLuaScalarResult(t *testing.T) {
	env := script.NewLuaEnv()

	res, err := env.Execute(t.Context(), "return 1.5", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, api.Args{"result": 1.5}, res)

	res, err = env.Execute(t.Context(), "return 'hi'", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, api.Args{"result": "hi"}, res)
}

func TestLuaMissingContext(t *testing.T) {
	env := script.NewLuaEnv()

	res, err := env.Execute(t.Context(),
		"return {seen = context.missing == nil}", api.Context{}, api.Args{},
	)
	require.NoError(t, err)
	assert.Equal(t, true, res["seen"])
}

func TestLuaTableConversion(t *testing.T) {
	env := script.NewLuaEnv()

	ctx := api.Context{
		"src": {
			"items": []any{1, 2, 3},
			"meta":  map[string]any{"tag": "x"},
		},
	}
	res, err := env.Execute(t.Context(), `
		local sum = 0
		for _, v in ipairs(context.src.items) do sum = sum + v end
		return {
			sum = sum,
			tag = context.src.meta.tag,
			list = {"a", "b"},
			nested = {k = {1, 2}},
		}
	`, ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, res["sum"])
	assert.Equal(t, "x", res["tag"])
	assert.Equal(t, []any{"a", "b"}, res["list"])
	assert.Equal(t, map[string]any{"k": []any{1, 2}}, res["nested"])
}

func TestLuaSandbox(t *testing.T) {
	env := script.NewLuaEnv()

	for _, src := range []string{
		"return os.time()",
		"return io.read()",
		"return require('os')",
		"return load('return 1')()",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := env.Execute(t.Context(), src, nil, nil)
			assert.ErrorIs(t, err, script.ErrLuaExecution)
		})
	}
}

func TestLuaErrors(t *testing.T) {
	env := script.NewLuaEnv()

	_, err := env.Execute(t.Context(), "", nil, nil)
	assert.ErrorIs(t, err, script.ErrEmptyScript)

	_, err = env.Execute(t.Context(), "return {", nil, nil)
	assert.ErrorIs(t, err, script.ErrLuaLoad)

	_, err = env.Execute(t.Context(), "error('boom')", nil, nil)
	assert.ErrorIs(t, err, script.ErrLuaExecution)
	assert.Contains(t, err.Error(), "boom")
}

func TestLuaValidate(t *testing.T) {
	env := script.NewLuaEnv()

	assert.NoError(t, env.Validate("return 1"))
	assert.Error(t, env.Validate("return end"))
}

func TestLuaCompileCache(t *testing.T) {
	env := script.NewLuaEnv()

	a, err := env.Compile("return 1")
	require.NoError(t, err)
	b, err := env.Compile("return 1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLuaGlobalsDoNotLeak(t *testing.T) {
	env := script.NewLuaEnv()

	res, err := env.Execute(t.Context(), "leaked = 42; return 1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, api.Args{"result": 1}, res)

	res, err = env.Execute(t.Context(), "return leaked", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res["result"])

	_, err = env.Execute(t.Context(),
		"string.upper = nil; return 1", nil, nil,
	)
	require.NoError(t, err)
	res, err = env.Execute(t.Context(), "return string.upper('a')", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", res["result"])
}

func TestLuaDeadline(t *testing.T) {
	env := script.NewLuaEnv()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := env.Execute(ctx, "while true do end", nil, nil)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, script.ErrLuaExecution)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("script ignored its deadline")
	}
}

func TestLuaCancelledBeforeStart(t *testing.T) {
	env := script.NewLuaEnv()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := env.Execute(ctx, "return 1", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLuaStateReuse(t *testing.T) {
	env := script.NewLuaEnv()

	for i := range 20 {
		res, err := env.Execute(t.Context(),
			"return {n = config.n + 1}", nil, api.Args{"n": i},
		)
		require.NoError(t, err)
		assert.Equal(t, i+1, res["n"])
	}
}
