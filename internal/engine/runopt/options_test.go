package runopt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/stepflow/internal/engine/runopt"
	"github.com/kode4food/stepflow/pkg/api"
)

func TestDefaultOptions(t *testing.T) {
	opts := runopt.DefaultOptions()
	assert.Empty(t, opts.RunID)
	assert.Empty(t, opts.Subscribers)
}

func TestApplyOptions(t *testing.T) {
	var seen []string
	opts := runopt.DefaultOptions(
		runopt.WithRunID("run-1"),
		runopt.WithSubscriber(func(*api.RunState) { seen = append(seen, "a") }),
		runopt.WithSubscriber(nil),
		runopt.WithSubscriber(func(*api.RunState) { seen = append(seen, "b") }),
	)

	assert.Equal(t, api.RunID("run-1"), opts.RunID)
	assert.Len(t, opts.Subscribers, 2)

	for _, sub := range opts.Subscribers {
		sub(&api.RunState{})
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}
