package engine

import (
	"github.com/kode4food/stepflow/internal/util"
	"github.com/kode4food/stepflow/pkg/api"
	pkgutil "github.com/kode4food/stepflow/pkg/util"
)

var (
	runTransitions = util.StateTransitions[api.RunStatus]{
		api.RunRunning: pkgutil.SetOf(
			api.RunCompleted,
			api.RunError,
			api.RunCancelled,
		),
		api.RunCompleted: {},
		api.RunError:     {},
		api.RunCancelled: {},
	}

	stepTransitions = util.StateTransitions[api.StepStatus]{
		api.StepPending: pkgutil.SetOf(
			api.StepRunning,
			api.StepSkipped,
		),
		api.StepRunning: pkgutil.SetOf(
			api.StepCompleted,
			api.StepError,
		),
		api.StepCompleted: {},
		api.StepError:     {},
		api.StepSkipped:   {},
	}
)
