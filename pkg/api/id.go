package api

type (
	// RunID uniquely identifies one execution of a step graph
	RunID string

	// StepID uniquely identifies a step within a step graph
	StepID string
)
