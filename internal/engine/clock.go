package engine

import "time"

// Clock provides the current time for run and step timestamps
type Clock func() time.Time
