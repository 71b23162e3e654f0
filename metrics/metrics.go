// Package metrics exports per-iteration outcome and duration through a
// pluggable sink. Delivery is best-effort: a push failure is logged
// and never changes job status.
package metrics

import (
	"context"
	"time"
)

// Point is one metrics sample. Tags must not set the reserved "task"
// tag; the sink overwrites it with the job name regardless.
type Point struct {
	Name  string
	Value float64
	Tags  map[string]string
	Ts    time.Time
}

// Sink delivers a batch of points exactly once per run-loop iteration,
// after the iteration's outcome is known.
type Sink interface {
	Push(ctx context.Context, points []Point) error
}
