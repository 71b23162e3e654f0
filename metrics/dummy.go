package metrics

import (
	"context"

	"go.uber.org/zap"
)

// Dummy discards every point, logging at debug level. Useful for
// development or when no metrics backend is configured.
type Dummy struct {
	logger *zap.Logger
}

// NewDummy returns a Sink that only logs.
func NewDummy(logger *zap.Logger) *Dummy {
	return &Dummy{logger: logger}
}

func (d *Dummy) Push(ctx context.Context, points []Point) error {
	for _, p := range points {
		d.logger.Debug("metrics point",
			zap.String("name", p.Name),
			zap.Float64("value", p.Value))
	}
	return nil
}

var _ Sink = (*Dummy)(nil)
