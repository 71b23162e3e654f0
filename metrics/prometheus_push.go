package metrics

import (
	"context"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	jerrors "github.com/seznam/jobslib-go/pkg/errors"
)

var invalidMetricChar = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

// PrometheusPush delivers points to a Prometheus Pushgateway. Each
// call builds a fresh registry scoped to the batch, so points from
// different iterations never accumulate in the exporter's memory.
type PrometheusPush struct {
	url     string
	job     string
	taskTag string
	logger  *zap.Logger

	// doPush is overridden in tests to capture the registry instead
	// of performing a real HTTP push.
	doPush func(url, job string, g prometheus.Gatherer) error
}

// NewPrometheusPush builds a Sink pushing to gatewayURL under the
// given job name, tagging every point with task=taskTag.
func NewPrometheusPush(gatewayURL, job, taskTag string, logger *zap.Logger) *PrometheusPush {
	return &PrometheusPush{
		url:     gatewayURL,
		job:     job,
		taskTag: taskTag,
		logger:  logger,
		doPush:  defaultDoPush,
	}
}

func defaultDoPush(url, job string, g prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(g).Push()
}

func (p *PrometheusPush) Push(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	registry := prometheus.NewRegistry()
	for _, pt := range points {
		labels := make(prometheus.Labels, len(pt.Tags)+1)
		for k, v := range pt.Tags {
			labels[k] = v
		}
		labels["task"] = p.taskTag

		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        sanitizeName(pt.Name),
			Help:        pt.Name,
			ConstLabels: labels,
		})
		gauge.Set(pt.Value)

		if err := registry.Register(gauge); err != nil {
			p.logger.Warn("can't register metric point",
				zap.String("name", pt.Name), zap.Error(err))
		}
	}

	if err := p.doPush(p.url, p.job, registry); err != nil {
		p.logger.Error("can't push metrics", zap.Error(err))
		return jerrors.Wrap(jerrors.KindTransport, "push metrics", err)
	}
	return nil
}

func sanitizeName(name string) string {
	return invalidMetricChar.ReplaceAllString(name, "_")
}

var _ Sink = (*PrometheusPush)(nil)
