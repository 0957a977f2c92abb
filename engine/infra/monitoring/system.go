package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/compozy/docqa/engine/infra/monitoring/metrics"
	"github.com/compozy/docqa/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Build variables to be set via ldflags during compilation
// Example: go build -ldflags "-X 'github.com/compozy/docqa/engine/infra/monitoring.Version=v1.0.0'"
var (
	Version    = "1.0.0"
	CommitHash = "unknown"
)

type systemMetrics struct {
	uptimeRegistration metric.Registration
}

// initSystemMetrics registers the build info and uptime gauges on meter.
func initSystemMetrics(ctx context.Context, meter metric.Meter) *systemMetrics {
	log := logger.FromContext(ctx)
	sys := &systemMetrics{}
	buildInfo, err := meter.Float64Gauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		log.Error("Failed to create build info gauge", "error", err)
	} else {
		version, commit, goVersion := BuildInfo()
		buildInfo.Record(ctx, 1, metric.WithAttributes(
			attribute.String("version", version),
			attribute.String("commit_hash", commit),
			attribute.String("go_version", goVersion),
		))
		log.Debug("System metrics initialized", "version", version, "commit", commit, "go_version", goVersion)
	}
	uptimeGauge, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Service uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Error("Failed to create uptime gauge", "error", err)
		return sys
	}
	startTime := time.Now()
	sys.uptimeRegistration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(uptimeGauge, time.Since(startTime).Seconds())
		return nil
	}, uptimeGauge)
	if err != nil {
		log.Error("Failed to register uptime callback", "error", err)
	}
	return sys
}

func (s *systemMetrics) close() error {
	if s == nil || s.uptimeRegistration == nil {
		return nil
	}
	err := s.uptimeRegistration.Unregister()
	s.uptimeRegistration = nil
	return err
}

// BuildInfo returns the version, commit and Go runtime, preferring ldflags values.
func BuildInfo() (version, commit, goVersion string) {
	version = Version
	commit = CommitHash
	if info, ok := debug.ReadBuildInfo(); ok && commit == "unknown" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
				break
			}
		}
	}
	return version, commit, runtime.Version()
}
