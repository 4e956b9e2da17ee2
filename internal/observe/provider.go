package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	relayotel "ghlrelay/internal/otel"
)

// ProviderConfig configures the metric provider.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	// Resource is shared with the trace and log providers. When nil one is
	// built from the service name and version.
	Resource *resource.Resource
}

// InitProvider registers a global MeterProvider whose readings are exposed
// through the default Prometheus registry (served by promhttp on /metrics)
// and returns the relay's instruments built on it.
//
// The returned shutdown function flushes the provider; call it from main.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Metrics, func(context.Context) error, error) {
	res := cfg.Resource
	if res == nil {
		var err error
		if res, err = relayotel.NewResource(ctx, cfg.ServiceName, cfg.ServiceVersion); err != nil {
			return nil, nil, err
		}
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	return m, mp.Shutdown, nil
}
