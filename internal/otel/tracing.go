package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ServiceName is the default OTEL_SERVICE_NAME.
const ServiceName = "fileshare"

// Settings is the subset of the OTEL_* environment this service honours.
type Settings struct {
	Disabled     bool
	ServiceName  string
	Protocol     string
	Endpoint     string
	SamplerName  string
	SamplerRatio float64
}

// SettingsFromEnv reads Settings, filling the documented defaults.
func SettingsFromEnv() Settings {
	s := Settings{
		Disabled:     os.Getenv("OTEL_SDK_DISABLED") == "true",
		ServiceName:  envOr("OTEL_SERVICE_NAME", ServiceName),
		Protocol:     envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Endpoint:     os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		SamplerName:  envOr("OTEL_TRACES_SAMPLER", "parentbased_always_on"),
		SamplerRatio: parseRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG")),
	}
	if s.Endpoint == "" {
		s.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return s
}

// Sampler maps SamplerName to an SDK sampler. Unknown names fall back to parent based
// always-on.
func (s Settings) Sampler() trace.Sampler {
	switch s.SamplerName {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(s.SamplerRatio)
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(s.SamplerRatio))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

func (s Settings) exporter(ctx context.Context) (*otlptrace.Exporter, error) {
	switch s.Protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", s.Protocol)
	}
}

// Init installs the W3C propagators and, unless tracing is disabled, a batching tracer
// provider exporting over OTLP. An exporter that cannot be built leaves the global no-op
// provider in place so uploads keep working without a collector.
func Init(ctx context.Context, log zerolog.Logger) (func(context.Context) error, error) {
	log = log.With().Str("component", "otel").Logger()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	noop := func(context.Context) error { return nil }

	s := SettingsFromEnv()
	if s.Disabled {
		log.Info().Bool("tracing_enabled", false).Msg("tracing_configured")
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := s.exporter(ctx)
	if err != nil {
		log.Error().Err(err).Str("otlp_protocol", s.Protocol).Msg("tracing_init_failed")
		return noop, nil
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(s.Sampler()),
	)
	otel.SetTracerProvider(tp)

	log.Info().
		Bool("tracing_enabled", true).
		Str("service_name", s.ServiceName).
		Str("otlp_protocol", s.Protocol).
		Str("otlp_endpoint", s.Endpoint).
		Str("sampler", s.SamplerName).
		Float64("sampler_ratio", s.SamplerRatio).
		Msg("tracing_configured")

	return tp.Shutdown, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}
