package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

// bounds flushing of buffered spans on Close
const shutdownTimeout = time.Second * 5

// Client owns the tracer provider of a service. Spans are dropped when the exporter is disabled.
type Client struct {
	logger         log.Logger
	tracerProvider *sdktrace.TracerProvider
	closeFunc      fn.FuncList
}

// AddCloseFunc adds a function to be called by the Close method.
func (c *Client) AddCloseFunc(f func()) {
	c.closeFunc.AddFunc(f)
}

func (c *Client) GetTracerProvider() trace.TracerProvider {
	if c.tracerProvider == nil {
		return trace.NewNoopTracerProvider()
	}
	return c.tracerProvider
}

func (c *Client) Close() {
	var errors *multierror.Error
	if c.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			errors = multierror.Append(errors, err)
		}
	}
	c.closeFunc.Execute()
	if err := errors.ErrorOrNil(); err != nil {
		c.logger.Errorf("cannot close open telemetry collector client: %w", err)
	}
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(opentelemetry.Version()),
		),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceInstanceIDKey.String(hostname)))
	}
	return resource.New(ctx, attrs...)
}

func newSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// New creates the tracer provider of the service and installs it globally when the
// grpc exporter is enabled.
func New(ctx context.Context, cfg Config, serviceName string, logger log.Logger) (*Client, error) {
	if !cfg.GRPC.Enabled {
		return &Client{logger: logger}, nil
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("cannot create resource: %w", err)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.GRPC.Address)}
	if cfg.GRPC.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if cfg.GRPC.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.GRPC.Timeout))
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.Infof("traces are exported to %v", cfg.GRPC.Address)

	return &Client{
		logger:         logger,
		tracerProvider: tracerProvider,
	}, nil
}
