package autopilot

import (
	"context"
	"fmt"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/davidmdm/autopilot/internal"
)

const probeTimeout = 10 * time.Second

// MetricQuerier is the subset of the Prometheus HTTP API used to probe the scaling metric.
type MetricQuerier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...promv1.Option) (model.Value, promv1.Warnings, error)
}

type PrometheusFactory func(address string) (MetricQuerier, error)

func NewPrometheusAPI(address string) (MetricQuerier, error) {
	client, err := promapi.NewClient(promapi.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return promv1.NewAPI(client), nil
}

// probe evaluates query once and returns the first sample formatted for display.
func probe(ctx context.Context, querier MetricQuerier, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	value, warnings, err := querier.Query(ctx, query, time.Now())
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	for _, warning := range warnings {
		internal.Debug(ctx).Printf("prometheus: %s\n", warning)
	}

	switch value := value.(type) {
	case nil:
		return "", fmt.Errorf("query returned no result")
	case model.Vector:
		if len(value) == 0 {
			return "", fmt.Errorf("query returned no samples")
		}
		return value[0].Value.String(), nil
	case *model.Scalar:
		return value.Value.String(), nil
	default:
		return "", fmt.Errorf("unsupported result type %s", value.Type())
	}
}
