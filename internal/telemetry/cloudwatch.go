package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imagerelay/imagerelay/internal/domain"
)

type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Sink publishes fire-and-forget counters and timers. A nil Sink is a
// no-op, and publish failures are logged and swallowed; telemetry never
// surfaces an error into the flow that emitted it.
type Sink struct {
	client    PutMetricDataAPI
	namespace string
	logger    *slog.Logger
}

func NewSink(client PutMetricDataAPI, namespace string, logger *slog.Logger) *Sink {
	if namespace == "" {
		namespace = "ImageRelay"
	}
	return &Sink{client: client, namespace: namespace, logger: logger}
}

func (s *Sink) put(ctx context.Context, name string, value float64, unit types.StandardUnit, dims map[string]string) {
	if s == nil || s.client == nil {
		return
	}
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: []types.MetricDatum{datum},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("publish metric failed", "metric", name, "error", err)
	}
}

func (s *Sink) count(ctx context.Context, name string, dims map[string]string) {
	s.put(ctx, name, 1, types.StandardUnitCount, dims)
}

// RecordTargetResult classifies one per-target outcome into the update,
// noop or failure counters.
func (s *Sink) RecordTargetResult(ctx context.Context, repository, tag string, mode domain.Mode, status domain.Status) {
	if mode == domain.ModePipeline {
		dims := map[string]string{"Repository": repository, "Tag": tag, "Type": "pipeline"}
		if status == domain.StatusStarted {
			s.count(ctx, "PipelineStartCount", dims)
			return
		}
		s.count(ctx, "PipelineStartFailures", dims)
		return
	}

	dims := map[string]string{
		"Repository": repository,
		"Tag":        tag,
		"Mode":       string(mode),
		"Status":     string(status),
	}
	switch status {
	case domain.StatusUpdated:
		s.count(ctx, "UpdatedFunctionCount", dims)
	case domain.StatusNoop, domain.StatusNoopIdempotent:
		s.count(ctx, "NoOpCount", dims)
	default:
		s.count(ctx, "Failures", dims)
	}
}

// RecordInvocation publishes the batch duration and fan-out width.
func (s *Sink) RecordInvocation(ctx context.Context, duration time.Duration, targetCount int) {
	s.put(ctx, "ProcessingDurationSeconds", duration.Seconds(), types.StandardUnitSeconds, nil)
	s.put(ctx, "TargetsProcessed", float64(targetCount), types.StandardUnitCount, nil)
}
