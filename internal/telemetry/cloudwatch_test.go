package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/imagerelay/imagerelay/internal/domain"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) metricNames() []string {
	var names []string
	for _, input := range f.inputs {
		for _, datum := range input.MetricData {
			names = append(names, aws.ToString(datum.MetricName))
		}
	}
	return names
}

func TestRecordTargetResult_DirectStatuses(t *testing.T) {
	cases := map[domain.Status]string{
		domain.StatusUpdated:        "UpdatedFunctionCount",
		domain.StatusNoop:           "NoOpCount",
		domain.StatusNoopIdempotent: "NoOpCount",
		domain.StatusError:          "Failures",
	}
	for status, want := range cases {
		fake := &fakeCloudWatch{}
		sink := NewSink(fake, "", nil)
		sink.RecordTargetResult(context.Background(), "svc/api", "prod", domain.ModeDirect, status)
		names := fake.metricNames()
		if len(names) != 1 || names[0] != want {
			t.Fatalf("status %q: got %v, want [%s]", status, names, want)
		}
		if got := aws.ToString(fake.inputs[0].Namespace); got != "ImageRelay" {
			t.Fatalf("unexpected namespace: %q", got)
		}
	}
}

func TestRecordTargetResult_PipelineStatuses(t *testing.T) {
	fake := &fakeCloudWatch{}
	sink := NewSink(fake, "Custom", nil)
	sink.RecordTargetResult(context.Background(), "svc/api", "prod", domain.ModePipeline, domain.StatusStarted)
	sink.RecordTargetResult(context.Background(), "svc/api", "prod", domain.ModePipeline, domain.StatusError)

	names := fake.metricNames()
	if len(names) != 2 || names[0] != "PipelineStartCount" || names[1] != "PipelineStartFailures" {
		t.Fatalf("unexpected metrics: %v", names)
	}
	if got := aws.ToString(fake.inputs[0].Namespace); got != "Custom" {
		t.Fatalf("unexpected namespace: %q", got)
	}
}

func TestRecordInvocation(t *testing.T) {
	fake := &fakeCloudWatch{}
	sink := NewSink(fake, "", nil)
	sink.RecordInvocation(context.Background(), 1500*time.Millisecond, 4)

	names := fake.metricNames()
	if len(names) != 2 || names[0] != "ProcessingDurationSeconds" || names[1] != "TargetsProcessed" {
		t.Fatalf("unexpected metrics: %v", names)
	}
	if got := aws.ToFloat64(fake.inputs[0].MetricData[0].Value); got != 1.5 {
		t.Fatalf("unexpected duration value: %v", got)
	}
	if got := aws.ToFloat64(fake.inputs[1].MetricData[0].Value); got != 4 {
		t.Fatalf("unexpected target count: %v", got)
	}
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink *Sink
	sink.RecordTargetResult(context.Background(), "svc/api", "prod", domain.ModeDirect, domain.StatusUpdated)
	sink.RecordInvocation(context.Background(), time.Second, 1)
}
