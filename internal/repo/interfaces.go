package repo

import (
	"context"
	"errors"

	"github.com/imagerelay/imagerelay/internal/domain"
)

var ErrNotFound = errors.New("not found")

// BindingRepository is the state store for subscription bindings. It is
// the only shared mutable resource across invocations; ClaimDigest is
// the single cross-invocation synchronization point and must execute as
// one server-side conditional operation.
type BindingRepository interface {
	// TargetsForBucket returns every binding subscribed to a bucket key.
	// An empty result is a valid outcome, not an error.
	TargetsForBucket(ctx context.Context, bucketKey string) ([]domain.Binding, error)

	// Upsert creates or replaces the provisioning fields of a binding,
	// leaving processing state untouched on conflict.
	Upsert(ctx context.Context, binding domain.Binding) error

	// ClaimDigest atomically sets lastProcessedDigest to digest when the
	// stored value is absent or different. It reports whether this call
	// won the claim. Never retried.
	ClaimDigest(ctx context.Context, bucketKey, targetKey, digest string) (bool, error)

	// RecordDirectResult persists the digest and final status after a
	// direct-mode attempt, success or failure.
	RecordDirectResult(ctx context.Context, bucketKey, targetKey, digest, status string) error

	// RecordPipelineExecution persists the execution id and its initial
	// status after a pipeline start.
	RecordPipelineExecution(ctx context.Context, bucketKey, targetKey, executionID, status string) error

	// ListPendingPipelineExecutions returns pipeline-mode bindings with
	// an execution id whose stored status is absent or non-terminal.
	ListPendingPipelineExecutions(ctx context.Context, limit int) ([]domain.Binding, error)

	// UpdateExecutionStatus writes back the reconciled status.
	UpdateExecutionStatus(ctx context.Context, bucketKey, targetKey, status string) error
}
