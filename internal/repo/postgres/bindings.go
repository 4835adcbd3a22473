package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/imagerelay/imagerelay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS image_subscriptions (
	bucket_key            TEXT NOT NULL,
	target_key            TEXT NOT NULL,
	mode                  TEXT NOT NULL DEFAULT '',
	target                JSONB NOT NULL DEFAULT '{}'::jsonb,
	pipeline              JSONB NOT NULL DEFAULT '{}'::jsonb,
	code_deploy           JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_processed_digest TEXT,
	last_status           TEXT,
	last_execution_id     TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (bucket_key, target_key)
);
CREATE INDEX IF NOT EXISTS image_subscriptions_pending_idx
	ON image_subscriptions (mode, last_status)
	WHERE last_execution_id IS NOT NULL;
`

// EnsureSchema creates the subscription table when missing.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type BindingStore struct {
	db DB
}

func NewBindingStore(db DB) *BindingStore {
	if db == nil {
		return nil
	}
	return &BindingStore{db: db}
}

const bindingColumns = `bucket_key, target_key, mode, target, pipeline, code_deploy,
	COALESCE(last_processed_digest,''), COALESCE(last_status,''), COALESCE(last_execution_id,'')`

func (s *BindingStore) TargetsForBucket(ctx context.Context, bucketKey string) ([]domain.Binding, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("binding store not initialized")
	}
	bucketKey = strings.TrimSpace(bucketKey)
	if bucketKey == "" {
		return nil, fmt.Errorf("bucket key is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+bindingColumns+`
		 FROM image_subscriptions
		 WHERE bucket_key = $1`,
		bucketKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	return scanBindings(rows)
}

func (s *BindingStore) Get(ctx context.Context, bucketKey, targetKey string) (domain.Binding, error) {
	if s == nil || s.db == nil {
		return domain.Binding{}, fmt.Errorf("binding store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+bindingColumns+`
		 FROM image_subscriptions
		 WHERE bucket_key = $1 AND target_key = $2`,
		bucketKey,
		targetKey,
	)

	var binding domain.Binding
	var mode string
	var targetJSON, pipelineJSON, codeDeployJSON []byte
	if err := row.Scan(
		&binding.BucketKey,
		&binding.TargetKey,
		&mode,
		&targetJSON,
		&pipelineJSON,
		&codeDeployJSON,
		&binding.LastProcessedDigest,
		&binding.LastStatus,
		&binding.LastExecutionID,
	); err != nil {
		return domain.Binding{}, handleNotFound(err)
	}
	binding.Mode = domain.Mode(mode)
	if err := decodeJSON(targetJSON, &binding.Target); err != nil {
		return domain.Binding{}, fmt.Errorf("decode target: %w", err)
	}
	if err := decodeJSON(pipelineJSON, &binding.Pipeline); err != nil {
		return domain.Binding{}, fmt.Errorf("decode pipeline: %w", err)
	}
	if err := decodeJSON(codeDeployJSON, &binding.CodeDeploy); err != nil {
		return domain.Binding{}, fmt.Errorf("decode code deploy: %w", err)
	}
	return binding, nil
}

func (s *BindingStore) Upsert(ctx context.Context, binding domain.Binding) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("binding store not initialized")
	}
	binding.Normalize()
	if err := binding.Validate(); err != nil {
		return err
	}
	targetJSON, err := encodeJSON(binding.Target)
	if err != nil {
		return err
	}
	pipelineJSON, err := encodeJSON(binding.Pipeline)
	if err != nil {
		return err
	}
	codeDeployJSON, err := encodeJSON(binding.CodeDeploy)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO image_subscriptions (bucket_key, target_key, mode, target, pipeline, code_deploy)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (bucket_key, target_key) DO UPDATE SET
			mode = EXCLUDED.mode,
			target = EXCLUDED.target,
			pipeline = EXCLUDED.pipeline,
			code_deploy = EXCLUDED.code_deploy,
			updated_at = now()`,
		binding.BucketKey,
		binding.TargetKey,
		string(binding.Mode),
		targetJSON,
		pipelineJSON,
		codeDeployJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

// ClaimDigest is the idempotency gate: a single conditional UPDATE, so
// concurrent duplicate triggers race server-side and exactly one wins.
func (s *BindingStore) ClaimDigest(ctx context.Context, bucketKey, targetKey, digest string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("binding store not initialized")
	}
	if strings.TrimSpace(digest) == "" {
		return false, fmt.Errorf("digest is required")
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE image_subscriptions
		 SET last_processed_digest = $3, updated_at = now()
		 WHERE bucket_key = $1 AND target_key = $2
		   AND (last_processed_digest IS NULL OR last_processed_digest <> $3)`,
		bucketKey,
		targetKey,
		digest,
	)
	if err != nil {
		return false, fmt.Errorf("claim digest: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim digest rows: %w", err)
	}
	return affected == 1, nil
}

func (s *BindingStore) RecordDirectResult(ctx context.Context, bucketKey, targetKey, digest, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("binding store not initialized")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE image_subscriptions
		 SET last_processed_digest = $3, last_status = $4, updated_at = now()
		 WHERE bucket_key = $1 AND target_key = $2`,
		bucketKey,
		targetKey,
		digest,
		status,
	)
	if err != nil {
		return fmt.Errorf("record direct result: %w", err)
	}
	return nil
}

func (s *BindingStore) RecordPipelineExecution(ctx context.Context, bucketKey, targetKey, executionID, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("binding store not initialized")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE image_subscriptions
		 SET last_execution_id = $3, last_status = $4, updated_at = now()
		 WHERE bucket_key = $1 AND target_key = $2`,
		bucketKey,
		targetKey,
		executionID,
		status,
	)
	if err != nil {
		return fmt.Errorf("record pipeline execution: %w", err)
	}
	return nil
}

func (s *BindingStore) ListPendingPipelineExecutions(ctx context.Context, limit int) ([]domain.Binding, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("binding store not initialized")
	}
	query, args := buildPendingQuery(limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending executions: %w", err)
	}
	defer rows.Close()

	return scanBindings(rows)
}

func buildPendingQuery(limit int) (string, []any) {
	if limit <= 0 {
		limit = 200
	}
	args := make([]any, 0, len(domain.PendingPipelineStatuses)+1)
	placeholders := make([]string, 0, len(domain.PendingPipelineStatuses))
	for _, status := range domain.PendingPipelineStatuses {
		args = append(args, status)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + bindingColumns + `
		 FROM image_subscriptions
		 WHERE mode = 'pipeline'
		   AND last_execution_id IS NOT NULL AND last_execution_id <> ''
		   AND (last_status IS NULL OR last_status = '' OR last_status IN (` + strings.Join(placeholders, ",") + `))
		 ORDER BY updated_at ASC
		 LIMIT $` + fmt.Sprintf("%d", len(args))
	return query, args
}

func (s *BindingStore) UpdateExecutionStatus(ctx context.Context, bucketKey, targetKey, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("binding store not initialized")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE image_subscriptions
		 SET last_status = $3, updated_at = now()
		 WHERE bucket_key = $1 AND target_key = $2`,
		bucketKey,
		targetKey,
		status,
	)
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	return nil
}

func scanBindings(rows *sql.Rows) ([]domain.Binding, error) {
	var out []domain.Binding
	for rows.Next() {
		var binding domain.Binding
		var mode string
		var targetJSON, pipelineJSON, codeDeployJSON []byte
		if err := rows.Scan(
			&binding.BucketKey,
			&binding.TargetKey,
			&mode,
			&targetJSON,
			&pipelineJSON,
			&codeDeployJSON,
			&binding.LastProcessedDigest,
			&binding.LastStatus,
			&binding.LastExecutionID,
		); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		binding.Mode = domain.Mode(mode)
		if err := decodeJSON(targetJSON, &binding.Target); err != nil {
			return nil, fmt.Errorf("decode target: %w", err)
		}
		if err := decodeJSON(pipelineJSON, &binding.Pipeline); err != nil {
			return nil, fmt.Errorf("decode pipeline: %w", err)
		}
		if err := decodeJSON(codeDeployJSON, &binding.CodeDeploy); err != nil {
			return nil, fmt.Errorf("decode code deploy: %w", err)
		}
		out = append(out, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
