package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned when no run matches an id
var ErrRunNotFound = errors.New("run not found")

// Repository handles simulation run persistence
// ⭐ SSOT: 실행 기록 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun inserts a run; re-saving the same id replaces it
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO audit.simulation_runs (
			run_id, kind, strategy, strategy_hash, dataset, params, summary, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			strategy = EXCLUDED.strategy,
			strategy_hash = EXCLUDED.strategy_hash,
			dataset = EXCLUDED.dataset,
			params = EXCLUDED.params,
			summary = EXCLUDED.summary,
			payload = EXCLUDED.payload
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Kind), run.Strategy, run.StrategyHash, run.Dataset,
		[]byte(run.Params), []byte(run.Summary), []byte(run.Payload), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves one run including its payload
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT run_id, kind, strategy, strategy_hash, dataset, params, summary, payload, created_at
		FROM audit.simulation_runs
		WHERE run_id = $1
	`

	var run Run
	var kind string
	var params, summary, payload []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &kind, &run.Strategy, &run.StrategyHash, &run.Dataset,
		&params, &summary, &payload, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Kind = Kind(kind)
	run.Params, run.Summary, run.Payload = params, summary, payload
	return &run, nil
}

// ListRuns returns the most recent runs without payloads.
// kind == "" lists every kind.
func (r *Repository) ListRuns(ctx context.Context, kind Kind, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, kind, strategy, strategy_hash, dataset, params, summary, created_at
		FROM audit.simulation_runs
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var k string
		var params, summary []byte
		if err := rows.Scan(&run.ID, &k, &run.Strategy, &run.StrategyHash, &run.Dataset,
			&params, &summary, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Kind = Kind(k)
		run.Params, run.Summary = params, summary
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteBefore prunes runs older than the given number of days
func (r *Repository) DeleteBefore(ctx context.Context, days int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit.simulation_runs WHERE created_at < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
