package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/internal/store"
	"github.com/sumandas0/catalog/pkg/utils"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresStore implements store.PipelineStore and store.Directory on
// PostgreSQL. Pipelines are kept as JSONB documents next to the columns used
// for lookups, ordering and optimistic concurrency.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, connectionString string, poolConfig PoolConfig) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if poolConfig.MaxConns > 0 {
		config.MaxConns = poolConfig.MaxConns
	}
	if poolConfig.MinConns > 0 {
		config.MinConns = poolConfig.MinConns
	}
	if poolConfig.MaxConnLifetime > 0 {
		config.MaxConnLifetime = poolConfig.MaxConnLifetime
	}
	if poolConfig.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolConfig.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	document, err := json.Marshal(pipeline)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	query := `
		INSERT INTO pipelines (id, fqn, service_name, version, updated_at, updated_by, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		pipeline.ID,
		pipeline.FullyQualifiedName,
		serviceName(pipeline),
		pipeline.Version.String(),
		pipeline.UpdatedAt,
		pipeline.UpdatedBy,
		document,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.CodeAlreadyExists, "pipeline already exists", err).
				WithDetail("fqn", pipeline.FullyQualifiedName)
		}
		return wrapError(err, "create pipeline")
	}

	return nil
}

func (s *PostgresStore) GetPipeline(ctx context.Context, id uuid.UUID) (*models.Pipeline, error) {
	row := s.pool.QueryRow(ctx, `SELECT document FROM pipelines WHERE id = $1`, id)
	pipeline, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.CodeNotFound, "pipeline not found", utils.ErrNotFound).
				WithDetail("id", id.String())
		}
		return nil, wrapError(err, "get pipeline")
	}
	return pipeline, nil
}

func (s *PostgresStore) GetPipelineByName(ctx context.Context, fqn string) (*models.Pipeline, error) {
	row := s.pool.QueryRow(ctx, `SELECT document FROM pipelines WHERE fqn = $1`, fqn)
	pipeline, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.CodeNotFound, "pipeline not found", utils.ErrNotFound).
				WithDetail("fqn", fqn)
		}
		return nil, wrapError(err, "get pipeline by name")
	}
	return pipeline, nil
}

// ListPipelines orders by fqn under the "C" collation so the database order
// matches Go's byte-wise string comparison used by the paginator.
func (s *PostgresStore) ListPipelines(ctx context.Context, filter store.PipelineFilter) ([]*models.Pipeline, error) {
	query := `
		SELECT document FROM pipelines
		WHERE ($1 = '' OR service_name = $1)
		ORDER BY fqn COLLATE "C"
	`

	rows, err := s.pool.Query(ctx, query, filter.Service)
	if err != nil {
		return nil, wrapError(err, "list pipelines")
	}
	defer rows.Close()

	var pipelines []*models.Pipeline
	for rows.Next() {
		pipeline, err := scanPipeline(rows)
		if err != nil {
			return nil, wrapError(err, "scan pipeline")
		}
		pipelines = append(pipelines, pipeline)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "list pipelines")
	}

	return pipelines, nil
}

func (s *PostgresStore) UpdatePipeline(ctx context.Context, expected, next *models.Pipeline, archive bool) error {
	document, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		var (
			version   string
			updatedAt time.Time
			previous  []byte
		)
		err := tx.QueryRow(ctx,
			`SELECT version, updated_at, document FROM pipelines WHERE id = $1 FOR UPDATE`,
			expected.ID,
		).Scan(&version, &updatedAt, &previous)
		if err != nil {
			if isNoRows(err) {
				return utils.NewAppError(utils.CodeNotFound, "pipeline not found", utils.ErrNotFound).
					WithDetail("id", expected.ID.String())
			}
			return wrapError(err, "lock pipeline")
		}

		if version != expected.Version.String() || !updatedAt.Equal(expected.UpdatedAt) {
			return utils.NewAppError(utils.CodeConcurrentModification, "pipeline was modified by another request", utils.ErrConcurrentModification).
				WithDetail("id", expected.ID.String()).
				WithDetail("expected_version", expected.Version.String()).
				WithDetail("actual_version", version)
		}

		if archive {
			_, err := tx.Exec(ctx,
				`INSERT INTO pipeline_versions (pipeline_id, version, document) VALUES ($1, $2, $3)`,
				expected.ID, version, previous,
			)
			if err != nil {
				return wrapError(err, "archive pipeline version")
			}
		}

		query := `
			UPDATE pipelines
			SET fqn = $2, service_name = $3, version = $4, updated_at = $5, updated_by = $6, document = $7
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, query,
			next.ID,
			next.FullyQualifiedName,
			serviceName(next),
			next.Version.String(),
			next.UpdatedAt,
			next.UpdatedBy,
			document,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return utils.NewAppError(utils.CodeAlreadyExists, "pipeline already exists", err).
					WithDetail("fqn", next.FullyQualifiedName)
			}
			return wrapError(err, "update pipeline")
		}
		return nil
	})
}

func (s *PostgresStore) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM pipelines WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if isNoRows(err) {
				return utils.NewAppError(utils.CodeNotFound, "pipeline not found", utils.ErrNotFound).
					WithDetail("id", id.String())
			}
			return wrapError(err, "lock pipeline")
		}

		var dependents int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM entity_dependencies WHERE entity_id = $1`, id).Scan(&dependents); err != nil {
			return wrapError(err, "count dependents")
		}
		if dependents > 0 {
			return utils.NewAppError(utils.CodeConflict, "pipeline has dependent entities", utils.ErrConflict).
				WithDetail("id", id.String()).
				WithDetail("dependents", dependents)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id); err != nil {
			return wrapError(err, "delete pipeline")
		}
		return nil
	})
}

func (s *PostgresStore) ListPipelineVersions(ctx context.Context, id uuid.UUID) ([]*models.Pipeline, error) {
	current, err := s.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT document FROM pipeline_versions WHERE pipeline_id = $1 ORDER BY archived_at DESC`,
		id,
	)
	if err != nil {
		return nil, wrapError(err, "list pipeline versions")
	}
	defer rows.Close()

	versions := []*models.Pipeline{current}
	for rows.Next() {
		pipeline, err := scanPipeline(rows)
		if err != nil {
			return nil, wrapError(err, "scan pipeline version")
		}
		versions = append(versions, pipeline)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "list pipeline versions")
	}

	archived := versions[1:]
	sort.SliceStable(archived, func(i, j int) bool {
		return archived[j].Version.LessThan(archived[i].Version)
	})
	return versions, nil
}

func (s *PostgresStore) GetPipelineVersion(ctx context.Context, id uuid.UUID, version models.EntityVersion) (*models.Pipeline, error) {
	current, err := s.GetPipeline(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version == version {
		return current, nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT document FROM pipeline_versions WHERE pipeline_id = $1 AND version = $2`,
		id, version.String(),
	)
	pipeline, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, utils.NewAppError(utils.CodeNotFound, "pipeline version not found", utils.ErrNotFound).
				WithDetail("id", id.String()).
				WithDetail("version", version.String())
		}
		return nil, wrapError(err, "get pipeline version")
	}
	return pipeline, nil
}

// AddDependent records that another entity refers to the pipeline.
func (s *PostgresStore) AddDependent(ctx context.Context, id uuid.UUID, dependent models.EntityReference) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_dependencies (entity_id, dependent_id, dependent_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id, dependent_id) DO NOTHING
	`, id, dependent.ID, dependent.Type)
	return wrapError(err, "add dependent")
}

func (s *PostgresStore) RemoveDependent(ctx context.Context, id, dependentID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM entity_dependencies WHERE entity_id = $1 AND dependent_id = $2`,
		id, dependentID,
	)
	return wrapError(err, "remove dependent")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return wrapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError(err, "commit transaction")
	}
	return nil
}

func scanPipeline(row pgx.Row) (*models.Pipeline, error) {
	var document []byte
	if err := row.Scan(&document); err != nil {
		return nil, err
	}
	var pipeline models.Pipeline
	if err := json.Unmarshal(document, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}
	return &pipeline, nil
}

func serviceName(p *models.Pipeline) string {
	if p.Service == nil {
		return ""
	}
	return p.Service.Name
}

var _ store.PipelineStore = (*PostgresStore)(nil)
