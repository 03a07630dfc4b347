package inquiry

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kardainfra/karda/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps inquiries in the inquiries table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn, checks it and applies the schema.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ApplySchema creates the inquiries table when it is missing.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply inquiry schema: %w", err)
	}
	return nil
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, in *models.Inquiry) error {
	const query = `INSERT INTO inquiries
		(case_id, asset_id, asset_name, full_name, company, email, phone, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		in.CaseID, in.AssetID, in.AssetName, in.FullName, in.Company,
		in.Email, in.Phone, in.Context, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save inquiry %d: %w", in.CaseID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Inquiry, error) {
	const query = `SELECT case_id, asset_id, asset_name, full_name, company, email, phone, context, created_at
		FROM inquiries ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Inquiry, error) {
		var in models.Inquiry
		err := row.Scan(&in.CaseID, &in.AssetID, &in.AssetName, &in.FullName, &in.Company,
			&in.Email, &in.Phone, &in.Context, &in.CreatedAt)
		return in, err
	})
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	return out, nil
}
