// Package postgres stores precomputed Tcorr values in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// Store implements domain.TcorrStore over the tcorr_scene and tcorr_monthly
// tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and configures the pool.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tcorr database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping tcorr database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SceneTcorr(ctx context.Context, tmaxKey, sceneID string) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tcorr FROM tcorr_scene WHERE tmax_source = $1 AND scene_id = $2`,
		tmaxKey, sceneID)
	return scanTcorr(row)
}

func (s *Store) MonthTcorr(ctx context.Context, tmaxKey, wrs2Tile string, month int) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tcorr FROM tcorr_monthly WHERE tmax_source = $1 AND wrs2_tile = $2 AND month = $3`,
		tmaxKey, wrs2Tile, month)
	return scanTcorr(row)
}

// PutScene inserts or replaces a scene correction.
func (s *Store) PutScene(ctx context.Context, tmaxKey, sceneID string, tcorr float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tcorr_scene (tmax_source, scene_id, tcorr) VALUES ($1, $2, $3)
		 ON CONFLICT (tmax_source, scene_id) DO UPDATE SET tcorr = EXCLUDED.tcorr`,
		tmaxKey, sceneID, tcorr)
	if err != nil {
		return fmt.Errorf("put scene tcorr %s/%s: %w", tmaxKey, sceneID, err)
	}
	return nil
}

// PutMonth inserts or replaces a monthly correction.
func (s *Store) PutMonth(ctx context.Context, tmaxKey, wrs2Tile string, month int, tcorr float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tcorr_monthly (tmax_source, wrs2_tile, month, tcorr) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tmax_source, wrs2_tile, month) DO UPDATE SET tcorr = EXCLUDED.tcorr`,
		tmaxKey, wrs2Tile, month, tcorr)
	if err != nil {
		return fmt.Errorf("put month tcorr %s/%s/%d: %w", tmaxKey, wrs2Tile, month, err)
	}
	return nil
}

func scanTcorr(row *sql.Row) (float64, bool, error) {
	var v float64
	err := row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
