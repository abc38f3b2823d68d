package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tcorr_scene (
		tmax_source TEXT NOT NULL,
		scene_id    TEXT NOT NULL,
		tcorr       DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (tmax_source, scene_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tcorr_monthly (
		tmax_source TEXT NOT NULL,
		wrs2_tile   TEXT NOT NULL,
		month       SMALLINT NOT NULL CHECK (month BETWEEN 1 AND 12),
		tcorr       DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (tmax_source, wrs2_tile, month)
	)`,
}

// EnsureSchema creates the Tcorr tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		s.logger.Debug("tcorr schema exec", "idx", i)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tcorr schema: %w", err)
		}
	}
	return nil
}
