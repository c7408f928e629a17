package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const postgresSnapshotSchema = `
	CREATE TABLE IF NOT EXISTS storefront_snapshots (
		name       TEXT PRIMARY KEY,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type postgresSnapshotter struct {
	db   *sql.DB
	name string
	log  *logrus.Logger
}

func NewPostgresSnapshotter(ctx context.Context, db *sql.DB, name string, logger *logrus.Logger) (Snapshotter, error) {
	if _, err := db.ExecContext(ctx, postgresSnapshotSchema); err != nil {
		logger.Errorf("Failed to ensure storefront_snapshots table: %v", err)
		return nil, fmt.Errorf("could not create snapshot table: %w", err)
	}
	return &postgresSnapshotter{db: db, name: name, log: logger}, nil
}

func (s *postgresSnapshotter) Backend() string { return "postgres:" + s.name }

func (s *postgresSnapshotter) Load(ctx context.Context) ([]byte, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM storefront_snapshots WHERE name = $1`, s.name,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		s.log.Errorf("Failed to load snapshot %s: %v", s.name, err)
		return nil, fmt.Errorf("could not load snapshot %s: %w", s.name, err)
	}
	return document, nil
}

func (s *postgresSnapshotter) Save(ctx context.Context, document []byte) error {
	query := `
		INSERT INTO storefront_snapshots (name, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, s.name, document); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return fmt.Errorf("invalid snapshot document for %s: %s", s.name, pqErr.Message)
		}
		s.log.Errorf("Failed to save snapshot %s: %v", s.name, err)
		return fmt.Errorf("could not save snapshot %s: %w", s.name, err)
	}
	return nil
}
