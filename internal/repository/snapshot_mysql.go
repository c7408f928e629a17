package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// snapshotRecord is the single-row-per-name table used by the MySQL backend.
type snapshotRecord struct {
	Name      string `gorm:"primaryKey;size:64"`
	Document  string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

func (snapshotRecord) TableName() string { return "storefront_snapshots" }

type gormSnapshotter struct {
	db   *gorm.DB
	name string
	log  *logrus.Logger
}

func NewGormSnapshotter(db *gorm.DB, name string, logger *logrus.Logger) (Snapshotter, error) {
	if err := db.AutoMigrate(&snapshotRecord{}); err != nil {
		logger.Errorf("Failed to migrate storefront_snapshots: %v", err)
		return nil, fmt.Errorf("could not migrate snapshot table: %w", err)
	}
	return &gormSnapshotter{db: db, name: name, log: logger}, nil
}

func (s *gormSnapshotter) Backend() string { return "mysql:" + s.name }

func (s *gormSnapshotter) Load(ctx context.Context) ([]byte, error) {
	var rec snapshotRecord
	err := s.db.WithContext(ctx).First(&rec, "name = ?", s.name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		s.log.Errorf("Failed to load snapshot %s: %v", s.name, err)
		return nil, fmt.Errorf("could not load snapshot %s: %w", s.name, err)
	}
	return []byte(rec.Document), nil
}

func (s *gormSnapshotter) Save(ctx context.Context, document []byte) error {
	rec := snapshotRecord{Name: s.name, Document: string(document), UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		s.log.Errorf("Failed to save snapshot %s: %v", s.name, err)
		return fmt.Errorf("could not save snapshot %s: %w", s.name, err)
	}
	return nil
}
