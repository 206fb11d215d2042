/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver (no CGO required)
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/history"
)

// GormStore implements Store using GORM, retaining at most Retention rows
// in history_events (oldest dropped on insert past the bound) so this stays
// a crash-recovery cache rather than an unbounded audit log.
type GormStore struct {
	db        *gorm.DB
	dialect   string
	Retention int
}

// NewGormStore creates a new GORM-based store for the given dialect.
func NewGormStore(dialect string, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &GormStore{db: db, dialect: dialect, Retention: 1000}, nil
}

// Init creates the backing tables via auto-migration.
func (s *GormStore) Init() error {
	return s.db.AutoMigrate(&eventRecord{}, &exemptionRecord{})
}

// Close releases the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendEvent persists one event and prunes anything beyond Retention.
func (s *GormStore) AppendEvent(ctx context.Context, e history.Event) error {
	if err := s.db.WithContext(ctx).Create(toRecordPtr(e)).Error; err != nil {
		return err
	}
	return s.pruneEvents(ctx)
}

func toRecordPtr(e history.Event) *eventRecord {
	r := toEventRecord(e)
	return &r
}

func (s *GormStore) pruneEvents(ctx context.Context) error {
	if s.Retention <= 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&eventRecord{}).Count(&count).Error; err != nil {
		return err
	}
	if count <= int64(s.Retention) {
		return nil
	}
	var cutoff eventRecord
	if err := s.db.WithContext(ctx).Model(&eventRecord{}).
		Order("seq DESC").
		Offset(s.Retention - 1).
		Limit(1).
		First(&cutoff).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("seq < ?", cutoff.Seq).Delete(&eventRecord{}).Error
}

// ListEvents returns the most recent persisted events, newest first.
func (s *GormStore) ListEvents(ctx context.Context, limit int) ([]history.Event, error) {
	var records []eventRecord
	q := s.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]history.Event, 0, len(records))
	for _, r := range records {
		out = append(out, fromEventRecord(r))
	}
	return out, nil
}

// SaveExemption upserts an exemption by ID.
func (s *GormStore) SaveExemption(ctx context.Context, e exemption.Exemption) error {
	r := toExemptionRecord(e)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&r).Error
}

// ListExemptions returns persisted exemptions not yet expired as of now.
func (s *GormStore) ListExemptions(ctx context.Context, now time.Time) ([]exemption.Exemption, error) {
	var records []exemptionRecord
	if err := s.db.WithContext(ctx).Where("expires_at > ?", now).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]exemption.Exemption, 0, len(records))
	for _, r := range records {
		out = append(out, fromExemptionRecord(r))
	}
	return out, nil
}

// Health pings the underlying connection.
func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
