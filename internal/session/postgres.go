package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/smite-tools/draft-server/internal/draft"
)

type sessionRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	State     []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (sessionRow) TableName() string { return "draft_sessions" }

// Postgres stores one JSON draft snapshot per session id, upserted on
// every save.
type Postgres struct {
	db  *gorm.DB
	ttl time.Duration
}

func OpenPostgres(dsn string, ttl time.Duration) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	return &Postgres{db: db, ttl: ttl}, nil
}

func (p *Postgres) Load(ctx context.Context, sessionID string) (draft.State, error) {
	var row sessionRow
	err := p.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return draft.State{}, ErrNotFound
	}
	if err != nil {
		return draft.State{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	if p.ttl > 0 && time.Since(row.UpdatedAt) > p.ttl {
		// Expired: reclaim lazily and report absent.
		p.db.WithContext(ctx).Delete(&sessionRow{}, "id = ?", sessionID)
		return draft.State{}, ErrNotFound
	}

	var state draft.State
	if err := json.Unmarshal(row.State, &state); err != nil {
		return draft.State{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return state, nil
}

func (p *Postgres) Save(ctx context.Context, sessionID string, state draft.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	row := sessionRow{ID: sessionID, State: data, UpdatedAt: time.Now()}
	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// PurgeExpired deletes every record older than the TTL; intended to run on
// a timer from the server process.
func (p *Postgres) PurgeExpired(ctx context.Context) error {
	if p.ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-p.ttl)
	if err := p.db.WithContext(ctx).Delete(&sessionRow{}, "updated_at < ?", cutoff).Error; err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
