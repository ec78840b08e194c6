package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cardroomhq/blackjack/internal/database"
	"github.com/cardroomhq/blackjack/internal/engine"
	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/cardroomhq/blackjack/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresTableStore persists table documents in Postgres. Writes are
// conditional on the version read by the caller: the UPDATE carries the
// expected version in its WHERE clause, so a lost race touches zero rows
// and the caller gets engine.ErrVersionConflict with the stored document
// unchanged.
type PostgresTableStore struct {
	db *database.DB
}

// NewPostgresTableStore creates a Postgres-backed table store
func NewPostgresTableStore(db *database.DB) *PostgresTableStore {
	return &PostgresTableStore{db: db}
}

var _ engine.TableStore = (*PostgresTableStore)(nil)

// Insert stores a newly created table at version 1
func (s *PostgresTableStore) Insert(ctx context.Context, t *table.Table) (int64, error) {
	record := models.NewTableRecord(t, 1)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return 0, fmt.Errorf("table %s already exists: %w", t.ID, err)
		}
		return 0, fmt.Errorf("failed to insert table: %w", err)
	}
	return record.Version, nil
}

// Read returns the table document and the version to condition the next
// write on
func (s *PostgresTableStore) Read(ctx context.Context, id uuid.UUID) (*table.Table, int64, error) {
	var record models.TableRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if database.IsNotFoundError(err) {
			return nil, 0, table.ErrTableNotFound
		}
		return nil, 0, fmt.Errorf("failed to read table: %w", err)
	}
	return record.Doc.Table, record.Version, nil
}

// Write commits a new table document conditioned on expectedVersion
func (s *PostgresTableStore) Write(ctx context.Context, t *table.Table, expectedVersion int64) (int64, error) {
	newVersion := expectedVersion + 1
	result := s.db.WithContext(ctx).Model(&models.TableRecord{}).
		Where("id = ? AND version = ?", t.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":         t.Name,
			"phase":        string(t.Phase),
			"player_count": len(t.Players),
			"version":      newVersion,
			"doc":          models.TableDoc{Table: t},
			"updated_at":   t.UpdatedAt,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to write table: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the table is gone or another writer advanced the version
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.TableRecord{}).Where("id = ?", t.ID).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("failed to check table existence: %w", err)
		}
		if count == 0 {
			return 0, table.ErrTableNotFound
		}
		return 0, engine.ErrVersionConflict
	}

	return newVersion, nil
}

// Delete removes a table document
func (s *PostgresTableStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.TableRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete table: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return table.ErrTableNotFound
	}
	return nil
}

// List returns all table documents, newest first
func (s *PostgresTableStore) List(ctx context.Context) ([]*table.Table, error) {
	var records []models.TableRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*table.Table, len(records))
	for i, record := range records {
		tables[i] = record.Doc.Table
	}
	return tables, nil
}

// DeleteStale removes empty tables idle since before cutoff, or every
// idle table regardless of occupancy when force is set. Returns the ids
// removed so deletions can be fanned out to subscribers.
func (s *PostgresTableStore) DeleteStale(ctx context.Context, cutoff time.Time, force bool) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.TableRecord{}).Where("updated_at < ?", cutoff)
		if !force {
			query = query.Where("player_count = 0")
		}
		if err := query.Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to find stale tables: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&models.TableRecord{}, "id IN ?", ids).Error; err != nil {
			return fmt.Errorf("failed to delete stale tables: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}
