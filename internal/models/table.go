package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/google/uuid"
)

// TableRecord is the persisted form of one blackjack table: the whole
// table document as jsonb plus a few denormalized columns for lobby
// queries and the version column guarding conditional writes.
type TableRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null;size:100"`
	Phase       string    `gorm:"not null;size:20;index"`
	PlayerCount int       `gorm:"not null;default:0;index"`
	Version     int64     `gorm:"not null;default:1"`
	Doc         TableDoc  `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"not null;index"`
}

// TableDoc wraps the table document for jsonb storage
type TableDoc struct {
	Table *table.Table `json:"table"`
}

func (d *TableDoc) Scan(value interface{}) error {
	if value == nil {
		*d = TableDoc{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan TableDoc")
	}

	return json.Unmarshal(bytes, d)
}

func (d TableDoc) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// NewTableRecord builds the persisted form of a table document
func NewTableRecord(t *table.Table, version int64) *TableRecord {
	return &TableRecord{
		ID:          t.ID,
		Name:        t.Name,
		Phase:       string(t.Phase),
		PlayerCount: len(t.Players),
		Version:     version,
		Doc:         TableDoc{Table: t},
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
