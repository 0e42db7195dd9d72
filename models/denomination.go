package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// amounts go out as JSON numbers, the frontend does arithmetic on them
	decimal.MarshalJSONWithoutQuotes = true
}

// NoteCounts maps a currency note value ("500", "100", ...) to how many of
// those notes were handed in.
type NoteCounts map[string]decimal.Decimal

// Total returns sum(note * count).
func (n NoteCounts) Total() (decimal.Decimal, error) {
	total := decimal.Zero
	for note, count := range n {
		value, err := decimal.NewFromString(note)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid note value %q", note)
		}
		if value.IsNegative() || count.IsNegative() {
			return decimal.Zero, fmt.Errorf("negative denomination %s x %s", note, count)
		}
		total = total.Add(value.Mul(count))
	}
	return total, nil
}

// Value implements driver.Valuer, notes are stored as jsonb.
func (n NoteCounts) Value() (driver.Value, error) {
	if n == nil {
		return "{}", nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (n *NoteCounts) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*n = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into NoteCounts", src)
	}
	return json.Unmarshal(raw, n)
}

// Denomination is the cash breakdown handed in with one payment batch.
type Denomination struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID   uuid.UUID       `gorm:"column:batch_id;type:uuid;not null;index" json:"batch_id"`
	Notes     NoteCounts      `gorm:"column:notes;type:jsonb;not null" json:"notes"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	CreatedAt time.Time       `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Denomination) TableName() string {
	return "denominations"
}
