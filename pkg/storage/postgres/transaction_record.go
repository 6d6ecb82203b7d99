package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord represents an executed simulated order stored in the database.
type TransactionRecord struct {
	ID uint `gorm:"primaryKey"`

	// ledger transaction id, unique so replays are no-ops
	TxID string `gorm:"type:uuid;not null;uniqueIndex:idx_transaction_tx_id"`

	Symbol string `gorm:"type:text;not null;index:idx_transaction_symbol"`
	Side   string `gorm:"type:varchar(4);not null"`

	Quantity decimal.Decimal `gorm:"type:numeric;not null"`
	Price    decimal.Decimal `gorm:"type:numeric;not null"`
	Total    decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	ExecutedAt time.Time `gorm:"not null;index:idx_transaction_executed_at"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TransactionRecord) TableName() string {
	return "transaction_record"
}
