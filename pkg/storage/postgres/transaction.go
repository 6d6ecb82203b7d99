package postgres

import (
	"context"
	"fmt"

	"papertrader/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertTransaction stores record, ignoring a duplicate tx id.
func (p *PostgresClient) InsertTransaction(ctx context.Context, record *TransactionRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_id"}},
		DoNothing: true,
	}).Create(record)

	return tx.Error
}

// SaveTransaction converts and stores a ledger transaction.
func (p *PostgresClient) SaveTransaction(ctx context.Context, t ledger.Transaction) error {
	return p.InsertTransaction(ctx, ToTransactionRecord(t))
}

// ListTransactions returns every stored transaction in execution order.
func (p *PostgresClient) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	var records []TransactionRecord
	err := p.DB.WithContext(ctx).
		Order("executed_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Transaction, 0, len(records))
	for _, r := range records {
		t, err := r.ToTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteAllTransactions wipes the journal, mirroring a ledger reset.
func (p *PostgresClient) DeleteAllTransactions(ctx context.Context) error {
	return p.DB.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&TransactionRecord{}).Error
}

// ToTransactionRecord converts a ledger transaction into a TransactionRecord for DB insertion.
func ToTransactionRecord(t ledger.Transaction) *TransactionRecord {
	return &TransactionRecord{
		TxID:       t.ID.String(),
		Symbol:     t.Symbol,
		Side:       t.Side.String(),
		Quantity:   t.Quantity,
		Price:      t.Price,
		Total:      t.Total,
		ExecutedAt: t.Timestamp.UTC(),
	}
}

// ToTransaction converts a stored record back into a ledger transaction.
func (r TransactionRecord) ToTransaction() (ledger.Transaction, error) {
	id, err := uuid.Parse(r.TxID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	var side ledger.Side
	if err := side.UnmarshalText([]byte(r.Side)); err != nil {
		return ledger.Transaction{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	return ledger.Transaction{
		ID:        id,
		Timestamp: r.ExecutedAt,
		Symbol:    r.Symbol,
		Side:      side,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Total:     r.Total,
	}, nil
}
