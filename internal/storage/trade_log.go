package storage

import (
	"context"
	"fmt"

	"chase_bot/internal/models"
	"chase_bot/pkg/db"
)

// TradeLogStore — append-only журнал chase_log: строка на каждое
// открытие/закрытие ноги. Никогда не обновляется и не удаляется.
type TradeLogStore struct{}

func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{}
}

func (s *TradeLogStore) Append(ctx context.Context, tx db.Transaction, entries []models.ChaseLogEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("TradeLogStore.Append: %w", err)
		}
	}()

	for _, e := range entries {
		_, err = tx.Exec(ctx, `
			INSERT INTO chase_log (tradingsymbol, transaction_type, average_price, created_at)
			VALUES ($1, $2, $3, $4)`,
			e.Tradingsymbol, e.TransactionType, e.AveragePrice, e.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
