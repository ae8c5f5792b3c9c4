package storage

import (
	"context"
	"fmt"

	"chase_bot/internal/models"
	"chase_bot/pkg/db"

	"github.com/shopspring/decimal"
)

// TransactionsStore — зеркало исполненных брокерских ордеров (аудит).
type TransactionsStore struct{}

func NewTransactionsStore() *TransactionsStore {
	return &TransactionsStore{}
}

func (s *TransactionsStore) InsertCompleted(ctx context.Context, tx db.Transaction, orders []models.Order) (n int, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("TransactionsStore.InsertCompleted: %w", err)
		}
	}()

	for _, o := range orders {
		if o.Status != models.OrderStatusComplete {
			continue
		}
		// средняя цена исполнения — деньги, держим в decimal
		avg := decimal.NewFromFloat(o.AveragePrice)
		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (order_id, tradingsymbol, order_timestamp, variety, exchange,
			                          instrument_token, transaction_type, average_price, quantity, product, tag)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (order_id) DO NOTHING`,
			o.OrderID, o.Tradingsymbol, o.OrderTimestamp, o.Variety, o.Exchange,
			o.InstrumentToken, o.TransactionType, avg, o.Quantity, o.Product, o.Tag,
		)
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
