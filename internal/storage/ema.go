package storage

import (
	"context"
	"errors"
	"fmt"

	"chase_bot/internal/models"
	"chase_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// ErrNoSnapshot — по символу ещё нет ни одной строки индикатора.
var ErrNoSnapshot = errors.New("no ema snapshot")

// EMAStore — таблица ema: append-only срезы индикатора, актуален последний по as_of.
type EMAStore struct{}

func NewEMAStore() *EMAStore {
	return &EMAStore{}
}

func (s *EMAStore) Insert(ctx context.Context, tx db.Transaction, snaps []models.Snapshot) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("EMAStore.Insert: %w", err)
		}
	}()

	for _, sn := range snaps {
		_, err = tx.Exec(ctx, `
			INSERT INTO ema (tradingsymbol, instrument_token, ema, highest_high, lowest_low, last_close, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sn.Tradingsymbol, sn.InstrumentToken, sn.EMA, sn.HighestHigh, sn.LowestLow, sn.LastClose, sn.AsOf,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *EMAStore) LatestBySymbol(ctx context.Context, tx db.Transaction, tradingsymbol string) (sn *models.Snapshot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("EMAStore.LatestBySymbol: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT tradingsymbol, instrument_token, ema, highest_high, lowest_low, last_close, created_at
		FROM ema WHERE tradingsymbol = $1
		ORDER BY created_at DESC LIMIT 1`, tradingsymbol)

	sn = &models.Snapshot{}
	err = row.Scan(&sn.Tradingsymbol, &sn.InstrumentToken, &sn.EMA, &sn.HighestHigh, &sn.LowestLow, &sn.LastClose, &sn.AsOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return sn, nil
}
