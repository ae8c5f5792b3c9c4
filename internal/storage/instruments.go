package storage

import (
	"context"
	"fmt"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/pkg/db"
)

// InstrumentStore — справочник instruments (дамп Kite) + торговый календарь.
type InstrumentStore struct{}

func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{}
}

func (s *InstrumentStore) Upsert(ctx context.Context, tx db.Transaction, rows []models.Instrument) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("InstrumentStore.Upsert: %w", err)
		}
	}()

	for _, r := range rows {
		_, err = tx.Exec(ctx, `
			INSERT INTO instruments (instrument_token, tradingsymbol, name, expiry_date, lot_size, exchange, segment, instrument_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (instrument_token) DO NOTHING`,
			r.InstrumentToken, r.Tradingsymbol, r.Name, r.ExpiryDate, r.LotSize, r.Exchange, r.Segment, r.InstrumentType, r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListActiveFutures — неистёкшие фьючерсы по имени индекса, ближайшая экспирация
// первой. Форма этого списка управляет и выбором контракта, и ролловером.
func (s *InstrumentStore) ListActiveFutures(ctx context.Context, tx db.Transaction, name string, now time.Time) (res []models.Instrument, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("InstrumentStore.ListActiveFutures: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT instrument_token, tradingsymbol, name, expiry_date, lot_size, exchange, segment, instrument_type, created_at
		FROM instruments
		WHERE name = $1 AND instrument_type = 'FUT' AND expiry_date >= $2
		ORDER BY expiry_date ASC`, name, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Instrument
		if err = rows.Scan(&r.InstrumentToken, &r.Tradingsymbol, &r.Name, &r.ExpiryDate, &r.LotSize, &r.Exchange, &r.Segment, &r.InstrumentType, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// PreviousTradingDay — последний торговый день до from: шагаем назад,
// пропуская выходные и строки market_holidays.
func (s *InstrumentStore) PreviousTradingDay(ctx context.Context, tx db.Transaction, from time.Time) (day string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("InstrumentStore.PreviousTradingDay: %w", err)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT holiday_date FROM market_holidays
		WHERE holiday_date >= $1::date - INTERVAL '30 days' AND holiday_date < $1::date`, from)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	holidays := map[string]bool{}
	for rows.Next() {
		var d time.Time
		if err = rows.Scan(&d); err != nil {
			return "", err
		}
		holidays[helper.DateStr(d)] = true
	}
	if err = rows.Err(); err != nil {
		return "", err
	}

	d := helper.ToIST(from)
	for i := 0; i < 30; i++ {
		d = d.AddDate(0, 0, -1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if holidays[helper.DateStr(d)] {
			continue
		}
		return helper.DateStr(d), nil
	}
	return "", fmt.Errorf("no trading day in the last 30 days before %s", helper.DateStr(from))
}
