package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chase_bot/internal/models"
	"chase_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// ErrStaleState — CAS по last_modified_at не прошёл: строку успел изменить
// параллельный тик. Вызывающий просто завершает тик, следующий прочитает свежее.
var ErrStaleState = errors.New("chase state modified concurrently")

// ChaseStateStore — singleton-строка chase_status (id=1).
type ChaseStateStore struct{}

func NewChaseStateStore() *ChaseStateStore {
	return &ChaseStateStore{}
}

func (s *ChaseStateStore) Get(ctx context.Context, tx db.Transaction) (st *models.ChaseState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("ChaseStateStore.Get: %w", err)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT current_status, tradingsymbol, instrument_token, stoploss, entry_point,
		       created_at, last_modified_at, is_signal_breaching_tolerance
		FROM chase_status WHERE id = 1`)

	st = &models.ChaseState{}
	err = row.Scan(
		&st.Status, &st.Tradingsymbol, &st.InstrumentToken, &st.Stoploss, &st.EntryPoint,
		&st.CreatedAt, &st.LastModifiedAt, &st.SignalBreachingTolerance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("chase_status row is missing")
		}
		return nil, err
	}
	return st, nil
}

// Patch — частичное обновление; nil-поля не трогаются.
type Patch struct {
	Status                   *models.Status
	Tradingsymbol            *string
	InstrumentToken          *int64
	Stoploss                 *float64
	EntryPoint               *float64
	CreatedAt                *time.Time
	SignalBreachingTolerance *bool
}

// Update применяет патч к единственной строке с CAS-защитой: запись проходит
// только если last_modified_at не изменился с момента чтения.
func (s *ChaseStateStore) Update(
	ctx context.Context,
	tx db.Transaction,
	p Patch,
	expectedLastModified time.Time,
	now time.Time,
) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("ChaseStateStore.Update: %w", err)
		}
	}()

	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}

	if p.Status != nil {
		add("current_status", *p.Status)
	}
	if p.Tradingsymbol != nil {
		add("tradingsymbol", *p.Tradingsymbol)
	}
	if p.InstrumentToken != nil {
		add("instrument_token", *p.InstrumentToken)
	}
	if p.Stoploss != nil {
		add("stoploss", *p.Stoploss)
	}
	if p.EntryPoint != nil {
		add("entry_point", *p.EntryPoint)
	}
	if p.CreatedAt != nil {
		add("created_at", *p.CreatedAt)
	}
	if p.SignalBreachingTolerance != nil {
		add("is_signal_breaching_tolerance", *p.SignalBreachingTolerance)
	}
	add("last_modified_at", now)

	args = append(args, expectedLastModified)
	query := "UPDATE chase_status SET " + strings.Join(sets, ", ") +
		" WHERE id = 1 AND last_modified_at = $" + strconv.Itoa(len(args))

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
