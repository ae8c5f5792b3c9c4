package service

import (
	"fmt"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"

	"github.com/shopspring/decimal"
)

// NeedsRollover — пора ли перекатывать позицию: открыта, час переката,
// в справочнике ровно два живых контракта и держим ближайший (истекающий).
func NeedsRollover(st models.ChaseState, actives []models.Instrument, now time.Time, rolloverHour int) bool {
	return st.Status.InPosition() &&
		helper.ToIST(now).Hour() == rolloverHour &&
		len(actives) == 2 &&
		actives[0].Tradingsymbol == st.Tradingsymbol
}

// Rollover переносит позицию в следующий контракт: та же сторона и размер,
// стоп переякоривается на EMA нового контракта, entry_point — его последний
// close. В журнал — закрытие старой ноги и открытие новой.
// closePrice — цена, по которой реально закрылась старая нога (LTP).
func (m *Machine) Rollover(
	st models.ChaseState,
	next models.Snapshot,
	closePrice float64,
	now time.Time,
) Outcome {
	out := st
	out.Tradingsymbol = next.Tradingsymbol
	out.InstrumentToken = next.InstrumentToken
	out.Stoploss = next.EMA
	out.EntryPoint = next.LastClose
	out.CreatedAt = now
	out.SignalBreachingTolerance = false

	side := entrySide(st.Status)
	return Outcome{
		State:   out,
		Changed: true,
		Signal:  SignalRollover,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentRollover,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			NewSymbol:       next.Tradingsymbol,
			Side:            side,
			Stoploss:        next.EMA,
		}},
		Logs: []models.ChaseLogEntry{
			{
				Tradingsymbol:   st.Tradingsymbol,
				TransactionType: exitSide(st.Status),
				AveragePrice:    decimal.NewFromFloat(closePrice),
				CreatedAt:       now,
			},
			{
				Tradingsymbol:   next.Tradingsymbol,
				TransactionType: side,
				AveragePrice:    decimal.NewFromFloat(next.LastClose),
				CreatedAt:       now,
			},
		},
		Notes: []string{fmt.Sprintf(
			"Rollover %s -> %s, stoploss %.0f", st.Tradingsymbol, next.Tradingsymbol, next.EMA)},
	}
}
