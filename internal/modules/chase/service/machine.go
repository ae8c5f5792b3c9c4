package service

import (
	"fmt"
	"math"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/internal/modules/config"

	"github.com/shopspring/decimal"
)

// Теги исхода тика, уходят в HTTP-ответ.
const (
	SignalNone        = "NO_ACTION"
	SignalAwaiting    = "AWAITING_ENTRY"
	SignalUpdatedSL   = "UPDATED_SL"
	SignalTransaction = "TRANSACTION_ALERT"
	SignalInvalidated = "SIGNAL_INVALIDATED"
	SignalRollover    = "ROLLOVER"
)

// Outcome — результат чистой оценки тика: новое состояние, намерения для
// gateway, записи журнала и тексты уведомлений. Changed=false — состояние
// не трогаем вообще.
type Outcome struct {
	State   models.ChaseState
	Changed bool
	Signal  string
	Intents []models.OrderIntent
	Logs    []models.ChaseLogEntry
	Notes   []string
}

func unchanged(st models.ChaseState) Outcome {
	return Outcome{State: st, Signal: SignalNone}
}

// Machine — машина состояний чейза. Все методы чистые: вход — состояние
// и срез индикатора (или свечи), выход — Outcome. Ни базы, ни брокера.
type Machine struct {
	bands         Bands
	eodCancelHour int
}

func NewMachine(cfg *config.Config) *Machine {
	return &Machine{
		bands: Bands{
			Entry: cfg.Chase.EntryTolerance,
			Trail: cfg.Chase.TrailTolerance,
		},
		eodCancelHour: cfg.Chase.EODCancelHour,
	}
}

// EvaluateIndicator — переход на часовом (индикаторном) тике.
// prevTradingDay — предыдущий торговый день, YYYY-MM-DD.
func (m *Machine) EvaluateIndicator(
	st models.ChaseState,
	sn models.Snapshot,
	now time.Time,
	prevTradingDay string,
) Outcome {
	switch st.Status {
	case models.StatusAwaitingSignal:
		return m.evalAwaitingSignal(st, sn, now)
	case models.StatusAwaitingLong, models.StatusAwaitingShort:
		return m.evalAwaitingFill(st, sn, now)
	case models.StatusLong, models.StatusShort:
		return m.evalInPosition(st, sn, now, prevTradingDay)
	}
	return unchanged(st)
}

func (m *Machine) evalAwaitingSignal(st models.ChaseState, sn models.Snapshot, now time.Time) Outcome {
	switch {
	case sn.LastClose > m.bands.EntryUpper(sn.EMA):
		stop := helper.RoundPrice(math.Min(sn.EMA, sn.LowestLow))
		next := st
		next.Status = models.StatusAwaitingLong
		next.Tradingsymbol = sn.Tradingsymbol
		next.InstrumentToken = sn.InstrumentToken
		next.EntryPoint = sn.HighestHigh
		next.Stoploss = stop
		next.CreatedAt = now
		next.SignalBreachingTolerance = false
		return Outcome{
			State:   next,
			Changed: true,
			Signal:  SignalAwaiting,
			Intents: []models.OrderIntent{{
				Kind:            models.IntentPlaceEntry,
				Tradingsymbol:   sn.Tradingsymbol,
				InstrumentToken: sn.InstrumentToken,
				Side:            models.TransactionBuy,
				TriggerPrice:    sn.HighestHigh,
				Stoploss:        stop,
			}},
			Notes: []string{fmt.Sprintf(
				"Chase is AWAITING_LONG. Enter on crossing %.0f for %s, stoploss %.0f",
				sn.HighestHigh, sn.Tradingsymbol, stop)},
		}

	case sn.LastClose < m.bands.EntryLower(sn.EMA):
		stop := helper.RoundPrice(math.Max(sn.EMA, sn.HighestHigh))
		next := st
		next.Status = models.StatusAwaitingShort
		next.Tradingsymbol = sn.Tradingsymbol
		next.InstrumentToken = sn.InstrumentToken
		next.EntryPoint = sn.LowestLow
		next.Stoploss = stop
		next.CreatedAt = now
		next.SignalBreachingTolerance = false
		return Outcome{
			State:   next,
			Changed: true,
			Signal:  SignalAwaiting,
			Intents: []models.OrderIntent{{
				Kind:            models.IntentPlaceEntry,
				Tradingsymbol:   sn.Tradingsymbol,
				InstrumentToken: sn.InstrumentToken,
				Side:            models.TransactionSell,
				TriggerPrice:    sn.LowestLow,
				Stoploss:        stop,
			}},
			Notes: []string{fmt.Sprintf(
				"Chase is AWAITING_SHORT. Enter on crossing %.0f for %s, stoploss %.0f",
				sn.LowestLow, sn.Tradingsymbol, stop)},
		}
	}

	out := unchanged(st)
	out.Notes = []string{"Entry signal not found. Chase is AwaitingSignal"}
	return out
}

// evalAwaitingFill валидирует висящий сигнал: close ушёл за стоп либо уже
// был за противоположной входной полосой на прошлом тике — сигнал снимается.
// Первый заход за полосу только взводит флаг: одна «свеча прощения».
// Конец дня снимает сигнал безусловно, раньше всех остальных проверок.
func (m *Machine) evalAwaitingFill(st models.ChaseState, sn models.Snapshot, now time.Time) Outcome {
	if helper.ToIST(now).Hour() >= m.eodCancelHour {
		return m.cancelSignal(st, now, SignalInvalidated,
			"Cancelling the signal: end of day. Chase is now AwaitingSignal")
	}

	long := st.Status == models.StatusAwaitingLong

	invalid := (long && (sn.LastClose < st.Stoploss || st.SignalBreachingTolerance)) ||
		(!long && (sn.LastClose > st.Stoploss || st.SignalBreachingTolerance))
	if invalid {
		return m.cancelSignal(st, now, SignalInvalidated,
			"Signal Invalid. Chase is now AwaitingSignal")
	}

	breaching := (long && sn.LastClose < m.bands.EntryLower(sn.EMA)) ||
		(!long && sn.LastClose > m.bands.EntryUpper(sn.EMA))
	if breaching {
		next := st
		next.SignalBreachingTolerance = true
		return Outcome{State: next, Changed: true, Signal: SignalNone}
	}
	return unchanged(st)
}

func (m *Machine) cancelSignal(st models.ChaseState, now time.Time, signal, note string) Outcome {
	next := st
	next.Status = models.StatusAwaitingSignal
	next.CreatedAt = now
	next.SignalBreachingTolerance = false
	return Outcome{
		State:   next,
		Changed: true,
		Signal:  signal,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentCancelEntry,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			Side:            entrySide(st.Status),
		}},
		Notes: []string{note},
	}
}

// evalInPosition тянет стоп за рынком. Позиция, открытая сегодня, не
// трогается. Открытая в предыдущий торговый день идёт по зонам относительно
// трейлинговых границ; более старая — переякоривается на EMA. Кандидат
// применяется только если подтягивает стоп к цене: стоп лонга не опускается,
// стоп шорта не поднимается.
func (m *Machine) evalInPosition(st models.ChaseState, sn models.Snapshot, now time.Time, prevTradingDay string) Outcome {
	if helper.SameISTDate(st.CreatedAt, helper.DateStr(now)) {
		return unchanged(st)
	}

	long := st.Status == models.StatusLong

	if !helper.SameISTDate(st.CreatedAt, prevTradingDay) {
		var candidate float64
		if long {
			candidate = math.Max(sn.EMA, st.Stoploss)
		} else {
			candidate = math.Min(sn.EMA, st.Stoploss)
		}
		return m.tightenStop(st, candidate)
	}

	trailUpper := m.bands.TrailUpper(sn.EMA)
	trailLower := m.bands.TrailLower(sn.EMA)

	if long {
		switch {
		case sn.LastClose > trailUpper:
			return m.tightenStop(st, sn.EMA)
		case sn.EMA < sn.LastClose && sn.LastClose < trailUpper:
			return m.tightenStop(st, helper.RoundPrice((sn.LowestLow+sn.EMA)/2))
		case trailLower < sn.LastClose && sn.LastClose < sn.EMA:
			return m.tightenStop(st, sn.LowestLow)
		case sn.LastClose < trailLower:
			return m.exitPosition(st, now, sn.LastClose)
		}
		return unchanged(st)
	}

	switch {
	case sn.LastClose < trailLower:
		return m.tightenStop(st, sn.EMA)
	case trailLower < sn.LastClose && sn.LastClose < sn.EMA:
		return m.tightenStop(st, helper.RoundPrice((sn.HighestHigh+sn.EMA)/2))
	case sn.EMA < sn.LastClose && sn.LastClose < trailUpper:
		return m.tightenStop(st, sn.HighestHigh)
	case sn.LastClose > trailUpper:
		return m.exitPosition(st, now, sn.LastClose)
	}
	return unchanged(st)
}

func (m *Machine) tightenStop(st models.ChaseState, candidate float64) Outcome {
	long := st.Status == models.StatusLong
	if (long && candidate <= st.Stoploss) || (!long && candidate >= st.Stoploss) {
		return unchanged(st)
	}

	next := st
	next.Stoploss = candidate
	next.SignalBreachingTolerance = false
	return Outcome{
		State:   next,
		Changed: true,
		Signal:  SignalUpdatedSL,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentPlaceOrModifyStop,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			Side:            exitSide(st.Status),
			TriggerPrice:    candidate,
		}},
		Notes: []string{fmt.Sprintf("Update SL for %s to %.0f", st.Tradingsymbol, candidate)},
	}
}

func (m *Machine) exitPosition(st models.ChaseState, now time.Time, price float64) Outcome {
	next := st
	next.Status = models.StatusAwaitingSignal
	next.CreatedAt = now
	next.SignalBreachingTolerance = false
	return Outcome{
		State:   next,
		Changed: true,
		Signal:  SignalTransaction,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentExitMarket,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			Side:            exitSide(st.Status),
		}},
		Logs: []models.ChaseLogEntry{{
			Tradingsymbol:   st.Tradingsymbol,
			TransactionType: exitSide(st.Status),
			AveragePrice:    decimal.NewFromFloat(price),
			CreatedAt:       now,
		}},
		Notes: []string{fmt.Sprintf("Exit %s at CMP", st.Tradingsymbol)},
	}
}

// EvaluateFast — переход на быстром (двухминутном) тике: пробой стопа либо
// исполнение отложенного входа. Свечи в хронологическом порядке, срабатывает
// первое событие.
func (m *Machine) EvaluateFast(st models.ChaseState, candles []models.Candle, now time.Time) Outcome {
	for _, c := range candles {
		switch {
		case st.Status == models.StatusLong && c.Low < st.Stoploss:
			return m.stopBreached(st, now, "exit_long")
		case st.Status == models.StatusShort && c.High > st.Stoploss:
			return m.stopBreached(st, now, "exit_short")
		case st.Status == models.StatusAwaitingLong && c.High > st.EntryPoint:
			return m.entryFilled(st, now, models.StatusLong)
		case st.Status == models.StatusAwaitingShort && c.Low < st.EntryPoint:
			return m.entryFilled(st, now, models.StatusShort)
		}
	}
	return unchanged(st)
}

// stopBreached: защитный стоп у брокера уже сработал сам, здесь только
// зеркалим факт в состоянии. Gateway контрольно убеждается, что позиции нет.
func (m *Machine) stopBreached(st models.ChaseState, now time.Time, tag string) Outcome {
	next := st
	next.Status = models.StatusAwaitingSignal
	next.CreatedAt = now
	next.SignalBreachingTolerance = false
	return Outcome{
		State:   next,
		Changed: true,
		Signal:  SignalTransaction,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentExitMarket,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			Side:            exitSide(st.Status),
		}},
		Logs: []models.ChaseLogEntry{{
			Tradingsymbol:   st.Tradingsymbol,
			TransactionType: exitSide(st.Status),
			AveragePrice:    decimal.NewFromFloat(st.Stoploss),
			CreatedAt:       now,
		}},
		Notes: []string{fmt.Sprintf("Transaction alert %s. Chase is now AwaitingSignal", tag)},
	}
}

func (m *Machine) entryFilled(st models.ChaseState, now time.Time, status models.Status) Outcome {
	next := st
	next.Status = status
	next.CreatedAt = now
	next.SignalBreachingTolerance = false

	tag := "enter_long"
	if status == models.StatusShort {
		tag = "enter_short"
	}
	return Outcome{
		State:   next,
		Changed: true,
		Signal:  SignalTransaction,
		Intents: []models.OrderIntent{{
			Kind:            models.IntentPlaceOrModifyStop,
			Tradingsymbol:   st.Tradingsymbol,
			InstrumentToken: st.InstrumentToken,
			Side:            exitSide(status),
			TriggerPrice:    st.Stoploss,
		}},
		Logs: []models.ChaseLogEntry{{
			Tradingsymbol:   st.Tradingsymbol,
			TransactionType: entrySide(st.Status),
			AveragePrice:    decimal.NewFromFloat(st.EntryPoint),
			CreatedAt:       now,
		}},
		Notes: []string{fmt.Sprintf("Transaction alert %s. Chase is now %s", tag, status)},
	}
}

// entrySide — сторона открытия для статуса (или его ожидания).
func entrySide(s models.Status) models.TransactionType {
	if s == models.StatusAwaitingShort || s == models.StatusShort {
		return models.TransactionSell
	}
	return models.TransactionBuy
}

// exitSide — сторона закрытия/защитного стопа.
func exitSide(s models.Status) models.TransactionType {
	if s == models.StatusAwaitingShort || s == models.StatusShort {
		return models.TransactionBuy
	}
	return models.TransactionSell
}
