package service

import (
	"testing"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/internal/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMachine() *Machine {
	cfg := &config.Config{}
	cfg.Chase = config.ChaseConfig{
		EntryTolerance: 0.02,
		TrailTolerance: 0.004,
		EODCancelHour:  15,
	}
	return NewMachine(cfg)
}

// 2026-08-31 — понедельник, 2026-08-28 — предыдущий торговый день (пятница).
var (
	tickTime = time.Date(2026, 8, 31, 10, 15, 0, 0, helper.IST())
	prevDay  = "2026-08-28"
	today    = "2026-08-31"
)

func snapshot(ema, hh, ll, lc float64) models.Snapshot {
	return models.Snapshot{
		Tradingsymbol:   "NIFTY26SEPFUT",
		InstrumentToken: 101,
		EMA:             ema,
		HighestHigh:     hh,
		LowestLow:       ll,
		LastClose:       lc,
	}
}

func istDay(date string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", date, helper.IST())
	return t.Add(11 * time.Hour)
}

func TestAwaitingSignalLongEntry(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{Status: models.StatusAwaitingSignal}
	sn := snapshot(1000, 1030, 995, 1021) // close выше 1020 = 1.02*ema

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingLong, out.State.Status)
	assert.Equal(t, 1030.0, out.State.EntryPoint)
	assert.Equal(t, 995.0, out.State.Stoploss) // min(ema, lowestLow)
	assert.Equal(t, "NIFTY26SEPFUT", out.State.Tradingsymbol)
	assert.False(t, out.State.SignalBreachingTolerance)

	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentPlaceEntry, out.Intents[0].Kind)
	assert.Equal(t, models.TransactionBuy, out.Intents[0].Side)
	assert.Equal(t, 1030.0, out.Intents[0].TriggerPrice)
	assert.Equal(t, int64(101), out.Intents[0].InstrumentToken)
}

func TestAwaitingSignalEntryAtFractionalBand(t *testing.T) {
	// полоса 1.02*20025 = 20425.5 не округляется: целый close 20426
	// обязан дать сигнал, округлённая граница 20426 съела бы его
	m := testMachine()
	st := models.ChaseState{Status: models.StatusAwaitingSignal}
	sn := snapshot(20025, 20500, 20010, 20426)

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingLong, out.State.Status)
}

func TestAwaitingSignalShortEntry(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{Status: models.StatusAwaitingSignal}
	sn := snapshot(1000, 1012, 965, 979) // close ниже 980 = 0.98*ema

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingShort, out.State.Status)
	assert.Equal(t, 965.0, out.State.EntryPoint)
	assert.Equal(t, 1012.0, out.State.Stoploss) // max(ema, highestHigh)

	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.TransactionSell, out.Intents[0].Side)
}

func TestAwaitingSignalNoEntry(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{Status: models.StatusAwaitingSignal}
	sn := snapshot(1000, 1015, 990, 1005) // внутри входных полос

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	assert.False(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
	assert.Empty(t, out.Intents)
}

func TestAwaitingLongInvalidatedBelowStop(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:     models.StatusAwaitingLong,
		Stoploss:   995,
		EntryPoint: 1030,
		CreatedAt:  istDay(today),
	}
	sn := snapshot(1000, 1030, 990, 994)

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentCancelEntry, out.Intents[0].Kind)
}

func TestAwaitingLongBreachGraceThenInvalidated(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:     models.StatusAwaitingLong,
		Stoploss:   900,
		EntryPoint: 1030,
		CreatedAt:  istDay(today),
	}
	// close упал за нижнюю входную полосу (980), но ещё выше стопа:
	// первый тик — только флаг
	sn := snapshot(1000, 1030, 970, 975)

	out := m.EvaluateIndicator(st, sn, tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingLong, out.State.Status)
	assert.True(t, out.State.SignalBreachingTolerance)
	assert.Empty(t, out.Intents)

	// второй тик с взведённым флагом — инвалидация
	out2 := m.EvaluateIndicator(out.State, sn, tickTime.Add(time.Hour), prevDay)
	require.True(t, out2.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out2.State.Status)
	assert.False(t, out2.State.SignalBreachingTolerance)
}

func TestAwaitingShortEODCancel(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:     models.StatusAwaitingShort,
		Stoploss:   1012,
		EntryPoint: 965,
		CreatedAt:  istDay(today),
	}
	sn := snapshot(1000, 1012, 965, 1000) // сигнал жив, но конец дня

	eod := time.Date(2026, 8, 31, 15, 5, 0, 0, helper.IST())
	out := m.EvaluateIndicator(st, sn, eod, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentCancelEntry, out.Intents[0].Kind)
}

func TestAwaitingEODCancelBeatsBreachFlag(t *testing.T) {
	// после часа отсечки сигнал снимается сразу, даже если close за
	// противоположной полосой только первый раз (флаг не взводится)
	m := testMachine()
	st := models.ChaseState{
		Status:     models.StatusAwaitingLong,
		Stoploss:   900,
		EntryPoint: 1030,
		CreatedAt:  istDay(today),
	}
	sn := snapshot(1000, 1030, 970, 975) // за нижней полосой, но выше стопа

	eod := time.Date(2026, 8, 31, 15, 5, 0, 0, helper.IST())
	out := m.EvaluateIndicator(st, sn, eod, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
	assert.False(t, out.State.SignalBreachingTolerance)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentCancelEntry, out.Intents[0].Kind)
}

func TestLongTrailingZones(t *testing.T) {
	m := testMachine()
	base := models.ChaseState{
		Status:        models.StatusLong,
		Tradingsymbol: "NIFTY26SEPFUT",
		Stoploss:      950,
		CreatedAt:     istDay(prevDay),
	}

	tests := []struct {
		name      string
		lastClose float64
		wantStop  float64
		wantExit  bool
	}{
		{"close above trail upper pins stop to ema", 1005, 1000, false},
		{"close between ema and trail upper averages low and ema", 1002, 985, false}, // (970+1000)/2
		{"close between trail lower and ema uses lowest low", 998, 970, false},
		{"close below trail lower exits at market", 990, 950, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sn := snapshot(1000, 1020, 970, tt.lastClose)
			out := m.EvaluateIndicator(base, sn, tickTime, prevDay)
			require.True(t, out.Changed)
			if tt.wantExit {
				assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
				require.Len(t, out.Intents, 1)
				assert.Equal(t, models.IntentExitMarket, out.Intents[0].Kind)
				require.Len(t, out.Logs, 1)
				assert.Equal(t, models.TransactionSell, out.Logs[0].TransactionType)
				return
			}
			assert.Equal(t, models.StatusLong, out.State.Status)
			assert.Equal(t, tt.wantStop, out.State.Stoploss)
			require.Len(t, out.Intents, 1)
			assert.Equal(t, models.IntentPlaceOrModifyStop, out.Intents[0].Kind)
			assert.Equal(t, models.TransactionSell, out.Intents[0].Side)
		})
	}
}

func TestShortTrailingZones(t *testing.T) {
	m := testMachine()
	base := models.ChaseState{
		Status:        models.StatusShort,
		Tradingsymbol: "NIFTY26SEPFUT",
		Stoploss:      1050,
		CreatedAt:     istDay(prevDay),
	}

	tests := []struct {
		name      string
		lastClose float64
		wantStop  float64
		wantExit  bool
	}{
		{"close below trail lower pins stop to ema", 995, 1000, false},
		{"close between trail lower and ema averages high and ema", 998, 1015, false}, // (1030+1000)/2
		{"close between ema and trail upper uses highest high", 1002, 1030, false},
		{"close above trail upper exits at market", 1010, 1050, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sn := snapshot(1000, 1030, 980, tt.lastClose)
			out := m.EvaluateIndicator(base, sn, tickTime, prevDay)
			require.True(t, out.Changed)
			if tt.wantExit {
				assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
				require.Len(t, out.Intents, 1)
				assert.Equal(t, models.IntentExitMarket, out.Intents[0].Kind)
				return
			}
			assert.Equal(t, models.StatusShort, out.State.Status)
			assert.Equal(t, tt.wantStop, out.State.Stoploss)
		})
	}
}

func TestStopNeverLoosens(t *testing.T) {
	m := testMachine()

	// лонг: кандидат ema=1000 ниже текущего стопа 1003 — без изменений
	long := models.ChaseState{Status: models.StatusLong, Stoploss: 1003, CreatedAt: istDay(prevDay)}
	out := m.EvaluateIndicator(long, snapshot(1000, 1020, 970, 1005), tickTime, prevDay)
	assert.False(t, out.Changed)
	assert.Equal(t, 1003.0, out.State.Stoploss)

	// шорт: кандидат ema=1000 выше текущего стопа 997 — без изменений
	short := models.ChaseState{Status: models.StatusShort, Stoploss: 997, CreatedAt: istDay(prevDay)}
	out = m.EvaluateIndicator(short, snapshot(1000, 1030, 980, 995), tickTime, prevDay)
	assert.False(t, out.Changed)
}

func TestOpenedTodayNotTrailed(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{Status: models.StatusLong, Stoploss: 950, CreatedAt: istDay(today)}

	out := m.EvaluateIndicator(st, snapshot(1000, 1020, 970, 1005), tickTime, prevDay)
	assert.False(t, out.Changed)
}

func TestStaleLongReanchorsToEMA(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:    models.StatusLong,
		Stoploss:  950,
		CreatedAt: istDay("2026-08-25"), // ни сегодня, ни предыдущий торговый день
	}

	out := m.EvaluateIndicator(st, snapshot(1000, 1020, 970, 1005), tickTime, prevDay)
	require.True(t, out.Changed)
	assert.Equal(t, 1000.0, out.State.Stoploss)

	// стоп выше EMA остаётся на месте: переякоривание не ослабляет
	st.Stoploss = 1010
	out = m.EvaluateIndicator(st, snapshot(1000, 1020, 970, 1005), tickTime, prevDay)
	assert.False(t, out.Changed)
}

func TestFastTickEntryFill(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:        models.StatusAwaitingLong,
		Tradingsymbol: "NIFTY26SEPFUT",
		Stoploss:      995,
		EntryPoint:    1030,
		CreatedAt:     istDay(today),
	}
	candles := []models.Candle{
		{Timestamp: tickTime, High: 1028, Low: 1020, Close: 1025},
		{Timestamp: tickTime.Add(2 * time.Minute), High: 1031, Low: 1024, Close: 1030},
	}

	out := m.EvaluateFast(st, candles, tickTime)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusLong, out.State.Status)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentPlaceOrModifyStop, out.Intents[0].Kind)
	assert.Equal(t, models.TransactionSell, out.Intents[0].Side)
	assert.Equal(t, 995.0, out.Intents[0].TriggerPrice)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, models.TransactionBuy, out.Logs[0].TransactionType)
}

func TestFastTickStopBreach(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:        models.StatusShort,
		Tradingsymbol: "NIFTY26SEPFUT",
		Stoploss:      1012,
		CreatedAt:     istDay(today),
	}
	candles := []models.Candle{
		{Timestamp: tickTime, High: 1013, Low: 1005, Close: 1010},
	}

	out := m.EvaluateFast(st, candles, tickTime)
	require.True(t, out.Changed)
	assert.Equal(t, models.StatusAwaitingSignal, out.State.Status)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, models.IntentExitMarket, out.Intents[0].Kind)
	assert.Equal(t, models.TransactionBuy, out.Intents[0].Side)
	require.Len(t, out.Logs, 1)
	assert.Equal(t, 1012.0, out.Logs[0].AveragePrice.InexactFloat64())
}

func TestFastTickNoEvent(t *testing.T) {
	m := testMachine()
	st := models.ChaseState{
		Status:     models.StatusLong,
		Stoploss:   995,
		EntryPoint: 1030,
		CreatedAt:  istDay(today),
	}
	candles := []models.Candle{
		{Timestamp: tickTime, High: 1010, Low: 1000, Close: 1005},
	}

	out := m.EvaluateFast(st, candles, tickTime)
	assert.False(t, out.Changed)
	assert.Empty(t, out.Intents)
}
