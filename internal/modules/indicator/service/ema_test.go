package service

import (
	"testing"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleAt(t time.Time, h, l, c float64) models.Candle {
	return models.Candle{Timestamp: t, Open: c, High: h, Low: l, Close: c, Volume: 1}
}

// flatCandle — свеча с типичной ценой ровно v.
func flatCandle(t time.Time, v float64) models.Candle {
	return candleAt(t, v, v, v)
}

func TestComputeFlatSeries(t *testing.T) {
	// серия из одинаковых типичных цен: EMA обязана совпасть с ценой
	day := time.Date(2026, 8, 31, 9, 15, 0, 0, helper.IST())
	candles := make([]models.Candle, 0, 45)
	for i := 0; i < 45; i++ {
		candles = append(candles, flatCandle(day.Add(time.Duration(i)*time.Hour), 500))
	}

	sn, err := Compute(candles, 40, helper.DateStr(day), 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, sn.EMA)
	assert.Equal(t, 500.0, sn.HighestHigh)
	assert.Equal(t, 500.0, sn.LowestLow)
	assert.Equal(t, 500.0, sn.LastClose)
}

func TestComputeTrendingSeries(t *testing.T) {
	// 45 типичных цен 100, 102, ... 188: SMA первых сорока = 139,
	// дальше пять шагов рекурсии с k=2/41 дают ровно 149
	day := time.Date(2026, 8, 31, 9, 15, 0, 0, helper.IST())
	candles := make([]models.Candle, 0, 45)
	for i := 0; i < 45; i++ {
		v := float64(100 + 2*i)
		candles = append(candles, candleAt(day.Add(time.Duration(i)*time.Minute), v+5, v-5, v))
	}

	sn, err := Compute(candles, 40, helper.DateStr(day), 0)
	require.NoError(t, err)
	assert.Equal(t, 149.0, sn.EMA)
	assert.Equal(t, 193.0, sn.HighestHigh) // 188+5
	assert.Equal(t, 95.0, sn.LowestLow)    // 100-5
	assert.Equal(t, 188.0, sn.LastClose)
}

func TestEmaSeriesSeededContinuation(t *testing.T) {
	// полный прогон по 46 значениям обязан совпасть с одним шагом
	// от EMA первых 45 — иначе затравка от прошлого расчёта врёт
	typicals := make([]float64, 0, 46)
	for i := 0; i < 46; i++ {
		typicals = append(typicals, float64(100+2*i))
	}

	ema45, err := emaSeries(typicals[:45], 40)
	require.NoError(t, err)
	assert.InDelta(t, 149.0, ema45, 1e-9)

	ema46, err := emaSeries(typicals, 40)
	require.NoError(t, err)
	assert.InDelta(t, ema46, emaStep(ema45, typicals[45], 40), 1e-9)
	assert.InDelta(t, 151.0, ema46, 1e-9)
}

func TestComputeSeededStep(t *testing.T) {
	// один шаг от затравки: 100 + (141-100)*2/41 = 102 ровно
	now := time.Date(2026, 8, 31, 10, 15, 0, 0, helper.IST())
	candles := []models.Candle{
		flatCandle(now.Add(-time.Hour), 100),
		flatCandle(now, 141),
	}

	sn, err := Compute(candles, 40, helper.DateStr(now), 100)
	require.NoError(t, err)
	assert.Equal(t, 102.0, sn.EMA)
}

func TestComputeSessionAggregates(t *testing.T) {
	yesterday := time.Date(2026, 8, 28, 14, 15, 0, 0, helper.IST())
	today := time.Date(2026, 8, 31, 9, 15, 0, 0, helper.IST())

	candles := []models.Candle{
		// вчерашние экстремумы не должны попасть в сессионные агрегаты
		candleAt(yesterday, 9999, 1, 500),
		candleAt(today, 510, 490, 505),
		candleAt(today.Add(time.Hour), 520, 495, 515),
		candleAt(today.Add(2*time.Hour), 512, 480, 488),
	}

	sn, err := Compute(candles, 40, helper.DateStr(today), 500)
	require.NoError(t, err)
	assert.Equal(t, 520.0, sn.HighestHigh)
	assert.Equal(t, 480.0, sn.LowestLow)
	assert.Equal(t, 488.0, sn.LastClose)
}

func TestComputeNoSessionCandles(t *testing.T) {
	yesterday := time.Date(2026, 8, 28, 14, 15, 0, 0, helper.IST())
	candles := []models.Candle{flatCandle(yesterday, 100)}

	_, err := Compute(candles, 40, "2026-08-31", 100)
	assert.ErrorIs(t, err, ErrNoSessionCandles)

	_, err = Compute(nil, 40, "2026-08-31", 0)
	assert.ErrorIs(t, err, ErrNoSessionCandles)
}

func TestComputeNotEnoughCandles(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 15, 0, 0, helper.IST())
	candles := []models.Candle{flatCandle(now, 100), flatCandle(now.Add(time.Hour), 101)}

	// без затравки двух свечей для периода 40 мало
	_, err := Compute(candles, 40, helper.DateStr(now), 0)
	assert.ErrorIs(t, err, ErrNotEnoughCandles)

	// с затравкой — достаточно одного шага
	_, err = Compute(candles, 40, helper.DateStr(now), 100)
	assert.NoError(t, err)
}

func TestComputeRoundsPrices(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 15, 0, 0, helper.IST())
	candles := []models.Candle{candleAt(now, 100.6, 99.4, 100.2)}

	sn, err := Compute(candles, 40, helper.DateStr(now), 100)
	require.NoError(t, err)
	assert.Equal(t, sn.EMA, float64(int64(sn.EMA)))
	assert.Equal(t, 101.0, sn.HighestHigh)
	assert.Equal(t, 99.0, sn.LowestLow)
	assert.Equal(t, 100.0, sn.LastClose)
}
