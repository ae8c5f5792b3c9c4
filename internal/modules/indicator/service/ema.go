package service

import (
	"errors"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
)

var (
	// ErrNoSessionCandles — в серии нет ни одной свечи текущей сессии,
	// сессионные агрегаты посчитать нельзя.
	ErrNoSessionCandles = errors.New("no candles for current session")
	// ErrNotEnoughCandles — серия короче периода, а затравки от прошлого
	// расчёта нет.
	ErrNotEnoughCandles = errors.New("not enough candles for ema")
)

// emaSeries — EMA по всей серии: SMA первых period значений как затравка,
// дальше рекурсия с k = 2/(period+1).
func emaSeries(values []float64, period int) (float64, error) {
	if len(values) < period {
		return 0, ErrNotEnoughCandles
	}
	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)
	for _, v := range values[period:] {
		ema = emaStep(ema, v, period)
	}
	return ema, nil
}

// emaStep — один шаг рекурсии от предыдущего значения.
func emaStep(prev, value float64, period int) float64 {
	k := 2 / float64(period+1)
	return value*k + prev*(1-k)
}

// Compute считает срез индикатора по серии свечей: EMA типичной цены по
// всему окну и агрегаты текущей сессии (high/low/последний close).
// prevEMA > 0 — затравка от прошлого расчёта: вместо полного прогона
// делается один шаг от неё по последней свече. Все цены округлены до целого.
func Compute(candles []models.Candle, period int, today string, prevEMA float64) (models.Snapshot, error) {
	if len(candles) == 0 {
		return models.Snapshot{}, ErrNoSessionCandles
	}

	var (
		high, low, lastClose float64
		inSession            bool
	)
	for _, c := range candles {
		if !helper.SameISTDate(c.Timestamp, today) {
			continue
		}
		if !inSession {
			high, low = c.High, c.Low
			inSession = true
		} else {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}
		lastClose = c.Close
	}
	if !inSession {
		return models.Snapshot{}, ErrNoSessionCandles
	}

	var (
		ema float64
		err error
	)
	if prevEMA > 0 {
		ema = emaStep(prevEMA, candles[len(candles)-1].Typical(), period)
	} else {
		typicals := make([]float64, len(candles))
		for i, c := range candles {
			typicals[i] = c.Typical()
		}
		ema, err = emaSeries(typicals, period)
		if err != nil {
			return models.Snapshot{}, err
		}
	}

	return models.Snapshot{
		EMA:         helper.RoundPrice(ema),
		HighestHigh: helper.RoundPrice(high),
		LowestLow:   helper.RoundPrice(low),
		LastClose:   helper.RoundPrice(lastClose),
	}, nil
}
