package models

import "time"

// Candle — одна свеча OHLCV. Серии всегда упорядочены по Timestamp по возрастанию.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Typical — типичная цена (HLC/3), база для EMA.
func (c Candle) Typical() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Интервалы исторических свечей Kite.
const (
	Interval60Minute = "60minute"
	Interval2Minute  = "2minute"
)
