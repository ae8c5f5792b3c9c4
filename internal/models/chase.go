package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status — состояние чейза. Ровно одна запись chase_status на всю систему:
// стратегия держит максимум одну позицию (или один отложенный ордер).
type Status string

const (
	StatusAwaitingSignal Status = "AWAITING_SIGNAL"
	StatusAwaitingLong   Status = "AWAITING_LONG"
	StatusAwaitingShort  Status = "AWAITING_SHORT"
	StatusLong           Status = "LONG"
	StatusShort          Status = "SHORT"
)

// InPosition — открыта ли позиция (LONG/SHORT).
func (s Status) InPosition() bool {
	return s == StatusLong || s == StatusShort
}

type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// ChaseState — singleton-строка chase_status (id=1).
// CreatedAt — момент входа в ТЕКУЩИЙ статус; для LONG/SHORT это время открытия позиции.
type ChaseState struct {
	Status                   Status
	Tradingsymbol            string
	InstrumentToken          int64
	Stoploss                 float64
	EntryPoint               float64
	CreatedAt                time.Time
	LastModifiedAt           time.Time
	SignalBreachingTolerance bool
}

// UserConfig — единственная строка пользовательских настроек, только чтение.
type UserConfig struct {
	IsChaseAutomated bool
	ChaseQuantity    int
}

// ChaseLogEntry — append-only журнал открытий/закрытий, никогда не мутируется.
type ChaseLogEntry struct {
	Tradingsymbol   string
	TransactionType TransactionType
	AveragePrice    decimal.Decimal
	CreatedAt       time.Time
}

// Snapshot — последний рассчитанный срез индикатора по инструменту
// (строка таблицы ema; новые строки вытесняют старые по created_at).
type Snapshot struct {
	Tradingsymbol   string
	InstrumentToken int64
	EMA             float64
	HighestHigh     float64
	LowestLow       float64
	LastClose       float64
	AsOf            time.Time
}
