package models

import "time"

// Instrument — строка справочника инструментов (дамп Kite, фильтр NIFTY/BANKNIFTY FUT).
type Instrument struct {
	InstrumentToken int64
	Tradingsymbol   string
	Name            string
	ExpiryDate      time.Time
	LotSize         int
	Exchange        string
	Segment         string
	InstrumentType  string
	CreatedAt       time.Time
}

// Статусы ордеров Kite, которые нас интересуют.
const (
	OrderStatusTriggerPending = "TRIGGER PENDING"
	OrderStatusComplete       = "COMPLETE"
)

// Order — ордер из брокерской книги (GET /orders).
type Order struct {
	OrderID         string  `json:"order_id"`
	Tradingsymbol   string  `json:"tradingsymbol"`
	OrderTimestamp  string  `json:"order_timestamp"`
	Exchange        string  `json:"exchange"`
	InstrumentToken int64   `json:"instrument_token"`
	TransactionType string  `json:"transaction_type"`
	AveragePrice    float64 `json:"average_price"`
	Quantity        int     `json:"quantity"`
	TriggerPrice    float64 `json:"trigger_price"`
	Price           float64 `json:"price"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
	Variety         string  `json:"variety"`
	Status          string  `json:"status"`
	Tag             string  `json:"tag"`
}

// Position — нетто-позиция из портфеля.
type Position struct {
	Tradingsymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	Product       string  `json:"product"`
}

// OrderParams — параметры размещения/модификации ордера Kite
// (уходит как application/x-www-form-urlencoded, пустые поля не отправляются).
type OrderParams struct {
	Tradingsymbol   string
	Exchange        string
	TransactionType TransactionType
	Quantity        int
	OrderType       string // MARKET / SL
	Product         string
	Tag             string
	TriggerPrice    float64
	Price           float64
}
