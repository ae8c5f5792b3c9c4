package models

// IntentKind — что именно state machine просит сделать у Execution Gateway.
type IntentKind string

const (
	// Поставить stop-entry ордер (вход по пробою entry_point) + защитный стоп после входа.
	IntentPlaceEntry IntentKind = "PLACE_ENTRY"
	// Подтянуть защитный стоп: модифицировать существующий или поставить новый.
	IntentPlaceOrModifyStop IntentKind = "PLACE_OR_MODIFY_STOP"
	// Снять отложенный stop-entry (инвалидация сигнала, EOD).
	IntentCancelEntry IntentKind = "CANCEL_ENTRY"
	// Закрыть позицию по рынку (выход по зоне / контрольный выход после пробоя стопа).
	IntentExitMarket IntentKind = "EXIT_MARKET"
	// Ролловер: закрыть истекающую ногу, открыть ту же ногу в следующем контракте.
	IntentRollover IntentKind = "ROLLOVER"
)

// OrderIntent — чистое намерение; в брокерские вызовы его переводит gateway.
type OrderIntent struct {
	Kind            IntentKind
	Tradingsymbol   string
	InstrumentToken int64 // ключ кэша котировок для проверки живой цены
	Side            TransactionType
	TriggerPrice    float64 // entry_point либо стоп-цена
	Stoploss        float64 // защитный стоп для PLACE_ENTRY / ROLLOVER
	NewSymbol       string  // только для ROLLOVER
}
