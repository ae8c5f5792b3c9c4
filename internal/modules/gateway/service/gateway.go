package service

import (
	"context"
	"fmt"

	"chase_bot/internal/models"
	"chase_bot/internal/modules/config"
	kitesvc "chase_bot/internal/modules/kite/service"
	"chase_bot/pkg/logger"
)

// Broker — срез брокерского клиента, который нужен gateway. Интерфейс
// ради тестов с фейковым брокером.
type Broker interface {
	Exchange() string
	Product() string
	OrderTag() string
	PlaceOrder(ctx context.Context, accessToken string, params models.OrderParams) (string, error)
	ModifyOrder(ctx context.Context, accessToken, orderID string, params models.OrderParams) error
	CancelOrder(ctx context.Context, accessToken, orderID string) error
	FindTriggerPending(ctx context.Context, accessToken, tradingsymbol string, side models.TransactionType) (*models.Order, error)
	NetPosition(ctx context.Context, accessToken, tradingsymbol string) (*models.Position, error)
	LTP(ctx context.Context, accessToken, tradingsymbol string) (float64, error)
}

// Quoter — кэш живых цен котировочного стрима. ok=false — цены нет или
// она протухла, тогда gateway идёт за REST-котировкой.
type Quoter interface {
	LTP(instrumentToken int64) (float64, bool)
}

// Service переводит намерения машины состояний в брокерские вызовы.
// Все операции идемпотентны: повтор тика с тем же намерением не плодит
// дублей — существующие ордера модифицируются, лишние действия пропускаются.
// Стоп, уже пробитый живой ценой, не ставится и не двигается: позиция
// закрывается по рынку.
type Service struct {
	broker Broker
	quoter Quoter

	slLimitOffset float64
}

func NewService(cfg *config.Config, kite *kitesvc.Client, quoter Quoter) *Service {
	return &Service{
		broker:        kite,
		quoter:        quoter,
		slLimitOffset: cfg.Chase.SLLimitOffset,
	}
}

// NewWithBroker — конструктор для тестов.
func NewWithBroker(broker Broker, quoter Quoter, slLimitOffset float64) *Service {
	return &Service{broker: broker, quoter: quoter, slLimitOffset: slLimitOffset}
}

// Execute прогоняет намерения по порядку. Ошибка одного намерения не
// останавливает остальные: состояние в базе уже записано, брокера догоняем
// насколько возможно, остаток разруливается руками по уведомлению.
func (s *Service) Execute(ctx context.Context, accessToken string, intents []models.OrderIntent, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("gateway: chase quantity %d", quantity)
	}

	var firstErr error
	for _, in := range intents {
		var err error
		switch in.Kind {
		case models.IntentPlaceEntry:
			err = s.placeEntry(ctx, accessToken, in, quantity)
		case models.IntentPlaceOrModifyStop:
			err = s.placeOrModifyStop(ctx, accessToken, in, quantity)
		case models.IntentCancelEntry:
			err = s.cancelPendingEntry(ctx, accessToken, in)
		case models.IntentExitMarket:
			err = s.exitMarket(ctx, accessToken, in)
		case models.IntentRollover:
			err = s.rolloverPair(ctx, accessToken, in, quantity)
		default:
			err = fmt.Errorf("unknown intent %q", in.Kind)
		}
		if err != nil {
			logger.Error("gateway %s %s: %v", in.Kind, in.Tradingsymbol, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("gateway %s %s: %w", in.Kind, in.Tradingsymbol, err)
			}
		}
	}
	return firstErr
}

// placeEntry ставит stop-entry на пробой entry_point. Если ордер той же
// стороны уже висит — двигаем его триггер вместо нового ордера.
func (s *Service) placeEntry(ctx context.Context, accessToken string, in models.OrderIntent, quantity int) error {
	existing, err := s.broker.FindTriggerPending(ctx, accessToken, in.Tradingsymbol, in.Side)
	if err != nil {
		return err
	}

	params := s.slParams(in.Tradingsymbol, in.Side, in.TriggerPrice, quantity)
	if existing != nil {
		if existing.TriggerPrice == in.TriggerPrice {
			return nil
		}
		return s.broker.ModifyOrder(ctx, accessToken, existing.OrderID, params)
	}
	_, err = s.broker.PlaceOrder(ctx, accessToken, params)
	return err
}

// placeOrModifyStop держит защитный стоп открытой позиции на нужной цене.
func (s *Service) placeOrModifyStop(ctx context.Context, accessToken string, in models.OrderIntent, quantity int) error {
	pos, err := s.broker.NetPosition(ctx, accessToken, in.Tradingsymbol)
	if err != nil {
		return err
	}
	if pos == nil {
		// позиции нет: стоп уже сработал либо вход не исполнился, двигать нечего
		logger.Warn("gateway: no open position for %s, skip stop update", in.Tradingsymbol)
		return nil
	}
	if (in.Side == models.TransactionSell && pos.Quantity < 0) ||
		(in.Side == models.TransactionBuy && pos.Quantity > 0) {
		return fmt.Errorf("position side mismatch for %s: qty %d, stop side %s", in.Tradingsymbol, pos.Quantity, in.Side)
	}

	existing, err := s.broker.FindTriggerPending(ctx, accessToken, in.Tradingsymbol, in.Side)
	if err != nil {
		return err
	}

	live, err := s.livePrice(ctx, accessToken, in)
	if err != nil {
		return err
	}
	if (in.Side == models.TransactionSell && live <= in.TriggerPrice) ||
		(in.Side == models.TransactionBuy && live >= in.TriggerPrice) {
		// рынок уже за стопом: триггер не сработает, закрываемся по рынку
		logger.Warn("gateway: stop %.0f for %s already breached (ltp %.2f), exiting at market",
			in.TriggerPrice, in.Tradingsymbol, live)
		if existing != nil {
			if err := s.broker.CancelOrder(ctx, accessToken, existing.OrderID); err != nil {
				logger.Warn("gateway: cancel stale stop for %s: %v", in.Tradingsymbol, err)
			}
		}
		qty := pos.Quantity
		if qty < 0 {
			qty = -qty
		}
		_, err = s.broker.PlaceOrder(ctx, accessToken, s.marketParams(in.Tradingsymbol, in.Side, qty))
		return err
	}

	params := s.slParams(in.Tradingsymbol, in.Side, in.TriggerPrice, quantity)
	if existing != nil {
		if existing.TriggerPrice == in.TriggerPrice {
			return nil
		}
		return s.broker.ModifyOrder(ctx, accessToken, existing.OrderID, params)
	}
	_, err = s.broker.PlaceOrder(ctx, accessToken, params)
	return err
}

// cancelPendingEntry снимает висящий stop-entry; отсутствие ордера — не ошибка.
func (s *Service) cancelPendingEntry(ctx context.Context, accessToken string, in models.OrderIntent) error {
	existing, err := s.broker.FindTriggerPending(ctx, accessToken, in.Tradingsymbol, in.Side)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return s.broker.CancelOrder(ctx, accessToken, existing.OrderID)
}

// exitMarket контрольно закрывает позицию по рынку. Если позиции уже нет
// (стоп у брокера сработал сам) — делать нечего; висящий стоп-ордер снимаем.
func (s *Service) exitMarket(ctx context.Context, accessToken string, in models.OrderIntent) error {
	if pending, err := s.broker.FindTriggerPending(ctx, accessToken, in.Tradingsymbol, in.Side); err == nil && pending != nil {
		if err := s.broker.CancelOrder(ctx, accessToken, pending.OrderID); err != nil {
			logger.Warn("gateway: cancel pending stop for %s: %v", in.Tradingsymbol, err)
		}
	}

	pos, err := s.broker.NetPosition(ctx, accessToken, in.Tradingsymbol)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}

	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}
	_, err = s.broker.PlaceOrder(ctx, accessToken, s.marketParams(in.Tradingsymbol, in.Side, qty))
	return err
}

// rolloverPair закрывает истекающую ногу и открывает ту же ногу в следующем
// контракте тем же объёмом. Висящий стоп старой ноги превращается в рыночное
// закрытие; защитный стоп новой ноги ставится на переданной цене.
func (s *Service) rolloverPair(ctx context.Context, accessToken string, in models.OrderIntent, quantity int) error {
	pos, err := s.broker.NetPosition(ctx, accessToken, in.Tradingsymbol)
	if err != nil {
		return err
	}
	if pos == nil {
		return fmt.Errorf("no open position for %s", in.Tradingsymbol)
	}
	qty := pos.Quantity
	if qty < 0 {
		qty = -qty
	}

	closeSide := models.TransactionSell
	stopSide := models.TransactionSell
	if pos.Quantity < 0 {
		closeSide = models.TransactionBuy
		stopSide = models.TransactionBuy
	}

	pending, err := s.broker.FindTriggerPending(ctx, accessToken, in.Tradingsymbol, closeSide)
	if err != nil {
		return err
	}
	if pending != nil {
		// существующий стоп — готовый закрывающий ордер, делаем его рыночным
		err = s.broker.ModifyOrder(ctx, accessToken, pending.OrderID, models.OrderParams{OrderType: "MARKET"})
	} else {
		_, err = s.broker.PlaceOrder(ctx, accessToken, s.marketParams(in.Tradingsymbol, closeSide, qty))
	}
	if err != nil {
		return err
	}

	if _, err = s.broker.PlaceOrder(ctx, accessToken, s.marketParams(in.NewSymbol, in.Side, qty)); err != nil {
		return err
	}

	if in.Stoploss > 0 {
		_, err = s.broker.PlaceOrder(ctx, accessToken, s.slParams(in.NewSymbol, stopSide, in.Stoploss, qty))
	}
	return err
}

// livePrice — LTP из кэша стрима, при его отсутствии или протухании — REST.
func (s *Service) livePrice(ctx context.Context, accessToken string, in models.OrderIntent) (float64, error) {
	if s.quoter != nil {
		if p, ok := s.quoter.LTP(in.InstrumentToken); ok {
			return p, nil
		}
	}
	return s.broker.LTP(ctx, accessToken, in.Tradingsymbol)
}

// slParams — SL-ордер: лимитная цена отнесена от триггера на фиксированный
// сдвиг в сторону исполнения, чтобы не застрять в очереди.
func (s *Service) slParams(tradingsymbol string, side models.TransactionType, trigger float64, quantity int) models.OrderParams {
	price := trigger - s.slLimitOffset
	if side == models.TransactionBuy {
		price = trigger + s.slLimitOffset
	}
	return models.OrderParams{
		Tradingsymbol:   tradingsymbol,
		Exchange:        s.broker.Exchange(),
		TransactionType: side,
		Quantity:        quantity,
		OrderType:       "SL",
		Product:         s.broker.Product(),
		Tag:             s.broker.OrderTag(),
		TriggerPrice:    trigger,
		Price:           price,
	}
}

func (s *Service) marketParams(tradingsymbol string, side models.TransactionType, quantity int) models.OrderParams {
	return models.OrderParams{
		Tradingsymbol:   tradingsymbol,
		Exchange:        s.broker.Exchange(),
		TransactionType: side,
		Quantity:        quantity,
		OrderType:       "MARKET",
		Product:         s.broker.Product(),
		Tag:             s.broker.OrderTag(),
	}
}
