package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/internal/modules/config"
	healthsvc "chase_bot/internal/modules/health/service"
	indicatorsvc "chase_bot/internal/modules/indicator/service"
	kitesvc "chase_bot/internal/modules/kite/service"
	"chase_bot/internal/modules/metrics"
	tickersvc "chase_bot/internal/modules/ticker/service"
	"chase_bot/internal/notify"
	"chase_bot/internal/storage"
	"chase_bot/pkg/db"
	"chase_bot/pkg/logger"

	"github.com/jackc/pgx/v5"
)

// Gateway исполняет намерения машины у брокера. Вызывается только при
// включённой автоматизации; ошибки исполнения не откатывают состояние.
type Gateway interface {
	Execute(ctx context.Context, accessToken string, intents []models.OrderIntent, quantity int) error
}

// TickResult — итог тика, уходит в HTTP-ответ.
type TickResult struct {
	Signal   string  `json:"signal"`
	Stoploss float64 `json:"sl"`
	Message  string  `json:"message,omitempty"`
}

// Runner — оркестратор тика: собирает входы, гоняет машину состояний,
// атомарно пишет итог, рассылает уведомления и отдаёт намерения gateway.
type Runner struct {
	cfg     *config.Config
	machine *Machine

	indicator *indicatorsvc.Service
	kite      *kitesvc.Client
	ticker    *tickersvc.Ticker
	gateway   Gateway

	txm         db.TxManager
	states      *storage.ChaseStateStore
	emas        *storage.EMAStore
	tradeLog    *storage.TradeLogStore
	users       *storage.UserConfigStore
	instruments *storage.InstrumentStore
	tokens      *storage.TokenStore
	txns        *storage.TransactionsStore

	notifier notify.Notifier
	health   *healthsvc.State
	metrics  *metrics.Metrics
}

func NewRunner(
	cfg *config.Config,
	machine *Machine,
	indicator *indicatorsvc.Service,
	kite *kitesvc.Client,
	ticker *tickersvc.Ticker,
	gateway Gateway,
	txm db.TxManager,
	states *storage.ChaseStateStore,
	emas *storage.EMAStore,
	tradeLog *storage.TradeLogStore,
	users *storage.UserConfigStore,
	instruments *storage.InstrumentStore,
	tokens *storage.TokenStore,
	txns *storage.TransactionsStore,
	notifier notify.Notifier,
	health *healthsvc.State,
	m *metrics.Metrics,
) *Runner {
	return &Runner{
		cfg:         cfg,
		machine:     machine,
		indicator:   indicator,
		kite:        kite,
		ticker:      ticker,
		gateway:     gateway,
		txm:         txm,
		states:      states,
		emas:        emas,
		tradeLog:    tradeLog,
		users:       users,
		instruments: instruments,
		tokens:      tokens,
		txns:        txns,
		notifier:    notifier,
		health:      health,
		metrics:     m,
	}
}

// InSession — внутри ли торгового окна.
func (r *Runner) InSession(now time.Time) bool {
	m := helper.MinutesOfDay(now)
	return m >= r.cfg.Chase.SessionOpenMinutes && m <= r.cfg.Chase.SessionCloseMinutes
}

// RunIndicatorTick — часовой тик: пересчёт индикатора, генерация/валидация
// сигнала, трейлинг стопа, ролловер.
func (r *Runner) RunIndicatorTick(ctx context.Context, now time.Time) (TickResult, error) {
	r.health.TouchTick(now)

	token, err := r.tokens.Latest(ctx, r.txm.Conn(), now)
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	snaps, err := r.indicator.Refresh(ctx, token, now)
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}
	for _, sn := range snaps {
		r.metrics.EMA.WithLabelValues(sn.Tradingsymbol).Set(sn.EMA)
	}

	st, err := r.states.Get(ctx, r.txm.Conn())
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	actives, err := r.instruments.ListActiveFutures(ctx, r.txm.Conn(), r.cfg.Chase.TradeName, now)
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	var outcome Outcome
	if NeedsRollover(*st, actives, now, r.cfg.Chase.RolloverHour) {
		outcome, err = r.rollover(ctx, token, *st, actives, snaps, now)
	} else {
		outcome, err = r.evaluateIndicator(ctx, *st, actives, snaps, now)
	}
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	return r.finishTick(ctx, token, *st, outcome, "indicator", now)
}

func (r *Runner) evaluateIndicator(
	ctx context.Context,
	st models.ChaseState,
	actives []models.Instrument,
	snaps []models.Snapshot,
	now time.Time,
) (Outcome, error) {
	symbol := st.Tradingsymbol
	if st.Status == models.StatusAwaitingSignal {
		// свежий сигнал берём со второго по экспирации контракта:
		// ближайший уже на пороге переката
		if len(actives) == 0 {
			return Outcome{}, errors.New("no active futures to evaluate")
		}
		symbol = actives[0].Tradingsymbol
		if len(actives) > 1 {
			symbol = actives[1].Tradingsymbol
		}
	}

	sn, ok := indicatorsvc.SnapshotFor(snaps, symbol)
	if !ok {
		// контракт мог не обновиться в этом тике, берём последний срез из базы
		prev, err := r.emas.LatestBySymbol(ctx, r.txm.Conn(), symbol)
		if err != nil {
			return Outcome{}, fmt.Errorf("no indicator snapshot for %s: %w", symbol, err)
		}
		sn = *prev
	}

	prevDay, err := r.instruments.PreviousTradingDay(ctx, r.txm.Conn(), now)
	if err != nil {
		return Outcome{}, err
	}
	return r.machine.EvaluateIndicator(st, sn, now, prevDay), nil
}

func (r *Runner) rollover(
	ctx context.Context,
	token string,
	st models.ChaseState,
	actives []models.Instrument,
	snaps []models.Snapshot,
	now time.Time,
) (Outcome, error) {
	next, ok := indicatorsvc.SnapshotFor(snaps, actives[1].Tradingsymbol)
	if !ok {
		return Outcome{}, fmt.Errorf("no indicator snapshot for next contract %s", actives[1].Tradingsymbol)
	}

	closePrice, err := r.lastPrice(ctx, token, st.InstrumentToken, st.Tradingsymbol)
	if err != nil {
		return Outcome{}, err
	}
	return r.machine.Rollover(st, next, closePrice, now), nil
}

// RunFastTick — двухминутный тик: пробой стопа и исполнение отложенного входа.
func (r *Runner) RunFastTick(ctx context.Context, now time.Time) (TickResult, error) {
	r.health.TouchTick(now)

	st, err := r.states.Get(ctx, r.txm.Conn())
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}
	if st.Status == models.StatusAwaitingSignal {
		return TickResult{Signal: SignalNone, Stoploss: st.Stoploss, Message: "no pending signal"}, nil
	}

	token, err := r.tokens.Latest(ctx, r.txm.Conn(), now)
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	// окно в два бара: на произвольный момент запроса гарантирует
	// хотя бы одну полностью закрытую 2-минутную свечу
	candles, err := r.kite.HistoricalCandles(ctx, token, st.InstrumentToken, models.Interval2Minute, 4*time.Minute, now)
	if err != nil {
		r.metrics.TickErrors.Inc()
		return TickResult{}, err
	}

	outcome := r.machine.EvaluateFast(*st, candles, now)
	return r.finishTick(ctx, token, *st, outcome, "fast", now)
}

// finishTick атомарно пишет исход, шлёт уведомления и намерения.
// Состояние и журнал — одной транзакцией: либо тик записан целиком, либо никак.
func (r *Runner) finishTick(
	ctx context.Context,
	token string,
	prev models.ChaseState,
	outcome Outcome,
	kind string,
	now time.Time,
) (TickResult, error) {
	r.metrics.Ticks.WithLabelValues(kind, outcome.Signal).Inc()

	if outcome.Changed {
		err := r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
			if err := r.states.Update(ctxTx, tx, patchFrom(outcome.State), prev.LastModifiedAt, now); err != nil {
				return err
			}
			return r.tradeLog.Append(ctxTx, tx, outcome.Logs)
		})
		if errors.Is(err, storage.ErrStaleState) {
			// состояние успел изменить параллельный тик, наш исход уже неактуален
			r.metrics.StaleStates.Inc()
			logger.Info("tick %s: state modified concurrently, dropping outcome", kind)
			return TickResult{Signal: SignalNone, Stoploss: prev.Stoploss, Message: "state modified concurrently"}, nil
		}
		if err != nil {
			r.metrics.TickErrors.Inc()
			return TickResult{}, err
		}
		r.metrics.Stoploss.Set(outcome.State.Stoploss)
	}

	for _, note := range outcome.Notes {
		r.notifier.Send("Action $chase: " + note)
	}
	for _, in := range outcome.Intents {
		r.metrics.Intents.WithLabelValues(string(in.Kind)).Inc()
	}

	if len(outcome.Intents) > 0 {
		userCfg, err := r.users.Get(ctx, r.txm.Conn())
		if err != nil {
			logger.Error("tick %s: user config: %v", kind, err)
		} else if userCfg.IsChaseAutomated {
			if err := r.gateway.Execute(ctx, token, outcome.Intents, userCfg.ChaseQuantity); err != nil {
				logger.Error("tick %s: gateway: %v", kind, err)
				r.notifier.Sendf("Action $chase: order execution failed: %v", err)
			}
		}
	}

	return TickResult{Signal: outcome.Signal, Stoploss: outcome.State.Stoploss}, nil
}

// lastPrice — LTP из кэша стрима, при его протухании — REST-котировка.
func (r *Runner) lastPrice(ctx context.Context, token string, instrumentToken int64, tradingsymbol string) (float64, error) {
	if ltp, ok := r.ticker.LTP(instrumentToken); ok {
		return ltp, nil
	}
	return r.kite.LTP(ctx, token, tradingsymbol)
}

// RefreshAccessToken — ежедневный вход: сохранить токен, обновить справочник
// инструментов, почистить старые строки, перезапустить котировочный стрим.
func (r *Runner) RefreshAccessToken(ctx context.Context, accessToken string, now time.Time) error {
	instruments, err := r.kite.Instruments(ctx, accessToken)
	if err != nil {
		return err
	}
	for i := range instruments {
		instruments[i].CreatedAt = now
	}

	err = r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if err := r.tokens.Insert(ctxTx, tx, accessToken, now); err != nil {
			return err
		}
		if err := r.instruments.Upsert(ctxTx, tx, instruments); err != nil {
			return err
		}
		return r.tokens.Cleanup(ctxTx, tx, 7)
	})
	if err != nil {
		return err
	}

	actives, err := r.instruments.ListActiveFutures(ctx, r.txm.Conn(), r.cfg.Chase.TradeName, now)
	if err != nil {
		return err
	}
	watch := make([]int64, 0, len(actives))
	for _, inst := range actives {
		watch = append(watch, inst.InstrumentToken)
	}
	r.ticker.Restart(accessToken, watch)

	r.health.SetReady(true)
	r.notifier.Send("Action $chase: access token refreshed, instruments synced")
	return nil
}

// SyncTransactions зеркалит исполненные ордера брокера в таблицу transactions.
func (r *Runner) SyncTransactions(ctx context.Context, now time.Time) (int, error) {
	token, err := r.tokens.Latest(ctx, r.txm.Conn(), now)
	if err != nil {
		return 0, err
	}
	orders, err := r.kite.Orders(ctx, token)
	if err != nil {
		return 0, err
	}

	var n int
	err = r.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		n, err = r.txns.InsertCompleted(ctxTx, tx, orders)
		return err
	})
	return n, err
}

// patchFrom — полный патч из нового состояния; CAS по last_modified_at
// защищает от параллельной записи.
func patchFrom(st models.ChaseState) storage.Patch {
	return storage.Patch{
		Status:                   &st.Status,
		Tradingsymbol:            &st.Tradingsymbol,
		InstrumentToken:          &st.InstrumentToken,
		Stoploss:                 &st.Stoploss,
		EntryPoint:               &st.EntryPoint,
		CreatedAt:                &st.CreatedAt,
		SignalBreachingTolerance: &st.SignalBreachingTolerance,
	}
}
