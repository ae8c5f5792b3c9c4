package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/internal/modules/config"
	kitesvc "chase_bot/internal/modules/kite/service"
	"chase_bot/internal/storage"
	"chase_bot/pkg/db"
	"chase_bot/pkg/logger"

	"github.com/jackc/pgx/v5"
)

// имена базовых контрактов, по которым обновляется индикатор
var trackedNames = []string{"NIFTY", "BANKNIFTY"}

// Service пересчитывает индикатор: свечи каждого активного фьючерса,
// EMA + сессионные агрегаты, срезы в таблицу ema.
type Service struct {
	cfg  *config.Config
	kite *kitesvc.Client

	txm         db.TxManager
	instruments *storage.InstrumentStore
	emas        *storage.EMAStore
}

func NewService(
	cfg *config.Config,
	kite *kitesvc.Client,
	txm db.TxManager,
	instruments *storage.InstrumentStore,
	emas *storage.EMAStore,
) *Service {
	return &Service{
		cfg:         cfg,
		kite:        kite,
		txm:         txm,
		instruments: instruments,
		emas:        emas,
	}
}

// Refresh считает свежие срезы по всем активным фьючерсам и пишет их одной
// транзакцией. Инструменты обрабатываются параллельно; по кому данных нет —
// пропускаем с предупреждением, остальные не страдают.
func (s *Service) Refresh(ctx context.Context, accessToken string, now time.Time) ([]models.Snapshot, error) {
	var actives []models.Instrument
	for _, name := range trackedNames {
		list, err := s.instruments.ListActiveFutures(ctx, s.txm.Conn(), name, now)
		if err != nil {
			return nil, fmt.Errorf("indicator refresh: %w", err)
		}
		actives = append(actives, list...)
	}
	if len(actives) == 0 {
		return nil, errors.New("indicator refresh: no active futures in instruments")
	}

	today := helper.DateStr(now)
	lookback := time.Duration(s.cfg.Chase.CandleLookbackDays) * 24 * time.Hour

	var (
		mu    sync.Mutex
		snaps []models.Snapshot
		wg    sync.WaitGroup
	)
	for _, inst := range actives {
		wg.Add(1)
		go func(inst models.Instrument) {
			defer wg.Done()

			sn, err := s.refreshOne(ctx, accessToken, inst, lookback, today, now)
			if err != nil {
				logger.Warn("indicator refresh %s: %v", inst.Tradingsymbol, err)
				return
			}
			mu.Lock()
			snaps = append(snaps, sn)
			mu.Unlock()
		}(inst)
	}
	wg.Wait()

	if len(snaps) == 0 {
		return nil, kitesvc.ErrUnavailable
	}

	err := s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return s.emas.Insert(ctxTx, tx, snaps)
	})
	if err != nil {
		return nil, fmt.Errorf("indicator refresh: %w", err)
	}
	return snaps, nil
}

func (s *Service) refreshOne(
	ctx context.Context,
	accessToken string,
	inst models.Instrument,
	lookback time.Duration,
	today string,
	now time.Time,
) (models.Snapshot, error) {
	candles, err := s.kite.HistoricalCandles(ctx, accessToken, inst.InstrumentToken, models.Interval60Minute, lookback, now)
	if err != nil {
		return models.Snapshot{}, err
	}

	// срез этого же дня — затравка для одношагового обновления,
	// вчерашний и старше не годится: серия с тех пор ушла дальше чем на свечу
	var prevEMA float64
	prev, err := s.emas.LatestBySymbol(ctx, s.txm.Conn(), inst.Tradingsymbol)
	if err == nil && helper.SameISTDate(prev.AsOf, today) {
		prevEMA = prev.EMA
	} else if err != nil && !errors.Is(err, storage.ErrNoSnapshot) {
		return models.Snapshot{}, err
	}

	sn, err := Compute(candles, s.cfg.Chase.EMAPeriod, today, prevEMA)
	if err != nil {
		return models.Snapshot{}, err
	}
	sn.Tradingsymbol = inst.Tradingsymbol
	sn.InstrumentToken = inst.InstrumentToken
	sn.AsOf = now
	return sn, nil
}

// SnapshotFor выбирает из пачки срез по символу.
func SnapshotFor(snaps []models.Snapshot, tradingsymbol string) (models.Snapshot, bool) {
	for _, sn := range snaps {
		if sn.Tradingsymbol == tradingsymbol {
			return sn, true
		}
	}
	return models.Snapshot{}, false
}
