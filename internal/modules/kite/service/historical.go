package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
	"chase_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

// формат таймстемпа свечи Kite: "2025-04-16T09:15:00+0530"
const candleTimeLayout = "2006-01-02T15:04:05-0700"

// HistoricalCandles тянет свечи за lookback до now. Транзиентные ошибки —
// до трёх попыток с фиксированной паузой. Возвращается НЕфильтрованная серия
// (EMA грузится по всему окну), но если в текущей сессии нет ни одной свечи —
// данные считаются недоступными: сессионные агрегаты посчитать не из чего.
func (c *Client) HistoricalCandles(
	ctx context.Context,
	accessToken string,
	instrumentToken int64,
	interval string,
	lookback time.Duration,
	now time.Time,
) ([]models.Candle, error) {
	from := helper.TimeStr(now.Add(-lookback))
	to := helper.TimeStr(now)
	today := helper.DateStr(now)

	reqURL := fmt.Sprintf("%s/instruments/historical/%d/%s?from=%s&to=%s",
		c.base, instrumentToken, interval, url.QueryEscape(from), url.QueryEscape(to))

	var body []byte
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("HistoricalCandles new request: %w", err)
		}
		c.auth(req, accessToken)

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode/100 == 2 {
			body, err = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("HistoricalCandles read: %w", err)
			}
			break
		}
		if err == nil {
			rb, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			logger.Warn("HistoricalCandles token=%d attempt %d: http %d: %s", instrumentToken, attempt, resp.StatusCode, string(rb))
		} else {
			logger.Warn("HistoricalCandles token=%d attempt %d: %v", instrumentToken, attempt, err)
		}
		if attempt >= fetchAttempts {
			return nil, ErrUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fetchBackoff):
		}
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Candles [][]any `json:"candles"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("HistoricalCandles decode: %w", err)
	}
	if len(payload.Data.Candles) == 0 {
		logger.Warn("HistoricalCandles token=%d: no candles in window %s..%s", instrumentToken, from, to)
		return nil, ErrUnavailable
	}

	candles := make([]models.Candle, 0, len(payload.Data.Candles))
	inSession := false
	for _, raw := range payload.Data.Candles {
		cd, err := parseCandle(raw)
		if err != nil {
			return nil, fmt.Errorf("HistoricalCandles parse: %w", err)
		}
		candles = append(candles, cd)
		if helper.SameISTDate(cd.Timestamp, today) {
			inSession = true
		}
	}
	if !inSession {
		logger.Warn("HistoricalCandles token=%d: no candles for session %s", instrumentToken, today)
		return nil, ErrUnavailable
	}
	return candles, nil
}

// parseCandle разбирает [ts, o, h, l, c, vol]; ts — строка, остальное числа.
func parseCandle(raw []any) (models.Candle, error) {
	if len(raw) < 6 {
		return models.Candle{}, fmt.Errorf("short candle row: %d fields", len(raw))
	}
	ts, ok := raw[0].(string)
	if !ok {
		return models.Candle{}, fmt.Errorf("candle ts is %T", raw[0])
	}
	t, err := time.Parse(candleTimeLayout, ts)
	if err != nil {
		return models.Candle{}, fmt.Errorf("candle ts %q: %w", ts, err)
	}

	nums := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		v, ok := raw[i].(float64)
		if !ok {
			return models.Candle{}, fmt.Errorf("candle field %d is %T", i, raw[i])
		}
		nums[i-1] = v
	}
	return models.Candle{
		Timestamp: helper.ToIST(t),
		Open:      nums[0],
		High:      nums[1],
		Low:       nums[2],
		Close:     nums[3],
		Volume:    nums[4],
	}, nil
}
