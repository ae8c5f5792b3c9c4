package service

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"chase_bot/internal/modules/config"
	healthsvc "chase_bot/internal/modules/health/service"
	"chase_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const wsURL = "wss://ws.kite.trade"

// цена старше этого окна считается протухшей и не отдаётся
const staleAfter = 30 * time.Second

type ltpEntry struct {
	price float64
	at    time.Time
}

// Ticker держит один WebSocket к котировочному стриму Kite в режиме LTP
// и кэширует последнюю цену по токену инструмента. Кэш — быстрый путь
// для маркет-выходов; при протухании берут REST-котировку.
type Ticker struct {
	apiKey string
	dialer *websocket.Dialer
	health *healthsvc.State

	mu     sync.RWMutex
	prices map[int64]ltpEntry
	cancel context.CancelFunc
}

func NewTicker(cfg *config.Config, health *healthsvc.State) *Ticker {
	return &Ticker{
		apiKey: cfg.Kite.APIKey,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		health: health,
		prices: make(map[int64]ltpEntry),
	}
}

// LTP — цена из кэша, ok=false если её нет или она протухла.
func (t *Ticker) LTP(instrumentToken int64) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.prices[instrumentToken]
	if !ok || time.Since(e.at) > staleAfter {
		return 0, false
	}
	return e.price, true
}

// Restart перезапускает стрим с новым access-token и watchlist.
// Токен живёт один день, поэтому вызывается при каждом его обновлении.
func (t *Ticker) Restart(accessToken string, tokens []int64) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx, accessToken, tokens)
}

// Stop останавливает стрим (shutdown процесса).
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Ticker) run(ctx context.Context, accessToken string, tokens []int64) {
	url := wsURL + "?api_key=" + t.apiKey + "&access_token=" + accessToken

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Info("ticker: connect, %d instruments", len(tokens))
		conn, _, err := t.dialer.Dial(url, nil)
		if err != nil {
			logger.Warn("ticker: dial: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := t.subscribe(conn, tokens); err != nil {
			logger.Warn("ticker: subscribe: %v", err)
			_ = conn.Close()
			continue
		}

		t.health.SetStreamConnected(true)
		t.readLoop(ctx, conn)
		t.health.SetStreamConnected(false)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (t *Ticker) subscribe(conn *websocket.Conn, tokens []int64) error {
	sub, err := sonic.Marshal(map[string]any{"a": "subscribe", "v": tokens})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return err
	}
	mode, err := sonic.Marshal(map[string]any{"a": "mode", "v": []any{"ltp", tokens}})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, mode)
}

func (t *Ticker) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(staleAfter))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("ticker: read: %v", err)
			return
		}
		if msgType != websocket.BinaryMessage || len(msg) < 2 {
			// текстовые кадры — постбэки и ошибки, для LTP не нужны
			continue
		}
		t.parseBinary(msg)
	}
}

// parseBinary разбирает бинарный кадр Kite: [2b число пакетов]
// и далее для каждого пакета [2b длина][пакет]. LTP-пакет — 8 байт:
// int32 instrument_token, int32 цена в пайсах.
func (t *Ticker) parseBinary(msg []byte) {
	count := int(binary.BigEndian.Uint16(msg[:2]))
	offset := 2
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i < count; i++ {
		if offset+2 > len(msg) {
			return
		}
		plen := int(binary.BigEndian.Uint16(msg[offset : offset+2]))
		offset += 2
		if offset+plen > len(msg) || plen < 8 {
			return
		}
		packet := msg[offset : offset+plen]
		offset += plen

		token := int64(binary.BigEndian.Uint32(packet[:4]))
		paise := binary.BigEndian.Uint32(packet[4:8])
		t.prices[token] = ltpEntry{price: float64(paise) / 100, at: now}
	}
}
