package service

import (
	"errors"
	"net/http"
	"time"

	"chase_bot/internal/modules/config"
)

const baseURL = "https://api.kite.trade"

// ErrUnavailable — входные данные недоступны (свечи, котировка): тик прерываем
// без мутации состояния, только лог.
var ErrUnavailable = errors.New("kite data unavailable")

// Client — HTTP-клиент Kite Connect. Access-token живёт один день и приходит
// в каждый вызов из TokenStore, ключ API — из конфига.
type Client struct {
	apiKey   string
	exchange string
	product  string
	orderTag string

	base string
	http *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:   cfg.Kite.APIKey,
		exchange: cfg.Kite.Exchange,
		product:  cfg.Kite.Product,
		orderTag: cfg.Kite.OrderTag,
		base:     baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) auth(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "token "+c.apiKey+":"+accessToken)
	req.Header.Set("X-Kite-Version", "3")
}

func (c *Client) Exchange() string { return c.exchange }
func (c *Client) Product() string  { return c.product }
func (c *Client) OrderTag() string { return c.orderTag }
