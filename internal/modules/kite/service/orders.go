package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"chase_bot/internal/models"
	"chase_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Orders — текущая брокерская книга ордеров.
func (c *Client) Orders(ctx context.Context, accessToken string) ([]models.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("Orders new request: %w", err)
	}
	c.auth(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Orders do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("Orders http %d: %s", resp.StatusCode, string(rb))
	}

	var payload struct {
		Data []models.Order `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return nil, fmt.Errorf("Orders decode: %w", err)
	}
	return payload.Data, nil
}

// FindTriggerPending ищет в книге висящий стоп-ордер по символу и стороне.
func (c *Client) FindTriggerPending(ctx context.Context, accessToken, tradingsymbol string, side models.TransactionType) (*models.Order, error) {
	orders, err := c.Orders(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		o := &orders[i]
		if o.Tradingsymbol == tradingsymbol &&
			o.TransactionType == string(side) &&
			o.Status == models.OrderStatusTriggerPending {
			return o, nil
		}
	}
	return nil, nil
}

type orderForm url.Values

func (p orderForm) encode() string { return url.Values(p).Encode() }

func newOrderForm(params models.OrderParams) orderForm {
	f := url.Values{}
	set := func(k, v string) {
		if v != "" {
			f.Set(k, v)
		}
	}
	set("tradingsymbol", params.Tradingsymbol)
	set("exchange", params.Exchange)
	set("transaction_type", string(params.TransactionType))
	if params.Quantity > 0 {
		set("quantity", strconv.Itoa(params.Quantity))
	}
	set("order_type", params.OrderType)
	set("product", params.Product)
	set("tag", params.Tag)
	if params.TriggerPrice > 0 {
		set("trigger_price", strconv.FormatFloat(params.TriggerPrice, 'f', -1, 64))
	}
	if params.Price > 0 {
		set("price", strconv.FormatFloat(params.Price, 'f', -1, 64))
	}
	return orderForm(f)
}

// PlaceOrder размещает обычный ордер. Отдельный случай: биржа отвергла
// SL-ордер потому, что стоп уже пробит текущей ценой — тогда вместо него
// сразу уходит MARKET (локальное восстановление, остальные реджекты наверх).
func (c *Client) PlaceOrder(ctx context.Context, accessToken string, params models.OrderParams) (string, error) {
	form := newOrderForm(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/orders/regular", strings.NewReader(form.encode()))
	if err != nil {
		return "", fmt.Errorf("PlaceOrder new request: %w", err)
	}
	c.auth(req, accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("PlaceOrder do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)

	var result struct {
		Status    string `json:"status"`
		Message   string `json:"message"`
		ErrorType string `json:"error_type"`
		Data      struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &result); err != nil {
		return "", fmt.Errorf("PlaceOrder decode: %w; body=%s", err, string(rb))
	}

	if resp.StatusCode/100 != 2 {
		if params.OrderType == "SL" &&
			result.ErrorType == "InputException" &&
			strings.Contains(strings.ToLower(result.Message), "stoploss") {
			logger.Warn("PlaceOrder %s: stoploss rejected as already breached, falling back to MARKET", params.Tradingsymbol)
			market := params
			market.OrderType = "MARKET"
			market.TriggerPrice = 0
			market.Price = 0
			return c.PlaceOrder(ctx, accessToken, market)
		}
		return "", fmt.Errorf("PlaceOrder http %d: %s %s", resp.StatusCode, result.ErrorType, result.Message)
	}
	return result.Data.OrderID, nil
}

// ModifyOrder модифицирует существующий ордер (regular variety).
func (c *Client) ModifyOrder(ctx context.Context, accessToken, orderID string, params models.OrderParams) error {
	form := newOrderForm(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.base+"/orders/regular/"+orderID, strings.NewReader(form.encode()))
	if err != nil {
		return fmt.Errorf("ModifyOrder new request: %w", err)
	}
	c.auth(req, accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ModifyOrder do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ModifyOrder http %d: %s", resp.StatusCode, string(rb))
	}
	return nil
}

// CancelOrder снимает ордер.
func (c *Client) CancelOrder(ctx context.Context, accessToken, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/orders/regular/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("CancelOrder new request: %w", err)
	}
	c.auth(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("CancelOrder do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("CancelOrder http %d: %s", resp.StatusCode, string(rb))
	}
	return nil
}
