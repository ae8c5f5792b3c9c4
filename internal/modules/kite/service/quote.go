package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
)

// LTP — последняя цена сделки по инструменту.
func (c *Client) LTP(ctx context.Context, accessToken, tradingsymbol string) (float64, error) {
	key := c.exchange + ":" + tradingsymbol

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/quote?i="+url.QueryEscape(key), nil)
	if err != nil {
		return 0, fmt.Errorf("LTP new request: %w", err)
	}
	c.auth(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("LTP do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("LTP http %d: %s", resp.StatusCode, string(rb))
	}

	var payload struct {
		Data map[string]struct {
			LastPrice float64 `json:"last_price"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return 0, fmt.Errorf("LTP decode: %w", err)
	}

	q, ok := payload.Data[key]
	if !ok {
		return 0, fmt.Errorf("LTP: no quote for %s in response", key)
	}
	return q.LastPrice, nil
}
