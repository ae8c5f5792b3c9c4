package service

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"chase_bot/internal/models"

	"github.com/bytedance/sonic"
)

// Positions — нетто-позиции портфеля.
func (c *Client) Positions(ctx context.Context, accessToken string) ([]models.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/portfolio/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("Positions new request: %w", err)
	}
	c.auth(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Positions do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("Positions http %d: %s", resp.StatusCode, string(rb))
	}

	var payload struct {
		Data struct {
			Net []models.Position `json:"net"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(rb, &payload); err != nil {
		return nil, fmt.Errorf("Positions decode: %w", err)
	}
	return payload.Data.Net, nil
}

// NetPosition возвращает открытую нетто-позицию по символу, nil — если её нет.
func (c *Client) NetPosition(ctx context.Context, accessToken, tradingsymbol string) (*models.Position, error) {
	positions, err := c.Positions(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		p := &positions[i]
		if p.Tradingsymbol == tradingsymbol && p.Quantity != 0 {
			return p, nil
		}
	}
	return nil, nil
}
