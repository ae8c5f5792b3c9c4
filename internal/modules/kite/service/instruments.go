package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"chase_bot/internal/helper"
	"chase_bot/internal/models"
)

// имена базовых контрактов, чьи фьючерсы отслеживаем
var trackedNames = map[string]bool{
	"NIFTY":     true,
	"BANKNIFTY": true,
}

const expiryLayout = "2006-01-02"

// Instruments тянет полный CSV-дамп справочника и оставляет фьючерсы
// отслеживаемых индексов. Дамп большой (~100k строк), читаем потоково.
func (c *Client) Instruments(ctx context.Context, accessToken string) ([]models.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/instruments/"+c.exchange, nil)
	if err != nil {
		return nil, fmt.Errorf("Instruments new request: %w", err)
	}
	c.auth(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Instruments do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		rb, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Instruments http %d: %s", resp.StatusCode, string(rb))
	}

	instruments, err := parseInstrumentsCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Instruments: %w", err)
	}
	return instruments, nil
}

func parseInstrumentsCSV(r io.Reader) ([]models.Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, want := range []string{"instrument_token", "tradingsymbol", "name", "expiry", "lot_size", "exchange", "segment", "instrument_type"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("dump has no column %q", want)
		}
	}

	var out []models.Instrument
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if rec[col["instrument_type"]] != "FUT" || !trackedNames[rec[col["name"]]] {
			continue
		}

		token, err := strconv.ParseInt(rec[col["instrument_token"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", rec[col["instrument_token"]], err)
		}
		lot, err := strconv.Atoi(rec[col["lot_size"]])
		if err != nil {
			return nil, fmt.Errorf("lot_size %q: %w", rec[col["lot_size"]], err)
		}
		expiry, err := time.ParseInLocation(expiryLayout, rec[col["expiry"]], helper.IST())
		if err != nil {
			return nil, fmt.Errorf("expiry %q: %w", rec[col["expiry"]], err)
		}

		out = append(out, models.Instrument{
			InstrumentToken: token,
			Tradingsymbol:   rec[col["tradingsymbol"]],
			Name:            rec[col["name"]],
			ExpiryDate:      expiry,
			LotSize:         lot,
			Exchange:        rec[col["exchange"]],
			Segment:         rec[col["segment"]],
			InstrumentType:  rec[col["instrument_type"]],
		})
	}
	return out, nil
}
