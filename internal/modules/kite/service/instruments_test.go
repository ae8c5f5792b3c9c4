package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instrumentsDump = `instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange
12345,48,NIFTY26SEPFUT,NIFTY,0,2026-09-24,0,0.05,75,FUT,NFO-FUT,NFO
12346,49,NIFTY26OCTFUT,NIFTY,0,2026-10-29,0,0.05,75,FUT,NFO-FUT,NFO
22345,87,BANKNIFTY26SEPFUT,BANKNIFTY,0,2026-09-24,0,0.05,35,FUT,NFO-FUT,NFO
33333,130,NIFTY26SEP24500CE,NIFTY,0,2026-09-24,24500,0.05,75,CE,NFO-OPT,NFO
44444,173,FINNIFTY26SEPFUT,FINNIFTY,0,2026-09-24,0,0.05,65,FUT,NFO-FUT,NFO
`

func TestParseInstrumentsCSV(t *testing.T) {
	instruments, err := parseInstrumentsCSV(strings.NewReader(instrumentsDump))
	require.NoError(t, err)

	// опционы и посторонние индексы отфильтрованы
	require.Len(t, instruments, 3)

	first := instruments[0]
	assert.Equal(t, int64(12345), first.InstrumentToken)
	assert.Equal(t, "NIFTY26SEPFUT", first.Tradingsymbol)
	assert.Equal(t, "NIFTY", first.Name)
	assert.Equal(t, 75, first.LotSize)
	assert.Equal(t, "FUT", first.InstrumentType)
	assert.Equal(t, 2026, first.ExpiryDate.Year())
	assert.Equal(t, 24, first.ExpiryDate.Day())

	assert.Equal(t, "BANKNIFTY26SEPFUT", instruments[2].Tradingsymbol)
}

func TestParseInstrumentsCSVMissingColumn(t *testing.T) {
	_, err := parseInstrumentsCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.Error(t, err)
}
