package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 100.0, RoundPrice(100.4))
	assert.Equal(t, 101.0, RoundPrice(100.5))
	assert.Equal(t, 100.0, RoundPrice(99.6))
	assert.Equal(t, -100.0, RoundPrice(-100.4))
}

func TestMinutesOfDay(t *testing.T) {
	open := time.Date(2026, 8, 31, 9, 16, 0, 0, IST())
	close := time.Date(2026, 8, 31, 15, 30, 59, 0, IST())

	assert.Equal(t, 9*60+16, MinutesOfDay(open))
	assert.Equal(t, 15*60+30, MinutesOfDay(close))

	// время в другой зоне нормализуется к IST
	utc := time.Date(2026, 8, 31, 3, 46, 0, 0, time.UTC) // 09:16 IST
	assert.Equal(t, 9*60+16, MinutesOfDay(utc))
}

func TestDateStr(t *testing.T) {
	// 23:00 UTC — уже следующий день в IST
	late := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-09-01", DateStr(late))
	assert.True(t, SameISTDate(late, "2026-09-01"))
	assert.False(t, SameISTDate(late, "2026-08-31"))
}

func TestTimeStr(t *testing.T) {
	ts := time.Date(2026, 8, 31, 9, 16, 5, 0, IST())
	assert.Equal(t, "2026-08-31 09:16:05", TimeStr(ts))
}
