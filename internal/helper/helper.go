package helper

import (
	"math"
	"time"
)

// Вся торговая логика сравнивает время в одной фиксированной таймзоне (IST).
// time.LoadLocation не дергаем на каждый тик.
var ist = time.FixedZone("IST", 5*3600+1800)

func IST() *time.Location { return ist }

// NowIST — текущее время, нормализованное к IST.
func NowIST() time.Time { return time.Now().In(ist) }

// ToIST нормализует произвольное время к IST.
func ToIST(t time.Time) time.Time { return t.In(ist) }

// DateStr — YYYY-MM-DD в IST; формат дат в БД и в сравнениях "тот ли день".
func DateStr(t time.Time) string { return t.In(ist).Format("2006-01-02") }

// TimeStr — YYYY-MM-DD HH:mm:ss в IST (формат Kite historical API).
func TimeStr(t time.Time) string { return t.In(ist).Format("2006-01-02 15:04:05") }

// RoundPrice округляет к ближайшему целому — гранулярность цен индексных
// фьючерсов, с которой работает вся стратегия.
func RoundPrice(v float64) float64 { return math.Round(v) }

// MinutesOfDay — минуты с полуночи IST, для сравнения с границами сессии.
func MinutesOfDay(t time.Time) int {
	t = t.In(ist)
	return t.Hour()*60 + t.Minute()
}

// SameISTDate — попадает ли t в день date (YYYY-MM-DD, IST).
func SameISTDate(t time.Time, date string) bool { return DateStr(t) == date }
