package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — счётчики и гейджи торгового цикла.
type Metrics struct {
	registry *prometheus.Registry

	Ticks       *prometheus.CounterVec
	Intents     *prometheus.CounterVec
	TickErrors  prometheus.Counter
	StaleStates prometheus.Counter

	Stoploss prometheus.Gauge
	EMA      *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chase_ticks_total",
			Help: "Evaluated ticks by kind and resulting signal.",
		}, []string{"kind", "signal"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chase_order_intents_total",
			Help: "Order intents emitted by the state machine.",
		}, []string{"intent"}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chase_tick_errors_total",
			Help: "Ticks aborted with an error.",
		}),
		StaleStates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chase_stale_state_total",
			Help: "Ticks dropped because the state row was modified concurrently.",
		}),
		Stoploss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chase_stoploss",
			Help: "Current protective stop price.",
		}),
		EMA: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chase_ema",
			Help: "Latest indicator value per tradingsymbol.",
		}, []string{"tradingsymbol"}),
	}
	reg.MustRegister(m.Ticks, m.Intents, m.TickErrors, m.StaleStates, m.Stoploss, m.EMA)
	return m
}

// Handler — экспозиция для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
