// Package metrics exposes game counters on a private Prometheus registry.
// All methods are safe on a nil *Metrics so tests can skip wiring it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hebrewvocab"

type Metrics struct {
	Registry *prometheus.Registry

	roomsCreated  prometheus.Counter
	roomsSwept    prometheus.Counter
	roomsActive   prometheus.Gauge
	guesses       *prometheus.CounterVec
	rounds        prometheus.Counter
	gamesFinished prometheus.Counter
	subscribers   *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_created_total",
			Help: "Rooms created through the room service.",
		}),
		roomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_swept_total",
			Help: "Room records removed by the cleanup sweep.",
		}),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Room records present after the last sweep.",
		}),
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "guesses_total",
			Help: "Checked guesses by outcome.",
		}, []string{"outcome"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_advanced_total",
			Help: "Rounds advanced after every player finished.",
		}),
		gamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "games_finished_total",
			Help: "Games that reached the last word.",
		}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "push_subscribers",
			Help: "Open push subscriptions by transport.",
		}, []string{"transport"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.roomsCreated, m.roomsSwept, m.roomsActive, m.guesses,
		m.rounds, m.gamesFinished, m.subscribers, m.httpRequests,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomCreated() {
	if m != nil {
		m.roomsCreated.Inc()
	}
}

func (m *Metrics) RoomsSwept(n, remaining int) {
	if m != nil {
		m.roomsSwept.Add(float64(n))
		m.roomsActive.Set(float64(remaining))
	}
}

func (m *Metrics) Guess(outcome string) {
	if m != nil {
		m.guesses.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RoundAdvanced(gameOver bool) {
	if m == nil {
		return
	}
	if gameOver {
		m.gamesFinished.Inc()
		return
	}
	m.rounds.Inc()
}

// Subscribed adjusts the open subscription gauge; pass -1 on disconnect.
func (m *Metrics) Subscribed(transport string, delta int) {
	if m != nil {
		m.subscribers.WithLabelValues(transport).Add(float64(delta))
	}
}

func (m *Metrics) Request(method, code string) {
	if m != nil {
		m.httpRequests.WithLabelValues(method, code).Inc()
	}
}
