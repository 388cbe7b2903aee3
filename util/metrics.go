package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	roundsStartedCounter   prometheus.Counter
	roundsCompletedCounter prometheus.Counter
	ordersAcceptedCounter  prometheus.Counter
	ordersRejectedCounter  prometheus.Counter
	tradesExecutedCounter  prometheus.Counter
	eventsDroppedCounter   prometheus.Counter
	activePlayersGauge     prometheus.Gauge
}

func (m *metrics) RoundStarted() {
	m.roundsStartedCounter.Inc()
}

func (m *metrics) RoundCompleted() {
	m.roundsCompletedCounter.Inc()
}

func (m *metrics) OrderAccepted() {
	m.ordersAcceptedCounter.Inc()
}

func (m *metrics) OrderRejected() {
	m.ordersRejectedCounter.Inc()
}

func (m *metrics) TradeExecuted() {
	m.tradesExecutedCounter.Inc()
}

func (m *metrics) EventDropped() {
	m.eventsDroppedCounter.Inc()
}

func (m *metrics) SetActivePlayers(count int) {
	m.activePlayersGauge.Set(float64(count))
}

var Metrics = &metrics{
	roundsStartedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "rounds_started_total",
		Help: "Total number of rounds that reached the trading phase",
	}),
	roundsCompletedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "rounds_completed_total",
		Help: "Total number of rounds settled",
	}),
	ordersAcceptedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_accepted_total",
		Help: "Total number of orders that rested or traded",
	}),
	ordersRejectedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of rejected order submissions",
	}),
	tradesExecutedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "trades_executed_total",
		Help: "Total number of executed trades",
	}),
	eventsDroppedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_dropped_total",
		Help: "Total number of events dropped due to a full sink buffer",
	}),
	activePlayersGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_players_count",
		Help: "Number of players in the current round",
	}),
}
