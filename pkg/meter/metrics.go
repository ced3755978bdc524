package meter

import "github.com/prometheus/client_golang/prometheus"

const metricPrefix = "utemeter_"

var (
	updatesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "updates_total",
		Help: "Meter updates applied (including zero-delta updates)",
	})
	readingsUnavailable = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "readings_unavailable_total",
		Help: "Update cycles where the reading source was unavailable or malformed",
	})
	deltasDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "deltas_discarded_total",
		Help: "Deltas discarded as implausible (negative or above the ceiling)",
	})
	rollovers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricPrefix + "rollovers_total",
		Help: "Daily and monthly total resets",
	}, []string{"boundary"})
	kwhMonthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "kwh_month",
		Help: "Energy accumulated this month (kWh)",
	})
	costMonthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "cost_month",
		Help: "Cost accumulated this month (UYU)",
	})
)

func init() {
	prometheus.MustRegister(
		updatesApplied,
		readingsUnavailable,
		deltasDiscarded,
		rollovers,
		kwhMonthGauge,
		costMonthGauge,
	)
}
