package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/order-risk/internal/risk"
)

var (
	screeningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_screenings_total",
		Help: "Orders screened by resulting risk level",
	}, []string{"risk_level"})

	flagsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_flags_raised_total",
		Help: "Fraud signals raised by signal name",
	}, []string{"signal"})

	degradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_screenings_degraded_total",
		Help: "Screenings completed on partial information by reason",
	}, []string{"reason"})

	failOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_screening_fail_open_total",
		Help: "Evaluations that failed and returned the zero-risk result",
	})

	screeningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraud_screening_duration_seconds",
		Help:    "Time spent screening one order, dependencies included",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_side_effect_failures_total",
		Help: "Screening side effects that failed without failing the screening",
	}, []string{"effect"})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_config_reloads_total",
		Help: "Risk configuration reloads by result",
	}, []string{"result"})

	configThresholds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fraud_config_risk_threshold",
		Help: "Active score thresholds of the risk levels",
	}, []string{"level"})
)

func recordScreening(a *Assessment) {
	screeningsTotal.WithLabelValues(string(a.Result.RiskLevel)).Inc()
	for _, s := range a.Result.FlagsRaised {
		flagsRaisedTotal.WithLabelValues(s.String()).Inc()
	}
	for _, reason := range a.DegradedReasons {
		degradedTotal.WithLabelValues(reason).Inc()
	}
}

// RecordConfigReload counts a configuration file reload.
func RecordConfigReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	configReloadsTotal.WithLabelValues(result).Inc()
}

// RecordActiveConfig exports the thresholds of cfg.
func RecordActiveConfig(cfg risk.Config) {
	configThresholds.WithLabelValues(string(risk.RiskLevelMedium)).Set(cfg.MediumRiskThreshold)
	configThresholds.WithLabelValues(string(risk.RiskLevelHigh)).Set(cfg.HighRiskThreshold)
}
