package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/fixture-runner/types"
)

const (
	MetricsNamespace = "fixtures"
)

// Debug logs every metric update. The CLI enables it at debug log level.
var Debug bool

var (
	validResults         = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusNotRun}
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of fixtures by result",
	}, []string{
		"result",
	})

	caseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Wall-clock duration of executed fixtures",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of harness runs by terminal state and failure cause",
	}, []string{
		"result",
		"cause",
	})

	runFixtures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_fixtures",
		Help:      "Fixtures discovered and attempted in the last run",
	}, []string{
		"kind",
	})

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last run",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordCase counts one fixture result. Durations are only observed for executed fixtures.
func RecordCase(result types.TestStatus, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordCase - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "cases_total",
			"result", result,
			"duration", duration)
	}
	casesTotal.WithLabelValues(string(result)).Inc()
	if result != types.TestStatusNotRun {
		caseDuration.Observe(duration.Seconds())
	}
}

// RecordRun records the terminal outcome of a run
func RecordRun(outcome *types.RunOutcome) {
	if outcome == nil {
		return
	}
	cause := string(outcome.Cause)
	if cause == "" {
		cause = "none"
	}
	runsTotal.WithLabelValues(string(outcome.State), cause).Inc()
	runFixtures.WithLabelValues("discovered").Set(float64(outcome.Total))
	runFixtures.WithLabelValues("attempted").Set(float64(outcome.Attempted))
	runDuration.Set(outcome.Duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
