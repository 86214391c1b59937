// Package metrics registers the orchestrator's run-level Prometheus
// metrics, following the teacher's npm/metrics package-level-vars +
// InitializeAll idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inovex/illuminatio-go/log"
)

const namespace = "illuminatio"

// Prometheus metrics. Gauges use Set/Inc/Dec; summaries use Observe.
var (
	CasesGenerated    prometheus.Gauge
	CasesPositive     prometheus.Gauge
	CasesNegative     prometheus.Gauge
	CasesMatched      prometheus.Gauge
	CasesMismatched   prometheus.Gauge
	PhaseDuration     *prometheus.SummaryVec
	DaemonReadyWait   prometheus.Summary
	ResultCollectWait prometheus.Summary
)

const (
	casesGeneratedName = "cases_generated"
	casesGeneratedHelp = "Total number of test cases generated for the current run"

	casesPositiveName = "cases_positive"
	casesPositiveHelp = "Number of positive (expected-reachable) test cases generated"

	casesNegativeName = "cases_negative"
	casesNegativeHelp = "Number of negative (expected-blocked) test cases generated"

	casesMatchedName = "cases_matched"
	casesMatchedHelp = "Number of cases whose observed result matched the expectation"

	casesMismatchedName = "cases_mismatched"
	casesMismatchedHelp = "Number of cases whose observed result contradicted the expectation"

	phaseDurationName = "phase_duration_seconds"
	phaseDurationHelp = "Wall time spent in each orchestrator phase"
	phaseLabel        = "phase"

	daemonReadyWaitName = "daemon_ready_wait_seconds"
	daemonReadyWaitHelp = "Time spent polling for runner daemon set readiness"

	resultCollectWaitName = "result_collect_wait_seconds"
	resultCollectWaitHelp = "Time spent polling for result artifacts"
)

var registry = prometheus.NewRegistry()
var initialized = false

// InitializeAll creates and registers every metric. Metrics are nil
// before this is called.
func InitializeAll() {
	if initialized {
		return
	}

	CasesGenerated = createGauge(casesGeneratedName, casesGeneratedHelp)
	CasesPositive = createGauge(casesPositiveName, casesPositiveHelp)
	CasesNegative = createGauge(casesNegativeName, casesNegativeHelp)
	CasesMatched = createGauge(casesMatchedName, casesMatchedHelp)
	CasesMismatched = createGauge(casesMismatchedName, casesMismatchedHelp)
	PhaseDuration = createSummaryVec(phaseDurationName, phaseDurationHelp, phaseLabel)
	DaemonReadyWait = createSummary(daemonReadyWaitName, daemonReadyWaitHelp)
	ResultCollectWait = createSummary(resultCollectWaitName, resultCollectWaitHelp)

	log.Printf("[metrics] initialized all Prometheus metrics")
	initialized = true
}

// Registry returns the registry metrics are registered against, for
// wiring into an HTTP handler.
func Registry() *prometheus.Registry {
	return registry
}

func register(collector prometheus.Collector, name string) {
	if err := registry.Register(collector); err != nil {
		log.Printf("[metrics] failed to register metric %s: %v", name, err)
	}
}

func createGauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	register(g, name)
	return g
}

func createSummary(name, help string) prometheus.Summary {
	s := prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       name,
		Help:       help,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	register(s, name)
	return s
}

func createSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	s := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       name,
		Help:       help,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, labels)
	register(s, name)
	return s
}
