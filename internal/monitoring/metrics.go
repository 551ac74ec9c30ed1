package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SolverMetrics contains all metrics for the solver's background processes.
type SolverMetrics struct {
	scannerBlocks      *prometheus.CounterVec
	scannerEvents      *prometheus.CounterVec
	scannerRebase      *prometheus.CounterVec
	sagaTransitions    *prometheus.CounterVec
	executorAttempts   *prometheus.CounterVec
	sweeperRuns        *prometheus.CounterVec
	activeProcesses    *prometheus.GaugeVec
	rpcDuration        *prometheus.HistogramVec
	circuitBreakerOpen *prometheus.GaugeVec
}

func NewSolverMetrics() *SolverMetrics {
	return &SolverMetrics{
		scannerBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_scanner_blocks_scanned_total",
				Help: "Total number of blocks scanned per network",
			},
			[]string{"network"},
		),
		scannerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_scanner_events_total",
				Help: "Total number of HTLC events observed per network and kind",
			},
			[]string{"network", "kind"},
		),
		scannerRebase: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_scanner_rebases_total",
				Help: "Total number of scanner rebase restarts per network",
			},
			[]string{"network"},
		),
		sagaTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_saga_transitions_total",
				Help: "Total number of swap saga state transitions",
			},
			[]string{"status"},
		),
		executorAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_executor_attempts_total",
				Help: "Total number of transaction execution attempts by outcome",
			},
			[]string{"network", "type", "result"},
		),
		sweeperRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_sweeper_runs_total",
				Help: "Total number of refund sweeper runs by outcome",
			},
			[]string{"result"},
		),
		activeProcesses: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solver_active_processes",
				Help: "Currently running durable processes by kind",
			},
			[]string{"kind"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solver_chain_rpc_duration_seconds",
				Help:    "Duration of chain RPC calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"network", "method", "status"},
		),
		circuitBreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solver_circuit_breaker_state",
				Help: "Current state of chain RPC circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"network"},
		),
	}
}

// MustRegister registers all metrics with the provided registry.
func (m *SolverMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.scannerBlocks,
		m.scannerEvents,
		m.scannerRebase,
		m.sagaTransitions,
		m.executorAttempts,
		m.sweeperRuns,
		m.activeProcesses,
		m.rpcDuration,
		m.circuitBreakerOpen,
	)
}

func (m *SolverMetrics) RecordBlocksScanned(network string, count float64) {
	m.scannerBlocks.WithLabelValues(network).Add(count)
}

func (m *SolverMetrics) RecordEvent(network, kind string) {
	m.scannerEvents.WithLabelValues(network, kind).Inc()
}

func (m *SolverMetrics) RecordRebase(network string) {
	m.scannerRebase.WithLabelValues(network).Inc()
}

func (m *SolverMetrics) RecordSagaTransition(status string) {
	m.sagaTransitions.WithLabelValues(status).Inc()
}

func (m *SolverMetrics) RecordExecutorAttempt(network, txType, result string) {
	m.executorAttempts.WithLabelValues(network, txType, result).Inc()
}

func (m *SolverMetrics) RecordSweeperRun(result string) {
	m.sweeperRuns.WithLabelValues(result).Inc()
}

func (m *SolverMetrics) SetActiveProcesses(kind string, count float64) {
	m.activeProcesses.WithLabelValues(kind).Set(count)
}

func (m *SolverMetrics) RecordRPC(network, method, status string, seconds float64) {
	m.rpcDuration.WithLabelValues(network, method, status).Observe(seconds)
}
