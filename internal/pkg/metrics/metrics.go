package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "k8s_simplify"

// Metrics 收集远程命令、阶段和工作流的执行指标。nil *Metrics 可以安全调用。
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	commandAttempts *prometheus.HistogramVec
	phaseDuration   *prometheus.HistogramVec
	phasesTotal     *prometheus.CounterVec
	workflowsTotal  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "commands_total",
				Help:      "Total number of remote commands by result",
			},
			[]string{"result"},
		),
		commandAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "command_attempts",
				Help:      "Number of attempts needed per remote command",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"result"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "phase",
				Name:      "duration_seconds",
				Help:      "Duration of lifecycle phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"phase"},
		),
		phasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "phase",
				Name:      "runs_total",
				Help:      "Total number of phase runs by phase and result",
			},
			[]string{"phase", "result"},
		),
		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Total number of workflow runs by workflow and result",
			},
			[]string{"workflow", "result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.commandsTotal, m.commandAttempts, m.phaseDuration, m.phasesTotal, m.workflowsTotal)
	}
	return m
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) ObserveCommand(attempts int, err error) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(result(err)).Inc()
	m.commandAttempts.WithLabelValues(result(err)).Observe(float64(attempts))
}

func (m *Metrics) ObservePhase(phase string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
	m.phasesTotal.WithLabelValues(phase, result(err)).Inc()
}

func (m *Metrics) ObserveWorkflow(workflow string, err error) {
	if m == nil {
		return
	}
	m.workflowsTotal.WithLabelValues(workflow, result(err)).Inc()
}
