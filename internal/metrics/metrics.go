package metrics

import (
	"net/http"
	"strconv"

	"chatflow/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatflow"

// Recorder counts automation outcomes.
type Recorder struct {
	ruleExecutions     *prometheus.CounterVec
	actionExecutions   *prometheus.CounterVec
	scheduledProcessed *prometheus.CounterVec
	gatherer           prometheus.Gatherer
}

// NewRecorder registers the automation counters, plus the Go runtime and
// process collectors, on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Recorder{
		ruleExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_executions_total",
			Help:      "Automation rule executions by trigger type and final log status",
		}, []string{"trigger_type", "status"}),
		actionExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_executions_total",
			Help:      "Automation actions executed by type and outcome",
		}, []string{"action_type", "success"}),
		scheduledProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_processed_total",
			Help:      "Scheduled messages processed by terminal status",
		}, []string{"status"}),
		gatherer: reg,
	}
}

func (r *Recorder) RuleExecuted(trigger models.TriggerType, status models.LogStatus) {
	r.ruleExecutions.WithLabelValues(string(trigger), string(status)).Inc()
}

func (r *Recorder) ActionExecuted(action models.ActionType, success bool) {
	r.actionExecutions.WithLabelValues(string(action), strconv.FormatBool(success)).Inc()
}

func (r *Recorder) ScheduledProcessed(status models.ScheduledStatus) {
	r.scheduledProcessed.WithLabelValues(string(status)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
