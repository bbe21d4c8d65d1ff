// Package metrics holds the Prometheus collectors of a run. Runs are batch
// jobs, so collectors live in a private registry that is written to a
// textfile for node_exporter when the run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wikisqleval/internal/evaluator"
	"wikisqleval/internal/llm"
)

const namespace = "wikisql"

type Metrics struct {
	Registry *prometheus.Registry

	LLMCalls       *prometheus.CounterVec
	LLMTokens      *prometheus.CounterVec
	LLMLatency     prometheus.Histogram
	Predictions    *prometheus.CounterVec
	HeavyRevisions prometheus.Counter
	Pairs          *prometheus.CounterVec
	Accuracy       *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Model calls by outcome.",
		}, []string{"outcome"}),
		LLMTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Estimated tokens sent and received.",
		}, []string{"direction"}),
		LLMLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Model call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction records written, by outcome.",
		}, []string{"outcome"}),
		HeavyRevisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heavy_revisions_total",
			Help:      "Revised SQL statements accepted by the critique loop.",
		}),
		Pairs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_pairs_total",
			Help:      "Scored pairs by tier and result.",
		}, []string{"tier", "result"}),
		Accuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_accuracy_ratio",
			Help:      "Accuracy of the last evaluation.",
		}, []string{"tier", "kind"}),
	}
}

// ObserveLLM is an llm.Observer.
func (m *Metrics) ObserveLLM(u llm.Usage) {
	outcome := "ok"
	if u.Err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(outcome).Inc()
	m.LLMTokens.WithLabelValues("prompt").Add(float64(u.PromptTokens))
	m.LLMTokens.WithLabelValues("completion").Add(float64(u.CompletionTokens))
	m.LLMLatency.Observe(u.Duration.Seconds())
}

// ObservePrediction counts one written record.
func (m *Metrics) ObservePrediction(ok, revised bool) {
	if ok {
		m.Predictions.WithLabelValues("query").Inc()
	} else {
		m.Predictions.WithLabelValues("error").Inc()
	}
	if revised {
		m.HeavyRevisions.Inc()
	}
}

// PairObserver returns a per-pair hook for evaluators of tier.
func (m *Metrics) PairObserver(tier string) func(evaluator.PairResult) {
	return func(r evaluator.PairResult) {
		switch {
		case r.Err != "":
			m.Pairs.WithLabelValues(tier, "error").Inc()
		case r.ExCorrect:
			m.Pairs.WithLabelValues(tier, "ex_correct").Inc()
		default:
			m.Pairs.WithLabelValues(tier, "ex_wrong").Inc()
		}
		if r.LfCorrect {
			m.Pairs.WithLabelValues(tier, "lf_correct").Inc()
		}
	}
}

// ObserveReport records the accuracies of a finished evaluation.
func (m *Metrics) ObserveReport(r *evaluator.Report) {
	m.Accuracy.WithLabelValues(r.Tier, "execution").Set(r.ExAccuracy)
	m.Accuracy.WithLabelValues(r.Tier, "logical_form").Set(r.LfAccuracy)
}

// WriteFile writes the registry in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
