package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lineage/internal/usecase"
)

// Views records view materialization statistics on its own registry.
type Views struct {
	Registry *prometheus.Registry

	built        prometheus.Counter
	rawNodes     prometheus.Histogram
	substituted  *prometheus.CounterVec
	spliced      prometheus.Counter
	hiddenEdges  prometheus.Counter
	inferred     prometheus.Counter
	danglingRefs prometheus.Counter
}

func NewViews() *Views {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Views{
		Registry: reg,
		built: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_views_built_total",
			Help: "Views materialized for a viewer",
		}),
		rawNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineage_view_raw_nodes",
			Help:    "Nodes in the neighborhood before access rules are applied",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		substituted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_view_nodes_substituted_total",
			Help: "Nodes shown through a substitute",
		}, []string{"source"}),
		spliced: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_view_nodes_spliced_total",
			Help: "Substitutes removed so their neighbors could be reconnected",
		}),
		hiddenEdges: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_view_edges_hidden_total",
			Help: "Edges dropped by a hide vote",
		}),
		inferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_view_edges_inferred_total",
			Help: "Edges synthesized across spliced nodes",
		}),
		danglingRefs: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_view_dangling_edges_total",
			Help: "Raw edges dropped because an endpoint was missing",
		}),
	}
}

func (v *Views) ObserveView(s usecase.ViewStats) {
	if v == nil {
		return
	}
	v.built.Inc()
	v.rawNodes.Observe(float64(s.RawNodes))
	v.substituted.WithLabelValues("function").Add(float64(s.Surrogates - s.Placeholders))
	v.substituted.WithLabelValues("placeholder").Add(float64(s.Placeholders))
	v.spliced.Add(float64(s.Spliced))
	v.hiddenEdges.Add(float64(s.HiddenEdges))
	v.inferred.Add(float64(s.InferredEdges))
	v.danglingRefs.Add(float64(s.DanglingEdges))
}

var _ usecase.ViewObserver = (*Views)(nil)
