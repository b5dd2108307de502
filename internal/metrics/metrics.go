// Package metrics holds Prometheus instruments that are used across the
// view layer.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ViewRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajaxviews_view_requests_total",
			Help: "Requests served per view feature, method, and status code.",
		}, []string{"feature", "method", "code"})

	FilterResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajaxviews_filter_responses_total",
			Help: "Filter-option sub-responses per filter kind.",
		}, []string{"kind"})

	PreviewTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajaxviews_preview_transitions_total",
			Help: "Preview state-machine transitions per target stage.",
		}, []string{"stage"})

	ObjectSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajaxviews_object_saves_total",
			Help: "Objects saved through form and formset views, per model.",
		}, []string{"model"})

	ObjectDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ajaxviews_object_deletes_total",
			Help: "Objects deleted through delete views, per model.",
		}, []string{"model"})
)

func init() {
	prometheus.MustRegister(
		ViewRequestsTotal,
		FilterResponsesTotal,
		PreviewTransitionsTotal,
		ObjectSavesTotal,
		ObjectDeletesTotal,
	)
}
