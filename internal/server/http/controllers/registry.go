package controllers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/gdid/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	rt        *runtime.Runtime
	general   *GeneralController
	sequences *SequencesController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		rt:        rt,
		general:   NewGeneralController(rt),
		sequences: NewSequencesController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux,
// plus the Prometheus scrape endpoint at /metrics.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.sequences.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(r.rt.Registry(), promhttp.HandlerOpts{}))
}
