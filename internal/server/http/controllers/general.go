package controllers

import (
	"net/http"

	"github.com/rzbill/gdid/internal/runtime"
)

// GeneralController handles general HTTP endpoints like health and node info.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Node information (/v1/info)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/info", c.handleInfo)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} while at least one location answers,
// 503 Service Unavailable otherwise. ?verbose=1 adds per-location detail.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResp{Status: "ok"}
	if parseBool(r.URL.Query().Get("verbose")) {
		resp.Locations = c.rt.Locations(r.Context())
	}
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		resp.Status = "not_serving"
		writeJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, resp)
}

func (c *GeneralController) handleInfo(w http.ResponseWriter, r *http.Request) {
	auth := c.rt.Authority()
	resp := infoResp{
		Authority:    auth.Name(),
		CounterMax:   auth.CounterMax(),
		MaxBlockSize: c.rt.Config().Authority.MaxBlockSize,
	}
	for _, l := range auth.Locations() {
		resp.Locations = append(resp.Locations, l.Name())
	}
	writeJSON(w, resp)
}
