package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/gdid/internal/authority"
	"github.com/rzbill/gdid/internal/runtime"
	"github.com/rzbill/gdid/pkg/gdid"
)

// SequencesController exposes sequence monitoring and block allocation.
type SequencesController struct {
	rt *runtime.Runtime
}

// NewSequencesController creates a new sequences controller.
func NewSequencesController(rt *runtime.Runtime) *SequencesController {
	return &SequencesController{rt: rt}
}

// RegisterRoutes registers sequence routes with the given mux.
func (c *SequencesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sequences", c.handleList)
	mux.HandleFunc("/v1/blocks", c.handleAllocate)
}

// handleList lists sequence infos.
//
// Query: scope (optional, all scopes when empty) and filter, a CEL
// expression such as `era > 0 && remaining == 0`.
func (c *SequencesController) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	filter, err := authority.NewInfoFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter: "+err.Error())
		return
	}
	infos, err := c.rt.Authority().SequenceInfos(q.Get("scope"))
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	if infos, err = filter.Apply(infos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, sequencesResp{Sequences: infos})
}

// handleAllocate allocates one block directly from the Authority.
//
// Expects a JSON body {"scope","sequence","blockSize","vicinity"}. Returns
// 201 Created with the block.
func (c *SequencesController) handleAllocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req allocateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	vicinity := gdid.VicinityNone
	if req.Vicinity != nil {
		vicinity = *req.Vicinity
	}
	blk, err := c.rt.Authority().AllocateBlock(r.Context(), req.Scope, req.Sequence, req.BlockSize, vicinity)
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, newBlockResp(blk))
}
