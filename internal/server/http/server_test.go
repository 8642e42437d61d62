package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/gdid/internal/config"
	"github.com/rzbill/gdid/internal/runtime"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	"github.com/rzbill/gdid/pkg/gdid"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

func newTestServer(t *testing.T) (*runtime.Runtime, *Server) {
	t.Helper()
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return rt, New(rt, logger)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	_, s := newTestServer(t)
	w := serve(s, http.MethodGet, "/v1/healthz?verbose=1", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	var resp struct {
		Status    string `json:"status"`
		Locations []struct {
			Name string `json:"name"`
			OK   bool   `json:"ok"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || len(resp.Locations) != 2 {
		t.Fatalf("unexpected health: %+v", resp)
	}
}

func TestInfoHandler(t *testing.T) {
	_, s := newTestServer(t)
	w := serve(s, http.MethodGet, "/v1/info", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	var resp infoBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CounterMax != gdid.DefaultCounterMax || len(resp.Locations) != 2 || resp.Authority == "" {
		t.Fatalf("unexpected info: %+v", resp)
	}
}

type infoBody struct {
	Authority  string   `json:"authority"`
	CounterMax uint64   `json:"counterMax"`
	Locations  []string `json:"locations"`
}

func TestAllocateHandler(t *testing.T) {
	_, s := newTestServer(t)
	w := serve(s, http.MethodPost, "/v1/blocks", `{"scope":"billing","sequence":"invoice","blockSize":50}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
	var blk struct {
		Era            uint32 `json:"era"`
		StartInclusive uint64 `json:"startInclusive"`
		Count          uint64 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &blk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if blk.StartInclusive != 1 || blk.Count != 50 {
		t.Fatalf("unexpected block: %+v", blk)
	}

	w = serve(s, http.MethodPost, "/v1/blocks", `{"scope":"billing","sequence":"invoice","blockSize":10,"vicinity":500}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &blk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if blk.StartInclusive != 500 {
		t.Fatalf("vicinity ignored: %+v", blk)
	}
}

func TestAllocateHandlerRejects(t *testing.T) {
	_, s := newTestServer(t)
	if w := serve(s, http.MethodGet, "/v1/blocks", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status: %d", w.Code)
	}
	if w := serve(s, http.MethodPost, "/v1/blocks", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad body status: %d", w.Code)
	}
	w := serve(s, http.MethodPost, "/v1/blocks", `{"scope":"bad scope","sequence":"x","blockSize":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid name status: %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["kind"] != gdid.KindInvalidName.String() {
		t.Fatalf("kind: %+v", body)
	}
}

func TestSequencesHandler(t *testing.T) {
	rt, s := newTestServer(t)
	ctx := context.Background()
	for _, seq := range []string{"invoice", "order"} {
		if _, err := rt.Authority().AllocateBlock(ctx, "billing", seq, 10, gdid.VicinityNone); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	if _, err := rt.Authority().AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	w := serve(s, http.MethodGet, "/v1/sequences?scope=billing", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	var resp struct {
		Sequences []gdid.SequenceInfo `json:"sequences"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sequences) != 2 {
		t.Fatalf("expected 2 sequences, got %+v", resp.Sequences)
	}

	w = serve(s, http.MethodGet, "/v1/sequences?filter="+url.QueryEscape(`current > 15`), "")
	if w.Code != 200 {
		t.Fatalf("filter status: %d", w.Code)
	}
	resp.Sequences = nil
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sequences) != 1 || resp.Sequences[0].Sequence != "invoice" {
		t.Fatalf("filtered: %+v", resp.Sequences)
	}

	if w := serve(s, http.MethodGet, "/v1/sequences?filter="+url.QueryEscape("era >"), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status: %d", w.Code)
	}
	if w := serve(s, http.MethodGet, "/v1/sequences?scope="+url.QueryEscape("no/slash"), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad scope status: %d", w.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	rt, s := newTestServer(t)
	if _, err := rt.Authority().AllocateBlock(context.Background(), "billing", "invoice", 10, gdid.VicinityNone); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	w := serve(s, http.MethodGet, "/metrics", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "gdid_") {
		t.Fatalf("metrics body lacks gdid series")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, s := newTestServer(t)
	w := serve(s, http.MethodOptions, "/v1/sequences", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing cors header")
	}
}
