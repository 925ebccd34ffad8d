package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/taxomigrate/pkg/kit"
	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
)

// NewRouter returns an http.Handler with all resolve API routes.
func NewRouter(res *taxonomy.Resolver, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	eps := newEndpoints(res, logger)
	h := &handler{
		resolve:      eps.resolve,
		resolveBatch: eps.resolveBatch,
		listTaxonomy: eps.listTaxonomy,
		res:          res,
	}

	mux.HandleFunc("GET /v1/resolve/batch", methodNotAllowed) // prevent GET on batch
	mux.HandleFunc("POST /v1/resolve/batch", h.handleResolveBatch)
	mux.HandleFunc("GET /v1/resolve/{label}", h.handleResolve)
	mux.HandleFunc("GET /v1/taxonomy", h.handleTaxonomy)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	resolve      kit.Endpoint
	resolveBatch kit.Endpoint
	listTaxonomy kit.Endpoint
	res          *taxonomy.Resolver
}

// --- resolve single label ---

func (h *handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	if label == "" {
		writeError(w, http.StatusBadRequest, "missing label")
		return
	}

	resp, err := h.resolve(kit.WithTransport(r.Context(), "http"), &resolveReq{Label: label})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- resolve batch ---

type httpBatchRequest struct {
	Labels []string `json:"labels"`
}

func (h *handler) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.resolveBatch(kit.WithTransport(r.Context(), "http"), &resolveBatchReq{Labels: req.Labels})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- taxonomy ---

func (h *handler) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listTaxonomy(kit.WithTransport(r.Context(), "http"), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog"`
	Version string `json:"version"`
	Labels  int    `json:"labels"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := h.res.Catalog()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Catalog: cat.ID,
		Version: cat.Version,
		Labels:  cat.Len(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
