// CLAUDE:SUMMARY HTTP routes for ABN and name search, health and import sources; request ids, CORS, optional MCP mount.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/kit"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

// Config wires the router to its backends. Only Service is required.
type Config struct {
	Service search.LookupService
	// Backend names the lookup backend in health responses ("abr", "local").
	Backend string
	// Count, when set, reports the number of locally stored records.
	Count func(context.Context) (int, error)
	// Sources enables GET /v1/sources.
	Sources *importer.SourceDB
	// MCP, when set, is mounted at /mcp.
	MCP     http.Handler
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewRouter returns an http.Handler with all ABN lookup API routes.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	h := &handler{
		search: kit.Chain(kit.Logging(logger, "search"), kit.Timeout(cfg.Timeout))(searchEndpoint(cfg.Service, logger)),
		cfg:    cfg,
	}

	mux.HandleFunc("GET /v1/abn/{abn}", h.handleLookupABN)
	mux.HandleFunc("GET /v1/search", h.handleSearchName)
	mux.HandleFunc("POST /v1/search", h.handleSearch)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	if cfg.Sources != nil {
		h.listSources = kit.Logging(logger, "sources")(listSourcesEndpoint(cfg.Sources))
		mux.HandleFunc("GET /v1/sources", h.handleListSources)
	}
	if cfg.MCP != nil {
		mux.Handle("/mcp", cfg.MCP)
	}

	return requestID(cors(mux))
}

type handler struct {
	search      kit.Endpoint
	listSources kit.Endpoint
	cfg         Config
}

// --- search ---

func (h *handler) handleLookupABN(w http.ResponseWriter, r *http.Request) {
	h.runSearch(w, r, &searchReq{Mode: abn.ModeIdentifier, Term: r.PathValue("abn")})
}

func (h *handler) handleSearchName(w http.ResponseWriter, r *http.Request) {
	h.runSearch(w, r, &searchReq{Mode: abn.ModeName, Term: r.URL.Query().Get("name")})
}

type httpSearchRequest struct {
	Mode string `json:"mode"`
	Term string `json:"term"`
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)
	var req httpSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode, err := abn.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.runSearch(w, r, &searchReq{Mode: mode, Term: req.Term})
}

func (h *handler) runSearch(w http.ResponseWriter, r *http.Request, req *searchReq) {
	resp, err := h.search(r.Context(), req)
	if resp == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, searchStatus(err), resp)
}

// searchStatus maps a submit outcome to an HTTP status.
func searchStatus(err error) int {
	var verr *abn.ValidationError
	var lerr *search.LookupError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &lerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// --- sources ---

func (h *handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listSources(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Records *int   `json:"records,omitempty"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backend: h.cfg.Backend}
	if h.cfg.Count != nil {
		n, err := h.cfg.Count(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Backend: h.cfg.Backend})
			return
		}
		resp.Records = &n
	}
	writeJSON(w, http.StatusOK, resp)
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

// requestID propagates X-Request-ID, minting a UUID when the client sent
// none, and tags the context with the http transport.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
